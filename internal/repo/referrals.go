package repo

import (
	"context"
	"fmt"
)

// CountReferrals counts users referred by the given referrer.
func (r *PostgresRepository) CountReferrals(ctx context.Context, referrerID string) (int, error) {
	const q = `
SELECT COUNT(*)
FROM referrals
WHERE referrer_id = $1;
`
	var count int
	if err := r.pool.QueryRow(ctx, q, referrerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count referrals: %w", err)
	}
	return count, nil
}
