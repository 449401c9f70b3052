package repo

import (
	"context"
	"fmt"
	"time"
)

// InsertTransaction appends an entry to the ledger.
func (r *PostgresRepository) InsertTransaction(ctx context.Context, tx Transaction) (*Transaction, error) {
	const q = `
INSERT INTO transactions (user_id, amount, type, status)
VALUES ($1, $2, $3, $4)
RETURNING id, user_id, amount, type, status, created_at;
`
	row := r.pool.QueryRow(ctx, q, tx.UserID, tx.Amount, tx.Type, tx.Status)

	var inserted Transaction
	if err := row.Scan(&inserted.ID, &inserted.UserID, &inserted.Amount, &inserted.Type, &inserted.Status, &inserted.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	return &inserted, nil
}

// ListRecentTransactions returns the latest ledger entries for the user,
// newest first.
func (r *PostgresRepository) ListRecentTransactions(ctx context.Context, userID string, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 5
	}
	const q = `
SELECT id, user_id, amount, type, status, created_at
FROM transactions
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2;
`
	rows, err := r.pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent transactions: %w", err)
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		var tx Transaction
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Amount, &tx.Type, &tx.Status, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan recent transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent transactions: %w", err)
	}
	return txs, nil
}

// ListCreditsSince returns positive-amount entries created at or after the
// given instant. Used for the today's-earnings figure.
func (r *PostgresRepository) ListCreditsSince(ctx context.Context, userID string, since time.Time) ([]Transaction, error) {
	const q = `
SELECT id, user_id, amount, type, status, created_at
FROM transactions
WHERE user_id = $1
  AND amount > 0
  AND created_at >= $2
ORDER BY created_at DESC;
`
	rows, err := r.pool.Query(ctx, q, userID, since)
	if err != nil {
		return nil, fmt.Errorf("list credits since: %w", err)
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		var tx Transaction
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Amount, &tx.Type, &tx.Status, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan credit: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credits: %w", err)
	}
	return txs, nil
}

// ListCheckins returns creation timestamps of the user's daily check-in
// entries, newest first. The streak counter is derived from these in Go so
// day bucketing follows the caller's timezone.
func (r *PostgresRepository) ListCheckins(ctx context.Context, userID string, limit int) ([]time.Time, error) {
	if limit <= 0 {
		limit = 30
	}
	const q = `
SELECT created_at
FROM transactions
WHERE user_id = $1
  AND type = $2
ORDER BY created_at DESC
LIMIT $3;
`
	rows, err := r.pool.Query(ctx, q, userID, TxDailyCheckin, limit)
	if err != nil {
		return nil, fmt.Errorf("list checkins: %w", err)
	}
	defer rows.Close()

	var stamps []time.Time
	for rows.Next() {
		var ts time.Time
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("scan checkin: %w", err)
		}
		stamps = append(stamps, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkins: %w", err)
	}
	return stamps, nil
}
