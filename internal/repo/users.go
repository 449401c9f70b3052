package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// GetUserByID returns the profile row for an auth identity. Returns
// ErrNotFound when no profile exists yet, so callers can distinguish a
// first sign-in from a transport failure.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*User, error) {
	const q = `
SELECT id, mobile, email, full_name, google_id, balance, total_earned,
       subscription_plan, plan_expires_at, device_id, fraud_count, role, created_at
FROM users
WHERE id = $1
LIMIT 1;
`
	row := r.pool.QueryRow(ctx, q, id)
	var u User
	if err := scanUser(row, &u); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return &u, nil
}

// InsertUser creates the profile row for a new identity.
func (r *PostgresRepository) InsertUser(ctx context.Context, user User) (*User, error) {
	const q = `
INSERT INTO users (id, mobile, email, full_name, google_id, balance, total_earned,
                   subscription_plan, plan_expires_at, device_id, fraud_count, role)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, COALESCE(NULLIF($12, ''), 'user'))
RETURNING id, mobile, email, full_name, google_id, balance, total_earned,
          subscription_plan, plan_expires_at, device_id, fraud_count, role, created_at;
`
	row := r.pool.QueryRow(ctx, q,
		user.ID,
		user.Mobile,
		user.Email,
		user.FullName,
		user.GoogleID,
		user.Balance,
		user.TotalEarned,
		user.SubscriptionPlan,
		user.PlanExpiresAt,
		user.DeviceID,
		user.FraudCount,
		user.Role,
	)

	var inserted User
	if err := scanUser(row, &inserted); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &inserted, nil
}

func scanUser(row pgx.Row, u *User) error {
	return row.Scan(
		&u.ID,
		&u.Mobile,
		&u.Email,
		&u.FullName,
		&u.GoogleID,
		&u.Balance,
		&u.TotalEarned,
		&u.SubscriptionPlan,
		&u.PlanExpiresAt,
		&u.DeviceID,
		&u.FraudCount,
		&u.Role,
		&u.CreatedAt,
	)
}
