package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// GetSubmission returns the latest submission for a (user, task) pair.
// Returns ErrNotFound when the user has never submitted this task.
func (r *PostgresRepository) GetSubmission(ctx context.Context, userID, taskID string) (*TaskSubmission, error) {
	const q = `
SELECT id, user_id, task_id, proof_url, note, status, created_at
FROM task_submissions
WHERE user_id = $1
  AND task_id = $2
ORDER BY created_at DESC
LIMIT 1;
`
	row := r.pool.QueryRow(ctx, q, userID, taskID)
	var sub TaskSubmission
	if err := row.Scan(&sub.ID, &sub.UserID, &sub.TaskID, &sub.ProofURL, &sub.Note, &sub.Status, &sub.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return &sub, nil
}

// InsertSubmission stores a new pending proof submission.
func (r *PostgresRepository) InsertSubmission(ctx context.Context, sub TaskSubmission) (*TaskSubmission, error) {
	const q = `
INSERT INTO task_submissions (user_id, task_id, proof_url, note, status)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, user_id, task_id, proof_url, note, status, created_at;
`
	row := r.pool.QueryRow(ctx, q, sub.UserID, sub.TaskID, sub.ProofURL, sub.Note, sub.Status)

	var inserted TaskSubmission
	if err := row.Scan(&inserted.ID, &inserted.UserID, &inserted.TaskID, &inserted.ProofURL, &inserted.Note, &inserted.Status, &inserted.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert submission: %w", err)
	}
	return &inserted, nil
}

// CountApprovedSubmissions counts the user's approved task submissions.
func (r *PostgresRepository) CountApprovedSubmissions(ctx context.Context, userID string) (int, error) {
	const q = `
SELECT COUNT(*)
FROM task_submissions
WHERE user_id = $1
  AND status = $2;
`
	var count int
	if err := r.pool.QueryRow(ctx, q, userID, SubmissionApproved).Scan(&count); err != nil {
		return 0, fmt.Errorf("count approved submissions: %w", err)
	}
	return count, nil
}
