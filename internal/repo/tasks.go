package repo

import (
	"context"
	"fmt"
)

// ListActiveTasks returns active tasks, optionally filtered by category.
// An empty or "all" category returns every active task.
func (r *PostgresRepository) ListActiveTasks(ctx context.Context, category string) ([]Task, error) {
	const base = `
SELECT id, title, description, payout, category, status, time_required, completed_count, created_at
FROM tasks
WHERE status = 'active'`

	var (
		q    string
		args []any
	)
	if category == "" || category == "all" {
		q = base + `
ORDER BY created_at DESC;`
	} else {
		q = base + `
  AND category = $1
ORDER BY created_at DESC;`
		args = append(args, category)
	}

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list active tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Payout, &t.Category, &t.Status, &t.TimeRequired, &t.CompletedCount, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}
