package repo

import (
	"context"
	"io/fs"
	"time"
)

// Repository defines the interface for data persistence.
type Repository interface {
	// Lifecycle
	Close()
	Ping(ctx context.Context) error
	RunMigrations(ctx context.Context, filesystem fs.FS) error

	// Users
	GetUserByID(ctx context.Context, id string) (*User, error)
	InsertUser(ctx context.Context, user User) (*User, error)

	// Transactions
	InsertTransaction(ctx context.Context, tx Transaction) (*Transaction, error)
	ListRecentTransactions(ctx context.Context, userID string, limit int) ([]Transaction, error)
	ListCreditsSince(ctx context.Context, userID string, since time.Time) ([]Transaction, error)
	ListCheckins(ctx context.Context, userID string, limit int) ([]time.Time, error)

	// Tasks
	ListActiveTasks(ctx context.Context, category string) ([]Task, error)

	// Task submissions
	GetSubmission(ctx context.Context, userID, taskID string) (*TaskSubmission, error)
	InsertSubmission(ctx context.Context, sub TaskSubmission) (*TaskSubmission, error)
	CountApprovedSubmissions(ctx context.Context, userID string) (int, error)

	// Referrals
	CountReferrals(ctx context.Context, referrerID string) (int, error)
}
