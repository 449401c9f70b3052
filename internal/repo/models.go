package repo

import "time"

// Transaction types recorded in the ledger.
const (
	TxSignupBonus    = "signup_bonus"
	TxTaskCompletion = "task_completion"
	TxAdReward       = "ad_reward"
	TxDailyCheckin   = "daily_checkin"
	TxReferralBonus  = "referral_bonus"
	TxWithdrawal     = "withdrawal"
)

// Task submission statuses.
const (
	SubmissionPending  = "pending"
	SubmissionApproved = "approved"
	SubmissionRejected = "rejected"
)

// User represents the users table row. JSON tags match the column names so
// the same struct round-trips through the local snapshot store and the
// row-change notification payloads.
type User struct {
	ID               string     `json:"id"`
	Mobile           string     `json:"mobile"`
	Email            string     `json:"email"`
	FullName         string     `json:"full_name"`
	GoogleID         string     `json:"google_id"`
	Balance          float64    `json:"balance"`
	TotalEarned      float64    `json:"total_earned"`
	SubscriptionPlan string     `json:"subscription_plan"`
	PlanExpiresAt    *time.Time `json:"plan_expires_at"`
	DeviceID         string     `json:"device_id"`
	FraudCount       int        `json:"fraud_count"`
	Role             string     `json:"role"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Transaction is an immutable signed monetary ledger entry.
type Transaction struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Amount    float64   `json:"amount"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Task represents an admin-managed task available for completion.
type Task struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Payout         float64   `json:"payout"`
	Category       string    `json:"category"`
	Status         string    `json:"status"`
	TimeRequired   int       `json:"time_required"`
	CompletedCount int       `json:"completed_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// TaskSubmission is a user's claim of task completion awaiting admin review.
type TaskSubmission struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TaskID    string    `json:"task_id"`
	ProofURL  string    `json:"proof_url"`
	Note      string    `json:"note"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Referral links a referrer to a referred user.
type Referral struct {
	ID         string    `json:"id"`
	ReferrerID string    `json:"referrer_id"`
	RefereeID  string    `json:"referee_id"`
	CreatedAt  time.Time `json:"created_at"`
}
