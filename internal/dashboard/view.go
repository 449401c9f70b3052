package dashboard

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"earnzy/internal/repo"
)

// ViewState is the rendered dashboard, served as-is by the HTTP layer.
type ViewState struct {
	Greeting    string            `json:"greeting"`
	Balance     string            `json:"balance"`
	MainBalance string            `json:"main_balance"`
	NoEarnings  bool              `json:"no_earnings"`
	Recent      []TransactionView `json:"recent"`
	Stats       Stats             `json:"stats"`
}

// TransactionView is a ledger entry formatted for display.
type TransactionView struct {
	Label  string `json:"label"`
	Amount string `json:"amount"`
	When   string `json:"when"`
	Status string `json:"status"`
	Credit bool   `json:"credit"`
}

// Stats holds the four derived statistics.
type Stats struct {
	CompletedTasks int    `json:"completed_tasks"`
	Referrals      int    `json:"referrals"`
	Streak         int    `json:"streak"`
	TodayEarnings  string `json:"today_earnings"`
}

var transactionLabels = map[string]string{
	repo.TxSignupBonus:    "Signup Bonus",
	repo.TxTaskCompletion: "Task Reward",
	repo.TxAdReward:       "Ad Watch",
	repo.TxDailyCheckin:   "Daily Check-in",
	repo.TxReferralBonus:  "Referral Bonus",
	repo.TxWithdrawal:     "Withdrawal",
}

func newTransactionView(tx repo.Transaction) TransactionView {
	label, ok := transactionLabels[tx.Type]
	if !ok {
		label = tx.Type
	}
	sign := ""
	if tx.Amount > 0 {
		sign = "+"
	} else if tx.Amount < 0 {
		sign = "-"
	}
	return TransactionView{
		Label:  label,
		Amount: fmt.Sprintf("%s₹%.2f", sign, math.Abs(tx.Amount)),
		When:   tx.CreatedAt.Format("2 Jan 03:04 PM"),
		Status: tx.Status,
		Credit: tx.Amount > 0,
	}
}

func money(amount float64) string {
	return fmt.Sprintf("₹%.2f", amount)
}

func greeting(now time.Time, name string) string {
	if name == "" {
		name = "User"
	}
	hour := now.Hour()
	word := "Good morning"
	switch {
	case hour >= 12 && hour < 17:
		word = "Good afternoon"
	case hour >= 17:
		word = "Good evening"
	}
	return fmt.Sprintf("%s, %s!", word, name)
}

// decodeRecord overlays a row-change record onto dest. Only columns present
// in the record are touched, which gives the shallow-merge semantics the
// profile subscription needs.
func decodeRecord(record map[string]any, dest *repo.User) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}
