// Package budget holds the budget domain: configured per-category limits,
// monthly budget-history snapshots and the rollover watermark that tracks
// which month was last captured for each user.
package budget

// Limit is a configured spending cap for one user and category.
// Default limits are created from the system default set and cannot be
// deleted by the user.
type Limit struct {
	ID          string  `db:"id"`
	UserID      string  `db:"user_id"`
	Category    string  `db:"category"`
	LimitAmount float64 `db:"limit_amount"`
	IsDefault   bool    `db:"is_default"`
}

// Snapshot is an immutable record of one category's budget versus actual
// spend for a completed month. Rows are keyed by (user, category, month) and
// written only by the rollover; repeated writes replace, never append.
type Snapshot struct {
	UserID      string  `db:"user_id"`
	Category    string  `db:"category"`
	Month       Month   `db:"month"`
	LimitAmount float64 `db:"limit_amount"`
	SpentAmount float64 `db:"spent_amount"`
}

// MonthHistory groups the snapshot rows of one month, newest month first in
// any listing.
type MonthHistory struct {
	Month Month
	Rows  []Snapshot
}

// SummaryRow is one category's budget versus actual for the running month,
// served to the reporting UI.
type SummaryRow struct {
	Category   string
	Limit      float64
	Spent      float64
	Percentage int
}

// transaction types as stored by the CRUD layer that owns the ledger
const (
	TypeExpense = "EXPENSE"
	TypeIncome  = "INCOME"
)

// FallbackCategory receives the transactions of a deleted budget category.
const FallbackCategory = "Geral"
