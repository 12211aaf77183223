package budget

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cofre/internal/db"
)

var (
	// ErrDefaultLimit reports an attempt to delete a system default limit.
	ErrDefaultLimit = errors.New("budget: default limits cannot be deleted")

	// ErrLimitNotFound reports a limit lookup that matched no row.
	ErrLimitNotFound = errors.New("budget: limit not found")
)

// Repository provides the typed read/write operations over budget_limits,
// budget_history and the transaction ledger. It never retries and never
// swallows storage errors; those propagate to the caller.
type Repository struct {
	q db.Querier
}

func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

// WithQuerier returns a Repository bound to q, so writes can join a
// caller-managed transaction.
func (r *Repository) WithQuerier(q db.Querier) *Repository {
	return &Repository{q: q}
}

// ListLimits returns all configured limits for a user, ordered by category.
func (r *Repository) ListLimits(ctx context.Context, userID string) ([]Limit, error) {
	var limits []Limit
	err := r.q.QueryAll(ctx, &limits,
		`SELECT id, user_id, category, limit_amount, is_default
		 FROM budget_limits WHERE user_id = ? ORDER BY category`, userID)
	if err != nil {
		return nil, fmt.Errorf("list limits: %w", err)
	}
	return limits, nil
}

// UpsertLimit creates or updates the limit for (user, category).
func (r *Repository) UpsertLimit(ctx context.Context, l Limit) error {
	id := l.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := r.q.Exec(ctx,
		`INSERT INTO budget_limits (id, user_id, category, limit_amount, is_default)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, category)
		 DO UPDATE SET limit_amount = excluded.limit_amount, is_default = excluded.is_default`,
		id, l.UserID, l.Category, l.LimitAmount, l.IsDefault)
	if err != nil {
		return fmt.Errorf("upsert limit %s/%s: %w", l.UserID, l.Category, err)
	}
	return nil
}

// DeleteLimit removes a non-default limit. The category's transactions are
// reassigned to the fallback category first so the ledger never points at a
// budget that no longer exists.
func (r *Repository) DeleteLimit(ctx context.Context, userID, category string) error {
	var l Limit
	found, err := r.q.QueryOne(ctx, &l,
		`SELECT id, user_id, category, limit_amount, is_default
		 FROM budget_limits WHERE user_id = ? AND category = ?`, userID, category)
	if err != nil {
		return fmt.Errorf("look up limit %s/%s: %w", userID, category, err)
	}
	if !found {
		return fmt.Errorf("delete limit %s/%s: %w", userID, category, ErrLimitNotFound)
	}
	if l.IsDefault {
		return fmt.Errorf("delete limit %s/%s: %w", userID, category, ErrDefaultLimit)
	}

	if _, err := r.q.Exec(ctx,
		`UPDATE transactions SET category = ? WHERE user_id = ? AND category = ?`,
		FallbackCategory, userID, category); err != nil {
		return fmt.Errorf("reassign transactions for %s/%s: %w", userID, category, err)
	}
	if _, err := r.q.Exec(ctx,
		`DELETE FROM budget_limits WHERE user_id = ? AND category = ?`,
		userID, category); err != nil {
		return fmt.Errorf("delete limit %s/%s: %w", userID, category, err)
	}
	return nil
}

// UpsertSnapshots writes a batch of history rows, one upsert per row keyed on
// (user, category, month). Each upsert is idempotent on its own; the batch
// gains atomicity only when run under the adapter's WithTx.
func (r *Repository) UpsertSnapshots(ctx context.Context, rows []Snapshot) error {
	for _, row := range rows {
		_, err := r.q.Exec(ctx,
			`INSERT INTO budget_history (id, user_id, category, month, limit_amount, spent_amount)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (user_id, category, month)
			 DO UPDATE SET limit_amount = excluded.limit_amount, spent_amount = excluded.spent_amount`,
			uuid.NewString(), row.UserID, row.Category, string(row.Month), row.LimitAmount, row.SpentAmount)
		if err != nil {
			return fmt.Errorf("upsert snapshot %s/%s/%s: %w", row.UserID, row.Category, row.Month, err)
		}
	}
	return nil
}

// ListSnapshots returns the history rows of the user's last 12 captured
// months, grouped by month, newest month first.
func (r *Repository) ListSnapshots(ctx context.Context, userID string) ([]MonthHistory, error) {
	var rows []Snapshot
	err := r.q.QueryAll(ctx, &rows,
		`SELECT user_id, category, month, limit_amount, spent_amount
		 FROM budget_history
		 WHERE user_id = ? AND month IN (
		     SELECT DISTINCT month FROM budget_history WHERE user_id = ?
		     ORDER BY month DESC LIMIT 12
		 )
		 ORDER BY month DESC, category`, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	var history []MonthHistory
	for _, row := range rows {
		if len(history) == 0 || history[len(history)-1].Month != row.Month {
			history = append(history, MonthHistory{Month: row.Month})
		}
		last := &history[len(history)-1]
		last.Rows = append(last.Rows, row)
	}
	return history, nil
}

// DistinctUserIDs returns every user owning at least one limit row. This is
// the population the rollover scheduler polls.
func (r *Repository) DistinctUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.q.QueryAll(ctx, &ids,
		`SELECT DISTINCT user_id FROM budget_limits ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list budget users: %w", err)
	}
	return ids, nil
}

type categoryTotal struct {
	Category string  `db:"category"`
	Total    float64 `db:"total"`
}

// ExpenseTotals sums the user's expense transactions dated within month,
// grouped by category.
func (r *Repository) ExpenseTotals(ctx context.Context, userID string, month Month) (map[string]float64, error) {
	return r.expenseTotals(ctx, userID, month, false)
}

// RecurringExpenseTotals is ExpenseTotals restricted to recurring entries.
func (r *Repository) RecurringExpenseTotals(ctx context.Context, userID string, month Month) (map[string]float64, error) {
	return r.expenseTotals(ctx, userID, month, true)
}

func (r *Repository) expenseTotals(ctx context.Context, userID string, month Month, recurringOnly bool) (map[string]float64, error) {
	query := `SELECT category, SUM(amount) AS total
	          FROM transactions
	          WHERE user_id = ? AND type = ? AND date LIKE ?`
	if recurringOnly {
		query += ` AND is_recurring = 1`
	}
	query += ` GROUP BY category`

	var rows []categoryTotal
	if err := r.q.QueryAll(ctx, &rows, query, userID, TypeExpense, string(month)+"%"); err != nil {
		return nil, fmt.Errorf("sum expenses for %s: %w", month, err)
	}

	totals := make(map[string]float64, len(rows))
	for _, row := range rows {
		totals[row.Category] = row.Total
	}
	return totals, nil
}

// Summary reports budget versus actual for the month containing now. Spend
// counts the month's expenses plus recurring expenses already started, the
// same shape the original monthly view used.
func (r *Repository) Summary(ctx context.Context, userID string, now time.Time) ([]SummaryRow, error) {
	month := MonthOf(now)
	today := now.UTC().Format("2006-01-02")

	var rows []categoryTotal
	err := r.q.QueryAll(ctx, &rows,
		`SELECT category, SUM(amount) AS total
		 FROM transactions
		 WHERE user_id = ? AND type = ?
		   AND (date LIKE ? OR (is_recurring = 1 AND date <= ?))
		 GROUP BY category`,
		userID, TypeExpense, string(month)+"%", today)
	if err != nil {
		return nil, fmt.Errorf("sum current month expenses: %w", err)
	}
	spent := make(map[string]float64, len(rows))
	for _, row := range rows {
		spent[row.Category] = row.Total
	}

	limits, err := r.ListLimits(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := make([]SummaryRow, 0, len(limits))
	for _, l := range limits {
		row := SummaryRow{
			Category: l.Category,
			Limit:    l.LimitAmount,
			Spent:    spent[l.Category],
		}
		if row.Spent > 0 && l.LimitAmount > 0 {
			row.Percentage = int(row.Spent/l.LimitAmount*100 + 0.5)
		}
		summary = append(summary, row)
	}
	return summary, nil
}
