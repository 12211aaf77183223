package budget

import (
	"context"
	"fmt"
)

// SnapshotBuilder computes the history rows for one user and one completed
// month. Given an unchanged transaction set its output is deterministic,
// which is what makes the rollover's upsert safe to repeat.
type SnapshotBuilder struct {
	repo *Repository
}

func NewSnapshotBuilder(repo *Repository) *SnapshotBuilder {
	return &SnapshotBuilder{repo: repo}
}

// Build returns one snapshot row per configured limit. Spend is the month's
// expense total plus the month's recurring expense total for the category;
// the two sums are additive, mirroring how the history has always been
// computed. Categories with spend but no configured limit are excluded:
// only limited categories get tracked.
func (b *SnapshotBuilder) Build(ctx context.Context, userID string, month Month) ([]Snapshot, error) {
	limits, err := b.repo.ListLimits(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load limits: %w", err)
	}

	totals, err := b.repo.ExpenseTotals(ctx, userID, month)
	if err != nil {
		return nil, fmt.Errorf("load expense totals: %w", err)
	}
	recurring, err := b.repo.RecurringExpenseTotals(ctx, userID, month)
	if err != nil {
		return nil, fmt.Errorf("load recurring totals: %w", err)
	}

	rows := make([]Snapshot, 0, len(limits))
	for _, l := range limits {
		rows = append(rows, Snapshot{
			UserID:      userID,
			Category:    l.Category,
			Month:       month,
			LimitAmount: l.LimitAmount,
			SpentAmount: totals[l.Category] + recurring[l.Category],
		})
	}
	return rows, nil
}
