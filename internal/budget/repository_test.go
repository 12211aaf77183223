package budget

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"cofre/internal/db"
)

func newTestAdapter(t *testing.T) db.Adapter {
	t.Helper()
	adapter, err := db.OpenEmbedded(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { adapter.Close() })
	return adapter
}

func seedTransaction(t *testing.T, adapter db.Adapter, id, userID, category, txType, date string, amount float64, recurring bool) {
	t.Helper()
	isRecurring := 0
	if recurring {
		isRecurring = 1
	}
	_, err := adapter.Exec(context.Background(),
		`INSERT INTO transactions (id, user_id, description, amount, date, category, type, is_recurring)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, userID, "seed", amount, date, category, txType, isRecurring)
	if err != nil {
		t.Fatalf("seed transaction %s: %v", id, err)
	}
}

func TestRepository_UpsertLimit(t *testing.T) {
	adapter := newTestAdapter(t)
	repo := NewRepository(adapter)
	ctx := context.Background()

	if err := repo.UpsertLimit(ctx, Limit{UserID: "u1", Category: "Food", LimitAmount: 300}); err != nil {
		t.Fatalf("insert limit: %v", err)
	}
	// Same key again replaces, never duplicates.
	if err := repo.UpsertLimit(ctx, Limit{UserID: "u1", Category: "Food", LimitAmount: 450}); err != nil {
		t.Fatalf("update limit: %v", err)
	}

	limits, err := repo.ListLimits(ctx, "u1")
	if err != nil {
		t.Fatalf("list limits: %v", err)
	}
	if len(limits) != 1 {
		t.Fatalf("limits = %d rows, want 1", len(limits))
	}
	if limits[0].LimitAmount != 450 {
		t.Errorf("limit amount = %v, want 450", limits[0].LimitAmount)
	}
}

func TestRepository_DeleteLimit(t *testing.T) {
	adapter := newTestAdapter(t)
	repo := NewRepository(adapter)
	ctx := context.Background()

	if err := repo.UpsertLimit(ctx, Limit{UserID: "u1", Category: "Lazer", LimitAmount: 150}); err != nil {
		t.Fatalf("insert limit: %v", err)
	}
	if err := repo.UpsertLimit(ctx, Limit{UserID: "u1", Category: "Renda", LimitAmount: 0, IsDefault: true}); err != nil {
		t.Fatalf("insert default limit: %v", err)
	}
	seedTransaction(t, adapter, "t1", "u1", "Lazer", TypeExpense, "2024-01-10", 50, false)

	t.Run("default limit is refused", func(t *testing.T) {
		err := repo.DeleteLimit(ctx, "u1", "Renda")
		if !errors.Is(err, ErrDefaultLimit) {
			t.Errorf("delete default error = %v, want ErrDefaultLimit", err)
		}
	})

	t.Run("missing limit", func(t *testing.T) {
		err := repo.DeleteLimit(ctx, "u1", "Nada")
		if !errors.Is(err, ErrLimitNotFound) {
			t.Errorf("delete missing error = %v, want ErrLimitNotFound", err)
		}
	})

	t.Run("transactions move to fallback category", func(t *testing.T) {
		if err := repo.DeleteLimit(ctx, "u1", "Lazer"); err != nil {
			t.Fatalf("delete limit: %v", err)
		}

		var category string
		found, err := adapter.QueryOne(ctx, &category,
			`SELECT category FROM transactions WHERE id = ?`, "t1")
		if err != nil || !found {
			t.Fatalf("read reassigned transaction: found=%v err=%v", found, err)
		}
		if category != FallbackCategory {
			t.Errorf("category = %q, want %q", category, FallbackCategory)
		}

		limits, err := repo.ListLimits(ctx, "u1")
		if err != nil {
			t.Fatalf("list limits: %v", err)
		}
		if len(limits) != 1 || limits[0].Category != "Renda" {
			t.Errorf("remaining limits = %+v, want only Renda", limits)
		}
	})
}

func TestRepository_UpsertSnapshotsIdempotent(t *testing.T) {
	adapter := newTestAdapter(t)
	repo := NewRepository(adapter)
	ctx := context.Background()

	rows := []Snapshot{
		{UserID: "u1", Category: "Food", Month: "2024-01", LimitAmount: 300, SpentAmount: 170},
		{UserID: "u1", Category: "Lazer", Month: "2024-01", LimitAmount: 150, SpentAmount: 20},
	}

	// Writing the same batch repeatedly must leave exactly one row per
	// (user, category, month).
	for i := 0; i < 3; i++ {
		if err := repo.UpsertSnapshots(ctx, rows); err != nil {
			t.Fatalf("upsert batch %d: %v", i, err)
		}
	}

	var count int
	if _, err := adapter.QueryOne(ctx, &count,
		`SELECT COUNT(*) FROM budget_history WHERE user_id = ?`, "u1"); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 2 {
		t.Errorf("history rows = %d, want 2", count)
	}
}

func TestRepository_ListSnapshotsGroupsByMonth(t *testing.T) {
	adapter := newTestAdapter(t)
	repo := NewRepository(adapter)
	ctx := context.Background()

	rows := []Snapshot{
		{UserID: "u1", Category: "Food", Month: "2023-12", LimitAmount: 300, SpentAmount: 250},
		{UserID: "u1", Category: "Lazer", Month: "2023-12", LimitAmount: 150, SpentAmount: 80},
		{UserID: "u1", Category: "Food", Month: "2024-01", LimitAmount: 300, SpentAmount: 170},
		{UserID: "u2", Category: "Food", Month: "2024-01", LimitAmount: 100, SpentAmount: 30},
	}
	if err := repo.UpsertSnapshots(ctx, rows); err != nil {
		t.Fatalf("seed history: %v", err)
	}

	history, err := repo.ListSnapshots(ctx, "u1")
	if err != nil {
		t.Fatalf("list snapshots: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("months = %d, want 2", len(history))
	}
	if history[0].Month != "2024-01" || history[1].Month != "2023-12" {
		t.Errorf("month order = [%s %s], want newest first", history[0].Month, history[1].Month)
	}
	if len(history[0].Rows) != 1 || len(history[1].Rows) != 2 {
		t.Errorf("rows per month = [%d %d], want [1 2]", len(history[0].Rows), len(history[1].Rows))
	}
}

func TestRepository_DistinctUserIDs(t *testing.T) {
	adapter := newTestAdapter(t)
	repo := NewRepository(adapter)
	ctx := context.Background()

	for _, l := range []Limit{
		{UserID: "u2", Category: "Food", LimitAmount: 100},
		{UserID: "u1", Category: "Food", LimitAmount: 300},
		{UserID: "u1", Category: "Lazer", LimitAmount: 150},
	} {
		if err := repo.UpsertLimit(ctx, l); err != nil {
			t.Fatalf("seed limit: %v", err)
		}
	}

	ids, err := repo.DistinctUserIDs(ctx)
	if err != nil {
		t.Fatalf("distinct users: %v", err)
	}
	if len(ids) != 2 || ids[0] != "u1" || ids[1] != "u2" {
		t.Errorf("user ids = %v, want [u1 u2]", ids)
	}
}

func TestRepository_Summary(t *testing.T) {
	adapter := newTestAdapter(t)
	repo := NewRepository(adapter)
	ctx := context.Background()

	if err := repo.UpsertLimit(ctx, Limit{UserID: "u1", Category: "Food", LimitAmount: 300}); err != nil {
		t.Fatalf("seed limit: %v", err)
	}
	if err := repo.UpsertLimit(ctx, Limit{UserID: "u1", Category: "Lazer", LimitAmount: 150}); err != nil {
		t.Fatalf("seed limit: %v", err)
	}
	seedTransaction(t, adapter, "t1", "u1", "Food", TypeExpense, "2024-02-01", 90, false)
	// Recurring expense started earlier still counts toward the running month.
	seedTransaction(t, adapter, "t2", "u1", "Food", TypeExpense, "2023-11-05", 60, true)
	// Income never counts.
	seedTransaction(t, adapter, "t3", "u1", "Food", TypeIncome, "2024-02-02", 500, false)

	now := mustParseDate(t, "2024-02-03")
	summary, err := repo.Summary(ctx, "u1", now)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if len(summary) != 2 {
		t.Fatalf("summary rows = %d, want 2", len(summary))
	}

	food := summary[0]
	if food.Category != "Food" || food.Spent != 150 || food.Percentage != 50 {
		t.Errorf("food summary = %+v, want spent 150 at 50%%", food)
	}
	lazer := summary[1]
	if lazer.Spent != 0 || lazer.Percentage != 0 {
		t.Errorf("lazer summary = %+v, want zero spend", lazer)
	}
}
