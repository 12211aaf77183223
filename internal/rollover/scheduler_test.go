package rollover

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"cofre/internal/budget"
	"cofre/internal/db"
	"cofre/internal/log"
	"cofre/internal/settings"
)

type fakeClock struct {
	now time.Time
}

func (c fakeClock) Now() time.Time { return c.now }

type fixture struct {
	adapter   db.Adapter
	repo      *budget.Repository
	marks     *budget.WatermarkStore
	scheduler *Scheduler
}

func newFixture(t *testing.T, now string) *fixture {
	t.Helper()
	adapter, err := db.OpenEmbedded(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { adapter.Close() })

	repo := budget.NewRepository(adapter)
	marks := budget.NewWatermarkStore(settings.NewStore(adapter))
	builder := budget.NewSnapshotBuilder(repo)
	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})

	scheduler := New(adapter, repo, marks, builder, nil, 30*time.Minute, logger)
	scheduler.clock = fakeClock{now: mustParseDate(t, now)}

	return &fixture{adapter: adapter, repo: repo, marks: marks, scheduler: scheduler}
}

func mustParseDate(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("parse date %q: %v", s, err)
	}
	return ts
}

func (f *fixture) seedLimit(t *testing.T, userID, category string, amount float64) {
	t.Helper()
	err := f.repo.UpsertLimit(context.Background(), budget.Limit{
		UserID:      userID,
		Category:    category,
		LimitAmount: amount,
	})
	if err != nil {
		t.Fatalf("seed limit %s/%s: %v", userID, category, err)
	}
}

func (f *fixture) seedExpense(t *testing.T, id, userID, category, date string, amount float64) {
	t.Helper()
	_, err := f.adapter.Exec(context.Background(),
		`INSERT INTO transactions (id, user_id, description, amount, date, category, type, is_recurring)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
		id, userID, "seed", amount, date, category, budget.TypeExpense)
	if err != nil {
		t.Fatalf("seed expense %s: %v", id, err)
	}
}

func (f *fixture) historyRows(t *testing.T, userID string) []budget.Snapshot {
	t.Helper()
	var rows []budget.Snapshot
	err := f.adapter.QueryAll(context.Background(), &rows,
		`SELECT user_id, category, month, limit_amount, spent_amount
		 FROM budget_history WHERE user_id = ? ORDER BY month, category`, userID)
	if err != nil {
		t.Fatalf("read history: %v", err)
	}
	return rows
}

// The reference scenario: a Food limit of 300, watermark at 2023-12, clock at
// 2024-02-03, and two January expenses of 120 and 50. The rollover captures
// exactly January with spent 170 and advances the watermark to February;
// December gets nothing.
func TestRollover_CapturesPreviousMonth(t *testing.T) {
	f := newFixture(t, "2024-02-03")
	ctx := context.Background()

	f.seedLimit(t, "u1", "Food", 300)
	f.seedExpense(t, "t1", "u1", "Food", "2024-01-05", 120)
	f.seedExpense(t, "t2", "u1", "Food", "2024-01-20", 50)
	if err := f.marks.Set(ctx, "u1", "2023-12"); err != nil {
		t.Fatalf("seed watermark: %v", err)
	}

	f.scheduler.RolloverForUser(ctx, "u1")

	rows := f.historyRows(t, "u1")
	if len(rows) != 1 {
		t.Fatalf("history rows = %d, want 1", len(rows))
	}
	row := rows[0]
	if row.Category != "Food" || row.Month != "2024-01" || row.LimitAmount != 300 || row.SpentAmount != 170 {
		t.Errorf("row = %+v, want Food/2024-01 limit 300 spent 170", row)
	}

	mark, err := f.marks.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("read watermark: %v", err)
	}
	if mark != "2024-02" {
		t.Errorf("watermark = %s, want 2024-02", mark)
	}
}

func TestRollover_NoOpWhenCurrent(t *testing.T) {
	f := newFixture(t, "2024-02-03")
	ctx := context.Background()

	f.seedLimit(t, "u1", "Food", 300)
	f.seedExpense(t, "t1", "u1", "Food", "2024-01-05", 120)
	if err := f.marks.Set(ctx, "u1", "2024-02"); err != nil {
		t.Fatalf("seed watermark: %v", err)
	}

	f.scheduler.RolloverForUser(ctx, "u1")

	if rows := f.historyRows(t, "u1"); len(rows) != 0 {
		t.Errorf("history rows = %d, want 0 (watermark already current)", len(rows))
	}
	mark, err := f.marks.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("read watermark: %v", err)
	}
	if mark != "2024-02" {
		t.Errorf("watermark = %s, want unchanged 2024-02", mark)
	}
}

// A watermark several months stale still captures only the month right
// before the current one; the intervening months are skipped for good.
func TestRollover_SingleMonthCapture(t *testing.T) {
	f := newFixture(t, "2024-02-03")
	ctx := context.Background()

	f.seedLimit(t, "u1", "Food", 300)
	f.seedExpense(t, "t1", "u1", "Food", "2023-11-10", 70)
	f.seedExpense(t, "t2", "u1", "Food", "2023-12-10", 80)
	f.seedExpense(t, "t3", "u1", "Food", "2024-01-10", 90)
	if err := f.marks.Set(ctx, "u1", "2023-10"); err != nil {
		t.Fatalf("seed watermark: %v", err)
	}

	f.scheduler.RolloverForUser(ctx, "u1")

	rows := f.historyRows(t, "u1")
	if len(rows) != 1 {
		t.Fatalf("history rows = %d, want 1 (only the month before current)", len(rows))
	}
	if rows[0].Month != "2024-01" || rows[0].SpentAmount != 90 {
		t.Errorf("row = %+v, want 2024-01 with spent 90", rows[0])
	}
}

func TestRollover_RepeatRunsAreIdempotent(t *testing.T) {
	f := newFixture(t, "2024-02-03")
	ctx := context.Background()

	f.seedLimit(t, "u1", "Food", 300)
	f.seedExpense(t, "t1", "u1", "Food", "2024-01-05", 120)

	f.scheduler.RolloverForUser(ctx, "u1")
	first := f.historyRows(t, "u1")

	// Force the check again as if the watermark write had been lost.
	if err := f.marks.Set(ctx, "u1", "2023-12"); err != nil {
		t.Fatalf("rewind watermark: %v", err)
	}
	f.scheduler.RolloverForUser(ctx, "u1")
	second := f.historyRows(t, "u1")

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("history rows = %d then %d, want 1 and 1", len(first), len(second))
	}
	if first[0] != second[0] {
		t.Errorf("repeat rollover changed the row: %+v vs %+v", first[0], second[0])
	}
}

// Login-triggered and poll-triggered checks can race for the same user. Both
// may roll over; the final state must be identical to a single run.
func TestRollover_ConcurrentInvocations(t *testing.T) {
	f := newFixture(t, "2024-02-03")
	ctx := context.Background()

	f.seedLimit(t, "u1", "Food", 300)
	f.seedExpense(t, "t1", "u1", "Food", "2024-01-05", 120)
	f.seedExpense(t, "t2", "u1", "Food", "2024-01-20", 50)
	if err := f.marks.Set(ctx, "u1", "2023-12"); err != nil {
		t.Fatalf("seed watermark: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.scheduler.RolloverForUser(ctx, "u1")
		}()
	}
	wg.Wait()

	rows := f.historyRows(t, "u1")
	if len(rows) != 1 {
		t.Fatalf("history rows = %d, want exactly 1 after concurrent rollovers", len(rows))
	}
	if rows[0].SpentAmount != 170 {
		t.Errorf("spent = %v, want 170", rows[0].SpentAmount)
	}

	mark, err := f.marks.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("read watermark: %v", err)
	}
	if mark != "2024-02" {
		t.Errorf("watermark = %s, want 2024-02", mark)
	}
}

func TestRollover_WatermarkNeverRegresses(t *testing.T) {
	f := newFixture(t, "2024-02-03")
	ctx := context.Background()

	f.seedLimit(t, "u1", "Food", 300)
	before, err := f.marks.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("read watermark: %v", err)
	}

	f.scheduler.RolloverForUser(ctx, "u1")

	after, err := f.marks.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("read watermark: %v", err)
	}
	if after.Before(before) {
		t.Errorf("watermark regressed: %s -> %s", before, after)
	}
}

func TestScheduler_PollOnceCoversAllUsers(t *testing.T) {
	f := newFixture(t, "2024-02-03")
	ctx := context.Background()

	f.seedLimit(t, "u1", "Food", 300)
	f.seedLimit(t, "u2", "Lazer", 150)
	f.seedExpense(t, "t1", "u1", "Food", "2024-01-05", 120)
	f.seedExpense(t, "t2", "u2", "Lazer", "2024-01-06", 30)

	f.scheduler.pollOnce(ctx)

	for user, wantSpent := range map[string]float64{"u1": 120, "u2": 30} {
		rows := f.historyRows(t, user)
		if len(rows) != 1 {
			t.Fatalf("%s history rows = %d, want 1", user, len(rows))
		}
		if rows[0].SpentAmount != wantSpent {
			t.Errorf("%s spent = %v, want %v", user, rows[0].SpentAmount, wantSpent)
		}
	}
}

func TestScheduler_StartStop(t *testing.T) {
	f := newFixture(t, "2024-02-03")

	stop := f.scheduler.Start(context.Background())

	done := make(chan struct{})
	go func() {
		stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stop did not return; scheduler loop is stuck")
	}
}
