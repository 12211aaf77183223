// Package rollover drives the monthly budget-history capture: once per
// completed calendar month, each user's budget-versus-actual state is
// snapshotted into budget_history and the user's watermark advances to the
// current month.
//
// The same idempotent check runs from two triggers: synchronously right
// after a user logs in, and periodically for every user owning a budget.
// Both may race for the same user; that is safe because the snapshot
// builder is deterministic and the history write is an upsert, so the
// second writer repeats the first instead of duplicating it.
package rollover

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"cofre/internal/amqp"
	"cofre/internal/budget"
	"cofre/internal/db"
	"cofre/internal/log"
)

// startupDelay postpones the first poll just long enough for the process to
// finish wiring up.
const startupDelay = time.Second

// maxConcurrentRollovers bounds how many users one poll cycle works on at a
// time.
const maxConcurrentRollovers = 4

// Scheduler orchestrates the rollover per user and runs the periodic poll
// across all users with budgets.
type Scheduler struct {
	adapter  db.Adapter
	repo     *budget.Repository
	marks    *budget.WatermarkStore
	builder  *budget.SnapshotBuilder
	events   *amqp.Client
	interval time.Duration
	clock    Clock
	logger   *log.Logger
}

// New wires a Scheduler. events may be nil to disable event publishing.
func New(adapter db.Adapter, repo *budget.Repository, marks *budget.WatermarkStore, builder *budget.SnapshotBuilder, events *amqp.Client, interval time.Duration, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Scheduler{
		adapter:  adapter,
		repo:     repo,
		marks:    marks,
		builder:  builder,
		events:   events,
		interval: interval,
		clock:    realClock{},
		logger:   logger.WithComponent(log.ComponentRollover),
	}
}

// RolloverForUser runs the rollover check for one user. It never returns an
// error: this is the boundary that catches, logs and isolates failures, so
// a login callback or a poll cycle cannot be aborted by one user's storage
// trouble.
func (s *Scheduler) RolloverForUser(ctx context.Context, userID string) {
	if err := s.rollover(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "Budget rollover failed",
			"user_id", userID,
			"error", err)
	}
}

// rollover decides whether a capture is due and performs it. Only the month
// immediately preceding the current one is captured; when the watermark is
// several months stale the intervening months are skipped for good, which
// matches how this data has always been kept.
func (s *Scheduler) rollover(ctx context.Context, userID string) error {
	current := budget.MonthOf(s.clock.Now())

	last, err := s.marks.Get(ctx, userID)
	if err != nil {
		return err
	}
	if last == current {
		return nil
	}

	previous := current.Prev()
	rows, err := s.builder.Build(ctx, userID, previous)
	if err != nil {
		return fmt.Errorf("build snapshots for %s: %w", previous, err)
	}

	// Snapshot rows and the watermark advance commit as one unit.
	err = s.adapter.WithTx(ctx, func(q db.Querier) error {
		if err := s.repo.WithQuerier(q).UpsertSnapshots(ctx, rows); err != nil {
			return err
		}
		return s.marks.WithQuerier(q).Set(ctx, userID, current)
	})
	if err != nil {
		return fmt.Errorf("commit rollover for %s: %w", previous, err)
	}

	s.logger.InfoContext(ctx, "Saved budget history",
		"user_id", userID,
		"month", previous.String(),
		"categories", len(rows))

	s.publish(ctx, userID, previous, len(rows))
	return nil
}

func (s *Scheduler) publish(ctx context.Context, userID string, month budget.Month, categories int) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishRollover(ctx, userID, month.String(), categories); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish rollover event",
			"user_id", userID,
			"month", month.String(),
			"error", err)
	}
}

// Run polls every user owning a budget on the configured interval, plus once
// shortly after startup. It blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Budget rollover scheduler started", "interval", s.interval)

	startup := time.NewTimer(startupDelay)
	defer startup.Stop()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Budget rollover scheduler stopped", "reason", ctx.Err())
			return ctx.Err()
		case <-startup.C:
			s.pollOnce(ctx)
		case <-ticker.C:
			s.pollOnce(ctx)
		}
	}
}

// Start runs the scheduler in a goroutine and returns a stop function that
// cancels it and waits for the loop to exit.
func (s *Scheduler) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.Run(ctx)
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}

// pollOnce runs the rollover check for every user with at least one budget.
// Per-user failures are already swallowed by RolloverForUser, so one user's
// error never stops the cycle.
func (s *Scheduler) pollOnce(ctx context.Context) {
	users, err := s.repo.DistinctUserIDs(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list budget users", "error", err)
		return
	}
	if len(users) == 0 {
		return
	}

	s.logger.InfoContext(ctx, "Checking users for budget rollover", "users", len(users))

	var g errgroup.Group
	g.SetLimit(maxConcurrentRollovers)
	for _, userID := range users {
		userID := userID
		g.Go(func() error {
			s.RolloverForUser(ctx, userID)
			return nil
		})
	}
	_ = g.Wait()
}
