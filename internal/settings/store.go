// Package settings provides a typed surface over the generic app_settings
// key-value table. Other components persist small scalar state here: the
// budget rollover watermark and the system default budget set both live in
// this table.
package settings

import (
	"context"
	"fmt"

	"cofre/internal/db"
)

// Entry is one key-value row.
type Entry struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

// Store reads and writes app_settings rows through a db.Querier.
type Store struct {
	q db.Querier
}

func NewStore(q db.Querier) *Store {
	return &Store{q: q}
}

// WithQuerier returns a Store bound to q, so settings writes can join a
// caller-managed transaction.
func (s *Store) WithQuerier(q db.Querier) *Store {
	return &Store{q: q}
}

// Get returns the value for key, reporting absence with found=false.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var e Entry
	found, err := s.q.QueryOne(ctx, &e,
		`SELECT key, value FROM app_settings WHERE key = ?`, key)
	if err != nil {
		return "", false, fmt.Errorf("get setting %q: %w", key, err)
	}
	if !found {
		return "", false, nil
	}
	return e.Value, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO app_settings (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

// ListPrefix returns all entries whose key starts with prefix, ordered by key.
func (s *Store) ListPrefix(ctx context.Context, prefix string) ([]Entry, error) {
	var entries []Entry
	err := s.q.QueryAll(ctx, &entries,
		`SELECT key, value FROM app_settings WHERE key LIKE ? ORDER BY key`, prefix+"%")
	if err != nil {
		return nil, fmt.Errorf("list settings %q: %w", prefix, err)
	}
	return entries, nil
}

// DeletePrefix removes all entries whose key starts with prefix.
func (s *Store) DeletePrefix(ctx context.Context, prefix string) (int64, error) {
	deleted, err := s.q.Exec(ctx,
		`DELETE FROM app_settings WHERE key LIKE ?`, prefix+"%")
	if err != nil {
		return 0, fmt.Errorf("delete settings %q: %w", prefix, err)
	}
	return deleted, nil
}
