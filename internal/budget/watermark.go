package budget

import (
	"context"
	"fmt"

	"cofre/internal/db"
	"cofre/internal/settings"
)

const watermarkKeyPrefix = "budget_history_saved_"

// WatermarkStore persists, per user, the last calendar month for which
// budget history was captured. It is backed by the app_settings table under
// keys of the form budget_history_saved_<userID>.
type WatermarkStore struct {
	settings *settings.Store
}

func NewWatermarkStore(s *settings.Store) *WatermarkStore {
	return &WatermarkStore{settings: s}
}

// WithQuerier returns a WatermarkStore bound to q, so the watermark advance
// can commit in the same transaction as the snapshot writes.
func (w *WatermarkStore) WithQuerier(q db.Querier) *WatermarkStore {
	return &WatermarkStore{settings: w.settings.WithQuerier(q)}
}

// Get returns the user's watermark, defaulting to the epoch month for users
// who have never been rolled over. A malformed stored value also degrades to
// the epoch, so the next rollover repairs it.
func (w *WatermarkStore) Get(ctx context.Context, userID string) (Month, error) {
	value, found, err := w.settings.Get(ctx, watermarkKeyPrefix+userID)
	if err != nil {
		return "", fmt.Errorf("read watermark: %w", err)
	}
	if !found {
		return EpochMonth, nil
	}
	m, err := ParseMonth(value)
	if err != nil {
		return EpochMonth, nil
	}
	return m, nil
}

// Set advances the user's watermark to month.
func (w *WatermarkStore) Set(ctx context.Context, userID string, month Month) error {
	if err := w.settings.Set(ctx, watermarkKeyPrefix+userID, string(month)); err != nil {
		return fmt.Errorf("write watermark: %w", err)
	}
	return nil
}
