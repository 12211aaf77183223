package budget

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"cofre/internal/settings"
)

// DefaultLimit is one entry of the system default budget set.
type DefaultLimit struct {
	Category string
	Limit    float64
}

const defaultKeyPrefix = "budget_default_"

// builtInDefaults is the budget set new users start from when no custom
// system defaults have been saved.
var builtInDefaults = []DefaultLimit{
	{Category: "Renda", Limit: 0},
	{Category: "Energia", Limit: 150},
	{Category: "Água", Limit: 80},
	{Category: "Transporte", Limit: 200},
	{Category: "Alimentação", Limit: 300},
	{Category: "Combustível", Limit: 200},
	{Category: "Compras domésticas", Limit: 150},
	{Category: "Lazer", Limit: 150},
	{Category: "Roupas", Limit: 100},
	{Category: "Saúde", Limit: 200},
	{Category: "Cuidados pessoais", Limit: 80},
	{Category: "Reparação", Limit: 150},
	{Category: "Manutenção", Limit: 150},
	{Category: "Presentes", Limit: 100},
	{Category: "Eventos", Limit: 200},
	{Category: "Viagens", Limit: 300},
}

// DefaultsStore manages the system default budget set, persisted in
// app_settings under budget_default_<category> keys.
type DefaultsStore struct {
	settings *settings.Store
}

func NewDefaultsStore(s *settings.Store) *DefaultsStore {
	return &DefaultsStore{settings: s}
}

// SystemDefaults returns the saved default set, or the built-in set when
// none has been saved.
func (d *DefaultsStore) SystemDefaults(ctx context.Context) ([]DefaultLimit, error) {
	entries, err := d.settings.ListPrefix(ctx, defaultKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("load system defaults: %w", err)
	}
	if len(entries) == 0 {
		return builtInDefaults, nil
	}

	defaults := make([]DefaultLimit, 0, len(entries))
	for _, e := range entries {
		category, err := url.QueryUnescape(e.Key[len(defaultKeyPrefix):])
		if err != nil {
			continue
		}
		limit, err := strconv.ParseFloat(e.Value, 64)
		if err != nil {
			continue
		}
		defaults = append(defaults, DefaultLimit{Category: category, Limit: limit})
	}
	return defaults, nil
}

// SaveSystemDefaults replaces the saved default set.
func (d *DefaultsStore) SaveSystemDefaults(ctx context.Context, defaults []DefaultLimit) error {
	if _, err := d.settings.DeletePrefix(ctx, defaultKeyPrefix); err != nil {
		return fmt.Errorf("clear system defaults: %w", err)
	}
	for _, def := range defaults {
		key := defaultKeyPrefix + url.QueryEscape(def.Category)
		if err := d.settings.Set(ctx, key, strconv.FormatFloat(def.Limit, 'f', -1, 64)); err != nil {
			return fmt.Errorf("save system default %q: %w", def.Category, err)
		}
	}
	return nil
}

// EnsureDefaultLimits creates the user's missing default limits and realigns
// default rows whose amount drifted from the default set. User-created
// limits for other categories are untouched.
func (r *Repository) EnsureDefaultLimits(ctx context.Context, userID string, defaults []DefaultLimit) (created, updated int, err error) {
	existing, err := r.ListLimits(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	byCategory := make(map[string]Limit, len(existing))
	for _, l := range existing {
		byCategory[l.Category] = l
	}

	for _, def := range defaults {
		current, ok := byCategory[def.Category]
		if ok && current.LimitAmount == def.Limit {
			continue
		}
		err := r.UpsertLimit(ctx, Limit{
			UserID:      userID,
			Category:    def.Category,
			LimitAmount: def.Limit,
			IsDefault:   true,
		})
		if err != nil {
			return created, updated, err
		}
		if ok {
			updated++
		} else {
			created++
		}
	}
	return created, updated, nil
}

// ResetLimits deletes every limit the user has and recreates the default
// set from scratch.
func (r *Repository) ResetLimits(ctx context.Context, userID string, defaults []DefaultLimit) (int, error) {
	if _, err := r.q.Exec(ctx,
		`DELETE FROM budget_limits WHERE user_id = ?`, userID); err != nil {
		return 0, fmt.Errorf("clear limits: %w", err)
	}

	for i, def := range defaults {
		err := r.UpsertLimit(ctx, Limit{
			UserID:      userID,
			Category:    def.Category,
			LimitAmount: def.Limit,
			IsDefault:   true,
		})
		if err != nil {
			return i, err
		}
	}
	return len(defaults), nil
}
