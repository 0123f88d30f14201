// Package settings reads and writes the user-facing toggles stored beside the
// query queue: whether interception is enabled, the display ordering, and
// whether a replayed query leaves the queue.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Storage keys. Values are JSON-encoded so an exported browser storage dump
// maps onto them directly.
const (
	KeyEnabled           = "enabled"
	KeyOrdering          = "ordering"
	KeyRemoveAfterSearch = "removeAfterSearch"
)

// Ordering selects how the management page arranges the queue.
type Ordering string

const (
	// OrderingQueue shows the oldest query first.
	OrderingQueue Ordering = "queue"
	// OrderingStack shows the newest query first.
	OrderingStack Ordering = "stack"
)

// ErrInvalidOrdering reports an ordering other than queue or stack.
var ErrInvalidOrdering = errors.New("ordering must be \"queue\" or \"stack\"")

// ParseOrdering validates a user-supplied ordering value.
func ParseOrdering(value string) (Ordering, error) {
	switch Ordering(strings.ToLower(strings.TrimSpace(value))) {
	case OrderingQueue:
		return OrderingQueue, nil
	case OrderingStack:
		return OrderingStack, nil
	default:
		return "", fmt.Errorf("%w: got %q", ErrInvalidOrdering, value)
	}
}

// Settings is the typed view over the settings table.
type Settings struct {
	Enabled           bool     `json:"enabled"`
	Ordering          Ordering `json:"ordering"`
	RemoveAfterSearch bool     `json:"removeAfterSearch"`
}

// Defaults returns the settings used for keys that were never written.
func Defaults() Settings {
	return Settings{Enabled: true, Ordering: OrderingQueue, RemoveAfterSearch: false}
}

// KV is the raw key-value persistence the settings live in.
type KV interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	PutSetting(ctx context.Context, key, value string) error
}

// Load reads every setting, falling back to the default for keys that are
// missing, undecodable, or hold an unknown ordering.
func Load(ctx context.Context, kv KV) (Settings, error) {
	out := Defaults()
	if err := loadKey(ctx, kv, KeyEnabled, &out.Enabled); err != nil {
		return out, err
	}
	var ordering string
	if err := loadKey(ctx, kv, KeyOrdering, &ordering); err != nil {
		return out, err
	}
	if parsed, err := ParseOrdering(ordering); err == nil {
		out.Ordering = parsed
	}
	if err := loadKey(ctx, kv, KeyRemoveAfterSearch, &out.RemoveAfterSearch); err != nil {
		return out, err
	}
	return out, nil
}

func loadKey(ctx context.Context, kv KV, key string, target any) error {
	raw, ok, err := kv.GetSetting(ctx, key)
	if err != nil {
		return fmt.Errorf("load setting %s: %w", key, err)
	}
	if !ok {
		return nil
	}
	// Garbage keeps the default already in target.
	_ = json.Unmarshal([]byte(raw), target)
	return nil
}

// Update names the settings to change. Nil fields are left alone.
type Update struct {
	Enabled           *bool   `json:"enabled,omitempty"`
	Ordering          *string `json:"ordering,omitempty"`
	RemoveAfterSearch *bool   `json:"removeAfterSearch,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u Update) Empty() bool {
	return u.Enabled == nil && u.Ordering == nil && u.RemoveAfterSearch == nil
}

// Apply validates and persists the provided fields, then returns the
// resulting settings. Validation happens before any key is written.
func Apply(ctx context.Context, kv KV, update Update) (Settings, error) {
	var ordering Ordering
	if update.Ordering != nil {
		parsed, err := ParseOrdering(*update.Ordering)
		if err != nil {
			return Settings{}, err
		}
		ordering = parsed
	}
	if update.Enabled != nil {
		if err := storeKey(ctx, kv, KeyEnabled, *update.Enabled); err != nil {
			return Settings{}, err
		}
	}
	if update.Ordering != nil {
		if err := storeKey(ctx, kv, KeyOrdering, string(ordering)); err != nil {
			return Settings{}, err
		}
	}
	if update.RemoveAfterSearch != nil {
		if err := storeKey(ctx, kv, KeyRemoveAfterSearch, *update.RemoveAfterSearch); err != nil {
			return Settings{}, err
		}
	}
	return Load(ctx, kv)
}

// Save writes every field of s.
func Save(ctx context.Context, kv KV, s Settings) error {
	ordering := string(s.Ordering)
	_, err := Apply(ctx, kv, Update{Enabled: &s.Enabled, Ordering: &ordering, RemoveAfterSearch: &s.RemoveAfterSearch})
	return err
}

func storeKey(ctx context.Context, kv KV, key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode setting %s: %w", key, err)
	}
	if err := kv.PutSetting(ctx, key, string(encoded)); err != nil {
		return fmt.Errorf("store setting %s: %w", key, err)
	}
	return nil
}

// Bool returns a pointer to v, for building Updates.
func Bool(v bool) *bool { return &v }

// String returns a pointer to v, for building Updates.
func String(v string) *string { return &v }
