// Package settings provides a key/value settings store backed by a SQLite
// table. It holds the operator's platform settings and the dashboard's user
// preferences as JSON documents.
package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/bdobrica/parlor/internal/parlor/persona"
	"github.com/bdobrica/parlor/internal/parlor/store"
)

// ErrNotFound is returned by Get when the requested key does not exist.
var ErrNotFound = errors.New("settings: key not found")

const (
	KeyPlatform = "platform_settings"
	KeyUser     = "user_settings"
)

// Store reads and writes settings. It is safe for concurrent use.
type Store struct {
	db *store.Store
}

// New creates a Store backed by the application SQLite database.
func New(db *store.Store) *Store {
	return &Store{db: db}
}

// Get returns the value for key or ErrNotFound when absent.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.DB().QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("settings: get %q: %w", key, err)
	}
	return value, nil
}

// Set upserts the key/value pair and records the current UTC time.
func (s *Store) Set(ctx context.Context, key, value string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.DB().ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value      = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, now)
	if err != nil {
		return fmt.Errorf("settings: set %q: %w", key, err)
	}
	return nil
}

// Platform returns the stored platform settings decoded over the defaults,
// so fields never written keep their default values.
func (s *Store) Platform(ctx context.Context) (persona.Platform, error) {
	p := persona.DefaultPlatform()
	raw, err := s.Get(ctx, KeyPlatform)
	if errors.Is(err, ErrNotFound) {
		return p, nil
	}
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return persona.DefaultPlatform(), fmt.Errorf("settings: decode platform: %w", err)
	}
	return p, nil
}

// SavePlatform replaces the platform settings.
func (s *Store) SavePlatform(ctx context.Context, p persona.Platform) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("settings: encode platform: %w", err)
	}
	return s.Set(ctx, KeyPlatform, string(data))
}

// DefaultUser returns the user preferences used before any are saved.
func DefaultUser() map[string]any {
	return map[string]any{
		"default_model": "",
		"auto_save":     true,
	}
}

// User returns the stored user preferences merged over DefaultUser.
func (s *Store) User(ctx context.Context) (map[string]any, error) {
	out := DefaultUser()
	raw, err := s.Get(ctx, KeyUser)
	if errors.Is(err, ErrNotFound) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	var stored map[string]any
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, fmt.Errorf("settings: decode user: %w", err)
	}
	maps.Copy(out, stored)
	return out, nil
}

// SaveUser merges update into the stored user preferences; keys absent from
// update are kept.
func (s *Store) SaveUser(ctx context.Context, update map[string]any) (map[string]any, error) {
	current, err := s.User(ctx)
	if err != nil {
		return nil, err
	}
	maps.Copy(current, update)

	data, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("settings: encode user: %w", err)
	}
	if err := s.Set(ctx, KeyUser, string(data)); err != nil {
		return nil, err
	}
	return current, nil
}
