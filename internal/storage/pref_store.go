// Package storage provides persistence for InboxPilot.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/inboxpilot/inboxpilot/internal/core"
)

// PrefStore handles per-user preference persistence
type PrefStore struct {
	db *DB
}

// NewPrefStore creates a new preference store
func NewPrefStore(db *DB) *PrefStore {
	return &PrefStore{db: db}
}

// PriorityConfig returns a user's stored priority configuration as raw
// JSON. A user with no stored config gets nil, which normalizes to the
// hard-coded defaults downstream.
func (s *PrefStore) PriorityConfig(ctx context.Context, userID core.UserID) (json.RawMessage, error) {
	var raw string
	err := s.db.conn.QueryRowContext(ctx,
		"SELECT priority_config FROM user_prefs WHERE user_id = ?", userID,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}

// SetPriorityConfig stores a user's priority configuration. The blob is
// stored as-is; validation happens at load via priority.Normalize.
func (s *PrefStore) SetPriorityConfig(ctx context.Context, userID core.UserID, raw json.RawMessage) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	_, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO user_prefs (user_id, priority_config, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
		    priority_config = excluded.priority_config,
		    updated_at = excluded.updated_at
	`, userID, string(raw), time.Now().UTC())
	return err
}
