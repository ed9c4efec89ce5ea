// Package storage provides persistence for InboxPilot.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/inboxpilot/inboxpilot/internal/core"
)

// LinkStore handles project-email link persistence. The unique constraint
// on (project_id, email_id) is the source of truth for link uniqueness;
// the store never updates or deletes links.
type LinkStore struct {
	db *DB
}

// NewLinkStore creates a new link store
func NewLinkStore(db *DB) *LinkStore {
	return &LinkStore{db: db}
}

// Create inserts a link. If a link already exists for the
// (project_id, email_id) pair - from any source - the existing link is left
// untouched and core.ErrDuplicateLink is returned.
func (s *LinkStore) Create(ctx context.Context, link *core.ProjectEmailLink) error {
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	metadata, _ := json.Marshal(link.Metadata)

	res, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO project_email_links (
		    id, user_id, project_id, email_id, confidence, source,
		    metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (project_id, email_id) DO NOTHING
	`,
		link.ID, link.UserID, link.ProjectID, link.EmailID,
		link.Confidence, link.Source, string(metadata), link.CreatedAt,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return core.ErrDuplicateLink
	}
	return nil
}

// CreateOverride records a user override: no rule may ever create a link
// for this (project, email) pair again, even if the link itself is gone.
func (s *LinkStore) CreateOverride(ctx context.Context, userID core.UserID, key core.LinkKey) error {
	_, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO link_overrides (user_id, project_id, email_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (project_id, email_id) DO NOTHING
	`, userID, key.ProjectID, key.EmailID, time.Now().UTC())
	return err
}

// ExistingKeys returns the set of link keys already present for a user.
func (s *LinkStore) ExistingKeys(ctx context.Context, userID core.UserID) (core.LinkKeySet, error) {
	return s.keySet(ctx, `
		SELECT project_id, email_id FROM project_email_links WHERE user_id = ?
	`, userID)
}

// OverrideKeys returns the set of overridden link keys for a user.
func (s *LinkStore) OverrideKeys(ctx context.Context, userID core.UserID) (core.LinkKeySet, error) {
	return s.keySet(ctx, `
		SELECT project_id, email_id FROM link_overrides WHERE user_id = ?
	`, userID)
}

// ListByEmail returns the links attached to an email
func (s *LinkStore) ListByEmail(ctx context.Context, emailID core.EmailID) ([]*core.ProjectEmailLink, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT id, user_id, project_id, email_id, confidence, source,
		       metadata, created_at
		FROM project_email_links
		WHERE email_id = ?
		ORDER BY created_at ASC, id ASC
	`, emailID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLinks(rows)
}

// CountByUser returns how many links a user has
func (s *LinkStore) CountByUser(ctx context.Context, userID core.UserID) (int, error) {
	var count int
	err := s.db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM project_email_links WHERE user_id = ?", userID,
	).Scan(&count)
	return count, err
}

func (s *LinkStore) keySet(ctx context.Context, query string, userID core.UserID) (core.LinkKeySet, error) {
	rows, err := s.db.conn.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := core.NewLinkKeySet()
	for rows.Next() {
		var key core.LinkKey
		if err := rows.Scan(&key.ProjectID, &key.EmailID); err != nil {
			return nil, err
		}
		keys.Add(key)
	}

	return keys, rows.Err()
}

func scanLinks(rows *sql.Rows) ([]*core.ProjectEmailLink, error) {
	var links []*core.ProjectEmailLink

	for rows.Next() {
		link := &core.ProjectEmailLink{}
		var metadata string

		err := rows.Scan(
			&link.ID, &link.UserID, &link.ProjectID, &link.EmailID,
			&link.Confidence, &link.Source, &metadata, &link.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		json.Unmarshal([]byte(metadata), &link.Metadata)
		links = append(links, link)
	}

	return links, rows.Err()
}
