// Package storage provides persistence for InboxPilot.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/inboxpilot/inboxpilot/internal/core"
)

// EmailStore handles classified email persistence
type EmailStore struct {
	db *DB
}

// NewEmailStore creates a new email store
func NewEmailStore(db *DB) *EmailStore {
	return &EmailStore{db: db}
}

// Create stores a classified email
func (s *EmailStore) Create(ctx context.Context, email *core.EmailContext) error {
	now := time.Now().UTC()
	labels, _ := json.Marshal(email.Labels)

	_, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO emails (
		    id, user_id, category, labels, sentiment, summary,
		    subject, body, from_email, from_name, received_at,
		    has_attachments, is_read, triage_state, snoozed_until,
		    priority_score, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		email.ID, email.UserID, email.Category, string(labels),
		email.Sentiment, email.Summary, email.Subject, email.Body,
		email.FromEmail, nullString(email.FromName), email.ReceivedAt,
		email.HasAttachments, email.IsRead, email.TriageState,
		nullTime(email.SnoozedUntil), email.PriorityScore, now, now,
	)

	return err
}

// GetByID returns an email by ID
func (s *EmailStore) GetByID(ctx context.Context, id core.EmailID) (*core.EmailContext, error) {
	row := s.db.conn.QueryRowContext(ctx, `
		SELECT id, user_id, category, labels, sentiment, summary,
		       subject, body, from_email, from_name, received_at,
		       has_attachments, is_read, triage_state, snoozed_until,
		       priority_score
		FROM emails WHERE id = ?
	`, id)

	email, err := scanEmail(row)
	if err == sql.ErrNoRows {
		return nil, core.ErrRecordNotFound
	}
	return email, err
}

// ListPending returns emails awaiting evaluation for a user, oldest first.
func (s *EmailStore) ListPending(ctx context.Context, userID core.UserID, limit int) ([]*core.EmailContext, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT id, user_id, category, labels, sentiment, summary,
		       subject, body, from_email, from_name, received_at,
		       has_attachments, is_read, triage_state, snoozed_until,
		       priority_score
		FROM emails
		WHERE user_id = ? AND evaluated_at IS NULL
		ORDER BY received_at ASC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var emails []*core.EmailContext
	for rows.Next() {
		email, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}

	return emails, rows.Err()
}

// UsersWithPending returns users that have emails awaiting evaluation.
func (s *EmailStore) UsersWithPending(ctx context.Context) ([]core.UserID, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT DISTINCT user_id FROM emails
		WHERE evaluated_at IS NULL
		ORDER BY user_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []core.UserID
	for rows.Next() {
		var id core.UserID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		users = append(users, id)
	}

	return users, rows.Err()
}

// SetPriorityScore attaches a computed score to an email
func (s *EmailStore) SetPriorityScore(ctx context.Context, id core.EmailID, score float64) error {
	_, err := s.db.conn.ExecContext(ctx, `
		UPDATE emails SET priority_score = ?, updated_at = ? WHERE id = ?
	`, score, time.Now().UTC(), id)
	return err
}

// MarkEvaluated records that an email went through a rule pass
func (s *EmailStore) MarkEvaluated(ctx context.Context, id core.EmailID) error {
	now := time.Now().UTC()
	_, err := s.db.conn.ExecContext(ctx, `
		UPDATE emails SET evaluated_at = ?, updated_at = ? WHERE id = ?
	`, now, now, id)
	return err
}

// scanner captures the Scan method shared by sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEmail(row scanner) (*core.EmailContext, error) {
	email := &core.EmailContext{}
	var labels string
	var fromName sql.NullString
	var snoozedUntil sql.NullTime

	err := row.Scan(
		&email.ID, &email.UserID, &email.Category, &labels,
		&email.Sentiment, &email.Summary, &email.Subject, &email.Body,
		&email.FromEmail, &fromName, &email.ReceivedAt,
		&email.HasAttachments, &email.IsRead, &email.TriageState,
		&snoozedUntil, &email.PriorityScore,
	)
	if err != nil {
		return nil, err
	}

	email.FromName = fromName.String
	if snoozedUntil.Valid {
		t := snoozedUntil.Time
		email.SnoozedUntil = &t
	}
	json.Unmarshal([]byte(labels), &email.Labels)

	return email, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
