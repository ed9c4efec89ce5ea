// Package storage provides persistence for InboxPilot.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/inboxpilot/inboxpilot/internal/core"
	"github.com/inboxpilot/inboxpilot/internal/logging"
	"github.com/inboxpilot/inboxpilot/internal/rules"
)

// RuleStore handles project assignment rule persistence
type RuleStore struct {
	db *DB
}

// NewRuleStore creates a new rule store
func NewRuleStore(db *DB) *RuleStore {
	return &RuleStore{db: db}
}

// RuleRow is the stored, loosely-typed shape of a rule. Conditions,
// actions, and metadata stay raw JSON until normalization.
type RuleRow struct {
	ID         core.RuleID
	UserID     core.UserID
	ProjectID  core.ProjectID
	Name       string
	Enabled    bool
	SortOrder  int
	Conditions json.RawMessage
	Actions    json.RawMessage
	Metadata   json.RawMessage
}

// Create stores a rule row
func (s *RuleStore) Create(ctx context.Context, row *RuleRow) error {
	now := time.Now().UTC()
	_, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO project_rules (
		    id, user_id, project_id, name, enabled, sort_order,
		    conditions, actions, metadata, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		row.ID, row.UserID, row.ProjectID, row.Name, row.Enabled,
		row.SortOrder, rawOrNull(row.Conditions), rawOrDefault(row.Actions),
		rawOrDefault(row.Metadata), now, now,
	)
	return err
}

// ListEnabled returns a user's enabled rules normalized into their typed
// form, ordered by sort_order ascending with ties broken by rule ID.
// Malformed rules are logged and skipped; they never abort the listing.
func (s *RuleStore) ListEnabled(ctx context.Context, userID core.UserID) ([]*rules.Rule, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT id, user_id, project_id, name, enabled, sort_order,
		       conditions, actions, metadata
		FROM project_rules
		WHERE user_id = ? AND enabled = 1
		ORDER BY sort_order ASC, id ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*rules.Rule
	for rows.Next() {
		row, err := scanRuleRow(rows)
		if err != nil {
			return nil, err
		}

		rule, err := normalizeRule(row)
		if err != nil {
			logging.WithFields(logging.Fields{
				"rule_id": string(row.ID),
				"user_id": string(row.UserID),
				"error":   err,
			}).Warn("skipping malformed rule")
			continue
		}
		list = append(list, rule)
	}

	return list, rows.Err()
}

// normalizeRule turns a stored row into a typed rule.
func normalizeRule(row *RuleRow) (*rules.Rule, error) {
	conditions, err := rules.ParseConditions(row.Conditions)
	if err != nil {
		return nil, err
	}

	return &rules.Rule{
		ID:         row.ID,
		UserID:     row.UserID,
		ProjectID:  row.ProjectID,
		Name:       row.Name,
		Enabled:    row.Enabled,
		SortOrder:  row.SortOrder,
		Conditions: conditions,
		Actions:    rules.ParseActions(row.Actions),
		Metadata:   rules.ParseMetadata(row.Metadata),
	}, nil
}

func scanRuleRow(rows *sql.Rows) (*RuleRow, error) {
	row := &RuleRow{}
	var conditions sql.NullString
	var actions, metadata string

	err := rows.Scan(
		&row.ID, &row.UserID, &row.ProjectID, &row.Name,
		&row.Enabled, &row.SortOrder, &conditions, &actions, &metadata,
	)
	if err != nil {
		return nil, err
	}

	if conditions.Valid {
		row.Conditions = json.RawMessage(conditions.String)
	}
	row.Actions = json.RawMessage(actions)
	row.Metadata = json.RawMessage(metadata)

	return row, nil
}

func rawOrNull(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func rawOrDefault(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}
