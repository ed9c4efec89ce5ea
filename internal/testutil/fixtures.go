package testutil

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/inboxpilot/inboxpilot/internal/core"
	"github.com/inboxpilot/inboxpilot/internal/storage"
)

// RandomID generates a random ID for testing.
func RandomID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// Email returns a classified email fixture: unread, unassigned, received an
// hour ago. Callers tweak fields as needed.
func Email(userID core.UserID) *core.EmailContext {
	return &core.EmailContext{
		ID:          core.EmailID("email-" + RandomID()),
		UserID:      userID,
		Category:    "work",
		Labels:      []string{"inbox"},
		Sentiment:   core.SentimentNeutral,
		Subject:     "Quarterly planning notes",
		Body:        "Here are the notes from the planning session.",
		FromEmail:   "sender@example.com",
		FromName:    "A. Sender",
		ReceivedAt:  time.Now().UTC().Add(-time.Hour),
		IsRead:      false,
		TriageState: core.TriageUnassigned,
	}
}

// RuleRow returns a stored rule fixture matching emails of a category.
func RuleRow(userID core.UserID, projectID core.ProjectID, sortOrder int, category string) *storage.RuleRow {
	conditions, _ := json.Marshal(map[string]any{
		"field":    "category",
		"operator": "equals",
		"value":    category,
	})
	actions, _ := json.Marshal(map[string]any{
		"confidence": "high",
	})

	return &storage.RuleRow{
		ID:         core.RuleID("rule-" + RandomID()),
		UserID:     userID,
		ProjectID:  projectID,
		Name:       "match " + category,
		Enabled:    true,
		SortOrder:  sortOrder,
		Conditions: conditions,
		Actions:    actions,
	}
}
