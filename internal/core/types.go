// Package core defines the fundamental types for InboxPilot.
// Everything the engine touches is expressed in these types.
package core

import (
	"time"
)

// -----------------------------------------------------------------------------
// IDENTIFIERS
// -----------------------------------------------------------------------------

// UserID identifies an account whose emails are evaluated.
type UserID string

// EmailID identifies a classified email.
type EmailID string

// ProjectID identifies a user-defined project.
type ProjectID string

// RuleID identifies a project assignment rule.
type RuleID string

// -----------------------------------------------------------------------------
// ENUMS
// -----------------------------------------------------------------------------

// TriageState represents where an email sits in the user's triage flow.
type TriageState string

const (
	TriageUnassigned TriageState = "unassigned"
	TriageTriaged    TriageState = "triaged"
	TriageSnoozed    TriageState = "snoozed"
	TriageDone       TriageState = "done"
)

// Sentiment is the classifier's read of the email tone.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// LinkSource records who created a project-email link.
type LinkSource string

const (
	LinkSourceRule   LinkSource = "rule"
	LinkSourceManual LinkSource = "manual"
	LinkSourceAI     LinkSource = "ai"
)

// ConfidenceLevel is the coarse certainty a rule author declares for
// the links their rule creates.
type ConfidenceLevel string

const (
	ConfidenceLow     ConfidenceLevel = "low"
	ConfidenceMedium  ConfidenceLevel = "medium"
	ConfidenceHigh    ConfidenceLevel = "high"
	ConfidenceCertain ConfidenceLevel = "certain"
)

// Score maps a confidence level to its numeric value.
// Unknown levels map to the low score.
func (c ConfidenceLevel) Score() float64 {
	switch c {
	case ConfidenceLow:
		return 0.25
	case ConfidenceMedium:
		return 0.5
	case ConfidenceHigh:
		return 0.75
	case ConfidenceCertain:
		return 1.0
	default:
		return 0.25
	}
}

// Valid reports whether c is a recognized confidence level.
func (c ConfidenceLevel) Valid() bool {
	switch c {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh, ConfidenceCertain:
		return true
	}
	return false
}

// -----------------------------------------------------------------------------
// EMAIL CONTEXT - The classified email view the engine evaluates
// -----------------------------------------------------------------------------

// EmailContext is the structured view of a classified email, produced by the
// upstream classifier and consumed by scoring and rule evaluation. It is
// constructed fresh per evaluation and never mutated by the engine, except
// that the batch runner fills PriorityScore before the rule pass so
// conditions can reference it.
type EmailContext struct {
	ID     EmailID `json:"id"`
	UserID UserID  `json:"user_id"`

	// Classifier output
	Category  string    `json:"category"`
	Labels    []string  `json:"labels"` // unique, order not significant
	Sentiment Sentiment `json:"sentiment"`
	Summary   string    `json:"summary"`

	// Message fields
	Subject        string    `json:"subject"`
	Body           string    `json:"body"`
	FromEmail      string    `json:"from_email"`
	FromName       string    `json:"from_name,omitempty"`
	ReceivedAt     time.Time `json:"received_at"`
	HasAttachments bool      `json:"has_attachments"`

	// Triage state
	IsRead       bool        `json:"is_read"`
	TriageState  TriageState `json:"triage_state"`
	SnoozedUntil *time.Time  `json:"snoozed_until,omitempty"` // meaningful only when snoozed

	// Filled by the batch runner before rule evaluation
	PriorityScore float64 `json:"priority_score"`
}

// HasLabel reports whether the email carries a label.
func (e *EmailContext) HasLabel(label string) bool {
	for _, l := range e.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// PROJECT-EMAIL LINK - The association the engine produces
// -----------------------------------------------------------------------------

// LinkKey is the natural key of a project-email link. At most one link may
// ever exist per key, from any source.
type LinkKey struct {
	ProjectID ProjectID
	EmailID   EmailID
}

// LinkKeySet is an in-memory set of link keys, used for the override and
// existing-link sets the orchestrator consults.
type LinkKeySet map[LinkKey]struct{}

// NewLinkKeySet builds a set from keys.
func NewLinkKeySet(keys ...LinkKey) LinkKeySet {
	s := make(LinkKeySet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// Has reports whether the key is in the set.
func (s LinkKeySet) Has(key LinkKey) bool {
	_, ok := s[key]
	return ok
}

// Add inserts the key into the set.
func (s LinkKeySet) Add(key LinkKey) {
	s[key] = struct{}{}
}

// LinkMetadata records the provenance of a link.
type LinkMetadata struct {
	RuleID     string    `json:"rule_id,omitempty"`
	RuleName   string    `json:"rule_name,omitempty"`
	Note       string    `json:"note,omitempty"`
	ActorID    string    `json:"actor_id,omitempty"`
	Source     string    `json:"source,omitempty"`
	AssignedAt time.Time `json:"assigned_at"`
}

// ProjectEmailLink associates an email with a project. Links are created by
// the rule engine (source=rule) or by outside collaborators (manual/ai);
// the engine never deletes or mutates an existing link.
type ProjectEmailLink struct {
	ID         string       `json:"id"`
	UserID     UserID       `json:"user_id"`
	ProjectID  ProjectID    `json:"project_id"`
	EmailID    EmailID      `json:"email_id"`
	Confidence float64      `json:"confidence"` // in [0,1]
	Source     LinkSource   `json:"source"`
	Metadata   LinkMetadata `json:"metadata"`
	CreatedAt  time.Time    `json:"created_at"`
}

// Key returns the natural key of the link.
func (l *ProjectEmailLink) Key() LinkKey {
	return LinkKey{ProjectID: l.ProjectID, EmailID: l.EmailID}
}
