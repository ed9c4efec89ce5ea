package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/inboxpilot/inboxpilot/internal/core"
	"github.com/inboxpilot/inboxpilot/internal/rules"
)

// fakeLinkWriter records created links and can be told to fail or report
// conflicts for chosen projects.
type fakeLinkWriter struct {
	created   []*core.ProjectEmailLink
	failFor   map[core.ProjectID]error
	conflicts map[core.ProjectID]bool
}

func newFakeLinkWriter() *fakeLinkWriter {
	return &fakeLinkWriter{
		failFor:   make(map[core.ProjectID]error),
		conflicts: make(map[core.ProjectID]bool),
	}
}

func (f *fakeLinkWriter) Create(_ context.Context, link *core.ProjectEmailLink) error {
	if err, ok := f.failFor[link.ProjectID]; ok {
		return err
	}
	if f.conflicts[link.ProjectID] {
		return core.ErrDuplicateLink
	}
	f.created = append(f.created, link)
	return nil
}

func applyEmail() *core.EmailContext {
	return &core.EmailContext{
		ID:          "email-1",
		UserID:      "user-1",
		Category:    "invoice",
		Labels:      []string{"finance"},
		Sentiment:   core.SentimentNeutral,
		ReceivedAt:  time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
		TriageState: core.TriageUnassigned,
	}
}

func categoryRule(id core.RuleID, project core.ProjectID, sortOrder int, category string) *rules.Rule {
	return &rules.Rule{
		ID:        id,
		UserID:    "user-1",
		ProjectID: project,
		Name:      "route " + category,
		Enabled:   true,
		SortOrder: sortOrder,
		Conditions: &rules.Condition{
			Kind:     rules.NodeCompare,
			Field:    rules.FieldCategory,
			Operator: rules.OpEquals,
			Value:    category,
		},
		Actions: rules.Actions{Confidence: core.ConfidenceHigh},
	}
}

func TestApply_CreatesLinkForMatch(t *testing.T) {
	writer := newFakeLinkWriter()
	eng := New(writer)

	result := eng.Apply(context.Background(), "user-1", applyEmail(),
		[]*rules.Rule{categoryRule("rule-1", "project-a", 0, "invoice")}, nil, nil)

	if len(result.Created) != 1 || len(writer.created) != 1 {
		t.Fatalf("created %d links (%d persisted), want 1", len(result.Created), len(writer.created))
	}
	link := writer.created[0]
	if link.ProjectID != "project-a" || link.EmailID != "email-1" || link.UserID != "user-1" {
		t.Errorf("link targets wrong row: %+v", link)
	}
	if link.ID == "" {
		t.Error("link should carry a generated id")
	}
	if link.Confidence != core.ConfidenceHigh.Score() {
		t.Errorf("confidence = %v, want %v", link.Confidence, core.ConfidenceHigh.Score())
	}
	if link.Source != core.LinkSourceRule {
		t.Errorf("source = %q, want rule", link.Source)
	}
	if link.Metadata.RuleID != "rule-1" || link.Metadata.ActorID != "user-1" {
		t.Errorf("metadata attribution wrong: %+v", link.Metadata)
	}
	if link.Metadata.AssignedAt.IsZero() {
		t.Error("metadata should record the assignment time")
	}
}

func TestApply_NonMatchCreatesNothing(t *testing.T) {
	writer := newFakeLinkWriter()
	eng := New(writer)

	result := eng.Apply(context.Background(), "user-1", applyEmail(),
		[]*rules.Rule{categoryRule("rule-1", "project-a", 0, "newsletter")}, nil, nil)

	if len(result.Created) != 0 || len(result.Failures) != 0 {
		t.Errorf("non-matching rule produced %d links, %d failures", len(result.Created), len(result.Failures))
	}
}

func TestApply_SkipsDisabledRules(t *testing.T) {
	writer := newFakeLinkWriter()
	eng := New(writer)

	rule := categoryRule("rule-1", "project-a", 0, "invoice")
	rule.Enabled = false

	result := eng.Apply(context.Background(), "user-1", applyEmail(), []*rules.Rule{rule}, nil, nil)
	if len(result.Created) != 0 {
		t.Error("disabled rule must not create links")
	}
}

func TestApply_OverrideSuppresses(t *testing.T) {
	writer := newFakeLinkWriter()
	eng := New(writer)

	overrides := core.NewLinkKeySet()
	overrides.Add(core.LinkKey{ProjectID: "project-a", EmailID: "email-1"})

	result := eng.Apply(context.Background(), "user-1", applyEmail(),
		[]*rules.Rule{
			categoryRule("rule-1", "project-a", 0, "invoice"),
			categoryRule("rule-2", "project-b", 1, "invoice"),
		}, overrides, nil)

	if len(result.Created) != 1 {
		t.Fatalf("created %d links, want 1", len(result.Created))
	}
	if result.Created[0].ProjectID != "project-b" {
		t.Errorf("link went to %q, want project-b; the overridden pair must stay unlinked", result.Created[0].ProjectID)
	}
}

func TestApply_ExistingLinkSuppresses(t *testing.T) {
	writer := newFakeLinkWriter()
	eng := New(writer)

	existing := core.NewLinkKeySet()
	existing.Add(core.LinkKey{ProjectID: "project-a", EmailID: "email-1"})

	result := eng.Apply(context.Background(), "user-1", applyEmail(),
		[]*rules.Rule{categoryRule("rule-1", "project-a", 0, "invoice")}, nil, existing)

	if len(result.Created) != 0 {
		t.Error("an already-linked pair must not be linked again")
	}
}

func TestApply_SameProjectLinkedOncePerPass(t *testing.T) {
	// Two rules targeting the same project both match; only the first in
	// evaluation order writes a link.
	writer := newFakeLinkWriter()
	eng := New(writer)

	result := eng.Apply(context.Background(), "user-1", applyEmail(),
		[]*rules.Rule{
			categoryRule("rule-1", "project-a", 0, "invoice"),
			categoryRule("rule-2", "project-a", 1, "invoice"),
		}, nil, nil)

	if len(result.Created) != 1 {
		t.Fatalf("created %d links, want 1", len(result.Created))
	}
	if result.Created[0].Metadata.RuleID != "rule-1" {
		t.Errorf("link attributed to %q, want the first matching rule", result.Created[0].Metadata.RuleID)
	}
}

func TestApply_EvaluationOrder(t *testing.T) {
	// Rules arrive unsorted; the pass must evaluate in sort_order with rule
	// ID as tie-break.
	writer := newFakeLinkWriter()
	eng := New(writer)

	result := eng.Apply(context.Background(), "user-1", applyEmail(),
		[]*rules.Rule{
			categoryRule("rule-b", "project-a", 5, "invoice"),
			categoryRule("rule-c", "project-a", 5, "invoice"),
			categoryRule("rule-a", "project-a", 1, "invoice"),
		}, nil, nil)

	if len(result.Created) != 1 {
		t.Fatalf("created %d links, want 1", len(result.Created))
	}
	if result.Created[0].Metadata.RuleID != "rule-a" {
		t.Errorf("winner = %q, want rule-a (lowest sort order)", result.Created[0].Metadata.RuleID)
	}
}

func TestApply_TieBreakByRuleID(t *testing.T) {
	writer := newFakeLinkWriter()
	eng := New(writer)

	result := eng.Apply(context.Background(), "user-1", applyEmail(),
		[]*rules.Rule{
			categoryRule("rule-b", "project-a", 3, "invoice"),
			categoryRule("rule-a", "project-a", 3, "invoice"),
		}, nil, nil)

	if len(result.Created) != 1 || result.Created[0].Metadata.RuleID != "rule-a" {
		t.Errorf("tied sort orders must break by rule id; got %+v", result.Created)
	}
}

func TestApply_FailureIsolation(t *testing.T) {
	writer := newFakeLinkWriter()
	writer.failFor["project-a"] = errors.New("disk full")
	eng := New(writer)

	result := eng.Apply(context.Background(), "user-1", applyEmail(),
		[]*rules.Rule{
			categoryRule("rule-1", "project-a", 0, "invoice"),
			categoryRule("rule-2", "project-b", 1, "invoice"),
		}, nil, nil)

	if len(result.Created) != 1 || result.Created[0].ProjectID != "project-b" {
		t.Errorf("later rules must still run after a failure; created = %+v", result.Created)
	}
	if len(result.Failures) != 1 {
		t.Fatalf("failures = %d, want 1", len(result.Failures))
	}
	f := result.Failures[0]
	if f.RuleID != "rule-1" || f.Key.ProjectID != "project-a" {
		t.Errorf("failure attribution wrong: %+v", f)
	}
	if f.Err == nil {
		t.Error("failure should carry the underlying error")
	}
}

func TestApply_FailureClaimsKeyForRestOfPass(t *testing.T) {
	// After a failed insert, a later rule for the same project must not
	// retry within the same pass.
	writer := newFakeLinkWriter()
	writer.failFor["project-a"] = errors.New("disk full")
	eng := New(writer)

	result := eng.Apply(context.Background(), "user-1", applyEmail(),
		[]*rules.Rule{
			categoryRule("rule-1", "project-a", 0, "invoice"),
			categoryRule("rule-2", "project-a", 1, "invoice"),
		}, nil, nil)

	if len(result.Failures) != 1 {
		t.Errorf("failures = %d, want 1; the second rule must not retry the pair", len(result.Failures))
	}
}

func TestApply_DuplicateConflictIsNotAFailure(t *testing.T) {
	writer := newFakeLinkWriter()
	writer.conflicts["project-a"] = true
	eng := New(writer)

	result := eng.Apply(context.Background(), "user-1", applyEmail(),
		[]*rules.Rule{categoryRule("rule-1", "project-a", 0, "invoice")}, nil, nil)

	if len(result.Created) != 0 {
		t.Error("a conflicting insert must not be reported as created")
	}
	if len(result.Failures) != 0 {
		t.Error("losing an insert race is expected, not a failure")
	}
}

func TestApply_Idempotent(t *testing.T) {
	// Running the same pass twice against a shared existing set only links
	// once, mirroring a re-run over already-processed emails.
	writer := newFakeLinkWriter()
	eng := New(writer)

	email := applyEmail()
	ruleList := []*rules.Rule{categoryRule("rule-1", "project-a", 0, "invoice")}
	existing := core.NewLinkKeySet()

	first := eng.Apply(context.Background(), "user-1", email, ruleList, nil, existing)
	second := eng.Apply(context.Background(), "user-1", email, ruleList, nil, existing)

	if len(first.Created) != 1 || len(second.Created) != 0 {
		t.Errorf("re-run created %d then %d links, want 1 then 0", len(first.Created), len(second.Created))
	}
	if len(writer.created) != 1 {
		t.Errorf("store holds %d links, want 1", len(writer.created))
	}
}

func TestApply_NilEmail(t *testing.T) {
	eng := New(newFakeLinkWriter())

	result := eng.Apply(context.Background(), "user-1", nil,
		[]*rules.Rule{categoryRule("rule-1", "project-a", 0, "invoice")}, nil, nil)
	if len(result.Created) != 0 || len(result.Failures) != 0 {
		t.Error("nil email must be a no-op")
	}
}
