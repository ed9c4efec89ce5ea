// Package rules evaluates user-defined project assignment rules against
// classified emails. A rule is a declarative boolean condition tree plus an
// action that links matching emails to a project with a declared confidence.
package rules

import (
	"github.com/inboxpilot/inboxpilot/internal/core"
)

// Field names a property of the email a comparison can reference.
type Field string

const (
	FieldSubject        Field = "subject"
	FieldFromEmail      Field = "fromEmail"
	FieldFromName       Field = "fromName"
	FieldCategory       Field = "category"
	FieldLabels         Field = "labels"
	FieldPriorityScore  Field = "priorityScore"
	FieldTriageState    Field = "triageState"
	FieldReceivedAt     Field = "receivedAt"
	FieldSentiment      Field = "sentiment"
	FieldBody           Field = "body"
	FieldSummary        Field = "summary"
	FieldHasAttachments Field = "hasAttachments"
)

// Operator names a comparison between a field and a value.
type Operator string

const (
	OpEquals       Operator = "equals"
	OpContains     Operator = "contains"
	OpStartsWith   Operator = "startsWith"
	OpIn           Operator = "in"
	OpGreaterThan  Operator = "greaterThan"
	OpLessThan     Operator = "lessThan"
	OpMatchesRegex Operator = "matchesRegex"
)

// NodeKind tags the variants of a condition tree node.
type NodeKind string

const (
	NodeAnd     NodeKind = "and"
	NodeOr      NodeKind = "or"
	NodeNot     NodeKind = "not"
	NodeCompare NodeKind = "condition"
)

// Condition is one node of a rule's condition tree: either a combinator
// (and/or/not) over child nodes or a leaf comparison of an email field
// against a value. Trees are evaluated by structural recursion with
// left-to-right short-circuiting.
type Condition struct {
	Kind NodeKind

	// Combinator nodes. Not has exactly one child.
	Children []*Condition

	// Comparison nodes.
	Field    Field
	Operator Operator
	Value    any
}

// Actions is what a rule does when it matches. The confidence is declared
// by the rule author, not computed from how the conditions matched.
type Actions struct {
	Confidence core.ConfidenceLevel `json:"confidence"`
	Note       string               `json:"note,omitempty"`
}

// Rule is a user-defined project assignment rule. Rules are read-only
// inputs to an evaluation pass; they are owned and edited elsewhere.
type Rule struct {
	ID        core.RuleID
	UserID    core.UserID
	ProjectID core.ProjectID
	Name      string
	Enabled   bool

	// SortOrder is the evaluation order, ascending; ties break by rule ID
	// so evaluation is deterministic.
	SortOrder int

	// Conditions is the root of the condition tree. nil matches every email.
	Conditions *Condition

	Actions  Actions
	Metadata map[string]any
}

// Result is the outcome of evaluating one rule against one email.
type Result struct {
	Matched    bool
	Confidence core.ConfidenceLevel
}
