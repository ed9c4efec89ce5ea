// Package engine turns matched rules into project-email links and drives
// batch evaluation runs over accounts.
package engine

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/inboxpilot/inboxpilot/internal/core"
	"github.com/inboxpilot/inboxpilot/internal/logging"
	"github.com/inboxpilot/inboxpilot/internal/rules"
)

// LinkWriter is the link-store collaborator the orchestrator persists
// through. Create must never overwrite an existing link for the same
// (project, email) pair; it reports core.ErrDuplicateLink instead.
type LinkWriter interface {
	Create(ctx context.Context, link *core.ProjectEmailLink) error
}

// Engine applies a user's rules to classified emails. It is stateless per
// call: all evaluation state lives in the supplied rule list and key sets.
type Engine struct {
	links LinkWriter
}

// New creates an engine writing links through the given store.
func New(links LinkWriter) *Engine {
	return &Engine{links: links}
}

// LinkFailure records one isolated link-insert failure.
type LinkFailure struct {
	RuleID core.RuleID
	Key    core.LinkKey
	Err    error
}

// ApplyResult aggregates the outcome of one rule pass over one email.
// Failures are reported to the caller instead of being swallowed; the
// caller decides whether to retry on a later run.
type ApplyResult struct {
	Created  []*core.ProjectEmailLink
	Failures []LinkFailure
}

// Apply evaluates the rules against one email in deterministic order and
// persists a link for every match that is not suppressed by an override or
// an existing link. The existing set is updated in place as links are
// attempted, so several rules targeting the same project within one pass
// produce at most one link. A failed insert is logged, recorded in the
// result, and never stops the remaining rules.
func (e *Engine) Apply(ctx context.Context, userID core.UserID, email *core.EmailContext, ruleList []*rules.Rule, overrides, existing core.LinkKeySet) ApplyResult {
	var result ApplyResult
	if email == nil {
		return result
	}
	if overrides == nil {
		overrides = core.NewLinkKeySet()
	}
	if existing == nil {
		existing = core.NewLinkKeySet()
	}

	log := logging.WithFields(logging.Fields{
		"user_id":  string(userID),
		"email_id": string(email.ID),
	})

	for _, rule := range sortRules(ruleList) {
		if !rule.Enabled {
			continue
		}

		res := rules.Evaluate(rule, email)
		if !res.Matched {
			continue
		}

		key := core.LinkKey{ProjectID: rule.ProjectID, EmailID: email.ID}
		if overrides.Has(key) || existing.Has(key) {
			continue
		}

		link := &core.ProjectEmailLink{
			ID:         uuid.NewString(),
			UserID:     userID,
			ProjectID:  rule.ProjectID,
			EmailID:    email.ID,
			Confidence: res.Confidence.Score(),
			Source:     core.LinkSourceRule,
			Metadata: core.LinkMetadata{
				RuleID:     string(rule.ID),
				RuleName:   rule.Name,
				Note:       rule.Actions.Note,
				ActorID:    string(userID),
				Source:     string(core.LinkSourceRule),
				AssignedAt: time.Now().UTC(),
			},
		}

		err := e.links.Create(ctx, link)
		// The key is claimed for the rest of the pass either way: on
		// success the link exists, on conflict it already existed, and on
		// failure a retry belongs to a later run, not a later rule.
		existing.Add(key)

		switch {
		case err == nil:
			result.Created = append(result.Created, link)
		case errors.Is(err, core.ErrDuplicateLink):
			log.WithField("project_id", string(rule.ProjectID)).Debug("link already exists, skipping")
		default:
			log.WithFields(logging.Fields{
				"rule_id":    string(rule.ID),
				"project_id": string(rule.ProjectID),
				"error":      err,
			}).Error("failed to persist link")
			result.Failures = append(result.Failures, LinkFailure{
				RuleID: rule.ID,
				Key:    key,
				Err:    err,
			})
		}
	}

	return result
}

// sortRules re-asserts the evaluation order: sort_order ascending, ties
// broken by rule ID. Callers normally pass pre-sorted rules; sorting again
// keeps determinism independent of storage query order.
func sortRules(ruleList []*rules.Rule) []*rules.Rule {
	sorted := make([]*rules.Rule, len(ruleList))
	copy(sorted, ruleList)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].SortOrder != sorted[j].SortOrder {
			return sorted[i].SortOrder < sorted[j].SortOrder
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}
