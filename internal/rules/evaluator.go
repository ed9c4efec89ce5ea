package rules

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/inboxpilot/inboxpilot/internal/core"
	"github.com/inboxpilot/inboxpilot/internal/logging"
)

// Evaluate runs one rule's condition tree against one email. The returned
// confidence is the level the rule author declared, independent of how the
// conditions matched. A nil condition tree matches every email; a nil rule
// never matches.
func Evaluate(rule *Rule, email *core.EmailContext) Result {
	if rule == nil || email == nil {
		return Result{Matched: false, Confidence: core.ConfidenceLow}
	}

	confidence := rule.Actions.Confidence
	if !confidence.Valid() {
		confidence = core.ConfidenceLow
	}

	return Result{
		Matched:    evalNode(rule.Conditions, email),
		Confidence: confidence,
	}
}

// evalNode evaluates a condition node by structural recursion. A nil node
// is trivially true. AND short-circuits on the first false child and OR on
// the first true child, in child list order.
func evalNode(n *Condition, email *core.EmailContext) bool {
	if n == nil {
		return true
	}

	switch n.Kind {
	case NodeAnd:
		for _, child := range n.Children {
			if !evalNode(child, email) {
				return false
			}
		}
		return true

	case NodeOr:
		for _, child := range n.Children {
			if evalNode(child, email) {
				return true
			}
		}
		return false

	case NodeNot:
		if len(n.Children) != 1 {
			return false
		}
		return !evalNode(n.Children[0], email)

	case NodeCompare:
		return evalCompare(n, email)

	default:
		logging.WithField("kind", string(n.Kind)).Debug("unknown condition node kind")
		return false
	}
}

// evalCompare resolves a leaf comparison. Any type mismatch between field,
// operator, and value resolves to false rather than an error, so one bad
// comparison never aborts a rule pass.
func evalCompare(n *Condition, email *core.EmailContext) bool {
	switch n.Field {
	case FieldSubject:
		return compareString(email.Subject, n.Operator, n.Value)
	case FieldFromEmail:
		return compareString(email.FromEmail, n.Operator, n.Value)
	case FieldFromName:
		return compareString(email.FromName, n.Operator, n.Value)
	case FieldCategory:
		return compareString(email.Category, n.Operator, n.Value)
	case FieldSentiment:
		return compareString(string(email.Sentiment), n.Operator, n.Value)
	case FieldTriageState:
		return compareString(string(email.TriageState), n.Operator, n.Value)
	case FieldBody:
		return compareString(email.Body, n.Operator, n.Value)
	case FieldSummary:
		return compareString(email.Summary, n.Operator, n.Value)
	case FieldLabels:
		return compareLabels(email.Labels, n.Operator, n.Value)
	case FieldPriorityScore:
		return compareNumber(email.PriorityScore, n.Operator, n.Value)
	case FieldReceivedAt:
		return compareTime(email.ReceivedAt, n.Operator, n.Value)
	case FieldHasAttachments:
		return compareBool(email.HasAttachments, n.Operator, n.Value)
	default:
		return false
	}
}

// compareString handles the string field operators. Substring and prefix
// checks are case-insensitive, matching how users write filter rules.
func compareString(field string, op Operator, value any) bool {
	switch op {
	case OpEquals:
		want, ok := asString(value)
		return ok && strings.EqualFold(field, want)
	case OpContains:
		want, ok := asString(value)
		return ok && strings.Contains(strings.ToLower(field), strings.ToLower(want))
	case OpStartsWith:
		want, ok := asString(value)
		return ok && strings.HasPrefix(strings.ToLower(field), strings.ToLower(want))
	case OpIn:
		list, ok := asStringList(value)
		if !ok {
			return false
		}
		for _, want := range list {
			if strings.EqualFold(field, want) {
				return true
			}
		}
		return false
	case OpMatchesRegex:
		pattern, ok := asString(value)
		if !ok {
			return false
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			logging.WithField("pattern", pattern).Debug("invalid rule regex")
			return false
		}
		return re.MatchString(field)
	default:
		// Ordering operators against a string field: fail-safe non-match.
		return false
	}
}

// compareLabels treats the label set as a membership domain: contains checks
// one label, in checks whether any email label appears in the value list.
// Other operators, equality included, resolve to non-match.
func compareLabels(labels []string, op Operator, value any) bool {
	switch op {
	case OpContains:
		want, ok := asString(value)
		if !ok {
			return false
		}
		for _, l := range labels {
			if strings.EqualFold(l, want) {
				return true
			}
		}
		return false
	case OpIn:
		list, ok := asStringList(value)
		if !ok {
			return false
		}
		for _, l := range labels {
			for _, want := range list {
				if strings.EqualFold(l, want) {
					return true
				}
			}
		}
		return false
	default:
		return false
	}
}

func compareNumber(field float64, op Operator, value any) bool {
	switch op {
	case OpEquals:
		want, ok := asNumber(value)
		return ok && field == want
	case OpGreaterThan:
		want, ok := asNumber(value)
		return ok && field > want
	case OpLessThan:
		want, ok := asNumber(value)
		return ok && field < want
	case OpIn:
		list, ok := value.([]any)
		if !ok {
			return false
		}
		for _, v := range list {
			if want, ok := asNumber(v); ok && field == want {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func compareTime(field time.Time, op Operator, value any) bool {
	want, ok := asTime(value)
	if !ok {
		return false
	}
	switch op {
	case OpEquals:
		return field.Equal(want)
	case OpGreaterThan:
		return field.After(want)
	case OpLessThan:
		return field.Before(want)
	default:
		return false
	}
}

func compareBool(field bool, op Operator, value any) bool {
	if op != OpEquals {
		return false
	}
	switch v := value.(type) {
	case bool:
		return field == v
	case string:
		want, err := strconv.ParseBool(v)
		return err == nil && field == want
	default:
		return false
	}
}

// Value coercion helpers. Stored JSON gives us strings, float64 numbers,
// bools, and []any lists; everything else is a mismatch.

func asString(value any) (string, bool) {
	s, ok := value.(string)
	return s, ok
}

func asStringList(value any) ([]string, bool) {
	list, ok := value.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func asNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// asTime accepts RFC3339 strings and unix-second numbers.
func asTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case string:
		t, err := time.Parse(time.RFC3339, v)
		return t, err == nil
	case float64:
		return time.Unix(int64(v), 0).UTC(), true
	case time.Time:
		return v, true
	default:
		return time.Time{}, false
	}
}
