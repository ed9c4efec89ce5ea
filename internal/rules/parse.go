package rules

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/inboxpilot/inboxpilot/internal/core"
)

// maxConditionDepth bounds the recursion when parsing stored trees, since
// rule definitions arrive from an untrusted store.
const maxConditionDepth = 32

// rawNode mirrors the stored JSON shape of a condition tree node.
// Combinators carry {"type": "and"|"or", "children": [...]} or
// {"type": "not", "child": {...}}; comparisons carry field/operator/value
// and may omit the type tag.
type rawNode struct {
	Type     string            `json:"type"`
	Children []json.RawMessage `json:"children"`
	Child    json.RawMessage   `json:"child"`
	Field    string            `json:"field"`
	Operator string            `json:"operator"`
	Value    any               `json:"value"`
}

// ParseConditions parses a stored condition tree into its typed form.
// Absent, null, or empty trees parse to nil, which matches every email.
// Malformed trees return an error wrapping core.ErrMalformedRule; callers
// resolve the whole rule to non-match and continue.
func ParseConditions(raw json.RawMessage) (*Condition, error) {
	if emptyJSON(raw) {
		return nil, nil
	}
	return parseNode(raw, 0)
}

func parseNode(raw json.RawMessage, depth int) (*Condition, error) {
	if depth > maxConditionDepth {
		return nil, fmt.Errorf("%w: %w", core.ErrMalformedRule, core.ErrConditionDepth)
	}

	var rn rawNode
	if err := json.Unmarshal(raw, &rn); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedRule, err)
	}

	switch rn.Type {
	case "and", "or":
		kind := NodeAnd
		if rn.Type == "or" {
			kind = NodeOr
		}
		children := make([]*Condition, 0, len(rn.Children))
		for _, c := range rn.Children {
			child, err := parseNode(c, depth+1)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		return &Condition{Kind: kind, Children: children}, nil

	case "not":
		if emptyJSON(rn.Child) {
			return nil, fmt.Errorf("%w: not node without child", core.ErrMalformedRule)
		}
		child, err := parseNode(rn.Child, depth+1)
		if err != nil {
			return nil, err
		}
		return &Condition{Kind: NodeNot, Children: []*Condition{child}}, nil

	case "", "condition":
		if rn.Field == "" || rn.Operator == "" {
			return nil, fmt.Errorf("%w: comparison missing field or operator", core.ErrMalformedRule)
		}
		return &Condition{
			Kind:     NodeCompare,
			Field:    Field(rn.Field),
			Operator: Operator(rn.Operator),
			Value:    rn.Value,
		}, nil

	default:
		return nil, fmt.Errorf("%w: unknown node type %q", core.ErrMalformedRule, rn.Type)
	}
}

// ParseActions parses a rule's stored actions. A missing or unrecognized
// confidence level defaults to low rather than failing the rule.
func ParseActions(raw json.RawMessage) Actions {
	actions := Actions{Confidence: core.ConfidenceLow}
	if emptyJSON(raw) {
		return actions
	}

	var ra struct {
		Confidence string `json:"confidence"`
		Note       string `json:"note"`
	}
	if err := json.Unmarshal(raw, &ra); err != nil {
		return actions
	}

	if level := core.ConfidenceLevel(ra.Confidence); level.Valid() {
		actions.Confidence = level
	}
	actions.Note = ra.Note
	return actions
}

// ParseMetadata parses the opaque metadata blob attached to a rule.
func ParseMetadata(raw json.RawMessage) map[string]any {
	if emptyJSON(raw) {
		return nil
	}
	var meta map[string]any
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil
	}
	return meta
}

// emptyJSON treats absent, null, and {} payloads as "no tree".
func emptyJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 ||
		bytes.Equal(trimmed, []byte("null")) ||
		bytes.Equal(trimmed, []byte("{}"))
}
