package delivery

import (
	"maps"
	"strings"

	"github.com/hooklinehq/hookline/subscriber"
)

// TopKRule configures the single documented payload transformation: when a
// subscriber URL carries the configured prefix and the payload has no truthy
// value for the field, the default value is injected into the copy sent to
// that subscriber only. An empty URLPrefix disables the rule.
type TopKRule struct {
	// URLPrefix designates the downstream consumer family the rule applies to.
	URLPrefix string

	// Field is the payload key the rule inspects and injects. Defaults to "topK".
	Field string

	// Value is injected when the field is absent or falsy. Defaults to 2.
	Value any
}

// DefaultTopKRule returns the rule with default field and value and the rule
// disabled (no URL prefix).
func DefaultTopKRule() TopKRule {
	return TopKRule{Field: "topK", Value: 2}
}

// Shaper derives per-subscriber outbound payloads from an event payload.
type Shaper struct {
	rule TopKRule
}

// NewShaper creates a shaper for the given rule. Zero-valued Field and Value
// fall back to the defaults.
func NewShaper(rule TopKRule) *Shaper {
	if rule.Field == "" {
		rule.Field = "topK"
	}
	if rule.Value == nil {
		rule.Value = 2
	}
	return &Shaper{rule: rule}
}

// Shape returns the payload to send to the given subscriber. The shared
// event payload is never mutated: when the rule applies, the injection
// happens on an independently derived copy.
func (s *Shaper) Shape(sub *subscriber.Subscriber, payload map[string]any) map[string]any {
	if !s.applies(sub, payload) {
		return payload
	}

	shaped := maps.Clone(payload)
	if shaped == nil {
		shaped = make(map[string]any, 1)
	}
	shaped[s.rule.Field] = s.rule.Value
	return shaped
}

func (s *Shaper) applies(sub *subscriber.Subscriber, payload map[string]any) bool {
	if s.rule.URLPrefix == "" || sub.Options.TopKExempt {
		return false
	}
	if !strings.HasPrefix(sub.URL, s.rule.URLPrefix) {
		return false
	}
	return !truthy(payload[s.rule.Field])
}

// truthy reports whether a decoded JSON value counts as set: absent values,
// null, false, zero numbers, and empty strings do not.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	default:
		return true
	}
}
