package flow

import (
	"regexp"
	"strconv"
	"strings"
)

// templatePattern matches one {{ key }} token. The key is any non-empty
// sequence of characters other than '}'; inner whitespace is trimmed before
// lookup. The pattern is compiled once for the whole engine.
var templatePattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// ProcessTemplate substitutes every {{dotted.key}} token in s with the value
// found in data then variables. Unresolved tokens and values that have no
// string form are preserved verbatim, which makes the substitution
// idempotent with respect to unresolved references.
//
// The interpolator is pure over (template, lookup): it never evaluates
// expressions or injects semantics beyond the path lookup.
func (c *Context) ProcessTemplate(s string) string {
	return templatePattern.ReplaceAllStringFunc(s, func(token string) string {
		key := strings.TrimSpace(token[2 : len(token)-2])
		if key == "" {
			return token
		}
		v, ok := c.Get(key)
		if !ok {
			return token
		}
		str, ok := stringify(v)
		if !ok {
			return token
		}
		return str
	})
}

// ProcessTemplates deep-walks an arbitrary tree of maps, slices, and scalars
// and substitutes every string leaf. The input is not mutated; a new tree is
// returned.
func (c *Context) ProcessTemplates(v any) any {
	switch t := v.(type) {
	case string:
		return c.ProcessTemplate(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = c.ProcessTemplates(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = c.ProcessTemplates(child)
		}
		return out
	default:
		return v
	}
}

// stringify converts a scalar to its template representation. Composite and
// nil values report false so the caller preserves the original token.
func stringify(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case int:
		return strconv.Itoa(t), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return "", false
	}
}
