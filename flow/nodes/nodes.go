// Package nodes provides the built-in node library: HTTP requests, SQL
// queries, and expression-based transforms and scripts.
//
// Register wires the whole library into a Registry:
//
//	reg := flow.NewRegistry()
//	if err := nodes.Register(reg); err != nil {
//	    log.Fatal(err)
//	}
//	node, err := reg.Create("http", map[string]any{"url": "https://example.com"})
package nodes

import (
	"math"

	"github.com/dagflow-io/dagflow/flow"
)

// Register adds every built-in node kind and its aliases to the registry.
func Register(r *flow.Registry) error {
	kinds := []struct {
		name    string
		factory flow.Factory
		aliases []string
	}{
		{"http", NewHTTPNode, []string{"httpRequest", "api"}},
		{"database", NewDatabaseNode, []string{"db", "sql"}},
		{"transform", NewTransformNode, []string{"map"}},
		{"code", NewCodeNode, []string{"script"}},
	}
	for _, k := range kinds {
		if err := r.Register(k.name, k.factory); err != nil {
			return err
		}
		for _, alias := range k.aliases {
			if err := r.RegisterAlias(alias, k.name); err != nil {
				return err
			}
		}
	}
	return nil
}

// hasTemplate reports whether a config value still carries an unrendered
// template, in which case build-time validation of that value is skipped.
func hasTemplate(s string) bool {
	return len(s) >= 4 && containsTemplate(s)
}

func containsTemplate(s string) bool {
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '{' && s[i+1] == '{' {
			return true
		}
	}
	return false
}

// nonFinite reports whether v contains NaN or an infinity anywhere in its
// tree. Such values have no JSON representation and would break context
// snapshots and persistence, so expression nodes reject them.
func nonFinite(v any) bool {
	switch x := v.(type) {
	case float64:
		return math.IsNaN(x) || math.IsInf(x, 0)
	case float32:
		return nonFinite(float64(x))
	case map[string]any:
		for _, elem := range x {
			if nonFinite(elem) {
				return true
			}
		}
	case []any:
		for _, elem := range x {
			if nonFinite(elem) {
				return true
			}
		}
	}
	return false
}
