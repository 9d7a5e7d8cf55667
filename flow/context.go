package flow

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Context is the shared, dotted-path addressable data map passed to every
// node invocation.
//
// It has two logical layers:
//   - data: user and shared run state, including the reserved
//     nodes.<id>.output subtree the executor writes after each node
//   - variables: template-scope values
//
// Lookups search data first, then variables. The executor owns the Context;
// nodes receive immutable snapshots (see Snapshot) and must not mutate them.
type Context struct {
	data      map[string]any
	variables map[string]any
}

// NewContext creates a Context seeded with the given initial data. The map
// is used directly; callers that need isolation should pass a copy.
func NewContext(initial map[string]any) *Context {
	if initial == nil {
		initial = make(map[string]any)
	}
	return &Context{
		data:      initial,
		variables: make(map[string]any),
	}
}

// Get looks up a dotted path ("a.b.c" descends through nested maps) in
// data, falling back to variables. The second return reports presence.
func (c *Context) Get(path string) (any, bool) {
	if v, ok := lookupPath(c.data, path); ok {
		return v, true
	}
	return lookupPath(c.variables, path)
}

// Set stores a value at a dotted path in the data layer, creating
// intermediate maps as needed. Non-map intermediates are replaced.
func (c *Context) Set(path string, value any) {
	setPath(c.data, path, value)
}

// Has reports whether a dotted path resolves in data or variables.
func (c *Context) Has(path string) bool {
	_, ok := c.Get(path)
	return ok
}

// Remove deletes the value at a dotted path from the data layer.
func (c *Context) Remove(path string) {
	removePath(c.data, path)
}

// SetVariable stores a value at a dotted path in the template-scope layer.
func (c *Context) SetVariable(path string, value any) {
	setPath(c.variables, path, value)
}

// Merge deep-merges the given map into the data layer. Corresponding keys
// recursively merge when both values are maps; otherwise the incoming value
// replaces the existing one. Sequences are replaced, not concatenated.
func (c *Context) Merge(m map[string]any) {
	deepMerge(c.data, m)
}

// Data returns the underlying data layer. The executor uses this to publish
// the context into the Execution record; external callers should treat it
// as read-only.
func (c *Context) Data() map[string]any {
	return c.data
}

// Snapshot returns a deep copy of the Context via JSON round-trip, the same
// value-copy approach used for state isolation between concurrent branches.
// Values must be JSON-serializable; numeric types normalize to float64.
func (c *Context) Snapshot() (*Context, error) {
	data, err := deepCopyMap(c.data)
	if err != nil {
		return nil, fmt.Errorf("snapshot data: %w", err)
	}
	vars, err := deepCopyMap(c.variables)
	if err != nil {
		return nil, fmt.Errorf("snapshot variables: %w", err)
	}
	return &Context{data: data, variables: vars}, nil
}

// deepCopyMap copies a map through a JSON marshal/unmarshal round-trip.
func deepCopyMap(m map[string]any) (map[string]any, error) {
	if m == nil {
		return make(map[string]any), nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(m))
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// lookupPath descends through nested map[string]any values following a
// dotted path.
func lookupPath(m map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	parts := strings.Split(path, ".")
	var cur any = m
	for _, part := range parts {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = node[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// setPath writes a value at a dotted path, creating intermediate maps.
func setPath(m map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	cur := m
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

// removePath deletes the leaf of a dotted path if it resolves.
func removePath(m map[string]any, path string) {
	parts := strings.Split(path, ".")
	cur := m
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, parts[len(parts)-1])
}

// deepMerge merges src into dst recursively. Both operands are maps; when
// both values at a key are maps they merge, otherwise src wins.
func deepMerge(dst, src map[string]any) {
	for k, v := range src {
		if sv, ok := v.(map[string]any); ok {
			if dv, ok := dst[k].(map[string]any); ok {
				deepMerge(dv, sv)
				continue
			}
		}
		dst[k] = v
	}
}
