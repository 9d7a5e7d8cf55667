package flow

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Factory constructs a node of one kind from its prepared identity and
// configuration.
type Factory func(base Base) (Node, error)

// Registry maps node type names and aliases to factories.
//
// By default Register overwrites an existing mapping, which preserves
// fluent re-registration; strict mode turns a collision into
// ErrAlreadyRegistered. Aliases share the factory namespace: Find resolves
// "httpRequest" and "api" to the same factory as "http".
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	aliases   map[string]string
	strict    bool
}

// NewRegistry creates an empty, non-strict registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		aliases:   make(map[string]string),
	}
}

// SetStrict toggles collision handling for Register.
func (r *Registry) SetStrict(strict bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strict = strict
}

// Register adds (or, in non-strict mode, replaces) a type → factory
// mapping.
func (r *Registry) Register(nodeType string, factory Factory) error {
	if nodeType == "" {
		return &ConfigError{Field: "type", Message: "node type cannot be empty"}
	}
	if factory == nil {
		return &ConfigError{Field: "factory", Message: "factory cannot be nil"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[nodeType]; exists && r.strict {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, nodeType)
	}
	r.factories[nodeType] = factory
	return nil
}

// RegisterAlias declares an alternative lookup name for a registered type.
func (r *Registry) RegisterAlias(alias, nodeType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[nodeType]; !exists {
		return fmt.Errorf("%w: %s", ErrUnknownNodeType, nodeType)
	}
	if _, exists := r.aliases[alias]; exists && r.strict {
		return fmt.Errorf("%w: alias %s", ErrAlreadyRegistered, alias)
	}
	r.aliases[alias] = nodeType
	return nil
}

// Find resolves a type name to its factory. Match priority: exact type,
// exact alias, case-insensitive exact over both, then substring match over
// registered type names (first in sorted order wins, for determinism).
func (r *Registry) Find(nodeType string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if f, ok := r.factories[nodeType]; ok {
		return f, true
	}
	if target, ok := r.aliases[nodeType]; ok {
		if f, ok := r.factories[target]; ok {
			return f, true
		}
	}

	lower := strings.ToLower(nodeType)
	for name, f := range r.factories {
		if strings.ToLower(name) == lower {
			return f, true
		}
	}
	for alias, target := range r.aliases {
		if strings.ToLower(alias) == lower {
			if f, ok := r.factories[target]; ok {
				return f, true
			}
		}
	}

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if strings.Contains(strings.ToLower(name), lower) {
			return r.factories[name], true
		}
	}
	return nil, false
}

// Create constructs and validates a node of the given type.
//
// Defaults applied before construction:
//   - id: a generated unique token, unless config carries "id"
//   - name: "<type> Node", unless config carries "name"
//
// The "id" and "name" keys are lifted out of the config tree into the
// node's identity; the rest of the config is copied so the caller's map is
// never shared.
func (r *Registry) Create(nodeType string, config map[string]any) (Node, error) {
	factory, ok := r.Find(nodeType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNodeType, nodeType)
	}

	base := Base{
		NodeID:   uuid.NewString(),
		NodeName: nodeType + " Node",
		NodeType: nodeType,
		Conf:     make(map[string]any, len(config)),
	}
	for k, v := range config {
		switch k {
		case "id":
			if s, ok := v.(string); ok && s != "" {
				base.NodeID = s
			}
		case "name":
			if s, ok := v.(string); ok && s != "" {
				base.NodeName = s
			}
		default:
			base.Conf[k] = v
		}
	}

	node, err := factory(base)
	if err != nil {
		return nil, &NodeError{NodeID: base.NodeID, Message: "construction failed: " + err.Error(), Cause: err}
	}
	if err := node.Validate(); err != nil {
		return nil, &NodeError{NodeID: base.NodeID, Message: "validation failed: " + err.Error(), Cause: err}
	}
	return node, nil
}

// Types returns the registered primary type names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
