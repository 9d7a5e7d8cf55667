package flow

import (
	"errors"
	"testing"
)

func plainFactory(base Base) (Node, error) {
	return &plainNode{Base: base}, nil
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	for _, name := range []string{"http", "database", "transform"} {
		if err := r.Register(name, plainFactory); err != nil {
			t.Fatalf("Register(%s): %v", name, err)
		}
	}
	if err := r.RegisterAlias("httpRequest", "http"); err != nil {
		t.Fatalf("RegisterAlias: %v", err)
	}
	return r
}

func TestRegistryFindPriority(t *testing.T) {
	r := newTestRegistry(t)

	tests := []struct {
		name  string
		query string
		found bool
	}{
		{"exact", "http", true},
		{"alias", "httpRequest", true},
		{"case-insensitive type", "HTTP", true},
		{"case-insensitive alias", "HTTPREQUEST", true},
		{"substring", "trans", true},
		{"unknown", "webhook", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := r.Find(tt.query); ok != tt.found {
				t.Errorf("Find(%q) found = %v, want %v", tt.query, ok, tt.found)
			}
		})
	}
}

func TestRegistryCreateDefaults(t *testing.T) {
	r := newTestRegistry(t)

	n, err := r.Create("http", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if n.ID() == "" {
		t.Error("generated id is empty")
	}
	if n.Name() != "http Node" {
		t.Errorf("default name = %q", n.Name())
	}
	if n.Type() != "http" {
		t.Errorf("type = %q", n.Type())
	}

	n2, err := r.Create("http", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if n.ID() == n2.ID() {
		t.Error("generated ids collide")
	}
}

func TestRegistryCreateLiftsIdentity(t *testing.T) {
	r := newTestRegistry(t)

	cfg := map[string]any{"id": "fetch", "name": "Fetcher", "url": "https://x"}
	n, err := r.Create("http", cfg)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if n.ID() != "fetch" || n.Name() != "Fetcher" {
		t.Errorf("identity = %q/%q", n.ID(), n.Name())
	}
	if _, ok := n.Config()["id"]; ok {
		t.Error("id left inside config")
	}
	if n.Config()["url"] != "https://x" {
		t.Errorf("config lost: %v", n.Config())
	}

	// The caller's map is not shared.
	cfg["url"] = "mutated"
	if n.Config()["url"] != "https://x" {
		t.Error("node config aliased to caller map")
	}
}

func TestRegistryCreateValidates(t *testing.T) {
	r := newTestRegistry(t)

	if _, err := r.Create("http", map[string]any{"executionMode": "sideways"}); err == nil {
		t.Error("Create accepted invalid executionMode")
	}
	if _, err := r.Create("http", map[string]any{"stopWorkflowOnFail": "yes"}); err == nil {
		t.Error("Create accepted non-boolean stopWorkflowOnFail")
	}
}

func TestRegistryUnknownType(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Create("nope", nil)
	if !errors.Is(err, ErrUnknownNodeType) {
		t.Errorf("err = %v, want ErrUnknownNodeType", err)
	}
}

func TestRegistryStrictMode(t *testing.T) {
	r := newTestRegistry(t)

	// Non-strict: overwrite is fine.
	if err := r.Register("http", plainFactory); err != nil {
		t.Fatalf("re-register in non-strict mode: %v", err)
	}

	r.SetStrict(true)
	if err := r.Register("http", plainFactory); !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("err = %v, want ErrAlreadyRegistered", err)
	}
}

func TestRegistryAliasRequiresTarget(t *testing.T) {
	r := NewRegistry()
	if err := r.RegisterAlias("x", "ghost"); !errors.Is(err, ErrUnknownNodeType) {
		t.Errorf("err = %v, want ErrUnknownNodeType", err)
	}
}

func TestBaseDefaults(t *testing.T) {
	b := &Base{NodeID: "n"}
	if b.Mode() != ModeSync {
		t.Errorf("default mode = %s", b.Mode())
	}
	if !b.StopOnFail() {
		t.Error("default failure policy is not fatal")
	}

	b.Conf = map[string]any{"executionMode": "async", "stopWorkflowOnFail": false}
	if b.Mode() != ModeAsync {
		t.Errorf("mode = %s", b.Mode())
	}
	if b.StopOnFail() {
		t.Error("stopWorkflowOnFail=false not honored")
	}
}
