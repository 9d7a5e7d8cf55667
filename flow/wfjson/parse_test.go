package wfjson

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dagflow-io/dagflow/flow"
)

type echoNode struct {
	flow.Base
}

func (e *echoNode) Execute(_ context.Context, _ flow.Invocation) flow.Result {
	return flow.Ok(e.Config())
}

func testRegistry(t *testing.T) *flow.Registry {
	t.Helper()
	reg := flow.NewRegistry()
	if err := reg.Register("echo", func(base flow.Base) (flow.Node, error) {
		return &echoNode{Base: base}, nil
	}); err != nil {
		t.Fatal(err)
	}
	return reg
}

const validDoc = `{
  "id": "wf-1",
  "name": "Demo",
  "description": "two nodes",
  "nodes": [
    {"id": "a", "name": "First", "type": "echo", "config": {"x": 1}},
    {"id": "b", "name": "Second", "type": "echo"}
  ],
  "connections": [
    {"from": "a", "to": "b", "fromOutput": "x"}
  ]
}`

func TestParseValidDocument(t *testing.T) {
	wf, err := Parse([]byte(validDoc), testRegistry(t))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if wf.ID != "wf-1" || wf.Name != "Demo" || wf.Description != "two nodes" {
		t.Errorf("identity = %q/%q/%q", wf.ID, wf.Name, wf.Description)
	}
	if len(wf.Nodes) != 2 {
		t.Fatalf("nodes = %d", len(wf.Nodes))
	}
	a := wf.Nodes["a"]
	if a.Name() != "First" || a.Type() != "echo" {
		t.Errorf("node a = %q/%q", a.Name(), a.Type())
	}
	if a.Config()["x"] != 1.0 {
		t.Errorf("config = %v", a.Config())
	}
	if wf.Nodes["b"].Name() != "Second" {
		t.Errorf("node b name = %q", wf.Nodes["b"].Name())
	}
	if len(wf.Connections) != 1 || wf.Connections[0].OutputSlot() != "x" {
		t.Errorf("connections = %+v", wf.Connections)
	}
}

func TestParseSchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing id", `{"name": "x", "nodes": []}`},
		{"missing name", `{"id": "x", "nodes": []}`},
		{"missing nodes", `{"id": "x", "name": "x"}`},
		{"node without type", `{"id": "x", "name": "x", "nodes": [{"id": "a", "name": "a"}]}`},
		{"node without name", `{"id": "x", "name": "x", "nodes": [{"id": "a", "type": "echo"}]}`},
		{"connection without to", `{"id": "x", "name": "x", "nodes": [], "connections": [{"from": "a"}]}`},
		{"empty node id", `{"id": "x", "name": "x", "nodes": [{"id": "", "name": "a", "type": "echo"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), testRegistry(t))
			if err == nil {
				t.Fatal("Parse accepted invalid document")
			}
			var verr *flow.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("err = %T %v, want ValidationError", err, err)
			}
		})
	}
}

func TestParseUnknownNodeType(t *testing.T) {
	doc := `{"id": "x", "name": "x", "nodes": [{"id": "a", "name": "a", "type": "mystery"}]}`
	_, err := Parse([]byte(doc), testRegistry(t))
	if err == nil || !strings.Contains(err.Error(), "mystery") {
		t.Errorf("err = %v", err)
	}
}

func TestParseDanglingConnection(t *testing.T) {
	doc := `{
	  "id": "x", "name": "x",
	  "nodes": [{"id": "a", "name": "a", "type": "echo"}],
	  "connections": [{"from": "a", "to": "ghost"}]
	}`
	_, err := Parse([]byte(doc), testRegistry(t))
	if err == nil || !strings.Contains(err.Error(), "ghost") {
		t.Errorf("err = %v", err)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	reg := testRegistry(t)
	wf, err := Parse([]byte(validDoc), reg)
	if err != nil {
		t.Fatal(err)
	}

	data, err := Marshal(wf)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	back, err := Parse(data, reg)
	if err != nil {
		t.Fatalf("re-Parse: %v", err)
	}
	if back.ID != wf.ID || len(back.Nodes) != len(wf.Nodes) || len(back.Connections) != len(wf.Connections) {
		t.Errorf("round trip changed shape: %+v", back)
	}
	if back.Nodes["a"].Config()["x"] != 1.0 {
		t.Errorf("round trip lost config: %v", back.Nodes["a"].Config())
	}
}
