package nodes

import (
	"context"
	"reflect"
	"testing"

	"github.com/dagflow-io/dagflow/flow"
)

func newTransform(t *testing.T, cfg map[string]any) flow.Node {
	t.Helper()
	n, err := NewTransformNode(flow.Base{NodeID: "t", NodeType: "transform", Conf: cfg})
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func newCode(t *testing.T, cfg map[string]any) flow.Node {
	t.Helper()
	n, err := NewCodeNode(flow.Base{NodeID: "c", NodeType: "code", Conf: cfg})
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestTransformNodeExpression(t *testing.T) {
	cfg := map[string]any{"expression": `{"doubled": map(input.up.values, # * 2)}`}
	n := newTransform(t, cfg)

	res := n.Execute(context.Background(), flow.Invocation{
		State: flow.NewContext(nil),
		Input: map[string]any{
			"up": map[string]any{"values": []any{1, 2, 3}},
		},
		Config: cfg,
	})
	if !res.Success {
		t.Fatalf("failed: %s", res.Error)
	}
	out := res.Data.(map[string]any)
	want := []any{2, 4, 6}
	if !reflect.DeepEqual(out["doubled"], want) {
		t.Errorf("doubled = %v, want %v", out["doubled"], want)
	}
}

func TestTransformNodeReadsContextData(t *testing.T) {
	cfg := map[string]any{"expression": `data.user.name + "!"`}
	n := newTransform(t, cfg)

	state := flow.NewContext(map[string]any{
		"user": map[string]any{"name": "ada"},
	})
	res := n.Execute(context.Background(), flow.Invocation{State: state, Config: cfg})
	if !res.Success || res.Data != "ada!" {
		t.Errorf("res = %+v", res)
	}
}

func TestTransformNodeValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  map[string]any
		ok   bool
	}{
		{"valid", map[string]any{"expression": "1 + 1"}, true},
		{"missing", map[string]any{}, false},
		{"syntax error", map[string]any{"expression": "1 +"}, false},
		{"templated deferred", map[string]any{"expression": "{{expr.source}}"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newTransform(t, tt.cfg).Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestTransformNodeRuntimeError(t *testing.T) {
	// Division is float division, so / 0 does not error at evaluation time;
	// it produces an infinity, which the node rejects as non-serializable.
	tests := []struct {
		name       string
		expression string
	}{
		{"modulo by zero", "input.up.n % input.up.zero"},
		{"division yields infinity", "input.up.n / input.up.zero"},
		{"nested NaN", `{"ratio": input.up.zero / input.up.zero}`},
		{"infinity in list", "[1, input.up.n / input.up.zero]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := map[string]any{"expression": tt.expression}
			n := newTransform(t, cfg)
			res := n.Execute(context.Background(), flow.Invocation{
				State:  flow.NewContext(nil),
				Input:  map[string]any{"up": map[string]any{"n": 1, "zero": 0}},
				Config: cfg,
			})
			if res.Success {
				t.Fatalf("%q succeeded with data %v", tt.expression, res.Data)
			}
			if res.Error == "" {
				t.Error("failed result carries no error message")
			}
		})
	}
}

func TestCodeNodeNonFiniteResult(t *testing.T) {
	cfg := map[string]any{
		"script": "input.up.total / divisor",
		"env":    map[string]any{"divisor": 0},
	}
	n := newCode(t, cfg)
	res := n.Execute(context.Background(), flow.Invocation{
		State:  flow.NewContext(nil),
		Input:  map[string]any{"up": map[string]any{"total": 5}},
		Config: cfg,
	})
	if res.Success {
		t.Fatalf("non-finite result succeeded with data %v", res.Data)
	}
}

func TestCodeNodeEnvBindings(t *testing.T) {
	cfg := map[string]any{
		"script": `input.up.score >= threshold ? "pass" : "fail"`,
		"env":    map[string]any{"threshold": 0.6},
	}
	n := newCode(t, cfg)

	run := func(score float64) any {
		res := n.Execute(context.Background(), flow.Invocation{
			State:  flow.NewContext(nil),
			Input:  map[string]any{"up": map[string]any{"score": score}},
			Config: cfg,
		})
		if !res.Success {
			t.Fatalf("failed: %s", res.Error)
		}
		return res.Data
	}
	if got := run(0.8); got != "pass" {
		t.Errorf("run(0.8) = %v", got)
	}
	if got := run(0.4); got != "fail" {
		t.Errorf("run(0.4) = %v", got)
	}
}

func TestCodeNodeValidate(t *testing.T) {
	if err := newCode(t, map[string]any{}).Validate(); err == nil {
		t.Error("missing script accepted")
	}
	if err := newCode(t, map[string]any{"script": "1", "env": "nope"}).Validate(); err == nil {
		t.Error("non-map env accepted")
	}
	if err := newCode(t, map[string]any{"script": "1 + 1"}).Validate(); err != nil {
		t.Errorf("valid script rejected: %v", err)
	}
}

func TestRegisterWiresAliases(t *testing.T) {
	reg := flow.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatal(err)
	}

	want := []string{"code", "database", "http", "transform"}
	if got := reg.Types(); !reflect.DeepEqual(got, want) {
		t.Errorf("Types = %v, want %v", got, want)
	}
	for _, alias := range []string{"httpRequest", "api", "db", "sql", "map", "script"} {
		if _, ok := reg.Find(alias); !ok {
			t.Errorf("alias %q not resolvable", alias)
		}
	}

	// Create through an alias applies the primary factory.
	n, err := reg.Create("api", map[string]any{"url": "https://x"})
	if err != nil {
		t.Fatalf("Create via alias: %v", err)
	}
	if _, ok := n.(*HTTPNode); !ok {
		t.Errorf("node type = %T", n)
	}
}
