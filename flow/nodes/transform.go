package nodes

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"

	"github.com/dagflow-io/dagflow/flow"
)

// TransformNode reshapes its input with a single expression.
//
// Config keys:
//   - expression: the expression to evaluate (required)
//
// The expression environment binds:
//   - input: the assembled input map, keyed by upstream node id
//   - data: the context snapshot's data layer
//
// The evaluation result becomes the node's output. Examples:
//
//	{"users": map(input.fetch.body, .name)}
//	input.fetch.body.items | filter(.active) | len()
type TransformNode struct {
	flow.Base
}

// NewTransformNode is the registry factory for the transform kind.
func NewTransformNode(base flow.Base) (flow.Node, error) {
	return &TransformNode{Base: base}, nil
}

// Validate compiles the expression at build time unless it still carries
// templates, which are only resolvable at execution time.
func (t *TransformNode) Validate() error {
	if err := t.Base.Validate(); err != nil {
		return err
	}
	src, _ := t.Config()["expression"].(string)
	if src == "" {
		return &flow.ConfigError{Field: "expression", Message: "expression is required"}
	}
	if hasTemplate(src) {
		return nil
	}
	if _, err := expr.Compile(src, expr.AllowUndefinedVariables()); err != nil {
		return &flow.ConfigError{Field: "expression", Message: "compile failed: " + err.Error()}
	}
	return nil
}

func (t *TransformNode) Describe() flow.Description {
	return flow.Description{
		Description: "Evaluates an expression over the input and publishes the result",
		Category:    "data",
		Icon:        "shuffle",
	}
}

func (t *TransformNode) Execute(_ context.Context, inv flow.Invocation) flow.Result {
	src, _ := inv.Config["expression"].(string)
	if src == "" {
		return flow.Fail("expression is required")
	}
	env := map[string]any{
		"input": inv.Input,
		"data":  inv.State.Data(),
	}
	program, err := expr.Compile(src, expr.Env(env), expr.AllowUndefinedVariables())
	if err != nil {
		return flow.Fail("compile expression: " + err.Error())
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return flow.Fail(fmt.Sprintf("evaluate expression: %v", err))
	}
	if nonFinite(out) {
		return flow.Fail("evaluate expression: result is not a finite number")
	}
	return flow.Ok(out)
}
