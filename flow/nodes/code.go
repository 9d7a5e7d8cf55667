package nodes

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"

	"github.com/dagflow-io/dagflow/flow"
)

// CodeNode evaluates a sandboxed script expression with extra bindings.
//
// Where TransformNode is a pure input reshape, CodeNode is the escape hatch
// for small computations: its environment can be extended per node through
// the env config key, and its result may be any value.
//
// Config keys:
//   - script: the expression to evaluate (required)
//   - env: map of additional bindings merged into the environment
//
// The environment binds input (assembled upstream outputs), data (context
// snapshot), plus every key of env. The expression language is sandboxed:
// no I/O, no imports, bounded evaluation.
type CodeNode struct {
	flow.Base
}

// NewCodeNode is the registry factory for the code kind.
func NewCodeNode(base flow.Base) (flow.Node, error) {
	return &CodeNode{Base: base}, nil
}

func (c *CodeNode) Validate() error {
	if err := c.Base.Validate(); err != nil {
		return err
	}
	src, _ := c.Config()["script"].(string)
	if src == "" {
		return &flow.ConfigError{Field: "script", Message: "script is required"}
	}
	if hasTemplate(src) {
		return nil
	}
	if _, err := expr.Compile(src, expr.AllowUndefinedVariables()); err != nil {
		return &flow.ConfigError{Field: "script", Message: "compile failed: " + err.Error()}
	}
	if v, ok := c.Config()["env"]; ok {
		if _, isMap := v.(map[string]any); !isMap {
			return &flow.ConfigError{Field: "env", Message: "must be a map"}
		}
	}
	return nil
}

func (c *CodeNode) Describe() flow.Description {
	return flow.Description{
		Description: "Evaluates a sandboxed script with custom bindings",
		Category:    "logic",
		Icon:        "terminal",
	}
}

func (c *CodeNode) Execute(_ context.Context, inv flow.Invocation) flow.Result {
	src, _ := inv.Config["script"].(string)
	if src == "" {
		return flow.Fail("script is required")
	}
	env := map[string]any{
		"input": inv.Input,
		"data":  inv.State.Data(),
	}
	if extra, ok := inv.Config["env"].(map[string]any); ok {
		for k, v := range extra {
			env[k] = v
		}
	}
	program, err := expr.Compile(src, expr.Env(env), expr.AllowUndefinedVariables())
	if err != nil {
		return flow.Fail("compile script: " + err.Error())
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return flow.Fail(fmt.Sprintf("evaluate script: %v", err))
	}
	if nonFinite(out) {
		return flow.Fail("evaluate script: result is not a finite number")
	}
	return flow.Ok(out)
}
