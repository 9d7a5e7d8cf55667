// Package wfjson loads and saves workflow definitions as JSON documents.
//
// A document is schema-validated first, then each node is constructed
// through a Registry so the result is a fully validated *flow.Workflow
// ready to execute.
package wfjson

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/xeipuuv/gojsonschema"

	"github.com/dagflow-io/dagflow/flow"
)

type nodeDoc struct {
	ID     string         `json:"id"`
	Name   string         `json:"name,omitempty"`
	Type   string         `json:"type"`
	Config map[string]any `json:"config,omitempty"`
}

type workflowDoc struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Nodes       []nodeDoc         `json:"nodes"`
	Connections []flow.Connection `json:"connections,omitempty"`
}

// Parse builds a workflow from a JSON document, constructing every node
// through the registry.
//
// Validation runs in three stages and fails fast between them: JSON Schema
// (structure), per-node construction (unknown types, bad config), then
// workflow-level Validate (dangling connections).
func Parse(data []byte, reg *flow.Registry) (*flow.Workflow, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(workflowSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return nil, &flow.ValidationError{Errors: errs}
	}

	var doc workflowDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode workflow: %w", err)
	}

	wf := flow.NewWorkflow(doc.ID, doc.Name)
	wf.Description = doc.Description
	for _, nd := range doc.Nodes {
		config := make(map[string]any, len(nd.Config)+2)
		for k, v := range nd.Config {
			config[k] = v
		}
		config["id"] = nd.ID
		if nd.Name != "" {
			config["name"] = nd.Name
		}
		node, err := reg.Create(nd.Type, config)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", nd.ID, err)
		}
		if err := wf.AddNode(node); err != nil {
			return nil, err
		}
	}
	for _, c := range doc.Connections {
		wf.AddConnection(c)
	}

	if errs := wf.Validate(); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, &flow.ValidationError{Errors: msgs}
	}
	return wf, nil
}

// ParseFile reads and parses a workflow definition from disk.
func ParseFile(path string, reg *flow.Registry) (*flow.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow file: %w", err)
	}
	return Parse(data, reg)
}

// Marshal serializes a workflow back to its JSON document form. Nodes are
// ordered by id so the output is stable across runs.
func Marshal(wf *flow.Workflow) ([]byte, error) {
	doc := workflowDoc{
		ID:          wf.ID,
		Name:        wf.Name,
		Description: wf.Description,
		Connections: wf.Connections,
	}
	ids := make([]string, 0, len(wf.Nodes))
	for id := range wf.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		n := wf.Nodes[id]
		doc.Nodes = append(doc.Nodes, nodeDoc{
			ID:     n.ID(),
			Name:   n.Name(),
			Type:   n.Type(),
			Config: n.Config(),
		})
	}
	return json.MarshalIndent(doc, "", "  ")
}
