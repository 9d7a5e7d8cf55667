package flow

import "fmt"

// DefaultOutputSlot is the output slot name a Connection uses when
// fromOutput is not specified.
const DefaultOutputSlot = "output"

// DefaultInputSlot is the input slot name a Connection uses when toInput is
// not specified.
const DefaultInputSlot = "input"

// Connection is a directed edge from one node's output slot to another
// node's input slot.
type Connection struct {
	From       string `json:"from"`
	To         string `json:"to"`
	FromOutput string `json:"fromOutput,omitempty"`
	ToInput    string `json:"toInput,omitempty"`
}

// OutputSlot returns the effective upstream slot, applying the default.
func (c Connection) OutputSlot() string {
	if c.FromOutput == "" {
		return DefaultOutputSlot
	}
	return c.FromOutput
}

// InputSlot returns the effective downstream slot, applying the default.
func (c Connection) InputSlot() string {
	if c.ToInput == "" {
		return DefaultInputSlot
	}
	return c.ToInput
}

// Workflow is a user-defined DAG of typed nodes. It is immutable during
// execution: the executor never writes to it, so a single Workflow value can
// back concurrent runs.
type Workflow struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Nodes maps node id to the node value. Ids are unique and non-empty.
	Nodes map[string]Node `json:"-"`

	// Connections is the ordered edge list. Duplicate edges between the
	// same pair are tolerated; they add no new dependency but are retained
	// for input/output slot mapping.
	Connections []Connection `json:"connections"`
}

// NewWorkflow creates an empty workflow with the given identity.
func NewWorkflow(id, name string) *Workflow {
	return &Workflow{
		ID:    id,
		Name:  name,
		Nodes: make(map[string]Node),
	}
}

// AddNode registers a node in the workflow.
//
// Returns an error if the node is nil, its id is empty, or a node with the
// same id already exists.
func (w *Workflow) AddNode(n Node) error {
	if n == nil {
		return &ValidationError{Errors: []string{"node cannot be nil"}}
	}
	if n.ID() == "" {
		return &ValidationError{Errors: []string{"node id cannot be empty"}}
	}
	if w.Nodes == nil {
		w.Nodes = make(map[string]Node)
	}
	if _, exists := w.Nodes[n.ID()]; exists {
		return &ValidationError{Errors: []string{"duplicate node id: " + n.ID()}}
	}
	w.Nodes[n.ID()] = n
	return nil
}

// Connect appends an edge from one node's default output to another node's
// default input. Endpoint existence is checked lazily by Validate so graphs
// can be constructed in any order.
func (w *Workflow) Connect(from, to string) {
	w.Connections = append(w.Connections, Connection{From: from, To: to})
}

// AddConnection appends a fully specified edge.
func (w *Workflow) AddConnection(c Connection) {
	w.Connections = append(w.Connections, c)
}

// Validate checks the workflow's structural invariants and every node's own
// configuration. It returns all problems found, not just the first:
//
//   - id and name must be non-empty
//   - connection endpoints must reference existing nodes
//   - each node's Validate must pass (bad executionMode, missing required
//     config, ...)
//
// Cycle detection is the DependencyGraph's concern, not Validate's.
func (w *Workflow) Validate() []error {
	var errs []error
	if w.ID == "" {
		errs = append(errs, &ValidationError{Errors: []string{"workflow id is required"}})
	}
	if w.Name == "" {
		errs = append(errs, &ValidationError{Errors: []string{"workflow name is required"}})
	}
	for _, c := range w.Connections {
		if _, ok := w.Nodes[c.From]; !ok {
			errs = append(errs, &ValidationError{
				Errors: []string{fmt.Sprintf("connection references missing node %q", c.From)},
			})
		}
		if _, ok := w.Nodes[c.To]; !ok {
			errs = append(errs, &ValidationError{
				Errors: []string{fmt.Sprintf("connection references missing node %q", c.To)},
			})
		}
	}
	for id, n := range w.Nodes {
		if err := n.Validate(); err != nil {
			errs = append(errs, &NodeError{NodeID: id, Message: err.Error(), Cause: err})
		}
	}
	return errs
}
