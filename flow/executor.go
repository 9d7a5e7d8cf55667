package flow

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dagflow-io/dagflow/flow/emit"
)

// Executor drives workflow runs level by level over a DependencyGraph.
//
// The executor goroutine is the single writer of the shared Context and the
// completed/failed bookkeeping. Within a level, sync nodes run inline and
// async nodes are dispatched together to a bounded worker pool and awaited
// as a barrier; their results are applied by the executor after the barrier,
// so concurrent tasks never observe each other's outputs.
//
// An Executor is safe to share across runs: all per-run state lives on the
// stack of Execute.
type Executor struct {
	workers int
	store   StateStore
	logger  *Logger
	emitter emit.Emitter
	metrics *Metrics
}

// NewExecutor creates an Executor with the given options. Defaults: 4
// workers, no persistence (NopStore), info-level logger, no emitter.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		workers: DefaultMaxWorkers,
		store:   NewNopStore(),
		logger:  NewLogger(LevelInfo),
		emitter: emit.NewNullEmitter(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Logger returns the executor's logger, for export and inspection.
func (e *Executor) Logger() *Logger { return e.logger }

// Store returns the attached StateStore.
func (e *Executor) Store() StateStore { return e.store }

// run carries the mutable state of one workflow run.
type run struct {
	exec      *Execution
	wf        *Workflow
	graph     *DependencyGraph
	state     *Context
	completed map[string]bool
	failed    map[string]bool
	outputs   map[string]any

	// cancelRequested is set once an external failed("cancelled") record is
	// observed in the store; persist then stops overwriting it.
	cancelRequested bool

	// persistWarned limits the store-unavailable warning to one line.
	persistWarned bool
}

// Execute runs a workflow to a terminal state and returns its Execution.
//
// The returned Execution is always terminal: completed, or failed with the
// reason in Error. Expected failure modes (validation errors, node
// failures, cancellation) never surface as a Go error; only the Execution
// record reports them.
func (e *Executor) Execute(ctx context.Context, wf *Workflow, initial map[string]any) *Execution {
	exec := NewExecution(wf.ID, initial)
	r := &run{
		exec:      exec,
		wf:        wf,
		graph:     NewDependencyGraph(wf),
		state:     NewContext(initial),
		completed: make(map[string]bool),
		failed:    make(map[string]bool),
		outputs:   make(map[string]any),
	}
	e.persist(ctx, r)

	var problems []string
	for _, err := range wf.Validate() {
		problems = append(problems, err.Error())
	}
	for _, err := range r.graph.Validate() {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		msg := strings.Join(problems, "; ")
		_ = exec.Fail(msg)
		e.logger.Log(LevelError, "workflow validation failed", map[string]any{"errors": problems}, exec.ID, "")
		e.finish(ctx, r)
		return exec
	}

	_ = exec.Start()
	e.persist(ctx, r)
	if err := e.store.AddToRunning(ctx, exec.ID); err != nil {
		e.warnPersist(r, err)
	}
	e.logger.Log(LevelInfo, "workflow started", map[string]any{"workflow": wf.Name}, exec.ID, "")
	e.emitter.Emit(emit.Event{
		ExecutionID: exec.ID, WorkflowID: wf.ID, Level: -1, Msg: "workflow_start",
	})

	for level, group := range r.graph.ParallelGroups() {
		if e.checkCancelled(ctx, r, level) {
			return exec
		}
		if m := e.metrics; m != nil {
			m.SetLevelSize(len(group))
		}

		var syncIDs, asyncIDs []string
		for _, id := range group {
			if ModeOf(wf.Nodes[id]) == ModeAsync {
				asyncIDs = append(asyncIDs, id)
			} else {
				syncIDs = append(syncIDs, id)
			}
		}

		for _, id := range syncIDs {
			node := wf.Nodes[id]
			if !r.graph.CanExecute(id, r.completed, r.failed) {
				e.skip(r, node, level)
				continue
			}
			res, dur := e.invoke(ctx, r, node, level)
			e.apply(ctx, r, node, res, dur, level)
		}

		e.runAsync(ctx, r, asyncIDs, level)

		if fatal := r.fatalFailures(wf); len(fatal) > 0 {
			_ = exec.Fail("Some nodes failed: " + strings.Join(fatal, ", "))
			e.logger.Log(LevelError, "workflow failed", map[string]any{"failed": fatal}, exec.ID, "")
			e.finish(ctx, r)
			return exec
		}
	}

	_ = exec.Complete()
	e.logger.Log(LevelInfo, "workflow completed", map[string]any{
		"nodes":    len(r.completed),
		"duration": exec.Duration().String(),
	}, exec.ID, "")
	e.finish(ctx, r)
	return exec
}

// runAsync dispatches the ready async nodes of a level to the worker pool,
// waits for all of them (the level barrier), then applies their results in
// a deterministic order. Inputs, rendered configs, and context snapshots
// are captured before dispatch so workers share nothing.
func (e *Executor) runAsync(ctx context.Context, r *run, ids []string, level int) {
	type outcome struct {
		id  string
		res Result
		dur time.Duration
	}

	var ready []string
	for _, id := range ids {
		if !r.graph.CanExecute(id, r.completed, r.failed) {
			e.skip(r, r.wf.Nodes[id], level)
			continue
		}
		ready = append(ready, id)
	}
	if len(ready) == 0 {
		return
	}

	results := make(chan outcome, len(ready))
	sem := make(chan struct{}, e.workers)
	var wg sync.WaitGroup

	for _, id := range ready {
		node := r.wf.Nodes[id]
		inv, err := e.prepare(r, node)
		if err != nil {
			results <- outcome{id: id, res: syntheticFailure(err.Error())}
			continue
		}
		e.emitter.Emit(emit.Event{
			ExecutionID: r.exec.ID, WorkflowID: r.wf.ID, NodeID: id, Level: level,
			Msg: "node_start", Meta: map[string]any{"mode": string(ModeAsync)},
		})

		wg.Add(1)
		go func(id string, node Node, inv Invocation) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			started := time.Now()
			results <- outcome{id: id, res: e.observeExecute(ctx, node, inv), dur: time.Since(started)}
		}(id, node, inv)
	}

	wg.Wait()
	close(results)

	byID := make(map[string]outcome, len(ready))
	for out := range results {
		byID[out.id] = out
	}
	applied := make([]string, 0, len(byID))
	for id := range byID {
		applied = append(applied, id)
	}
	sort.Strings(applied)
	for _, id := range applied {
		e.apply(ctx, r, r.wf.Nodes[id], byID[id].res, byID[id].dur, level)
	}
}

// invoke runs one sync node inline: assemble input, render templates,
// snapshot the context, execute.
func (e *Executor) invoke(ctx context.Context, r *run, node Node, level int) (Result, time.Duration) {
	inv, err := e.prepare(r, node)
	if err != nil {
		return syntheticFailure(err.Error()), 0
	}
	e.emitter.Emit(emit.Event{
		ExecutionID: r.exec.ID, WorkflowID: r.wf.ID, NodeID: node.ID(), Level: level,
		Msg: "node_start", Meta: map[string]any{"mode": string(ModeSync)},
	})
	started := time.Now()
	res := e.observeExecute(ctx, node, inv)
	return res, time.Since(started)
}

// observeExecute runs one node and keeps the inflight gauge accurate for
// the duration of the call.
func (e *Executor) observeExecute(ctx context.Context, node Node, inv Invocation) Result {
	if m := e.metrics; m != nil {
		m.IncInflight()
		defer m.DecInflight()
	}
	return safeExecute(ctx, node, inv)
}

// prepare builds the Invocation for a node from the current run state.
func (e *Executor) prepare(r *run, node Node) (Invocation, error) {
	input := e.assembleInput(r, node)
	snap, err := r.state.Snapshot()
	if err != nil {
		return Invocation{}, fmt.Errorf("context snapshot failed: %w", err)
	}
	cfg, _ := r.state.ProcessTemplates(node.Config()).(map[string]any)
	if cfg == nil {
		cfg = make(map[string]any)
	}
	return Invocation{State: snap, Input: input, Config: cfg}, nil
}

// assembleInput computes a node's input map, keyed by the upstream node id
// that produced each value.
//
// For every connection targeting the node whose producer has published an
// output: when fromOutput names a non-default slot and the output is a map
// containing that key, the slot value is passed; otherwise the whole output
// is passed. A later connection from the same producer overwrites an
// earlier one. Finally an explicit nodes.<id>.input placed in the context
// by the caller is merged over the computed map.
func (e *Executor) assembleInput(r *run, node Node) map[string]any {
	input := make(map[string]any)
	for _, conn := range r.wf.Connections {
		if conn.To != node.ID() {
			continue
		}
		out, ok := r.outputs[conn.From]
		if !ok {
			continue
		}
		if slot := conn.OutputSlot(); slot != DefaultOutputSlot {
			if m, ok := out.(map[string]any); ok {
				if v, ok := m[slot]; ok {
					input[conn.From] = v
					continue
				}
			}
		}
		input[conn.From] = out
	}
	if v, ok := r.state.Get("nodes." + node.ID() + ".input"); ok {
		if m, ok := v.(map[string]any); ok {
			for k, val := range m {
				input[k] = val
			}
		}
	}
	return input
}

// apply is the single-writer result handler shared by the sync and async
// paths. It merges node logs, applies the failure policy, publishes the
// output, and persists the updated execution.
func (e *Executor) apply(ctx context.Context, r *run, node Node, res Result, dur time.Duration, level int) {
	id := node.ID()
	r.exec.AppendNodeLogs(id, res.Logs)

	if !res.Success {
		meta := map[string]any{"error": res.Error, "status": "error"}
		e.emitter.Emit(emit.Event{
			ExecutionID: r.exec.ID, WorkflowID: r.wf.ID, NodeID: id, Level: level,
			Msg: "node_error", Meta: meta,
		})
		if m := e.metrics; m != nil {
			m.RecordNode(node.Type(), "error", dur)
		}
		if StopOnFail(node) {
			r.failed[id] = true
			e.logger.Log(LevelError, "node failed", map[string]any{"error": res.Error}, r.exec.ID, id)
		} else {
			// Non-fatal: the workflow proceeds, but no output is published,
			// so dependents receive no input from this node.
			r.completed[id] = true
			e.logger.Log(LevelWarning, "node failed (non-fatal)", map[string]any{"error": res.Error}, r.exec.ID, id)
		}
		r.exec.SetContext(r.state.Data())
		e.persist(ctx, r)
		return
	}

	if res.Data != nil {
		r.state.Set("nodes."+id+".output", res.Data)
		r.outputs[id] = res.Data
	}
	r.completed[id] = true
	e.logger.Log(LevelInfo, "node completed", nil, r.exec.ID, id)
	e.emitter.Emit(emit.Event{
		ExecutionID: r.exec.ID, WorkflowID: r.wf.ID, NodeID: id, Level: level,
		Msg: "node_end", Meta: map[string]any{"status": "success"},
	})
	if m := e.metrics; m != nil {
		m.RecordNode(node.Type(), "success", dur)
	}
	r.exec.SetContext(r.state.Data())
	e.persist(ctx, r)
}

// skip records a node that can never run because an upstream dependency
// failed fatally.
func (e *Executor) skip(r *run, node Node, level int) {
	e.logger.Log(LevelDebug, "node skipped: dependencies not satisfied", nil, r.exec.ID, node.ID())
	e.emitter.Emit(emit.Event{
		ExecutionID: r.exec.ID, WorkflowID: r.wf.ID, NodeID: node.ID(), Level: level,
		Msg: "node_skipped",
	})
	if m := e.metrics; m != nil {
		m.RecordSkipped()
	}
}

// checkCancelled honors cancellation at a level boundary: either the Go
// context was cancelled or an external caller flipped the persisted record
// to failed("cancelled") through the StateStore. In-flight levels always
// finish first; there is no mid-node interruption.
func (e *Executor) checkCancelled(ctx context.Context, r *run, level int) bool {
	cancelled := ctx.Err() != nil || r.cancelRequested || e.storeCancelled(ctx, r)
	if !cancelled {
		return false
	}
	_ = r.exec.Fail(Cancelled)
	e.logger.Log(LevelWarning, "workflow cancelled", map[string]any{"level": level}, r.exec.ID, "")
	e.finish(ctx, r)
	return true
}

// finish persists the terminal execution, updates the running set and the
// per-workflow history, and emits the workflow_end event.
func (e *Executor) finish(ctx context.Context, r *run) {
	e.persist(ctx, r)
	if err := e.store.RemoveFromRunning(ctx, r.exec.ID); err != nil {
		e.warnPersist(r, err)
	}
	if err := e.store.AppendHistory(ctx, r.wf.ID, r.exec); err != nil {
		e.warnPersist(r, err)
	}
	status := r.exec.CurrentStatus()
	meta := map[string]any{"status": string(status)}
	if status == StatusFailed {
		meta["error"] = r.exec.Error
	}
	e.emitter.Emit(emit.Event{
		ExecutionID: r.exec.ID, WorkflowID: r.wf.ID, Level: -1, Msg: "workflow_end", Meta: meta,
	})
	if m := e.metrics; m != nil {
		m.RecordRun(status)
	}
}

// storeCancelled reads the persisted record and reports whether an
// external caller flipped it to failed("cancelled"). The observation
// sticks on the run state.
func (e *Executor) storeCancelled(ctx context.Context, r *run) bool {
	if r.cancelRequested {
		return true
	}
	if cur, err := e.store.GetExecution(ctx, r.exec.ID); err == nil {
		if cur.CurrentStatus() == StatusFailed && cur.Error == Cancelled {
			r.cancelRequested = true
		}
	}
	return r.cancelRequested
}

// persist upserts the execution record, degrading to a single warning when
// the store is unavailable. Once an external cancellation is observed the
// still-running record is not written back, so the cancelled state in the
// store survives until the executor reaches the level boundary and adopts
// it.
func (e *Executor) persist(ctx context.Context, r *run) {
	if e.storeCancelled(ctx, r) && r.exec.CurrentStatus() == StatusRunning {
		return
	}
	if err := e.store.SaveExecution(ctx, r.exec); err != nil {
		e.warnPersist(r, err)
	}
}

func (e *Executor) warnPersist(r *run, err error) {
	if r.persistWarned {
		return
	}
	r.persistWarned = true
	e.logger.Log(LevelWarning, "state store unavailable, continuing without persistence",
		map[string]any{"error": err.Error()}, r.exec.ID, "")
}

// fatalFailures returns the failed node ids whose policy stops the
// workflow, sorted for a stable error message.
func (r *run) fatalFailures(wf *Workflow) []string {
	var fatal []string
	for id := range r.failed {
		if StopOnFail(wf.Nodes[id]) {
			fatal = append(fatal, id)
		}
	}
	sort.Strings(fatal)
	return fatal
}

// safeExecute invokes a node and converts a panic into a synthetic failed
// Result so the failure policy can run.
func safeExecute(ctx context.Context, node Node, inv Invocation) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			res = Result{
				Success: false,
				Error:   fmt.Sprintf("%v", rec),
				Logs: []NodeLog{{
					Level:     "error",
					Message:   fmt.Sprintf("panic: %v\n%s", rec, debug.Stack()),
					Timestamp: time.Now(),
				}},
			}
		}
	}()
	return node.Execute(ctx, inv)
}

// syntheticFailure wraps an executor-side preparation error in the same
// Result shape a failing node produces.
func syntheticFailure(message string) Result {
	return Result{
		Success: false,
		Error:   message,
		Logs: []NodeLog{{
			Level:     "error",
			Message:   message,
			Timestamp: time.Now(),
		}},
	}
}
