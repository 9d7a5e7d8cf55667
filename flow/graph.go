package flow

import (
	"fmt"
	"sort"
)

// DependencyGraph is the executable view of a Workflow, derived at run
// start. It records direct predecessors and successors per node, assigns a
// topological level to every reachable node via BFS, and partitions the
// nodes into parallel groups by level.
//
// Level 0 holds the start nodes (empty dependency set); a dependent's level
// is assigned only after all of its dependencies are leveled, so
// level = 1 + max(level of deps). Nodes the BFS cannot reach participate in
// a cycle and make the graph invalid.
type DependencyGraph struct {
	wf *Workflow

	deps       map[string][]string
	dependents map[string][]string

	// depSet mirrors deps for O(1) membership checks; duplicate connections
	// between the same pair are retained on the Workflow for slot mapping
	// but add no new semantic dependency here.
	depSet map[string]map[string]bool

	levels map[string]int
	groups [][]string
}

// NewDependencyGraph builds the adjacency and level structure for a
// workflow. Construction never fails; call Validate to learn about cycles.
func NewDependencyGraph(wf *Workflow) *DependencyGraph {
	g := &DependencyGraph{
		wf:         wf,
		deps:       make(map[string][]string, len(wf.Nodes)),
		dependents: make(map[string][]string, len(wf.Nodes)),
		depSet:     make(map[string]map[string]bool, len(wf.Nodes)),
		levels:     make(map[string]int, len(wf.Nodes)),
	}

	for id := range wf.Nodes {
		g.deps[id] = nil
		g.dependents[id] = nil
		g.depSet[id] = make(map[string]bool)
	}

	for _, c := range wf.Connections {
		if _, ok := wf.Nodes[c.From]; !ok {
			continue
		}
		if _, ok := wf.Nodes[c.To]; !ok {
			continue
		}
		if g.depSet[c.To][c.From] {
			continue
		}
		g.depSet[c.To][c.From] = true
		g.deps[c.To] = append(g.deps[c.To], c.From)
		g.dependents[c.From] = append(g.dependents[c.From], c.To)
	}

	g.assignLevels()
	return g
}

// assignLevels runs the topological BFS. A node is enqueued once every one
// of its dependencies has been leveled.
func (g *DependencyGraph) assignLevels() {
	type queued struct {
		id    string
		level int
	}

	var queue []queued
	for _, id := range g.StartNodes() {
		queue = append(queue, queued{id: id, level: 0})
	}

	seen := make(map[string]bool, len(g.deps))
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur.id] {
			continue
		}
		seen[cur.id] = true
		g.levels[cur.id] = cur.level

		for _, dep := range g.dependents[cur.id] {
			if seen[dep] {
				continue
			}
			ready := true
			next := cur.level
			for _, d := range g.deps[dep] {
				lvl, ok := g.levels[d]
				if !ok {
					ready = false
					break
				}
				if lvl > next {
					next = lvl
				}
			}
			if ready {
				queue = append(queue, queued{id: dep, level: next + 1})
			}
		}
	}

	maxLevel := -1
	for _, lvl := range g.levels {
		if lvl > maxLevel {
			maxLevel = lvl
		}
	}
	g.groups = make([][]string, maxLevel+1)
	for id, lvl := range g.levels {
		g.groups[lvl] = append(g.groups[lvl], id)
	}
	for _, group := range g.groups {
		sort.Strings(group)
	}
}

// Validate reports every structural problem that makes the graph
// unexecutable. Each node on a cycle yields a "cycle involving <id>" error;
// nodes left unleveled for any other reason are reported as unreachable.
func (g *DependencyGraph) Validate() []error {
	var errs []error

	inCycle := g.detectCycles()
	cycleIDs := make([]string, 0, len(inCycle))
	for id := range inCycle {
		cycleIDs = append(cycleIDs, id)
	}
	sort.Strings(cycleIDs)
	for _, id := range cycleIDs {
		errs = append(errs, fmt.Errorf("cycle involving %s", id))
	}

	var unreachable []string
	for id := range g.deps {
		if _, ok := g.levels[id]; !ok && !inCycle[id] {
			unreachable = append(unreachable, id)
		}
	}
	sort.Strings(unreachable)
	for _, id := range unreachable {
		errs = append(errs, fmt.Errorf("unreachable node %s", id))
	}

	return errs
}

// detectCycles runs an auxiliary DFS with a recursion set and returns the
// ids found on a back edge path.
func (g *DependencyGraph) detectCycles() map[string]bool {
	const (
		white = 0 // unvisited
		grey  = 1 // on the recursion stack
		black = 2 // fully explored
	)

	color := make(map[string]int, len(g.deps))
	inCycle := make(map[string]bool)

	var stack []string
	var visit func(id string)
	visit = func(id string) {
		color[id] = grey
		stack = append(stack, id)
		for _, next := range g.dependents[id] {
			switch color[next] {
			case white:
				visit(next)
			case grey:
				// Back edge: everything on the stack from next onward cycles.
				for i := len(stack) - 1; i >= 0; i-- {
					inCycle[stack[i]] = true
					if stack[i] == next {
						break
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
	}

	ids := make([]string, 0, len(g.deps))
	for id := range g.deps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if color[id] == white {
			visit(id)
		}
	}
	return inCycle
}

// Deps returns the direct predecessors of a node.
func (g *DependencyGraph) Deps(id string) []string {
	return g.deps[id]
}

// Dependents returns the direct successors of a node.
func (g *DependencyGraph) Dependents(id string) []string {
	return g.dependents[id]
}

// Level returns the assigned BFS level for a node, if it was reachable.
func (g *DependencyGraph) Level(id string) (int, bool) {
	lvl, ok := g.levels[id]
	return lvl, ok
}

// ParallelGroups returns the node ids partitioned by level, in ascending
// level order. Ids within a group are sorted for deterministic iteration,
// though intra-level execution order carries no guarantee.
func (g *DependencyGraph) ParallelGroups() [][]string {
	out := make([][]string, len(g.groups))
	for i, group := range g.groups {
		out[i] = append([]string(nil), group...)
	}
	return out
}

// StartNodes returns the ids with no dependencies, sorted.
func (g *DependencyGraph) StartNodes() []string {
	var out []string
	for id, deps := range g.deps {
		if len(deps) == 0 {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// EndNodes returns the ids with no dependents, sorted.
func (g *DependencyGraph) EndNodes() []string {
	var out []string
	for id, deps := range g.dependents {
		if len(deps) == 0 {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// CanExecute reports whether a node is ready: every dependency is in
// completed and none is in failed. Nodes downstream of a fatal failure never
// satisfy this predicate and are skipped.
func (g *DependencyGraph) CanExecute(id string, completed, failed map[string]bool) bool {
	for _, dep := range g.deps[id] {
		if failed[dep] || !completed[dep] {
			return false
		}
	}
	return true
}
