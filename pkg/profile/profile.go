// Package profile builds the per-function call graph and propagates table
// operations across it to a fixed point, so that calling a function that
// writes a table counts as writing that table.
package profile

import (
	"context"
	"fmt"
	"sort"

	"github.com/leapstack-labs/crudmap/pkg/crud"
)

// DefaultSweepCap bounds fixed-point sweeps. Propagation over n functions
// settles in at most the longest acyclic call-chain length; the cap only
// guards degenerate graphs.
const DefaultSweepCap = 20

// Profile is one function's contribution to the audit: the operations its
// own body performs and the functions it calls. Resolved is filled by
// Propagate and additionally carries everything reachable through calls.
type Profile struct {
	Name     string
	Direct   *crud.Set
	Calls    []string
	Resolved *crud.Set
}

// Graph is the global call graph. Function names share one namespace across
// all scanned units, matching the flat call semantics of the audited
// sources; defining the same name twice merges the definitions.
type Graph struct {
	funcs map[string]*Profile
	order []string
}

// NewGraph creates an empty call graph.
func NewGraph() *Graph {
	return &Graph{funcs: make(map[string]*Profile)}
}

// Add registers a function's direct operations and outgoing calls. A name
// seen before widens: direct sets merge and call lists union.
func (g *Graph) Add(name string, direct *crud.Set, calls []string) *Profile {
	if direct == nil {
		direct = crud.NewSet()
	}
	p, ok := g.funcs[name]
	if !ok {
		p = &Profile{Name: name, Direct: crud.NewSet()}
		g.funcs[name] = p
		g.order = append(g.order, name)
	}
	p.Direct.Merge(direct)
	seen := make(map[string]bool, len(p.Calls))
	for _, c := range p.Calls {
		seen[c] = true
	}
	for _, c := range calls {
		if !seen[c] {
			seen[c] = true
			p.Calls = append(p.Calls, c)
		}
	}
	return p
}

// Get returns a function profile by name.
func (g *Graph) Get(name string) (*Profile, bool) {
	p, ok := g.funcs[name]
	return p, ok
}

// Len returns the number of functions in the graph.
func (g *Graph) Len() int {
	return len(g.funcs)
}

// Funcs returns all profiles in registration order.
func (g *Graph) Funcs() []*Profile {
	out := make([]*Profile, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.funcs[name])
	}
	return out
}

// Names returns all function names sorted, for deterministic reporting.
func (g *Graph) Names() []string {
	out := append([]string{}, g.order...)
	sort.Strings(out)
	return out
}

// Propagate computes each function's resolved operation set: its direct
// operations plus the resolved operations of everything it calls. The sets
// only ever grow, so iterating to a fixed point terminates on cyclic and
// recursive graphs too; sweepCap bounds the iteration regardless. Callees
// with no known definition are dropped from the graph, reported once each.
func (g *Graph) Propagate(ctx context.Context, sweepCap int, sink *crud.Sink) (int, error) {
	if sweepCap <= 0 {
		sweepCap = DefaultSweepCap
	}

	// Calls only reference known functions from here on; the graph is the
	// first place the whole function set exists, so dangling edges are
	// pruned now rather than skipped on every sweep.
	dropped := make(map[string]bool)
	for _, p := range g.Funcs() {
		p.Resolved = p.Direct.Clone()
		kept := make([]string, 0, len(p.Calls))
		for _, callee := range p.Calls {
			if _, ok := g.funcs[callee]; ok {
				kept = append(kept, callee)
				continue
			}
			if sink != nil && !dropped[callee] {
				dropped[callee] = true
				sink.Infof("", "call target %s has no known definition, dropped", callee)
			}
		}
		p.Calls = kept
	}

	sweeps := 0
	for sweeps < sweepCap {
		if err := ctx.Err(); err != nil {
			return sweeps, fmt.Errorf("propagation canceled: %w", err)
		}
		sweeps++
		changed := false
		for _, p := range g.Funcs() {
			before := p.Resolved.Clone()
			for _, callee := range p.Calls {
				p.Resolved.Merge(g.funcs[callee].Resolved)
			}
			if !p.Resolved.Equal(before) {
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return sweeps, nil
}

// ResolveCalls merges the resolved sets of the named functions into dst.
// Top-level file code is not itself a graph node; the audit uses this to
// fold a file's outgoing calls into its report.
func (g *Graph) ResolveCalls(dst *crud.Set, calls []string) {
	for _, callee := range calls {
		if p, ok := g.funcs[callee]; ok && p.Resolved != nil {
			dst.Merge(p.Resolved)
		}
	}
}
