// Package audit orchestrates the two analysis phases over a set of source
// units: a parallel per-file scan-and-classify pass, then a global
// call-graph propagation pass, folded into one deterministic report per
// file.
package audit

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/crudmap/pkg/crud"
	"github.com/leapstack-labs/crudmap/pkg/profile"
	"github.com/leapstack-labs/crudmap/pkg/scanner"
	"github.com/leapstack-labs/crudmap/pkg/sqlscan"
	"github.com/leapstack-labs/crudmap/pkg/symtab"
)

// DefaultWorkers caps phase-1 parallelism when Options leaves it unset.
const DefaultWorkers = 8

// Unit is one pre-read source file. The audit core never touches the
// filesystem; the walker hands it decoded text.
type Unit struct {
	Path string
	Text string
}

// Options configures one audit run. Zero values select the package
// defaults.
type Options struct {
	// ViewNames marks tables that are views, for the View annotation.
	ViewNames []string
	// ProcedureNames are call targets whose arguments contain SQL.
	ProcedureNames []string
	// CandidateCap bounds branch fan-out per resolved value.
	CandidateCap int
	// SweepCap bounds call-graph propagation sweeps.
	SweepCap int
	// StatementBudget bounds a single classified candidate, in bytes.
	StatementBudget int
	// Workers bounds phase-1 goroutines.
	Workers int
}

// Result is the outcome of one audit run.
type Result struct {
	// Files holds one report per unit, in input order.
	Files []crud.FileReport
	// Diagnostics from all phases, grouped by unit in input order.
	Diagnostics []crud.Diagnostic
	// Functions is the size of the propagated call graph.
	Functions int
	// Sweeps is how many propagation sweeps the fixed point took.
	Sweeps int
}

// Auditor runs audits with a fixed configuration.
type Auditor struct {
	opts       Options
	classifier *sqlscan.Classifier
	scanner    *scanner.Scanner
}

// New builds an Auditor from options.
func New(opts Options) *Auditor {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.CandidateCap <= 0 {
		opts.CandidateCap = symtab.DefaultCandidateCap
	}
	c := sqlscan.NewClassifier(opts.ViewNames)
	if opts.StatementBudget > 0 {
		c.SetStatementBudget(opts.StatementBudget)
	}
	return &Auditor{
		opts:       opts,
		classifier: c,
		scanner:    scanner.New(opts.ProcedureNames, opts.CandidateCap),
	}
}

// fileResult is one unit's phase-1 output.
type fileResult struct {
	topDirect *crud.Set
	topCalls  []string
	funcs     []funcResult
	sink      *crud.Sink
}

type funcResult struct {
	name   string
	direct *crud.Set
	calls  []string
}

// Run audits the units. Phase 1 scans and classifies each unit
// independently; phase 2 propagates operations across the global call graph
// and derives the per-file reports.
func (a *Auditor) Run(ctx context.Context, units []Unit) (*Result, error) {
	// Constants resolve globally before any per-file work, so a constant
	// defined in one unit is visible everywhere.
	constSink := &crud.Sink{}
	var defs []scanner.ConstDef
	for _, u := range units {
		defs = append(defs, scanner.ExtractConstants(u.Path, u.Text)...)
	}
	consts := scanner.ResolveConstants(defs, a.opts.CandidateCap, constSink)

	// Phase 1: per-file scan and classification. Each worker owns its sink
	// and result slot; nothing global mutates until the barrier.
	results := make([]*fileResult, len(units))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Workers)
	for i, u := range units {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return fmt.Errorf("audit canceled at %s: %w", u.Path, err)
			}
			results[i] = a.analyzeUnit(u, consts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{}
	diags := &crud.Sink{}
	diags.Drain(constSink)

	// Phase 2: global propagation over every function definition.
	graph := profile.NewGraph()
	for _, fr := range results {
		for _, fn := range fr.funcs {
			graph.Add(fn.name, fn.direct, fn.calls)
		}
	}
	propSink := &crud.Sink{}
	sweeps, err := graph.Propagate(ctx, a.opts.SweepCap, propSink)
	if err != nil {
		return nil, err
	}
	res.Functions = graph.Len()
	res.Sweeps = sweeps

	// A file's report covers what its own text does plus what everything it
	// invokes, at top level or from its functions, ends up doing.
	for i, fr := range results {
		report := crud.NewSet()
		report.Merge(fr.topDirect)
		for _, fn := range fr.funcs {
			if p, ok := graph.Get(fn.name); ok {
				report.Merge(p.Resolved)
			}
		}
		graph.ResolveCalls(report, fr.topCalls)
		res.Files = append(res.Files, crud.FileReport{Path: units[i].Path, Tables: report})
		diags.Drain(fr.sink)
	}
	diags.Drain(propSink)
	res.Diagnostics = diags.All()
	return res, nil
}

// analyzeUnit runs the scanner over one unit and classifies every SQL
// candidate it produced.
func (a *Auditor) analyzeUnit(u Unit, consts *symtab.Constants) *fileResult {
	sink := &crud.Sink{}
	fs := a.scanner.Scan(u.Path, u.Text, consts, sink)

	fr := &fileResult{
		topDirect: a.classifyAll(u.Path, fs.TopLevel.Candidates, sink),
		topCalls:  fs.TopLevel.Calls,
		sink:      sink,
	}
	for _, fn := range fs.Functions {
		fr.funcs = append(fr.funcs, funcResult{
			name:   fn.Name,
			direct: a.classifyAll(u.Path, fn.Candidates, sink),
			calls:  fn.Calls,
		})
	}
	return fr
}

// classifyAll folds a candidate list into one operation set. A value that
// kept several possible literals classifies each and marks every finding
// Multi.
func (a *Auditor) classifyAll(unit string, cands []scanner.Candidate, sink *crud.Sink) *crud.Set {
	out := crud.NewSet()
	for _, cand := range cands {
		lits := cand.Value.Literals()
		multi := len(lits) > 1
		for _, lit := range lits {
			set := a.classifier.Classify(unit, lit, sink)
			if multi {
				for _, op := range set.All() {
					out.Record(op.Table, op.Ops, op.Ann|crud.AnnMulti)
				}
				continue
			}
			out.Merge(set)
		}
	}
	return out
}
