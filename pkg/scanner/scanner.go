// Package scanner extracts symbol assignments, function bodies, call sites
// and SQL candidate strings from legacy scripting sources. It does not build
// a full syntax tree; it walks a token stream statement by statement, which
// keeps it total on malformed input.
package scanner

import (
	"strings"

	"github.com/leapstack-labs/crudmap/pkg/crud"
	"github.com/leapstack-labs/crudmap/pkg/sqlscan"
	"github.com/leapstack-labs/crudmap/pkg/symtab"
)

// Candidate is one string value that may contain SQL. A value with multiple
// literals reflects conditional assignment paths.
type Candidate struct {
	Value symtab.Value
}

// FuncScan collects what one function body (or the top-level code of a file)
// contributes: SQL candidates and names of functions it calls.
type FuncScan struct {
	Name       string // lowercased bare name; empty for top-level code
	Candidates []Candidate
	Calls      []string

	callSeen map[string]bool
}

func newFuncScan(name string) *FuncScan {
	return &FuncScan{Name: name, callSeen: make(map[string]bool)}
}

func (f *FuncScan) addCall(name string) {
	name = strings.ToLower(name)
	if name == "" || f.callSeen[name] {
		return
	}
	f.callSeen[name] = true
	f.Calls = append(f.Calls, name)
}

func (f *FuncScan) addCandidate(v symtab.Value) {
	f.Candidates = append(f.Candidates, Candidate{Value: v})
}

// FileScan is the scan result for one source unit.
type FileScan struct {
	Path      string
	TopLevel  *FuncScan
	Functions []*FuncScan
}

// Scanner walks source units. Procedure names identify execution calls whose
// arguments are always treated as SQL candidates.
type Scanner struct {
	procs map[string]bool
	capN  int
}

// New builds a Scanner. candidateCap bounds the branch fan-out kept per
// value; zero means symtab.DefaultCandidateCap.
func New(procNames []string, candidateCap int) *Scanner {
	if candidateCap <= 0 {
		candidateCap = symtab.DefaultCandidateCap
	}
	procs := make(map[string]bool, len(procNames))
	for _, p := range procNames {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			procs[p] = true
		}
	}
	return &Scanner{procs: procs, capN: candidateCap}
}

// Scan runs a single forward pass over one source unit. consts must already
// be frozen; per-file variables never leak into it.
func (s *Scanner) Scan(path, text string, consts *symtab.Constants, sink *crud.Sink) *FileScan {
	w := &walker{
		scanner: s,
		unit:    path,
		sink:    sink,
		toks:    lexAll(text),
		top:     newFuncScan(""),
	}
	w.cur = w.top
	w.tbl = symtab.NewTable(consts, s.capN)
	w.walk()
	return &FileScan{Path: path, TopLevel: w.top, Functions: w.funcs}
}

// frame is one open brace. Function frames switch the active collector and
// symbol table; conditional frames make assignments inside them merge
// instead of overwrite.
type frame struct {
	cond    bool
	isFunc  bool
	prevCol *FuncScan
	prevTbl *symtab.Table
}

type walker struct {
	scanner *Scanner
	unit    string
	sink    *crud.Sink

	toks []tok
	i    int

	top   *FuncScan
	cur   *FuncScan
	funcs []*FuncScan
	tbl   *symtab.Table

	frames      []frame
	pendingCond bool
	pendingFunc string
	hasPendFunc bool
}

func (w *walker) inCond() bool {
	for _, fr := range w.frames {
		if fr.cond {
			return true
		}
	}
	return false
}

// walk gathers statements delimited by ';', '{' and '}' and interprets each.
func (w *walker) walk() {
	var stmt []tok
	for w.i < len(w.toks) {
		t := w.toks[w.i]
		w.i++
		switch t.kind {
		case tkEOF:
			w.interpret(stmt, false)
			return
		case tkSemi:
			w.interpret(stmt, false)
			stmt = nil
		case tkLBrace:
			w.interpret(stmt, true)
			stmt = nil
			w.openFrame()
		case tkRBrace:
			w.interpret(stmt, false)
			stmt = nil
			w.closeFrame()
		default:
			stmt = append(stmt, t)
		}
	}
	w.interpret(stmt, false)
}

func (w *walker) openFrame() {
	fr := frame{cond: w.pendingCond}
	if w.hasPendFunc {
		fr.isFunc = true
		fr.prevCol = w.cur
		fr.prevTbl = w.tbl
		fn := newFuncScan(w.pendingFunc)
		w.funcs = append(w.funcs, fn)
		w.cur = fn
		w.tbl = symtab.NewTable(w.tbl.Consts(), w.scanner.capN)
	}
	w.frames = append(w.frames, fr)
	w.pendingCond = false
	w.hasPendFunc = false
	w.pendingFunc = ""
}

func (w *walker) closeFrame() {
	if len(w.frames) == 0 {
		return
	}
	fr := w.frames[len(w.frames)-1]
	w.frames = w.frames[:len(w.frames)-1]
	if fr.isFunc {
		w.cur = fr.prevCol
		w.tbl = fr.prevTbl
	}
}

// interpret handles one gathered statement. beforeBrace is true when the
// statement ended because a '{' follows it.
func (w *walker) interpret(stmt []tok, beforeBrace bool) {
	w.pendingCond = false
	if len(stmt) == 0 {
		return
	}

	// Function headers only set up the frame that the coming '{' opens.
	if stmt[0].kind == tkKeyword && (stmt[0].lit == "function" || stmt[0].lit == "sub") {
		if len(stmt) > 1 && stmt[1].kind == tkIdent && beforeBrace {
			w.hasPendFunc = true
			w.pendingFunc = strings.ToLower(stmt[1].lit)
		}
		return
	}

	// Control keywords: the condition itself is still scanned for calls and
	// candidates; a brace-less body becomes a one-shot conditional statement.
	if stmt[0].kind == tkKeyword && controlKeywords[stmt[0].lit] {
		if beforeBrace {
			w.pendingCond = true
		}
		rest := stmt[1:]
		if len(rest) > 0 && rest[0].kind == tkLParen {
			cond, after := splitParenGroup(rest)
			w.scanGeneric(cond, nil)
			rest = after
		}
		// Brace-less body, e.g. `else $t = 'b';`.
		if len(rest) > 0 {
			w.interpretSimple(rest, true)
		}
		return
	}

	w.interpretSimple(stmt, w.inCond())
}

// interpretSimple handles a statement that is not a header.
func (w *walker) interpretSimple(stmt []tok, conditional bool) {
	if len(stmt) == 0 {
		return
	}

	// Constant definitions are collected in the dedicated constants pass;
	// here they only need to not look like calls or assignments.
	if isDefineStmt(stmt) || (stmt[0].kind == tkKeyword && stmt[0].lit == "const") {
		return
	}

	if stmt[0].kind == tkKeyword && stmt[0].lit == "global" {
		return
	}
	if stmt[0].kind == tkKeyword && stmt[0].lit == "return" {
		w.scanGeneric(stmt[1:], nil)
		return
	}

	// $name = / .= / += / -= ...
	if len(stmt) >= 2 && stmt[0].kind == tkVar {
		switch stmt[1].kind {
		case tkAssign:
			w.assign(stmt[0].lit, stmt[2:], conditional, false)
			return
		case tkAppend:
			w.assign(stmt[0].lit, stmt[2:], conditional, true)
			return
		case tkOpAssign:
			w.tbl.Assign(stmt[0].lit, symtab.Unresolved(), conditional)
			w.scanGeneric(stmt[2:], nil)
			return
		}
	}

	w.scanGeneric(stmt, nil)
}

// assign evaluates the right-hand side and updates the symbol table. Calls
// inside the expression are still recorded.
func (w *walker) assign(name string, rhs []tok, conditional, appendOp bool) {
	w.recordCalls(rhs)
	terms := parseTerms(rhs)
	v, overflow := symtab.Eval(terms, w.tbl)
	if appendOp {
		overflow = w.tbl.Append(name, v) || overflow
	} else {
		overflow = w.tbl.Assign(name, v, conditional) || overflow
	}
	if overflow {
		w.sink.Warnf(w.unit, "variable $%s exceeded the candidate bound, excess branches dropped", name)
	}
}

// scanGeneric walks arbitrary statement tokens: records every call, pulls
// SQL candidates out of execution-call arguments and out of any string or
// variable whose value carries a statement head. skip marks token indexes
// already consumed as call arguments.
func (w *walker) scanGeneric(toks []tok, skip map[int]bool) {
	if skip == nil {
		skip = make(map[int]bool)
	}
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.kind == tkIdent && i+1 < len(toks) && toks[i+1].kind == tkLParen {
			name := strings.ToLower(t.lit)
			w.cur.addCall(name)
			// Arguments of calls nested inside an already-extracted
			// argument list were handled by that extraction.
			if w.scanner.procs[name] && !skip[i] {
				w.extractCallArgs(toks, i+1, skip)
			}
			continue
		}
		if skip[i] {
			continue
		}
		switch t.kind {
		case tkString:
			v, overflow := symtab.Eval(t.terms, w.tbl)
			if overflow {
				w.sink.Warnf(w.unit, "interpolated string exceeded the candidate bound, excess branches dropped")
			}
			w.candidateIfSQL(v)
		case tkVar:
			// Bare variable use in a non-assignment position. Only worth a
			// candidate when it resolves to SQL.
			if i > 0 && toks[i-1].kind == tkArrow {
				continue
			}
			if v, ok := w.tbl.Lookup(t.lit); ok {
				w.candidateIfSQL(v)
			}
		}
	}
}

// extractCallArgs splits the argument list opening at toks[open] into
// top-level comma-separated expressions and turns each resolved value into a
// candidate. Argument tokens are marked in skip so the generic pass does not
// classify the same strings twice.
func (w *walker) extractCallArgs(toks []tok, open int, skip map[int]bool) {
	depth := 0
	start := open + 1
	flushArg := func(end int) {
		if end <= start {
			return
		}
		arg := toks[start:end]
		for j := start; j < end; j++ {
			skip[j] = true
		}
		w.recordCalls(arg)
		v, overflow := symtab.Eval(parseTerms(arg), w.tbl)
		if overflow {
			w.sink.Warnf(w.unit, "call argument exceeded the candidate bound, excess branches dropped")
		}
		if !v.IsUnresolved() {
			w.cur.addCandidate(v)
		}
	}
	for i := open; i < len(toks); i++ {
		switch toks[i].kind {
		case tkLParen:
			depth++
		case tkRParen:
			depth--
			if depth == 0 {
				flushArg(i)
				return
			}
		case tkComma:
			if depth == 1 {
				flushArg(i)
				start = i + 1
			}
		}
	}
	flushArg(len(toks))
}

// candidateIfSQL keeps a value only when at least one of its literals opens
// with a SQL statement head.
func (w *walker) candidateIfSQL(v symtab.Value) {
	if v.IsUnresolved() {
		return
	}
	for _, lit := range v.Literals() {
		if sqlscan.HasStatementHead(lit) {
			w.cur.addCandidate(v)
			return
		}
	}
}

// recordCalls registers every name(...) occurrence inside an expression.
func (w *walker) recordCalls(toks []tok) {
	for i := 0; i+1 < len(toks); i++ {
		if toks[i].kind == tkIdent && toks[i+1].kind == tkLParen {
			name := strings.ToLower(toks[i].lit)
			w.cur.addCall(name)
			if w.scanner.procs[name] {
				// Execution call nested in an expression, e.g. a return
				// value assignment. Arguments are candidates all the same.
				w.extractCallArgs(toks, i+1, map[int]bool{})
			}
		}
	}
}

// parseTerms flattens a concatenation expression into terms. Anything that
// is not a string, variable, constant reference or number becomes an opaque
// term, which poisons resolution downstream.
func parseTerms(toks []tok) []symtab.Term {
	var terms []symtab.Term
	depth := 0
	opaqueRun := false
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if depth > 0 {
			if t.kind == tkLParen {
				depth++
			} else if t.kind == tkRParen {
				depth--
			}
			continue
		}
		switch t.kind {
		case tkString:
			terms = append(terms, t.terms...)
			opaqueRun = false
		case tkVar:
			terms = append(terms, symtab.Ref(t.lit))
			opaqueRun = false
		case tkNumber:
			terms = append(terms, symtab.Lit(t.lit))
			opaqueRun = false
		case tkIdent:
			if i+1 < len(toks) && toks[i+1].kind == tkLParen {
				// Function call result: unknown at analysis time.
				if !opaqueRun {
					terms = append(terms, symtab.Opaque())
					opaqueRun = true
				}
				continue
			}
			terms = append(terms, symtab.Ref(t.lit))
			opaqueRun = false
		case tkConcat:
			// separator only
		case tkLParen:
			depth++
		default:
			if !opaqueRun {
				terms = append(terms, symtab.Opaque())
				opaqueRun = true
			}
		}
	}
	return terms
}

// splitParenGroup splits "( ... ) rest" into the group contents and the rest.
func splitParenGroup(toks []tok) (inside, after []tok) {
	if len(toks) == 0 || toks[0].kind != tkLParen {
		return nil, toks
	}
	depth := 0
	for i, t := range toks {
		switch t.kind {
		case tkLParen:
			depth++
		case tkRParen:
			depth--
			if depth == 0 {
				return toks[1:i], toks[i+1:]
			}
		}
	}
	return toks[1:], nil
}

// isDefineStmt reports define('NAME', ...) shapes.
func isDefineStmt(stmt []tok) bool {
	return len(stmt) >= 2 &&
		stmt[0].kind == tkIdent &&
		strings.EqualFold(stmt[0].lit, "define") &&
		stmt[1].kind == tkLParen
}
