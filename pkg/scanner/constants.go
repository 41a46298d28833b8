package scanner

import (
	"strings"

	"github.com/leapstack-labs/crudmap/pkg/crud"
	"github.com/leapstack-labs/crudmap/pkg/symtab"
)

// ConstDef is one constant definition found in a source unit, unevaluated.
type ConstDef struct {
	Unit  string
	Name  string
	Terms []symtab.Term
}

// ExtractConstants pulls define('NAME', expr) and const NAME = expr
// definitions out of one source unit. It runs before any per-file scan so
// that constants defined anywhere in the tree resolve everywhere.
func ExtractConstants(path, text string) []ConstDef {
	toks := lexAll(text)
	var defs []ConstDef
	for i := 0; i < len(toks); i++ {
		t := toks[i]

		// define ( 'NAME' , expr )
		if t.kind == tkIdent && strings.EqualFold(t.lit, "define") &&
			i+3 < len(toks) &&
			toks[i+1].kind == tkLParen &&
			toks[i+2].kind == tkString &&
			toks[i+3].kind == tkComma {
			name := toks[i+2].lit
			expr, end := argUntilClose(toks, i+4)
			if name != "" && len(expr) > 0 {
				defs = append(defs, ConstDef{Unit: path, Name: name, Terms: parseTerms(expr)})
			}
			i = end
			continue
		}

		// const NAME = expr ;
		if t.kind == tkKeyword && t.lit == "const" &&
			i+2 < len(toks) &&
			toks[i+1].kind == tkIdent &&
			toks[i+2].kind == tkAssign {
			name := toks[i+1].lit
			expr, end := exprUntilSemi(toks, i+3)
			if len(expr) > 0 {
				defs = append(defs, ConstDef{Unit: path, Name: name, Terms: parseTerms(expr)})
			}
			i = end
			continue
		}
	}
	return defs
}

// resolvePasses bounds the constant fixed point. Constants referencing
// constants from units scanned later settle within a couple of sweeps.
const resolvePasses = 4

// ResolveConstants evaluates the collected definitions into a frozen
// constant set. Definitions may reference each other across units in any
// order; evaluation repeats until the set is stable or the pass bound hits.
// Redefinitions of the same name widen into candidate sets.
func ResolveConstants(defs []ConstDef, capN int, sink *crud.Sink) *symtab.Constants {
	if capN <= 0 {
		capN = symtab.DefaultCandidateCap
	}
	consts := symtab.NewConstants()
	prev := ""
	for pass := 0; pass < resolvePasses; pass++ {
		next := symtab.NewConstants()
		tbl := symtab.NewTable(consts, capN)
		for _, def := range defs {
			v, _ := symtab.Eval(def.Terms, tbl)
			next.Define(def.Name, v, capN)
		}
		consts = next
		sig := constSignature(defs, consts)
		if sig == prev {
			break
		}
		prev = sig
	}
	if sink != nil {
		reported := make(map[string]bool)
		for _, def := range defs {
			if reported[def.Name] {
				continue
			}
			if v, ok := consts.Lookup(def.Name); ok && v.IsUnresolved() {
				reported[def.Name] = true
				sink.Infof(def.Unit, "constant %s did not resolve to a literal", def.Name)
			}
		}
	}
	consts.Freeze()
	return consts
}

// constSignature fingerprints current resolution state for the fixed point.
func constSignature(defs []ConstDef, consts *symtab.Constants) string {
	var b strings.Builder
	for _, def := range defs {
		v, ok := consts.Lookup(def.Name)
		if !ok {
			continue
		}
		b.WriteString(def.Name)
		b.WriteByte('=')
		for _, lit := range v.Literals() {
			b.WriteString(lit)
			b.WriteByte('\x1f')
		}
		if v.IsUnresolved() {
			b.WriteByte('?')
		}
		b.WriteByte('\x1e')
	}
	return b.String()
}

// argUntilClose collects tokens from start up to the paren that closes the
// surrounding call, returning the expression and the index of that paren.
func argUntilClose(toks []tok, start int) ([]tok, int) {
	depth := 1
	for i := start; i < len(toks); i++ {
		switch toks[i].kind {
		case tkLParen:
			depth++
		case tkRParen:
			depth--
			if depth == 0 {
				return toks[start:i], i
			}
		case tkEOF:
			return toks[start:i], i
		}
	}
	return toks[start:], len(toks)
}

// exprUntilSemi collects tokens up to the next top-level semicolon.
func exprUntilSemi(toks []tok, start int) ([]tok, int) {
	depth := 0
	for i := start; i < len(toks); i++ {
		switch toks[i].kind {
		case tkLParen:
			depth++
		case tkRParen:
			depth--
		case tkSemi:
			if depth <= 0 {
				return toks[start:i], i
			}
		case tkEOF:
			return toks[start:i], i
		}
	}
	return toks[start:], len(toks)
}
