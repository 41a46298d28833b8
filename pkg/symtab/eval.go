package symtab

// TermKind discriminates expression terms produced by the source scanner.
type TermKind int

// Term kinds.
const (
	// TermLit is a string literal fragment.
	TermLit TermKind = iota
	// TermVar references a variable or constant by name.
	TermVar
	// TermOpaque is anything the scanner could not decompose (function
	// calls, arithmetic, array access). Opaque terms evaluate unresolved.
	TermOpaque
)

// Term is one operand of a string-building expression. The scanner flattens
// `'SELECT * FROM ' . $t . $suffix` into a Term slice; evaluation order is
// left to right.
type Term struct {
	Kind TermKind
	Text string // literal text or referenced name
}

// Lit builds a literal term.
func Lit(s string) Term {
	return Term{Kind: TermLit, Text: s}
}

// Ref builds a variable-reference term.
func Ref(name string) Term {
	return Term{Kind: TermVar, Text: name}
}

// Opaque builds an undecomposable term.
func Opaque() Term {
	return Term{Kind: TermOpaque}
}

// Eval folds a term list into a single Value against the table. It never
// fails: unresolvable pieces degrade per the Concat policy and the caller
// reads Partial()/IsUnresolved() to decide on diagnostics.
func Eval(terms []Term, tbl *Table) (v Value, overflow bool) {
	if len(terms) == 0 {
		return Unresolved(), false
	}
	acc := termValue(terms[0], tbl)
	for _, term := range terms[1:] {
		next := termValue(term, tbl)
		merged, ovf := Concat(acc, next, tbl.CandidateCap())
		overflow = overflow || ovf
		acc = merged
	}
	return acc, overflow
}

// termValue resolves one term.
func termValue(t Term, tbl *Table) Value {
	switch t.Kind {
	case TermLit:
		return Literal(t.Text)
	case TermVar:
		if v, ok := tbl.Lookup(t.Text); ok {
			return v
		}
		return Unresolved()
	default:
		return Unresolved()
	}
}
