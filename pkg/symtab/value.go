// Package symtab provides static value resolution for the audited sources:
// the Value tagged union, scoped symbol tables, and evaluation of
// string-building expressions into literal candidates.
package symtab

import (
	"sort"

	"github.com/leapstack-labs/crudmap/pkg/sqlscan"
)

// DefaultCandidateCap bounds the number of literal candidates a single
// Value may carry. Branch explosions beyond the cap drop excess candidates.
const DefaultCandidateCap = 32

// Kind discriminates the Value union.
type Kind int

// Value kinds.
const (
	// KindUnresolved marks a value that could not be statically evaluated.
	KindUnresolved Kind = iota
	// KindLiteral is a single statically known string.
	KindLiteral
	// KindCandidates is a bounded set of possible strings, typically from
	// conditional branches assigning distinct literals to one name.
	KindCandidates
)

// Value is the closed variant set all resolution logic operates on.
// The zero Value is Unresolved.
type Value struct {
	kind Kind
	lits []string
	// partial marks a value whose unresolved remainder was dropped because
	// the known side already carries a recognizable SQL statement head.
	// Partial values are still classified; recall beats silence.
	partial bool
	// openRight marks a partial whose dropped remainder sat at the right
	// edge. Appending more text there would fuse fragments across the hole
	// and fabricate names, so concatenation seals such a value.
	openRight bool
}

// Unresolved returns the unresolved value.
func Unresolved() Value {
	return Value{kind: KindUnresolved}
}

// Literal wraps a single known string.
func Literal(s string) Value {
	return Value{kind: KindLiteral, lits: []string{s}}
}

// Candidates builds a value from possible strings. One string collapses to a
// Literal; none collapses to Unresolved.
func Candidates(lits ...string) Value {
	uniq := dedup(lits)
	switch len(uniq) {
	case 0:
		return Unresolved()
	case 1:
		return Value{kind: KindLiteral, lits: uniq}
	default:
		return Value{kind: KindCandidates, lits: uniq}
	}
}

// Kind returns the variant tag.
func (v Value) Kind() Kind {
	return v.kind
}

// IsUnresolved reports whether nothing is statically known.
func (v Value) IsUnresolved() bool {
	return v.kind == KindUnresolved
}

// Partial reports whether an unresolved remainder was dropped.
func (v Value) Partial() bool {
	return v.partial
}

// Literals returns the known candidate strings (nil when unresolved).
func (v Value) Literals() []string {
	return v.lits
}

// Single returns the literal string when exactly one is known.
func (v Value) Single() (string, bool) {
	if v.kind == KindLiteral {
		return v.lits[0], true
	}
	return "", false
}

// markPartial returns a copy flagged as partial.
func (v Value) markPartial() Value {
	v.partial = true
	return v
}

// Concat combines two values as string concatenation. cap bounds the
// cartesian product of candidate sets; overflow reports dropped candidates.
//
// An unresolved operand normally poisons the result, with one exception:
// when the resolved side alone already begins a recognizable SQL statement,
// the literal fragment survives as a partial value so the classifier can
// still see it.
func Concat(a, b Value, capN int) (v Value, overflow bool) {
	if capN <= 0 {
		capN = DefaultCandidateCap
	}

	switch {
	case a.IsUnresolved() && b.IsUnresolved():
		return Unresolved(), false
	case b.IsUnresolved():
		// Known prefix, unknown tail.
		if anyHasStatementHead(a.lits) {
			a.partial = true
			a.openRight = true
			return a, false
		}
		return Unresolved(), false
	case a.IsUnresolved():
		// Unknown prefix: keep the tail only if it starts a statement on
		// its own.
		if anyHasStatementHead(b.lits) {
			return b.markPartial(), false
		}
		return Unresolved(), false
	}

	// A right-open hole seals the prefix: gluing b onto it would run text
	// together across the dropped remainder. The later operands are ignored
	// for table detection of this fragment.
	if a.openRight {
		return a, false
	}

	out := make([]string, 0, len(a.lits)*len(b.lits))
	for _, x := range a.lits {
		for _, y := range b.lits {
			out = append(out, x+y)
		}
	}
	out = dedup(out)
	if len(out) > capN {
		out = out[:capN]
		overflow = true
	}
	v = Candidates(out...)
	v.partial = a.partial || b.partial
	v.openRight = b.openRight
	return v, overflow
}

// Union merges the values a name may hold across conditional branches.
// Resolution is monotonic within a pass: once unresolved, a name stays
// unresolved.
func Union(a, b Value, capN int) (v Value, overflow bool) {
	if capN <= 0 {
		capN = DefaultCandidateCap
	}
	if a.IsUnresolved() || b.IsUnresolved() {
		return Unresolved(), false
	}
	out := dedup(append(append([]string{}, a.lits...), b.lits...))
	if len(out) > capN {
		out = out[:capN]
		overflow = true
	}
	v = Candidates(out...)
	v.partial = a.partial || b.partial
	v.openRight = a.openRight || b.openRight
	return v, overflow
}

// anyHasStatementHead reports whether any candidate begins a classifiable
// SQL statement.
func anyHasStatementHead(lits []string) bool {
	for _, s := range lits {
		if sqlscan.HasStatementHead(s) {
			return true
		}
	}
	return false
}

// dedup returns the strings sorted and without duplicates, keeping value
// identity deterministic.
func dedup(in []string) []string {
	if len(in) <= 1 {
		return append([]string{}, in...)
	}
	out := append([]string{}, in...)
	sort.Strings(out)
	n := 0
	for i, s := range out {
		if i == 0 || s != out[i-1] {
			out[n] = s
			n++
		}
	}
	return out[:n]
}
