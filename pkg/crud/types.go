// Package crud defines the data model shared by the audit pipeline:
// per-table operation sets, annotations, per-file reports, and diagnostics.
//
// Merging is a bitwise OR over operations plus a set union over annotations.
// It is idempotent and commutative, so results can be merged from many
// sources in any order.
package crud

import "strings"

// OpSet is a bit set of the four tracked operation kinds.
type OpSet uint8

// Operation kinds.
const (
	OpCreate OpSet = 1 << iota
	OpRead
	OpUpdate
	OpDelete
)

// Has returns true if all operations in other are present.
func (s OpSet) Has(other OpSet) bool {
	return s&other == other
}

// Union returns the combination of both sets.
func (s OpSet) Union(other OpSet) OpSet {
	return s | other
}

// Empty returns true if no operation is set.
func (s OpSet) Empty() bool {
	return s == 0
}

// String renders the set in fixed CRUD order, with "-" for absent kinds.
// Example: OpCreate|OpRead -> "CR--".
func (s OpSet) String() string {
	var b strings.Builder
	for _, f := range []struct {
		op OpSet
		ch byte
	}{
		{OpCreate, 'C'},
		{OpRead, 'R'},
		{OpUpdate, 'U'},
		{OpDelete, 'D'},
	} {
		if s.Has(f.op) {
			b.WriteByte(f.ch)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

// Annotation is a bit set of classification tags attached to a table finding.
type Annotation uint8

// Annotation tags.
const (
	// AnnView marks a table present in the externally supplied view list.
	AnnView Annotation = 1 << iota
	// AnnTemp marks a temporary table (CREATE TEMP TABLE, SELECT INTO TEMP).
	AnnTemp
	// AnnMulti marks a table resolved from a multi-candidate value.
	AnnMulti
	// AnnCte marks an ephemeral relation introduced by a WITH clause.
	AnnCte
)

// Has returns true if all tags in other are present.
func (a Annotation) Has(other Annotation) bool {
	return a&other == other
}

// Names returns the set as sorted tag names.
func (a Annotation) Names() []string {
	var names []string
	if a.Has(AnnCte) {
		names = append(names, "cte")
	}
	if a.Has(AnnMulti) {
		names = append(names, "multi")
	}
	if a.Has(AnnTemp) {
		names = append(names, "temp")
	}
	if a.Has(AnnView) {
		names = append(names, "view")
	}
	return names
}

// String renders the tags comma-joined.
func (a Annotation) String() string {
	return strings.Join(a.Names(), ",")
}

// TableOp is the accumulated finding for one table.
type TableOp struct {
	Table string
	Ops   OpSet
	Ann   Annotation
}

// Set is an ordered collection of per-table findings. Iteration order is
// first-seen, which keeps downstream reports stable; the merge itself is
// order-independent.
type Set struct {
	order []string
	ops   map[string]*TableOp
}

// NewSet returns an empty finding set.
func NewSet() *Set {
	return &Set{ops: make(map[string]*TableOp)}
}

// normalizeTable is the identity used for merging findings.
func normalizeTable(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Record merges one finding into the set.
func (s *Set) Record(table string, ops OpSet, ann Annotation) {
	if table == "" {
		return
	}
	key := normalizeTable(table)
	if key == "" {
		return
	}
	entry, ok := s.ops[key]
	if !ok {
		entry = &TableOp{Table: table}
		s.ops[key] = entry
		s.order = append(s.order, key)
	}
	entry.Ops |= ops
	entry.Ann |= ann
}

// Merge folds every finding of other into s. Merging the same set twice is a
// no-op.
func (s *Set) Merge(other *Set) {
	if other == nil {
		return
	}
	for _, key := range other.order {
		op := other.ops[key]
		s.Record(op.Table, op.Ops, op.Ann)
	}
}

// Len returns the number of distinct tables.
func (s *Set) Len() int {
	return len(s.order)
}

// Get returns the finding for a table, if present.
func (s *Set) Get(table string) (TableOp, bool) {
	entry, ok := s.ops[normalizeTable(table)]
	if !ok {
		return TableOp{}, false
	}
	return *entry, true
}

// All returns the findings in first-seen order.
func (s *Set) All() []TableOp {
	out := make([]TableOp, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, *s.ops[key])
	}
	return out
}

// Equal compares contents ignoring iteration order.
func (s *Set) Equal(other *Set) bool {
	if s.Len() != other.Len() {
		return false
	}
	for key, op := range s.ops {
		otherOp, ok := other.ops[key]
		if !ok || op.Ops != otherOp.Ops || op.Ann != otherOp.Ann {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the set.
func (s *Set) Clone() *Set {
	out := NewSet()
	out.Merge(s)
	return out
}

// FileReport is the per-file audit result handed to the reporting layer.
// It is immutable once produced.
type FileReport struct {
	Path   string
	Tables *Set
}
