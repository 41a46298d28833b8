package symtab

// Constants holds globally resolved constant definitions. It is built by a
// process-wide pass over every analyzed unit before per-function resolution
// starts, then frozen; phase-1 workers only read it.
type Constants struct {
	vals   map[string]Value
	frozen bool
}

// NewConstants returns an empty constant table.
func NewConstants() *Constants {
	return &Constants{vals: make(map[string]Value)}
}

// Define records a constant. Redefinition with a different literal widens to
// candidates; a constant that ever fails to resolve stays unresolved.
func (c *Constants) Define(name string, v Value, capN int) (overflow bool) {
	if c.frozen || name == "" {
		return false
	}
	existing, ok := c.vals[name]
	if !ok {
		c.vals[name] = v
		return false
	}
	merged, overflow := Union(existing, v, capN)
	c.vals[name] = merged
	return overflow
}

// Freeze marks the table read-only. Later Define calls are ignored.
func (c *Constants) Freeze() {
	c.frozen = true
}

// Lookup returns the value for a constant name.
func (c *Constants) Lookup(name string) (Value, bool) {
	v, ok := c.vals[name]
	return v, ok
}

// Len returns the number of defined constants.
func (c *Constants) Len() int {
	return len(c.vals)
}

// Table is the per-file symbol table: shared frozen constants plus the
// variable scope of the function currently being scanned. One Table is
// created per file and threaded explicitly through the scan; it is never
// shared between goroutines.
type Table struct {
	consts *Constants
	vars   map[string]Value
	capN   int
}

// NewTable creates a table over the given frozen constants.
func NewTable(consts *Constants, candidateCap int) *Table {
	if candidateCap <= 0 {
		candidateCap = DefaultCandidateCap
	}
	if consts == nil {
		consts = NewConstants()
	}
	return &Table{
		consts: consts,
		vars:   make(map[string]Value),
		capN:   candidateCap,
	}
}

// Consts returns the constant set the table resolves against.
func (t *Table) Consts() *Constants {
	return t.consts
}

// CandidateCap returns the configured candidate bound.
func (t *Table) CandidateCap() int {
	return t.capN
}

// EnterScope resets the variable scope, called when the scanner enters a new
// function or method body.
func (t *Table) EnterScope() {
	t.vars = make(map[string]Value)
}

// Assign sets a variable. Inside a conditional branch the new value unions
// with what the name already held, so downstream classification sees every
// branch's possibility; elsewhere it overwrites.
func (t *Table) Assign(name string, v Value, conditional bool) (overflow bool) {
	if name == "" {
		return false
	}
	if conditional {
		if existing, ok := t.vars[name]; ok {
			merged, ovf := Union(existing, v, t.capN)
			t.vars[name] = merged
			return ovf
		}
	}
	t.vars[name] = v
	return false
}

// Append concatenates onto a variable (the `name .= expr` form). A missing
// name starts from the empty literal.
func (t *Table) Append(name string, v Value) (overflow bool) {
	if name == "" {
		return false
	}
	existing, ok := t.vars[name]
	if !ok {
		existing = Literal("")
	}
	merged, ovf := Concat(existing, v, t.capN)
	t.vars[name] = merged
	return ovf
}

// Lookup resolves a name: function scope first, then global constants.
func (t *Table) Lookup(name string) (Value, bool) {
	if v, ok := t.vars[name]; ok {
		return v, true
	}
	return t.consts.Lookup(name)
}
