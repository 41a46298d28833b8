package crud

import "fmt"

// Severity classifies a diagnostic. Nothing in the analysis core is fatal;
// every failure degrades to a diagnostic plus reduced recall.
type Severity int

// Severity levels.
const (
	SeverityInfo Severity = iota
	SeverityWarning
)

// String returns the lowercase severity name.
func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "info"
}

// Diagnostic is a non-fatal notice emitted during analysis: a parse fallback
// was used, a symbol stayed unresolved, a statement exceeded its budget.
type Diagnostic struct {
	Unit     string
	Message  string
	Severity Severity
}

// Sink collects diagnostics. Implementations must be safe for use from a
// single goroutine; the audit phases hand each worker its own sink and merge
// afterwards.
type Sink struct {
	diags []Diagnostic
}

// Add records one diagnostic.
func (s *Sink) Add(unit, message string, sev Severity) {
	s.diags = append(s.diags, Diagnostic{Unit: unit, Message: message, Severity: sev})
}

// Warnf records a warning diagnostic.
func (s *Sink) Warnf(unit, format string, args ...any) {
	s.Add(unit, fmt.Sprintf(format, args...), SeverityWarning)
}

// Infof records an info diagnostic.
func (s *Sink) Infof(unit, format string, args ...any) {
	s.Add(unit, fmt.Sprintf(format, args...), SeverityInfo)
}

// All returns the collected diagnostics in emission order.
func (s *Sink) All() []Diagnostic {
	return s.diags
}

// Drain appends another sink's diagnostics and empties it.
func (s *Sink) Drain(other *Sink) {
	if other == nil {
		return
	}
	s.diags = append(s.diags, other.diags...)
	other.diags = nil
}
