// Package config provides project configuration for crudmap: the audit
// parameters, the scanned tree, and the external name lists. It is decoupled
// from CLI concerns so other tooling can load the same files.
package config

// Config holds one project's audit configuration.
type Config struct {
	// ProjectRoot is the directory all relative paths resolve against.
	// Derived at load time, never read from the file.
	ProjectRoot string `koanf:"-"`

	// SourceDir is the root of the audited source tree.
	SourceDir string `koanf:"source_dir"`
	// Extensions lists the file suffixes the walker picks up.
	Extensions []string `koanf:"extensions"`
	// MaxFileSize skips files larger than this many bytes.
	MaxFileSize int64 `koanf:"max_file_size"`

	// ViewsFile is a newline-delimited list of view names.
	ViewsFile string `koanf:"views_file"`
	// ProceduresFile is a newline-delimited list of execution-call names.
	ProceduresFile string `koanf:"procedures_file"`

	// Workers bounds per-file analysis parallelism.
	Workers int `koanf:"workers"`
	// CandidateCap bounds branch fan-out per resolved value.
	CandidateCap int `koanf:"candidate_cap"`
	// SweepCap bounds call-graph propagation sweeps.
	SweepCap int `koanf:"sweep_cap"`
	// StatementBudget bounds a single classified SQL candidate, in bytes.
	StatementBudget int `koanf:"statement_budget"`

	// Output selects the report format: table, csv or json.
	Output string `koanf:"output"`
	// StatePath locates the run-history database.
	StatePath string `koanf:"state_path"`
	Verbose   bool   `koanf:"verbose"`
}
