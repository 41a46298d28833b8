package config

// Default configuration values.
const (
	DefaultSourceDir   = "."
	DefaultMaxFileSize = 4 << 20
	DefaultOutput      = "table"
	DefaultStateFile   = ".crudmap/state.db"
)

// DefaultExtensions are the file suffixes scanned when none are configured.
func DefaultExtensions() []string {
	return []string{".php", ".inc"}
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.SourceDir == "" {
		c.SourceDir = DefaultSourceDir
	}
	if len(c.Extensions) == 0 {
		c.Extensions = DefaultExtensions()
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = DefaultMaxFileSize
	}
	if c.Output == "" {
		c.Output = DefaultOutput
	}
	if c.StatePath == "" {
		c.StatePath = DefaultStateFile
	}
}
