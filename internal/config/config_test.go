package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	assert.Equal(t, DefaultSourceDir, cfg.SourceDir)
	assert.Equal(t, DefaultExtensions(), cfg.Extensions)
	assert.Equal(t, int64(DefaultMaxFileSize), cfg.MaxFileSize)
	assert.Equal(t, DefaultOutput, cfg.Output)
	assert.Equal(t, DefaultStateFile, cfg.StatePath)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "crudmap.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
source_dir: legacy/src
extensions: [".php", ".inc", ".mod"]
views_file: views.txt
workers: 4
sweep_cap: 10
output: csv
`), 0o644))

	cfg, err := Load(cfgPath, nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "legacy/src"), cfg.SourceDir)
	assert.Equal(t, []string{".php", ".inc", ".mod"}, cfg.Extensions)
	assert.Equal(t, filepath.Join(dir, "views.txt"), cfg.ViewsFile)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 10, cfg.SweepCap)
	assert.Equal(t, "csv", cfg.Output)
	assert.Equal(t, dir, cfg.ProjectRoot)
	// Untouched keys keep their defaults.
	assert.Equal(t, int64(DefaultMaxFileSize), cfg.MaxFileSize)
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "crudmap.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("output: csv\nworkers: 4\n"), 0o644))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("output", DefaultOutput, "")
	flags.Int("workers", 0, "")
	require.NoError(t, flags.Parse([]string{"--output=json"}))

	cfg, err := Load(cfgPath, flags)
	require.NoError(t, err)

	assert.Equal(t, "json", cfg.Output)
	// Unchanged flags do not clobber file values.
	assert.Equal(t, 4, cfg.Workers)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "crudmap.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("output: csv\n"), 0o644))

	t.Setenv("CRUDMAP_OUTPUT", "json")

	cfg, err := Load(cfgPath, nil)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Output)
}

func TestLoadNameList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "views.txt")
	require.NoError(t, os.WriteFile(path, []byte(`
# active views
V_ACTIVE
v_orders

v_active
`), 0o644))

	names, err := LoadNameList(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"v_active", "v_orders"}, names)
}

func TestLoadNameList_Missing(t *testing.T) {
	names, err := LoadNameList(filepath.Join(t.TempDir(), "absent.txt"))
	require.NoError(t, err)
	assert.Nil(t, names)

	names, err = LoadNameList("")
	require.NoError(t, err)
	assert.Nil(t, names)
}
