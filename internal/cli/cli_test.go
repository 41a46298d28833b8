package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestAuditCommand_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "orders.php"), []byte(`
function add_order() {
	db_query("INSERT INTO orders (id) VALUES (1)");
}
add_order();
db_query('SELECT * FROM customers');
`), 0o644))
	procs := filepath.Join(dir, "procs.txt")
	require.NoError(t, os.WriteFile(procs, []byte("db_query\n"), 0o644))

	out, err := execute(t,
		"audit", src,
		"--no-state",
		"--output", "csv",
		"--procedures-file", procs,
	)
	require.NoError(t, err)

	assert.Contains(t, out, "orders.php,orders,1,0,0,0,")
	assert.Contains(t, out, "orders.php,customers,0,1,0,0,")
}

func TestAuditCommand_PersistsRun(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.php"), []byte(
		`db_query('DELETE FROM sessions');`), 0o644))
	procs := filepath.Join(dir, "procs.txt")
	require.NoError(t, os.WriteFile(procs, []byte("db_query\n"), 0o644))
	statePath := filepath.Join(dir, "state.db")

	_, err := execute(t,
		"audit", src,
		"--output", "json",
		"--procedures-file", procs,
		"--state-path", statePath,
	)
	require.NoError(t, err)

	out, err := execute(t, "runs", "list", "--state-path", statePath)
	require.NoError(t, err)
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, src)
}

func TestRunsList_Empty(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.db")
	out, err := execute(t, "runs", "list", "--state-path", statePath)
	require.NoError(t, err)
	assert.Contains(t, out, "(no runs)")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "crudmap v")
}
