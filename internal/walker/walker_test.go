package walker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/crudmap/internal/testutil"
)

func writeFile(t *testing.T, dir, name string, content []byte) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
}

func TestCollect_FiltersAndOrders(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.php", []byte("$x = 1;"))
	writeFile(t, dir, "a.php", []byte("$y = 2;"))
	writeFile(t, dir, "notes.txt", []byte("not source"))
	writeFile(t, dir, "sub/c.inc", []byte("$z = 3;"))

	res, err := Collect(Options{
		Root:       dir,
		Extensions: []string{".php", ".inc"},
		Logger:     testutil.NewTestLogger(t),
	})
	require.NoError(t, err)

	require.Len(t, res.Units, 3)
	assert.Equal(t, "a.php", res.Units[0].Path)
	assert.Equal(t, "b.php", res.Units[1].Path)
	assert.Equal(t, "sub/c.inc", res.Units[2].Path)
	assert.Zero(t, res.Skipped)
}

func TestCollect_SizeCap(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "big.php", make([]byte, 128))
	writeFile(t, dir, "small.php", []byte("$a = 1;"))

	res, err := Collect(Options{Root: dir, Extensions: []string{".php"}, MaxFileSize: 64})
	require.NoError(t, err)

	require.Len(t, res.Units, 1)
	assert.Equal(t, "small.php", res.Units[0].Path)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, "big.php", res.Diagnostics[0].Unit)
}

func TestCollect_Latin1Decoded(t *testing.T) {
	dir := t.TempDir()
	// 0xE9 is 'é' in Latin-1 and invalid on its own in UTF-8.
	writeFile(t, dir, "legacy.php", []byte{'$', 'c', ' ', '=', ' ', '\'', 0xE9, '\'', ';'})

	res, err := Collect(Options{Root: dir, Extensions: []string{".php"}})
	require.NoError(t, err)

	require.Len(t, res.Units, 1)
	assert.Contains(t, res.Units[0].Text, "é")
}

func TestCollect_BinarySkipped(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "blob.php", []byte{0x00, 0x01, 0x02})

	res, err := Collect(Options{Root: dir, Extensions: []string{".php"}})
	require.NoError(t, err)

	assert.Empty(t, res.Units)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Diagnostics, 1)
}

func TestCollect_MissingRoot(t *testing.T) {
	_, err := Collect(Options{Root: filepath.Join(t.TempDir(), "absent"), Extensions: []string{".php"}})
	assert.Error(t, err)
}
