package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/crudmap/pkg/crud"
)

func sampleFiles() []crud.FileReport {
	tables := crud.NewSet()
	tables.Record("orders", crud.OpCreate|crud.OpRead, 0)
	tables.Record("v_active", crud.OpRead, crud.AnnView)
	return []crud.FileReport{{Path: "app/orders.php", Tables: tables}}
}

func TestFlatten(t *testing.T) {
	rows := Flatten(sampleFiles())

	require.Len(t, rows, 2)
	assert.Equal(t, "app/orders.php", rows[0].File)
	assert.Equal(t, "orders", rows[0].Table)
	assert.True(t, rows[0].Create)
	assert.True(t, rows[0].Read)
	assert.False(t, rows[0].Delete)
	assert.Equal(t, []string{"View"}, rows[1].Annotations)
}

func TestRender_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleFiles(), "table"))

	out := buf.String()
	assert.Contains(t, out, "orders")
	assert.Contains(t, out, "CR--")
	assert.Contains(t, out, "(2 findings)")
}

func TestRender_CSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleFiles(), "csv"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "file,table,create,read,update,delete,annotations", lines[0])
	assert.Equal(t, "app/orders.php,orders,1,1,0,0,", lines[1])
	assert.Equal(t, "app/orders.php,v_active,0,1,0,0,View", lines[2])
}

func TestRender_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleFiles(), "json"))

	var rows []Row
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "orders", rows[0].Table)
}

func TestRender_EmptyAndUnknown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, nil, "table"))
	assert.Contains(t, buf.String(), "no findings")

	assert.Error(t, Render(&buf, nil, "xml"))
}
