package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/crudmap/pkg/crud"
)

func runAudit(t *testing.T, opts Options, units ...Unit) *Result {
	t.Helper()
	res, err := New(opts).Run(context.Background(), units)
	require.NoError(t, err)
	require.Len(t, res.Files, len(units))
	return res
}

func fileByPath(t *testing.T, res *Result, path string) crud.FileReport {
	t.Helper()
	for _, f := range res.Files {
		if f.Path == path {
			return f
		}
	}
	t.Fatalf("no report for %s", path)
	return crud.FileReport{}
}

func TestRun_DirectStatement(t *testing.T) {
	res := runAudit(t, Options{ProcedureNames: []string{"db_query"}}, Unit{
		Path: "app/cleanup.src",
		Text: `db_query('DELETE FROM sessions WHERE expired = 1');`,
	})

	report := res.Files[0]
	op, ok := report.Tables.Get("sessions")
	require.True(t, ok)
	assert.Equal(t, crud.OpDelete, op.Ops)
}

func TestRun_PropagationAcrossFiles(t *testing.T) {
	opts := Options{ProcedureNames: []string{"db_query"}}
	res := runAudit(t, opts,
		Unit{Path: "b.src", Text: `
function b_insert() {
	db_query("INSERT INTO orders (id) VALUES (1)");
}
`},
		Unit{Path: "a.src", Text: `
function a_handler() {
	b_insert();
}
`},
		Unit{Path: "x.src", Text: `a_handler();`},
	)

	// Calling a chain that ends in a write counts as the write.
	x := fileByPath(t, res, "x.src")
	op, ok := x.Tables.Get("orders")
	require.True(t, ok)
	assert.Equal(t, crud.OpCreate, op.Ops)

	// Files defining the intermediate functions resolve the same way.
	a := fileByPath(t, res, "a.src")
	_, ok = a.Tables.Get("orders")
	assert.True(t, ok)

	assert.Equal(t, 2, res.Functions)
	assert.Less(t, res.Sweeps, 20)
}

func TestRun_MultiCandidate(t *testing.T) {
	res := runAudit(t, Options{ProcedureNames: []string{"query"}}, Unit{
		Path: "m.src",
		Text: `
if ($cond) { $t = 'a'; }
else { $t = 'b'; }
query("SELECT * FROM $t");
`,
	})

	report := res.Files[0]
	for _, table := range []string{"a", "b"} {
		op, ok := report.Tables.Get(table)
		require.True(t, ok, "table %s missing", table)
		assert.Equal(t, crud.OpRead, op.Ops)
		assert.True(t, op.Ann.Has(crud.AnnMulti))
	}
}

func TestRun_ViewAnnotation(t *testing.T) {
	res := runAudit(t, Options{
		ProcedureNames: []string{"query"},
		ViewNames:      []string{"v_active"},
	}, Unit{
		Path: "v.src",
		Text: `query('SELECT * FROM v_active');`,
	})

	op, ok := res.Files[0].Tables.Get("v_active")
	require.True(t, ok)
	assert.Equal(t, crud.OpRead, op.Ops)
	assert.True(t, op.Ann.Has(crud.AnnView))
}

func TestRun_ConstantsResolveAcrossUnits(t *testing.T) {
	res := runAudit(t, Options{ProcedureNames: []string{"query"}},
		Unit{Path: "config.src", Text: `define('ORDERS_TBL', 'orders');`},
		Unit{Path: "use.src", Text: `query('SELECT * FROM ' . ORDERS_TBL);`},
	)

	use := fileByPath(t, res, "use.src")
	_, ok := use.Tables.Get("orders")
	assert.True(t, ok)
}

func TestRun_ReportOrderIsFirstSeen(t *testing.T) {
	res := runAudit(t, Options{ProcedureNames: []string{"query"}}, Unit{
		Path: "o.src",
		Text: `
query('SELECT * FROM zebra');
query('SELECT * FROM alpha');
`,
	})

	all := res.Files[0].Tables.All()
	require.Len(t, all, 2)
	assert.Equal(t, "zebra", all[0].Table)
	assert.Equal(t, "alpha", all[1].Table)
}

func TestRun_DefinedFunctionOpsCountForItsFile(t *testing.T) {
	// The INSERT physically lives in this file even though nothing in the
	// file calls the function.
	res := runAudit(t, Options{ProcedureNames: []string{"db_query"}}, Unit{
		Path: "lib.src",
		Text: `
function record_event() {
	db_query('INSERT INTO events (at) VALUES (now())');
}
`,
	})

	_, ok := res.Files[0].Tables.Get("events")
	assert.True(t, ok)
}

func TestRun_UnresolvedVariableDegrades(t *testing.T) {
	res := runAudit(t, Options{ProcedureNames: []string{"query"}}, Unit{
		Path: "u.src",
		Text: `
$q = build();
query($q);
`,
	})

	assert.Equal(t, 0, res.Files[0].Tables.Len())
}

func TestRun_DroppedTailDoesNotFabricateTables(t *testing.T) {
	res := runAudit(t, Options{ProcedureNames: []string{"run_query"}}, Unit{
		Path: "purge.src",
		Text: `
$q = "DELETE FROM " . $unknown . "_archive";
run_query($q);
`,
	})

	// The suffix glued after the unresolved hole is not a real table.
	report := res.Files[0]
	_, ok := report.Tables.Get("_archive")
	assert.False(t, ok)
	assert.Equal(t, 0, report.Tables.Len())
}

func TestRun_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Options{}).Run(ctx, []Unit{{Path: "a.src", Text: `x();`}})
	assert.Error(t, err)
}

func TestRun_DiagnosticsCollected(t *testing.T) {
	res := runAudit(t, Options{ProcedureNames: []string{"query"}},
		Unit{Path: "d.src", Text: `query("SELECT * FROM users WHERE id = $id");`},
		Unit{Path: "bad.src", Text: `query('SELECT FROM');`},
	)

	// The partial statement still classifies; the unclassifiable one
	// surfaces as a diagnostic, not an error.
	_, ok := fileByPath(t, res, "d.src").Tables.Get("users")
	assert.True(t, ok)
	assert.NotEmpty(t, res.Diagnostics)
}
