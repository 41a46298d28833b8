package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/crudmap/pkg/crud"
	"github.com/leapstack-labs/crudmap/pkg/symtab"
)

func scanSrc(t *testing.T, src string, procs ...string) (*FileScan, *crud.Sink) {
	t.Helper()
	sink := &crud.Sink{}
	s := New(procs, 0)
	consts := symtab.NewConstants()
	consts.Freeze()
	return s.Scan("app/test.src", src, consts, sink), sink
}

func literals(t *testing.T, fn *FuncScan, i int) []string {
	t.Helper()
	require.Greater(t, len(fn.Candidates), i)
	return fn.Candidates[i].Value.Literals()
}

func TestScan_DirectLiteralArgument(t *testing.T) {
	fs, _ := scanSrc(t, `run_query('SELECT * FROM users');`, "run_query")

	require.Len(t, fs.TopLevel.Candidates, 1)
	assert.Equal(t, []string{"SELECT * FROM users"}, literals(t, fs.TopLevel, 0))
	assert.Equal(t, []string{"run_query"}, fs.TopLevel.Calls)
	assert.Empty(t, fs.Functions)
}

func TestScan_VariableResolvedAtUse(t *testing.T) {
	src := `
$sql = 'DELETE FROM sessions WHERE expired = 1';
run_query($sql);
`
	fs, _ := scanSrc(t, src, "run_query")

	require.Len(t, fs.TopLevel.Candidates, 1)
	assert.Equal(t, []string{"DELETE FROM sessions WHERE expired = 1"}, literals(t, fs.TopLevel, 0))
}

func TestScan_LiteralOutsideKnownCall(t *testing.T) {
	// SQL-shaped literals count even when the callee is unknown.
	fs, _ := scanSrc(t, `$db->query("UPDATE accounts SET active = 0");`)

	require.Len(t, fs.TopLevel.Candidates, 1)
	assert.Equal(t, []string{"UPDATE accounts SET active = 0"}, literals(t, fs.TopLevel, 0))
	assert.Equal(t, []string{"query"}, fs.TopLevel.Calls)
}

func TestScan_ConditionalBranchesWiden(t *testing.T) {
	src := `
if ($env == "prod") {
	$t = "orders";
} else {
	$t = "orders_archive";
}
$q = "INSERT INTO $t VALUES (1)";
db_exec($q);
`
	fs, _ := scanSrc(t, src, "db_exec")

	require.Len(t, fs.TopLevel.Candidates, 1)
	assert.Equal(t, []string{
		"INSERT INTO orders VALUES (1)",
		"INSERT INTO orders_archive VALUES (1)",
	}, literals(t, fs.TopLevel, 0))
}

func TestScan_BracelessConditional(t *testing.T) {
	src := `
if ($mode == "a") $t = 'users';
else $t = 'users_test';
$q = "SELECT * FROM $t";
run_query($q);
`
	fs, _ := scanSrc(t, src, "run_query")

	require.Len(t, fs.TopLevel.Candidates, 1)
	assert.Equal(t, []string{
		"SELECT * FROM users",
		"SELECT * FROM users_test",
	}, literals(t, fs.TopLevel, 0))
}

func TestScan_UnconditionalOverwrites(t *testing.T) {
	src := `
$t = 'old_table';
$t = 'new_table';
run_query("SELECT * FROM $t");
`
	fs, _ := scanSrc(t, src, "run_query")

	require.Len(t, fs.TopLevel.Candidates, 1)
	assert.Equal(t, []string{"SELECT * FROM new_table"}, literals(t, fs.TopLevel, 0))
}

func TestScan_AppendBuildsStatement(t *testing.T) {
	src := `
$q = 'SELECT id ';
$q .= 'FROM invoices ';
$q .= 'WHERE paid = 0';
run_query($q);
`
	fs, _ := scanSrc(t, src, "run_query")

	require.Len(t, fs.TopLevel.Candidates, 1)
	assert.Equal(t, []string{"SELECT id FROM invoices WHERE paid = 0"}, literals(t, fs.TopLevel, 0))
}

func TestScan_BracedInterpolation(t *testing.T) {
	src := `
$t = 'audit_log';
run_query("TRUNCATE TABLE {$t}");
`
	fs, _ := scanSrc(t, src, "run_query")

	require.Len(t, fs.TopLevel.Candidates, 1)
	assert.Equal(t, []string{"TRUNCATE TABLE audit_log"}, literals(t, fs.TopLevel, 0))
}

func TestScan_OpaqueExpressionPoisons(t *testing.T) {
	src := `
$q = build_query();
run_query($q);
`
	fs, _ := scanSrc(t, src, "run_query")

	assert.Empty(t, fs.TopLevel.Candidates)
	assert.ElementsMatch(t, []string{"build_query", "run_query"}, fs.TopLevel.Calls)
}

func TestScan_PartialStatementSurvives(t *testing.T) {
	src := `
$q = "SELECT * FROM users WHERE id = $id";
run_query($q);
`
	fs, _ := scanSrc(t, src, "run_query")

	require.Len(t, fs.TopLevel.Candidates, 1)
	v := fs.TopLevel.Candidates[0].Value
	assert.True(t, v.Partial())
	assert.Equal(t, []string{"SELECT * FROM users WHERE id = "}, v.Literals())
}

func TestScan_UnresolvedMiddleDropsTail(t *testing.T) {
	src := `
$q = "DELETE FROM " . $unknown . "_archive";
run_query($q);
`
	fs, _ := scanSrc(t, src, "run_query")

	require.Len(t, fs.TopLevel.Candidates, 1)
	v := fs.TopLevel.Candidates[0].Value
	assert.True(t, v.Partial())
	assert.Equal(t, []string{"DELETE FROM "}, v.Literals())
}

func TestScan_FunctionBodies(t *testing.T) {
	src := `
function load_user($id) {
	$q = "SELECT * FROM users WHERE id = $id";
	return run_query($q);
}

function purge() {
	run_query('DELETE FROM sessions');
	load_user(1);
}

purge();
`
	fs, _ := scanSrc(t, src, "run_query")

	require.Len(t, fs.Functions, 2)

	loadUser := fs.Functions[0]
	assert.Equal(t, "load_user", loadUser.Name)
	require.Len(t, loadUser.Candidates, 1)
	assert.True(t, loadUser.Candidates[0].Value.Partial())
	assert.Equal(t, []string{"run_query"}, loadUser.Calls)

	purge := fs.Functions[1]
	assert.Equal(t, "purge", purge.Name)
	require.Len(t, purge.Candidates, 1)
	assert.Equal(t, []string{"DELETE FROM sessions"}, literals(t, purge, 0))
	assert.ElementsMatch(t, []string{"run_query", "load_user"}, purge.Calls)

	assert.Equal(t, []string{"purge"}, fs.TopLevel.Calls)
	assert.Empty(t, fs.TopLevel.Candidates)
}

func TestScan_FunctionScopeIsolation(t *testing.T) {
	src := `
$leak = 'DELETE FROM audit';
function f() {
	run_query($leak);
}
run_query($leak);
`
	fs, _ := scanSrc(t, src, "run_query")

	require.Len(t, fs.Functions, 1)
	assert.Empty(t, fs.Functions[0].Candidates)

	// Top-level code after the function still sees the file-level variable.
	require.Len(t, fs.TopLevel.Candidates, 1)
	assert.Equal(t, []string{"DELETE FROM audit"}, literals(t, fs.TopLevel, 0))
}

func TestScan_ConstantReference(t *testing.T) {
	defs := ExtractConstants("app/config.src", `define('TBL', 'accounts');`)
	consts := ResolveConstants(defs, 0, nil)

	sink := &crud.Sink{}
	s := New([]string{"run_query"}, 0)
	fs := s.Scan("app/test.src", `run_query('SELECT * FROM ' . TBL);`, consts, sink)

	require.Len(t, fs.TopLevel.Candidates, 1)
	assert.Equal(t, []string{"SELECT * FROM accounts"}, literals(t, fs.TopLevel, 0))
}

func TestScan_CandidateBoundWarns(t *testing.T) {
	src := `
if ($a) { $t = 'one'; }
else { $t = 'two'; }
if ($b) { $t2 = 'x'; }
else { $t2 = 'y'; }
run_query("SELECT * FROM $t" . "_" . "$t2");
`
	sink := &crud.Sink{}
	s := New([]string{"run_query"}, 2)
	consts := symtab.NewConstants()
	consts.Freeze()
	fs := s.Scan("app/test.src", src, consts, sink)

	require.Len(t, fs.TopLevel.Candidates, 1)
	assert.Len(t, fs.TopLevel.Candidates[0].Value.Literals(), 2)

	var warned bool
	for _, d := range sink.All() {
		if d.Severity == crud.SeverityWarning {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestScan_CommentsIgnored(t *testing.T) {
	src := `
# run_query('DROP TABLE a');
// run_query('DROP TABLE b');
/* run_query('DROP TABLE c'); */
run_query('SELECT 1 FROM heartbeat');
`
	fs, _ := scanSrc(t, src, "run_query")

	require.Len(t, fs.TopLevel.Candidates, 1)
	assert.Equal(t, []string{"SELECT 1 FROM heartbeat"}, literals(t, fs.TopLevel, 0))
}

func TestScan_MalformedInputIsTotal(t *testing.T) {
	src := `function broken( { $q = 'SELECT * FROM t; run_query($q`
	fs, _ := scanSrc(t, src, "run_query")
	require.NotNil(t, fs)
}

func TestExtractConstants(t *testing.T) {
	src := `
define('TBL', 'accounts');
const PREFIX = 'legacy_';
define('FULL', PREFIX . 'users');
`
	defs := ExtractConstants("app/config.src", src)
	require.Len(t, defs, 3)
	assert.Equal(t, "TBL", defs[0].Name)
	assert.Equal(t, "PREFIX", defs[1].Name)
	assert.Equal(t, "FULL", defs[2].Name)
}

func TestResolveConstants_CrossReference(t *testing.T) {
	// FULL references PREFIX, defined later and in another unit.
	defs := ExtractConstants("a.src", `define('FULL', PREFIX . 'users');`)
	defs = append(defs, ExtractConstants("b.src", `const PREFIX = 'legacy_';`)...)

	consts := ResolveConstants(defs, 0, nil)
	v, ok := consts.Lookup("FULL")
	require.True(t, ok)
	assert.Equal(t, []string{"legacy_users"}, v.Literals())
}

func TestResolveConstants_RedefinitionWidens(t *testing.T) {
	defs := ExtractConstants("a.src", `define('MODE', 'live');`)
	defs = append(defs, ExtractConstants("b.src", `define('MODE', 'test');`)...)

	consts := ResolveConstants(defs, 0, nil)
	v, ok := consts.Lookup("MODE")
	require.True(t, ok)
	assert.Equal(t, []string{"live", "test"}, v.Literals())
}

func TestResolveConstants_UnresolvedReported(t *testing.T) {
	defs := ExtractConstants("a.src", `define('DYN', env('TABLE'));`)

	sink := &crud.Sink{}
	consts := ResolveConstants(defs, 0, sink)
	v, ok := consts.Lookup("DYN")
	require.True(t, ok)
	assert.True(t, v.IsUnresolved())
	require.Len(t, sink.All(), 1)
	assert.Equal(t, crud.SeverityInfo, sink.All()[0].Severity)
}
