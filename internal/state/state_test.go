package state

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/crudmap/pkg/crud"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	require.NoError(t, s.Open(filepath.Join(t.TempDir(), "state.db")))
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate())
	return s
}

func TestRunLifecycle(t *testing.T) {
	s := openStore(t)

	run, err := s.CreateRun("legacy/src")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, RunStatusRunning, run.Status)

	require.NoError(t, s.CompleteRun(run.ID, 12, 40, 3, 87, ""))

	got, err := s.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, got.Status)
	assert.Equal(t, 12, got.Files)
	assert.Equal(t, 40, got.Functions)
	assert.Equal(t, 3, got.Sweeps)
	assert.Equal(t, 87, got.Findings)
	assert.NotNil(t, got.CompletedAt)
}

func TestCompleteRun_Failed(t *testing.T) {
	s := openStore(t)

	run, err := s.CreateRun("src")
	require.NoError(t, err)
	require.NoError(t, s.CompleteRun(run.ID, 0, 0, 0, 0, "walk failed"))

	got, err := s.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, got.Status)
	assert.Equal(t, "walk failed", got.Error)
}

func TestGetRun_NotFound(t *testing.T) {
	s := openStore(t)
	_, err := s.GetRun("nope")
	assert.Error(t, err)
}

func TestListRuns_NewestFirst(t *testing.T) {
	s := openStore(t)

	first, err := s.CreateRun("a")
	require.NoError(t, err)
	second, err := s.CreateRun("b")
	require.NoError(t, err)

	runs, err := s.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	// Same-timestamp ties aside, both runs must be present.
	ids := []string{runs[0].ID, runs[1].ID}
	assert.Contains(t, ids, first.ID)
	assert.Contains(t, ids, second.ID)
}

func TestSaveAndGetFindings(t *testing.T) {
	s := openStore(t)

	run, err := s.CreateRun("src")
	require.NoError(t, err)

	tables := crud.NewSet()
	tables.Record("orders", crud.OpCreate|crud.OpRead, 0)
	tables.Record("v_active", crud.OpRead, crud.AnnView)
	files := []crud.FileReport{{Path: "app/orders.php", Tables: tables}}

	n, err := s.SaveFindings(run.ID, files)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := s.GetFindings(run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "orders", got[0].Table)
	assert.Equal(t, "CR--", got[0].Ops)
	assert.Equal(t, "View", got[1].Annotations)
}
