package state

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/leapstack-labs/crudmap/pkg/crud"
)

// RunStatus is the lifecycle state of an audit run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one persisted audit run.
type Run struct {
	ID          string
	SourceDir   string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Files       int
	Functions   int
	Sweeps      int
	Findings    int
	Error       string
}

// Finding is one persisted table finding.
type Finding struct {
	RunID       string
	File        string
	Table       string
	Ops         string
	Annotations string
}

// CreateRun records the start of an audit over sourceDir.
func (s *Store) CreateRun(sourceDir string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	run := &Run{
		ID:        uuid.NewString(),
		SourceDir: sourceDir,
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO runs (id, source_dir, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.SourceDir, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// CompleteRun finalizes a run with its statistics. A non-empty errMsg marks
// the run failed.
func (s *Store) CompleteRun(id string, files, functions, sweeps, findings int, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	status := RunStatusCompleted
	if errMsg != "" {
		status = RunStatusFailed
	}
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`UPDATE runs SET status = ?, completed_at = ?, files = ?, functions = ?, sweeps = ?, findings = ?, error = ? WHERE id = ?`,
		string(status), now, files, functions, sweeps, findings, errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// GetRun retrieves one run by ID.
func (s *Store) GetRun(id string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	row := s.db.QueryRow(
		`SELECT id, source_dir, status, started_at, completed_at, files, functions, sweeps, findings, COALESCE(error, '')
		 FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, source_dir, status, started_at, completed_at, files, functions, sweeps, findings, COALESCE(error, '')
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// SaveFindings persists the flattened reports of one run.
func (s *Store) SaveFindings(runID string, files []crud.FileReport) (int, error) {
	if s.db == nil {
		return 0, fmt.Errorf("database not opened")
	}
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO findings (run_id, file, table_name, ops, annotations) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	count := 0
	for _, f := range files {
		for _, op := range f.Tables.All() {
			anns := strings.Join(op.Ann.Names(), ",")
			if _, err := stmt.Exec(runID, f.Path, op.Table, op.Ops.String(), anns); err != nil {
				return 0, fmt.Errorf("failed to insert finding: %w", err)
			}
			count++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit findings: %w", err)
	}
	return count, nil
}

// GetFindings returns a run's findings in insertion order.
func (s *Store) GetFindings(runID string) ([]Finding, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	rows, err := s.db.Query(
		`SELECT run_id, file, table_name, ops, annotations FROM findings WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer rows.Close()

	var out []Finding
	for rows.Next() {
		var f Finding
		if err := rows.Scan(&f.RunID, &f.File, &f.Table, &f.Ops, &f.Annotations); err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// scanner abstracts sql.Row and sql.Rows for scanRun.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(r rowScanner) (*Run, error) {
	var run Run
	var status string
	var completed sql.NullTime
	err := r.Scan(&run.ID, &run.SourceDir, &status, &run.StartedAt, &completed,
		&run.Files, &run.Functions, &run.Sweeps, &run.Findings, &run.Error)
	if err != nil {
		return nil, err
	}
	run.Status = RunStatus(status)
	if completed.Valid {
		t := completed.Time
		run.CompletedAt = &t
	}
	return &run, nil
}
