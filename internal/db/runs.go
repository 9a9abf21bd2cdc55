package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/motion.report/internal/features"
)

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// Run is one row of the pipeline_runs ledger.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     RunStatus
	Input      string
	Output     string
	Params     json.RawMessage
	InputRows  int
	OutputRows int
	Error      string
	Version    string
}

// StartRun inserts r as a running run. An empty ID is replaced by a new
// UUID; the assigned ID is written back to r.
func (db *DB) StartRun(ctx context.Context, r *Run) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	r.Status = RunRunning
	params := r.Params
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO pipeline_runs (
			run_id, started_at, status, input, output, params_json, input_rows, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.UnixNano(), string(r.Status), r.Input, r.Output,
		string(params), r.InputRows, r.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// FinishRun marks a run succeeded, or failed when runErr is non-nil.
func (db *DB) FinishRun(ctx context.Context, id string, finishedAt time.Time, outputRows int, runErr error) error {
	status, msg := RunSucceeded, ""
	if runErr != nil {
		status, msg = RunFailed, runErr.Error()
	}
	res, err := db.ExecContext(ctx, `
		UPDATE pipeline_runs
		SET finished_at = ?, status = ?, output_rows = ?, error = ?
		WHERE run_id = ?`,
		finishedAt.UnixNano(), string(status), outputRows, msg, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

const runColumns = `run_id, started_at, finished_at, status, input, output,
	params_json, input_rows, output_rows, error, version`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s rowScanner) (*Run, error) {
	var (
		r        Run
		started  int64
		finished sql.NullInt64
		status   string
		params   string
	)
	if err := s.Scan(&r.ID, &started, &finished, &status, &r.Input, &r.Output,
		&params, &r.InputRows, &r.OutputRows, &r.Error, &r.Version); err != nil {
		return nil, err
	}
	r.StartedAt = time.Unix(0, started).UTC()
	if finished.Valid {
		t := time.Unix(0, finished.Int64).UTC()
		r.FinishedAt = &t
	}
	r.Status = RunStatus(status)
	r.Params = json.RawMessage(params)
	return &r, nil
}

// GetRun returns the run with the given id.
func (db *DB) GetRun(ctx context.Context, id string) (*Run, error) {
	row := db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM pipeline_runs WHERE run_id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return r, nil
}

// ListRuns returns the most recent runs first, at most limit of them.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM pipeline_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RecordNotices stores the data-sufficiency notices of a run.
func (db *DB) RecordNotices(ctx context.Context, runID string, notices []*features.DataSufficiencyError) (err error) {
	if len(notices) == 0 {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO segment_notices (run_id, stage, set_id, row_count, window_size)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, n := range notices {
		if _, err = stmt.ExecContext(ctx, runID, n.Stage, n.Set, n.Rows, n.Window); err != nil {
			return fmt.Errorf("failed to insert notice: %w", err)
		}
	}
	return tx.Commit()
}

// Notices returns the notices recorded for a run in insertion order.
func (db *DB) Notices(ctx context.Context, runID string) ([]*features.DataSufficiencyError, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT stage, set_id, row_count, window_size
		FROM segment_notices WHERE run_id = ? ORDER BY notice_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notices: %w", err)
	}
	defer rows.Close()

	var out []*features.DataSufficiencyError
	for rows.Next() {
		var n features.DataSufficiencyError
		if err := rows.Scan(&n.Stage, &n.Set, &n.Rows, &n.Window); err != nil {
			return nil, err
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}
