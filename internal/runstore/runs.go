package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mmoto/internal/services"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusDegraded  Status = "degraded"
	StatusFailed    Status = "failed"
	StatusStopped   Status = "stopped"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

// Run is one row of the runs table.
type Run struct {
	ID           string
	ProjectDir   string
	Topic        string
	Status       Status
	StartedAt    time.Time
	FinishedAt   time.Time
	FinalVideo   string
	ErrorMessage string
}

// Finished reports whether the run reached a terminal status.
func (r Run) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// Degradation is a stored degradation entry.
type Degradation struct {
	services.Degradation
	CreatedAt time.Time
}

const timeLayout = time.RFC3339Nano

// Begin inserts run with status running.
func (s *Store) Begin(ctx context.Context, run Run) error {
	if run.ID == "" {
		return errors.New("run id required")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	_, err := s.exec(ctx,
		`INSERT INTO runs (id, project_dir, topic, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.ProjectDir, run.Topic, string(StatusRunning), run.StartedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Finish records the terminal status of a run.
func (s *Store) Finish(ctx context.Context, id string, status Status, finalVideo, errMsg string) error {
	res, err := s.exec(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, final_video = ?, error_message = ? WHERE id = ?`,
		string(status), time.Now().UTC().Format(timeLayout), finalVideo, errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrNotFound)
	}
	return nil
}

// AddDegradation stores d against run id.
func (s *Store) AddDegradation(ctx context.Context, id string, d services.Degradation) error {
	_, err := s.exec(ctx,
		`INSERT INTO degradations (run_id, stage, kind, detail, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, d.Stage, d.Kind, d.Detail, time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert degradation: %w", err)
	}
	return nil
}

const runColumns = `id, project_dir, topic, status, started_at, finished_at, final_video, error_message`

// List returns the most recent runs first. A non-positive limit returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Get returns one run.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return run, err
}

// Degradations returns the degradations of run id in insertion order.
func (s *Store) Degradations(ctx context.Context, id string) ([]Degradation, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT stage, kind, detail, created_at FROM degradations WHERE run_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("list degradations: %w", err)
	}
	defer rows.Close()

	var out []Degradation
	for rows.Next() {
		var (
			d       Degradation
			created string
		)
		if err := rows.Scan(&d.Stage, &d.Kind, &d.Detail, &created); err != nil {
			return nil, fmt.Errorf("scan degradation: %w", err)
		}
		d.CreatedAt = parseTime(created)
		out = append(out, d)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run      Run
		status   string
		started  string
		finished sql.NullString
	)
	if err := row.Scan(&run.ID, &run.ProjectDir, &run.Topic, &status, &started, &finished, &run.FinalVideo, &run.ErrorMessage); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Status = Status(status)
	run.StartedAt = parseTime(started)
	if finished.Valid {
		run.FinishedAt = parseTime(finished.String)
	}
	return run, nil
}

func parseTime(value string) time.Time {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
