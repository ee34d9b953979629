package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"llmclass/internal/batch"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning     Status = "running"
	StatusCompleted   Status = "completed"
	StatusInterrupted Status = "interrupted"
	StatusFailed      Status = "failed"
)

// Pipeline names.
const (
	PipelineText  = "text"
	PipelineImage = "images"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

// Run is one batch invocation.
type Run struct {
	ID         string
	Pipeline   string
	Model      string
	Source     string
	Output     string
	Status     Status
	Total      int
	Processed  int
	Succeeded  int
	Failed     int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Result is one persisted item outcome.
type Result struct {
	Seq       int
	Item      string
	OK        bool
	Output    string
	Error     string
	Attempts  int
	CreatedAt time.Time
}

// StartRun inserts a running record. A missing ID is generated.
func (s *Store) StartRun(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.Status = StatusRunning
	err := s.exec(ctx, `INSERT INTO runs
        (id, pipeline, model, source, output, status, total, started_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Pipeline, nullableString(run.Model), nullableString(run.Source),
		nullableString(run.Output), string(run.Status), run.Total, formatTime(run.StartedAt),
	)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// FinishRun stores the final status and counts.
func (s *Store) FinishRun(ctx context.Context, id string, status Status, summary batch.Summary, runErr error) error {
	var message string
	if runErr != nil {
		message = runErr.Error()
	}
	err := s.exec(ctx, `UPDATE runs SET status = ?, processed = ?, succeeded = ?, failed = ?,
        error_message = ?, finished_at = ? WHERE id = ?`,
		string(status), summary.Total, summary.Succeeded, summary.Failed,
		nullableString(message), formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	return nil
}

// RecordResults upserts results keyed by their position in the run.
func (s *Store) RecordResults(ctx context.Context, runID string, results []Result) error {
	if len(results) == 0 {
		return nil
	}
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin results tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO results
            (run_id, seq, item, ok, output, error_message, attempts, created_at)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?)
            ON CONFLICT (run_id, seq) DO UPDATE SET
                item = excluded.item, ok = excluded.ok, output = excluded.output,
                error_message = excluded.error_message, attempts = excluded.attempts,
                created_at = excluded.created_at`)
		if err != nil {
			return fmt.Errorf("prepare results upsert: %w", err)
		}
		defer stmt.Close()

		for _, r := range results {
			created := r.CreatedAt
			if created.IsZero() {
				created = time.Now()
			}
			if _, err := stmt.ExecContext(ctx, runID, r.Seq, r.Item, r.OK,
				nullableString(r.Output), nullableString(r.Error), r.Attempts, formatTime(created),
			); err != nil {
				return fmt.Errorf("upsert result %d: %w", r.Seq, err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE runs SET processed = (SELECT COUNT(1) FROM results WHERE run_id = ?) WHERE id = ?`,
			runID, runID,
		); err != nil {
			return fmt.Errorf("update progress: %w", err)
		}
		return tx.Commit()
	})
}

// GetRun loads one run by id or unique id prefix.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	for _, query := range []struct {
		where string
		arg   string
	}{
		{where: " WHERE id = ?", arg: id},
		{where: " WHERE id LIKE ? LIMIT 2", arg: id + "%"},
	} {
		rows, err := s.db.QueryContext(ctx, selectRuns+query.where, query.arg)
		if err != nil {
			return Run{}, fmt.Errorf("query run: %w", err)
		}
		runs, err := scanRuns(rows)
		if err != nil {
			return Run{}, err
		}
		switch len(runs) {
		case 0:
			continue
		case 1:
			return runs[0], nil
		default:
			return Run{}, fmt.Errorf("ambiguous run id prefix %q", id)
		}
	}
	return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := selectRuns + ` ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return scanRuns(rows)
}

// Results returns the stored results of a run in order.
func (s *Store) Results(ctx context.Context, runID string) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT seq, item, ok, output, error_message, attempts, created_at
        FROM results WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var (
			r       Result
			output  sql.NullString
			message sql.NullString
			created string
		)
		if err := rows.Scan(&r.Seq, &r.Item, &r.OK, &output, &message, &r.Attempts, &created); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.Output = output.String
		r.Error = message.String
		r.CreatedAt = parseTime(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and its results.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	if err := s.exec(ctx, `DELETE FROM runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	return nil
}

const selectRuns = `SELECT id, pipeline, model, source, output, status, total, processed,
    succeeded, failed, error_message, started_at, finished_at FROM runs`

func scanRuns(rows *sql.Rows) ([]Run, error) {
	defer rows.Close()
	var runs []Run
	for rows.Next() {
		var (
			run                        Run
			model, source, output, msg sql.NullString
			status, started            string
			finished                   sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.Pipeline, &model, &source, &output, &status,
			&run.Total, &run.Processed, &run.Succeeded, &run.Failed, &msg, &started, &finished,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Model = model.String
		run.Source = source.String
		run.Output = output.String
		run.Status = Status(status)
		run.Error = msg.String
		run.StartedAt = parseTime(started)
		if finished.Valid {
			run.FinishedAt = parseTime(finished.String)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
