// Package sqlite persists models.Job records, grounded on the
// teacher's storage/sqlite/connection.go driver setup (modernc.org/sqlite,
// single-writer connection pool) but with a job-definition/goqite-free
// schema scoped to this pipeline's job model (spec.md §3.1, §7).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/blogpipeline/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL,
	priority    INTEGER NOT NULL,
	created_at  DATETIME NOT NULL,
	completed_at DATETIME,
	data        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);
`

// Store is a sqlite-backed models.Job repository. A single open
// connection avoids SQLITE_BUSY the way the teacher's connection.go
// does, since modernc.org/sqlite serializes writes per-connection
// anyway.
type Store struct {
	db     *sql.DB
	logger arbor.ILogger
}

// Open creates (or reopens) the jobs database at path.
func Open(path string, logger arbor.ILogger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("sqlite: create data dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migrate schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts or replaces a job record in full.
func (s *Store) Save(ctx context.Context, job *models.Job) error {
	data, err := job.ToJSON()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, status, priority, created_at, completed_at, data)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET status=excluded.status, priority=excluded.priority,
			completed_at=excluded.completed_at, data=excluded.data`,
		job.ID, string(job.Status), job.Priority, job.CreatedAt, job.CompletedAt, string(data))
	if err != nil {
		return fmt.Errorf("sqlite: save job %s: %w", job.ID, err)
	}
	return nil
}

// Get loads a single job by ID.
func (s *Store) Get(ctx context.Context, id string) (*models.Job, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM jobs WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sqlite: job %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get job %s: %w", id, err)
	}
	return models.JobFromJSON([]byte(data))
}

// List returns jobs, most recent first, optionally filtered by status.
func (s *Store) List(ctx context.Context, status models.JobStatus) ([]*models.Job, error) {
	var rows *sql.Rows
	var err error
	if status == "" {
		rows, err = s.db.QueryContext(ctx, `SELECT data FROM jobs ORDER BY created_at DESC`)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT data FROM jobs WHERE status = ? ORDER BY created_at DESC`, string(status))
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: list jobs: %w", err)
	}
	defer rows.Close()

	var out []*models.Job
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("sqlite: scan job row: %w", err)
		}
		job, err := models.JobFromJSON([]byte(data))
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// ListPendingOrdered returns up to limit pending jobs ordered by
// priority ascending then created_at ascending, the scheduling order
// the job manager's tick loop picks runnable work in (spec.md §4.5).
func (s *Store) ListPendingOrdered(ctx context.Context, limit int) ([]*models.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM jobs WHERE status = ? ORDER BY priority ASC, created_at ASC LIMIT ?`,
		string(models.JobStatusPending), limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list pending jobs: %w", err)
	}
	defer rows.Close()

	var out []*models.Job
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("sqlite: scan job row: %w", err)
		}
		job, err := models.JobFromJSON([]byte(data))
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// CountByStatus returns the number of jobs currently in the given status.
func (s *Store) CountByStatus(ctx context.Context, status models.JobStatus) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs WHERE status = ?`, string(status)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: count jobs by status: %w", err)
	}
	return n, nil
}

// DeleteCompletedBefore removes terminal jobs whose completed_at is
// older than the manager's retention window (spec.md §7 cleanup sweep).
func (s *Store) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM jobs WHERE completed_at IS NOT NULL AND completed_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sqlite: delete old jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
