// Package queue provides the durable split job queue backed by SQLite.
package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/danielolaszy/sprintsplit/internal/config"
	"github.com/danielolaszy/sprintsplit/internal/logging"
	"github.com/danielolaszy/sprintsplit/pkg/models"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id          TEXT PRIMARY KEY,
	queue       TEXT NOT NULL,
	issue       TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'pending',
	attempts    INTEGER NOT NULL DEFAULT 0,
	last_error  TEXT NOT NULL DEFAULT '',
	enqueued_at INTEGER NOT NULL,
	started_at  INTEGER NOT NULL DEFAULT 0,
	finished_at INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS jobs_queue_status ON jobs(queue, status);`

// Job is one stored split job. Timestamps are Unix milliseconds; zero means unset.
type Job struct {
	ID         string `db:"id" json:"id"`
	Queue      string `db:"queue" json:"queue"`
	Issue      string `db:"issue" json:"issueIdOrKey"`
	Status     Status `db:"status" json:"status"`
	Attempts   int    `db:"attempts" json:"attempts"`
	LastError  string `db:"last_error" json:"lastError,omitempty"`
	EnqueuedAt int64  `db:"enqueued_at" json:"enqueuedAt"`
	StartedAt  int64  `db:"started_at" json:"startedAt,omitempty"`
	FinishedAt int64  `db:"finished_at" json:"finishedAt,omitempty"`
}

// SplitJob returns the payload handed to the handler.
func (j *Job) SplitJob() models.SplitJob {
	return models.SplitJob{ID: j.ID, IssueIDOrKey: j.Issue}
}

// Stats counts the jobs of a queue per status.
type Stats struct {
	Pending int `json:"pending"`
	Running int `json:"running"`
	Done    int `json:"done"`
	Failed  int `json:"failed"`
}

// Queue is a named job queue in a SQLite database.
type Queue struct {
	db         *sqlx.DB
	name       string
	lease      time.Duration
	jobTimeout time.Duration
	now        func() time.Time
}

// Open opens (creating if needed) the database at cfg.Path and returns the
// queue named cfg.Key. cfg.JobTimeout must be shorter than cfg.Lease.
func Open(cfg config.QueueConfig) (*Queue, error) {
	if cfg.JobTimeout <= 0 || cfg.JobTimeout >= cfg.Lease {
		return nil, fmt.Errorf("job timeout %s must be positive and shorter than the lease %s", cfg.JobTimeout, cfg.Lease)
	}

	db, err := sqlx.Connect("sqlite3", cfg.Path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open queue database %s: %w", cfg.Path, err)
	}

	// SQLite allows a single writer; serializing on one connection keeps
	// claims atomic across worker goroutines.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create queue schema: %w", err)
	}

	logging.Debug("queue opened", "path", cfg.Path, "queue", cfg.Key)

	return &Queue{
		db:         db,
		name:       cfg.Key,
		lease:      cfg.Lease,
		jobTimeout: cfg.JobTimeout,
		now:        time.Now,
	}, nil
}

// Close releases the database.
func (q *Queue) Close() error {
	return q.db.Close()
}

// Name returns the queue name jobs are stored under.
func (q *Queue) Name() string {
	return q.name
}

// Push enqueues the jobs in one transaction: either all of them are stored or
// none is. Jobs without an id get a new UUID. A job whose issue already has a
// pending or running job in this queue is skipped. Push returns the number of
// jobs stored.
func (q *Queue) Push(ctx context.Context, jobs []models.SplitJob) (int, error) {
	if len(jobs) == 0 {
		return 0, nil
	}

	tx, err := q.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin push: %w", err)
	}
	defer tx.Rollback()

	now := q.now().UnixMilli()
	stored := 0
	for _, job := range jobs {
		if job.IssueIDOrKey == "" {
			return 0, errors.New("job has no issue id or key")
		}

		var active int
		err := tx.GetContext(ctx, &active,
			`SELECT COUNT(*) FROM jobs WHERE queue = ? AND issue = ? AND status IN (?, ?)`,
			q.name, job.IssueIDOrKey, StatusPending, StatusRunning)
		if err != nil {
			return 0, fmt.Errorf("failed to check pending jobs for %s: %w", job.IssueIDOrKey, err)
		}
		if active > 0 {
			logging.Warn("issue already queued, skipping", "issue", job.IssueIDOrKey, "queue", q.name)
			continue
		}

		id := job.ID
		if id == "" {
			id = uuid.NewString()
		}

		_, err = tx.NamedExecContext(ctx,
			`INSERT INTO jobs (id, queue, issue, status, enqueued_at)
			 VALUES (:id, :queue, :issue, :status, :enqueued_at)`,
			Job{
				ID:         id,
				Queue:      q.name,
				Issue:      job.IssueIDOrKey,
				Status:     StatusPending,
				EnqueuedAt: now,
			})
		if err != nil {
			return 0, fmt.Errorf("failed to enqueue %s: %w", job.IssueIDOrKey, err)
		}
		stored++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit push: %w", err)
	}

	logging.Info("jobs enqueued", "queue", q.name, "count", stored)
	return stored, nil
}

// Claim marks the oldest available job as running and returns it. A running
// job whose lease expired is available again; the consumer stops handling a
// job after the job timeout, so this only happens when its worker died.
// Claim returns nil when the queue is empty.
func (q *Queue) Claim(ctx context.Context) (*Job, error) {
	tx, err := q.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim: %w", err)
	}
	defer tx.Rollback()

	now := q.now()
	expired := now.Add(-q.lease).UnixMilli()

	job := &Job{}
	err = tx.GetContext(ctx, job,
		`SELECT * FROM jobs
		 WHERE queue = ? AND (status = ? OR (status = ? AND started_at < ?))
		 ORDER BY rowid LIMIT 1`,
		q.name, StatusPending, StatusRunning, expired)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select job: %w", err)
	}

	if job.Status == StatusRunning {
		logging.Warn("lease expired, redelivering job", "job", job.ID, "issue", job.Issue)
	}

	job.Status = StatusRunning
	job.Attempts++
	job.StartedAt = now.UnixMilli()

	_, err = tx.ExecContext(ctx,
		`UPDATE jobs SET status = ?, attempts = ?, started_at = ? WHERE id = ?`,
		job.Status, job.Attempts, job.StartedAt, job.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim job %s: %w", job.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	return job, nil
}

// Complete records the outcome of a claimed job. A non-nil jobErr marks it failed.
func (q *Queue) Complete(ctx context.Context, id string, jobErr error) error {
	status, lastError := StatusDone, ""
	if jobErr != nil {
		status, lastError = StatusFailed, jobErr.Error()
	}

	res, err := q.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, last_error = ?, finished_at = ? WHERE id = ?`,
		status, lastError, q.now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("failed to complete job %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %s not found", id)
	}

	return nil
}

// Stats counts the jobs of the queue per status.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	var rows []struct {
		Status Status `db:"status"`
		Count  int    `db:"count"`
	}
	err := q.db.SelectContext(ctx, &rows,
		`SELECT status, COUNT(*) AS count FROM jobs WHERE queue = ? GROUP BY status`, q.name)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count jobs: %w", err)
	}

	var stats Stats
	for _, r := range rows {
		switch r.Status {
		case StatusPending:
			stats.Pending = r.Count
		case StatusRunning:
			stats.Running = r.Count
		case StatusDone:
			stats.Done = r.Count
		case StatusFailed:
			stats.Failed = r.Count
		}
	}
	return stats, nil
}

// List returns the most recent jobs, newest first. An empty status lists every status.
func (q *Queue) List(ctx context.Context, status Status, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT * FROM jobs WHERE queue = ?`
	args := []any{q.name}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY rowid DESC LIMIT ?`
	args = append(args, limit)

	jobs := []Job{}
	if err := q.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}
