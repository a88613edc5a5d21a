// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gemfetch/jewelcrawler/internal/pipeline"
)

// dbConn is the subset of pgxpool.Pool the stores use. pgxmock satisfies
// it in tests.
type dbConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// JobStore persists jobs in the jobs table.
// It assumes a table schema like:
// CREATE TABLE jobs (
//
//	id UUID PRIMARY KEY,
//	url TEXT NOT NULL,
//	status TEXT NOT NULL,
//	submitted_at TIMESTAMPTZ NOT NULL,
//	started_at TIMESTAMPTZ,
//	finished_at TIMESTAMPTZ,
//	stats JSONB,
//	error_message TEXT
//
// );
type JobStore struct {
	pool dbConn
}

// NewJobStore connects a pool and returns the store.
func NewJobStore(ctx context.Context, dsn string, maxConns int32) (*JobStore, error) {
	pool, err := newPool(ctx, dsn, maxConns)
	if err != nil {
		return nil, err
	}
	return &JobStore{pool: pool}, nil
}

// NewJobStoreWithPool constructs a store from an existing pool (primarily
// for testing).
func NewJobStoreWithPool(pool dbConn) (*JobStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &JobStore{pool: pool}, nil
}

func newPool(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}

// Close releases the underlying pool resources.
func (s *JobStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// CreateJob inserts a queued job row.
func (s *JobStore) CreateJob(ctx context.Context, job pipeline.Job) error {
	statsJSON, err := json.Marshal(job.Stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	query := `
INSERT INTO jobs (id, url, status, submitted_at, stats, error_message)
VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := s.pool.Exec(ctx, query,
		job.ID, job.URL, string(job.Status), job.Submitted, statsJSON, job.ErrorMessage,
	); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// MarkRunning transitions a queued job to running.
func (s *JobStore) MarkRunning(ctx context.Context, jobID string, startedAt time.Time) error {
	query := `UPDATE jobs SET status = $2, started_at = $3 WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, jobID, string(pipeline.JobStatusRunning), startedAt)
	if err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pipeline.ErrJobNotFound
	}
	return nil
}

// FinalizeJob records the terminal status, stats and error text.
func (s *JobStore) FinalizeJob(ctx context.Context, jobID string, status pipeline.JobStatus, stats pipeline.JobStats, errMsg string, finishedAt time.Time) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	query := `
UPDATE jobs SET status = $2, stats = $3, error_message = $4, finished_at = $5
WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, jobID, string(status), statsJSON, errMsg, finishedAt)
	if err != nil {
		return fmt.Errorf("finalize job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pipeline.ErrJobNotFound
	}
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(ctx context.Context, jobID string) (pipeline.Job, error) {
	query := `
SELECT id, url, status, submitted_at, started_at, finished_at, stats, error_message
FROM jobs WHERE id = $1`

	var (
		job       pipeline.Job
		status    string
		statsJSON []byte
	)
	err := s.pool.QueryRow(ctx, query, jobID).Scan(
		&job.ID, &job.URL, &status, &job.Submitted,
		&job.Started, &job.Finished, &statsJSON, &job.ErrorMessage,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return pipeline.Job{}, pipeline.ErrJobNotFound
	}
	if err != nil {
		return pipeline.Job{}, fmt.Errorf("select job: %w", err)
	}
	job.Status = pipeline.JobStatus(status)
	if len(statsJSON) > 0 {
		if err := json.Unmarshal(statsJSON, &job.Stats); err != nil {
			return pipeline.Job{}, fmt.Errorf("unmarshal stats: %w", err)
		}
	}
	return job, nil
}
