// Package memory provides in-memory store implementations for development
// and testing.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gemfetch/jewelcrawler/internal/pipeline"
)

// JobStore keeps jobs in a map guarded by a RWMutex.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]pipeline.Job
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]pipeline.Job)}
}

// CreateJob stores a new job in queued status.
func (s *JobStore) CreateJob(_ context.Context, job pipeline.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return errors.New("job already exists")
	}
	s.jobs[job.ID] = job
	return nil
}

// MarkRunning transitions a queued job to running.
func (s *JobStore) MarkRunning(_ context.Context, jobID string, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return pipeline.ErrJobNotFound
	}
	job.Status = pipeline.JobStatusRunning
	job.Started = &startedAt
	s.jobs[jobID] = job
	return nil
}

// FinalizeJob records the terminal status, stats and error text.
func (s *JobStore) FinalizeJob(_ context.Context, jobID string, status pipeline.JobStatus, stats pipeline.JobStats, errMsg string, finishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return pipeline.ErrJobNotFound
	}
	job.Status = status
	job.Stats = stats
	job.ErrorMessage = errMsg
	job.Finished = &finishedAt
	s.jobs[jobID] = job
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (pipeline.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return pipeline.Job{}, pipeline.ErrJobNotFound
	}
	return job, nil
}
