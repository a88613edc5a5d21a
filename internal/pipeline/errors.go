package pipeline

import "errors"

// Sentinel errors shared across subsystems. Per-page errors are contained at
// the page boundary by the orchestrator; only a job-level fatal condition
// reaches the job record.
var (
	// ErrNotProductPage means extraction found no product signal. The page is
	// skipped, not counted as an error.
	ErrNotProductPage = errors.New("page is not a product page")

	// ErrJobNotFound is returned by job stores for unknown job IDs.
	ErrJobNotFound = errors.New("job not found")

	// ErrVisionUnavailable means no vision model is configured; the inference
	// engine goes straight to the rule-based fallback.
	ErrVisionUnavailable = errors.New("vision model not configured")

	// ErrJobFatal wraps the only error class that flips a job to failed:
	// the seed URL was unreachable or zero pages were ever fetched.
	ErrJobFatal = errors.New("job failed before any page was processed")

	// ErrQueueClosed is returned by queues after shutdown.
	ErrQueueClosed = errors.New("queue closed")
)
