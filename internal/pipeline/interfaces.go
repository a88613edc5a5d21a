package pipeline

import (
	"context"
	"time"
)

// JobStore persists job metadata and lifecycle transitions. The orchestrator
// is the only writer; API handlers read snapshots.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	MarkRunning(ctx context.Context, jobID string, startedAt time.Time) error
	FinalizeJob(ctx context.Context, jobID string, status JobStatus, stats JobStats, errMsg string, finishedAt time.Time) error
	GetJob(ctx context.Context, jobID string) (Job, error)
}

// JewelStore upserts product records keyed by canonical source URL.
type JewelStore interface {
	// Upsert inserts or updates by source URL. It reports whether a new row
	// was created. Concurrent calls for different URLs must not serialize
	// against each other; concurrent calls for the same URL must never
	// produce a torn row.
	Upsert(ctx context.Context, jewel Jewel) (Jewel, bool, error)
	ListJewels(ctx context.Context, filter JewelFilter) (JewelPage, error)
}

// ImageStore writes downloaded image bytes and returns a stable relative path.
type ImageStore interface {
	PutImage(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// VisionClient is the primary inference path: a vision-capable model call.
// Errors from it never escape the inference engine; they trigger the
// rule-based fallback instead.
type VisionClient interface {
	Infer(ctx context.Context, req VisionRequest) (InferredAttributes, error)
}

// VisionRequest carries the image plus text context handed to the model.
type VisionRequest struct {
	ImageURL string
	Name     string
	Metal    string
	Price    string
}

// TextModel generates short prose; the summarizer falls back to a template
// when it is absent or fails.
type TextModel interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Queue provides enqueue/dequeue semantics for scrape jobs.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// QueueItem wraps a job ready to run.
type QueueItem struct {
	JobID     string
	URL       string
	Submitted int64
}

// Publisher pushes job completion events to a broker.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// StatsObserver receives counter increments from pipeline stages. Stages
// report through this interface rather than mutating job state directly.
type StatsObserver interface {
	PageCrawled()
	PageSkipped()
	ProductFound()
	ProductStored()
	ImagesDownloaded(n int)
	ErrorOccurred()
}

// NopObserver discards all increments. Useful for tests and tools.
type NopObserver struct{}

func (NopObserver) PageCrawled()         {}
func (NopObserver) PageSkipped()         {}
func (NopObserver) ProductFound()        {}
func (NopObserver) ProductStored()       {}
func (NopObserver) ImagesDownloaded(int) {}
func (NopObserver) ErrorOccurred()       {}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job and jewel IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// Hasher computes digests for URL-stable storage paths.
type Hasher interface {
	Hash(data []byte) (string, error)
}
