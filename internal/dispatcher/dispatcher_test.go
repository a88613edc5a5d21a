package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gemfetch/jewelcrawler/internal/pipeline"
	"github.com/gemfetch/jewelcrawler/internal/queue/memory"
)

type recordingRunner struct {
	mu   sync.Mutex
	jobs []string
	err  error
}

func (r *recordingRunner) Run(_ context.Context, jobID, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, jobID)
	return r.err
}

func (r *recordingRunner) ran() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.jobs))
	copy(out, r.jobs)
	return out
}

func TestDispatcherRunsQueuedJobs(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue(8)
	runner := &recordingRunner{}
	d := New(q, runner, 2, zap.NewNop())

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		require.NoError(t, q.Enqueue(ctx, pipeline.QueueItem{
			JobID: fmt.Sprintf("job-%d", i),
			URL:   "https://shop.example.com",
		}))
	}
	q.Close()

	done := make(chan struct{})
	go func() {
		d.Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not drain the queue")
	}
	assert.Len(t, runner.ran(), 4)
}

func TestDispatcherStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue(1)
	runner := &recordingRunner{}
	d := New(q, runner, 2, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not stop on cancel")
	}
}

func TestDispatcherSurvivesRunnerErrors(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue(4)
	runner := &recordingRunner{err: fmt.Errorf("boom")}
	d := New(q, runner, 1, zap.NewNop())

	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, pipeline.QueueItem{JobID: "a"}))
	require.NoError(t, q.Enqueue(ctx, pipeline.QueueItem{JobID: "b"}))
	q.Close()

	done := make(chan struct{})
	go func() {
		d.Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not drain")
	}
	assert.Equal(t, []string{"a", "b"}, runner.ran())
}
