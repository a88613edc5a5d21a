package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gemfetch/jewelcrawler/internal/metrics"
	"github.com/gemfetch/jewelcrawler/internal/pipeline"
	queuemem "github.com/gemfetch/jewelcrawler/internal/queue/memory"
	"github.com/gemfetch/jewelcrawler/internal/storage/memory"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

type stubSubmitter struct {
	jobs pipeline.JobStore
	err  error
	next int
}

func (s *stubSubmitter) Submit(ctx context.Context, url string) (pipeline.Job, error) {
	if s.err != nil {
		return pipeline.Job{}, s.err
	}
	s.next++
	job := pipeline.Job{
		ID:        fmt.Sprintf("job-%d", s.next),
		URL:       url,
		Status:    pipeline.JobStatusQueued,
		Submitted: time.Now().UTC(),
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return pipeline.Job{}, err
	}
	return job, nil
}

func newTestServer(t *testing.T) (*Server, *memory.JobStore, *memory.JewelStore, *queuemem.Queue) {
	t.Helper()
	jobs := memory.NewJobStore()
	jewels := memory.NewJewelStore()
	queue := queuemem.NewQueue(8)
	submitter := &stubSubmitter{jobs: jobs}
	srv := NewServer(jobs, jewels, submitter, queue, zap.NewNop())
	return srv, jobs, jewels, queue
}

func TestSubmitScrape(t *testing.T) {
	t.Parallel()

	srv, jobs, _, queue := newTestServer(t)

	body := bytes.NewBufferString(`{"url":"https://shop.example.com/jewelry"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/scrape", body)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["job_id"])
	assert.Equal(t, "queued", resp["status"])

	job, err := jobs.GetJob(context.Background(), resp["job_id"])
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example.com/jewelry", job.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	item, err := queue.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, resp["job_id"], item.JobID)
}

func TestSubmitScrapeRejectsBadInput(t *testing.T) {
	t.Parallel()

	srv, _, _, _ := newTestServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"empty url", `{"url":""}`},
		{"relative url", `{"url":"/jewelry"}`},
		{"bad scheme", `{"url":"ftp://shop.example.com"}`},
		{"not json", `url=https://shop.example.com`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/scrape", bytes.NewBufferString(tc.body))
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestSubmitScrapeQueueFull(t *testing.T) {
	t.Parallel()

	jobs := memory.NewJobStore()
	queue := queuemem.NewQueue(1)
	srv := NewServer(jobs, memory.NewJewelStore(), &stubSubmitter{jobs: jobs}, queue, zap.NewNop())

	require.NoError(t, queue.Enqueue(context.Background(), pipeline.QueueItem{JobID: "blocker"}))

	// Enqueue will block until its 5s timeout fires, so allow a margin.
	body := bytes.NewBufferString(`{"url":"https://shop.example.com"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/scrape", body)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetJob(t *testing.T) {
	t.Parallel()

	srv, jobs, _, _ := newTestServer(t)

	submitted := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, jobs.CreateJob(context.Background(), pipeline.Job{
		ID:        "job-42",
		URL:       "https://shop.example.com",
		Status:    pipeline.JobStatusQueued,
		Submitted: submitted,
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/job-42", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var job pipeline.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, "job-42", job.ID)
	assert.Equal(t, pipeline.JobStatusQueued, job.Status)
}

func TestGetJobNotFound(t *testing.T) {
	t.Parallel()

	srv, _, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/nope", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListJewels(t *testing.T) {
	t.Parallel()

	srv, _, jewels, _ := newTestServer(t)

	seed := []pipeline.Jewel{
		{ID: "j1", SourceURL: "https://a.example.com/1", JewelType: "ring", Metal: "yellow gold", Vibe: pipeline.VibeWedding},
		{ID: "j2", SourceURL: "https://a.example.com/2", JewelType: "necklace", Metal: "silver", Vibe: pipeline.VibeCasual},
		{ID: "j3", SourceURL: "https://a.example.com/3", JewelType: "ring", Metal: "platinum", Vibe: pipeline.VibeWedding},
	}
	for _, j := range seed {
		_, _, err := jewels.Upsert(context.Background(), j)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/jewels?vibe=wedding&jewel_type=ring", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var page pipeline.JewelPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 2, page.Total)
	for _, item := range page.Items {
		assert.Equal(t, "ring", item.JewelType)
		assert.Equal(t, pipeline.VibeWedding, item.Vibe)
	}
}

func TestListJewelsValidation(t *testing.T) {
	t.Parallel()

	srv, _, _, _ := newTestServer(t)

	cases := []struct {
		name  string
		query string
	}{
		{"unknown vibe", "?vibe=sporty"},
		{"bad limit", "?limit=abc"},
		{"zero limit", "?limit=0"},
		{"negative offset", "?offset=-1"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/jewels"+tc.query, nil)
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestListJewelsEmptyIsArray(t *testing.T) {
	t.Parallel()

	srv, _, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/jewels", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"items":[]`)
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	srv, _, _, _ := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestSubmitScrapeSubmitterError(t *testing.T) {
	t.Parallel()

	jobs := memory.NewJobStore()
	srv := NewServer(jobs, memory.NewJewelStore(),
		&stubSubmitter{jobs: jobs, err: errors.New("store down")},
		queuemem.NewQueue(1), zap.NewNop())

	body := bytes.NewBufferString(`{"url":"https://shop.example.com"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/scrape", body)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
