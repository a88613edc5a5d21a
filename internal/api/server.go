// Package api exposes the HTTP interface for the scraper service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/gemfetch/jewelcrawler/internal/metrics"
	"github.com/gemfetch/jewelcrawler/internal/pipeline"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	enqueueTimeout   = 5 * time.Second
)

// JobSubmitter registers a new scrape job.
type JobSubmitter interface {
	Submit(ctx context.Context, url string) (pipeline.Job, error)
}

// Server wires HTTP handlers to the stores and the job queue.
type Server struct {
	router    chi.Router
	jobs      pipeline.JobStore
	jewels    pipeline.JewelStore
	submitter JobSubmitter
	queue     pipeline.Queue
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	jobs pipeline.JobStore,
	jewels pipeline.JewelStore,
	submitter JobSubmitter,
	queue pipeline.Queue,
	logger *zap.Logger,
) *Server {
	s := &Server{
		jobs:      jobs,
		jewels:    jewels,
		submitter: submitter,
		queue:     queue,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/scrape", s.submitScrape)
		r.Get("/jobs/{job_id}", s.getJob)
		r.Get("/jewels", s.listJewels)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.jobs.GetJob(r.Context(), "readiness-probe"); err != nil &&
		!errors.Is(err, pipeline.ErrJobNotFound) {
		s.writeError(w, http.StatusServiceUnavailable, "job store unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type scrapeRequest struct {
	URL string `json:"url"`
}

func (s *Server) submitScrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	seed := strings.TrimSpace(req.URL)
	if err := validateSeedURL(seed); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := s.submitter.Submit(r.Context(), seed)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	queueCtx, cancel := context.WithTimeout(r.Context(), enqueueTimeout)
	defer cancel()
	item := pipeline.QueueItem{
		JobID:     job.ID,
		URL:       job.URL,
		Submitted: job.Submitted.Unix(),
	}
	if err := s.queue.Enqueue(queueCtx, item); err != nil {
		s.logger.Error("enqueue job", zap.String("job_id", job.ID), zap.Error(err))
		s.writeError(w, http.StatusServiceUnavailable, "job queue is full")
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.ID,
		"status": string(job.Status),
	})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, pipeline.ErrJobNotFound) {
			s.writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.logger.Error("get job", zap.String("job_id", jobID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to fetch job")
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

func (s *Server) listJewels(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parseLimitOffset(r, defaultListLimit, maxListLimit)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	query := r.URL.Query()
	filter := pipeline.JewelFilter{
		Vibe:      strings.TrimSpace(query.Get("vibe")),
		Metal:     strings.TrimSpace(query.Get("metal")),
		JewelType: strings.TrimSpace(query.Get("jewel_type")),
		Limit:     limit,
		Offset:    offset,
	}
	if filter.Vibe != "" && !validVibe(filter.Vibe) {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown vibe %q", filter.Vibe))
		return
	}

	page, err := s.jewels.ListJewels(r.Context(), filter)
	if err != nil {
		s.logger.Error("list jewels", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list jewels")
		return
	}
	if page.Items == nil {
		page.Items = []pipeline.Jewel{}
	}
	s.writeJSON(w, http.StatusOK, page)
}

func validateSeedURL(seed string) error {
	if seed == "" {
		return errors.New("url is required")
	}
	parsed, err := url.Parse(seed)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return errors.New("url must be absolute http or https")
	}
	return nil
}

func validVibe(vibe string) bool {
	for _, v := range pipeline.Vibes {
		if strings.EqualFold(v, vibe) {
			return true
		}
	}
	return false
}

func parseLimitOffset(r *http.Request, def, max int) (int, int, error) {
	limit := def
	offset := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return 0, 0, errors.New("limit must be a positive integer")
		}
		if v > max {
			v = max
		}
		limit = v
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return 0, 0, errors.New("offset must be a non-negative integer")
		}
		offset = v
	}
	return limit, offset, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
