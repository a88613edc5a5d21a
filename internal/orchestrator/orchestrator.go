// Package orchestrator runs scrape jobs end to end: crawl, extract,
// normalize, infer, summarize, store. A job fails only when the seed is
// unreachable or yields nothing; individual page failures are counted
// and skipped.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/gemfetch/jewelcrawler/internal/extract"
	"github.com/gemfetch/jewelcrawler/internal/images"
	"github.com/gemfetch/jewelcrawler/internal/inference"
	"github.com/gemfetch/jewelcrawler/internal/metrics"
	"github.com/gemfetch/jewelcrawler/internal/normalize"
	"github.com/gemfetch/jewelcrawler/internal/pipeline"
	"github.com/gemfetch/jewelcrawler/internal/summarize"
)

// Crawler streams candidate pages for a seed URL.
type Crawler interface {
	Crawl(ctx context.Context, seed string, obs pipeline.StatsObserver, out chan<- pipeline.CandidatePage) (int, error)
}

// Config sizes the per-job worker pool.
type Config struct {
	Workers     int
	MaxProducts int
	// CompletionTopic is where finished-job events are published. Empty
	// disables publishing.
	CompletionTopic string
}

// Orchestrator wires the pipeline stages together.
type Orchestrator struct {
	crawler    Crawler
	extractor  *extract.Extractor
	inferrer   *inference.Engine
	summarizer *summarize.Summarizer
	downloader *images.Downloader
	jobs       pipeline.JobStore
	jewels     pipeline.JewelStore
	publisher  pipeline.Publisher
	ids        pipeline.IDGenerator
	clock      pipeline.Clock
	cfg        Config
	logger     *zap.Logger
}

// New constructs an Orchestrator. publisher may be nil.
func New(
	crawler Crawler,
	extractor *extract.Extractor,
	inferrer *inference.Engine,
	summarizer *summarize.Summarizer,
	downloader *images.Downloader,
	jobs pipeline.JobStore,
	jewels pipeline.JewelStore,
	publisher pipeline.Publisher,
	ids pipeline.IDGenerator,
	clock pipeline.Clock,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Orchestrator{
		crawler:    crawler,
		extractor:  extractor,
		inferrer:   inferrer,
		summarizer: summarizer,
		downloader: downloader,
		jobs:       jobs,
		jewels:     jewels,
		publisher:  publisher,
		ids:        ids,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}
}

// Submit registers a new queued job for the URL and returns it.
func (o *Orchestrator) Submit(ctx context.Context, url string) (pipeline.Job, error) {
	id, err := o.ids.NewID()
	if err != nil {
		return pipeline.Job{}, fmt.Errorf("generate job id: %w", err)
	}
	job := pipeline.Job{
		ID:        id,
		URL:       url,
		Status:    pipeline.JobStatusQueued,
		Submitted: o.clock.Now(),
	}
	if err := o.jobs.CreateJob(ctx, job); err != nil {
		return pipeline.Job{}, fmt.Errorf("create job: %w", err)
	}
	return job, nil
}

// completionEvent is the payload published when a job reaches a terminal
// status.
type completionEvent struct {
	JobID      string             `json:"job_id"`
	URL        string             `json:"url"`
	Status     pipeline.JobStatus `json:"status"`
	Stats      pipeline.JobStats  `json:"stats"`
	Error      string             `json:"error,omitempty"`
	FinishedAt time.Time          `json:"finished_at"`
}

// Run executes one job to a terminal status. The returned error reflects
// bookkeeping failures only; a failed crawl is reported through the job
// record, not the error.
func (o *Orchestrator) Run(ctx context.Context, jobID, seedURL string) error {
	started := o.clock.Now()
	if err := o.jobs.MarkRunning(ctx, jobID, started); err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}
	o.logger.Info("job started", zap.String("job_id", jobID), zap.String("url", seedURL))

	stats := &jobStats{}
	var stored int64

	out := make(chan pipeline.CandidatePage)
	var wg sync.WaitGroup
	for i := 0; i < o.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for page := range out {
				o.processPage(ctx, jobID, page, stats, &stored)
			}
		}()
	}

	_, crawlErr := o.crawler.Crawl(ctx, seedURL, stats, out)
	close(out)
	wg.Wait()

	status := pipeline.JobStatusSuccess
	errMsg := ""
	if crawlErr != nil {
		if errors.Is(crawlErr, pipeline.ErrJobFatal) || errors.Is(crawlErr, context.Canceled) ||
			errors.Is(crawlErr, context.DeadlineExceeded) {
			status = pipeline.JobStatusFailed
			errMsg = crawlErr.Error()
		} else {
			// A non-fatal crawl error after pages were fetched degrades to a
			// counted error.
			stats.ErrorOccurred()
			o.logger.Warn("crawl ended with error", zap.String("job_id", jobID), zap.Error(crawlErr))
		}
	}

	finished := o.clock.Now()
	final := stats.snapshot()
	if err := o.jobs.FinalizeJob(ctx, jobID, status, final, errMsg, finished); err != nil {
		return fmt.Errorf("finalize job: %w", err)
	}
	metrics.ObserveJob(string(status), finished.Sub(started))
	o.logger.Info("job finished",
		zap.String("job_id", jobID),
		zap.String("status", string(status)),
		zap.Int("pages_crawled", final.PagesCrawled),
		zap.Int("products_stored", final.ProductsStored),
		zap.Int("errors", final.Errors))

	o.publishCompletion(ctx, completionEvent{
		JobID:      jobID,
		URL:        seedURL,
		Status:     status,
		Stats:      final,
		Error:      errMsg,
		FinishedAt: finished,
	})
	return nil
}

// processPage runs one candidate page through the pipeline. A panic in any
// stage is contained here so one page cannot take down the job.
func (o *Orchestrator) processPage(ctx context.Context, jobID string, page pipeline.CandidatePage, stats *jobStats, stored *int64) {
	defer func() {
		if r := recover(); r != nil {
			stats.ErrorOccurred()
			o.logger.Error("page processing panicked",
				zap.String("job_id", jobID),
				zap.String("url", page.URL),
				zap.Any("panic", r))
		}
	}()

	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	raw, err := o.extractor.Extract(page)
	if err != nil {
		if errors.Is(err, pipeline.ErrNotProductPage) {
			stats.PageSkipped()
			metrics.ObservePage(page.URL, "skipped")
			return
		}
		stats.ErrorOccurred()
		metrics.ObservePage(page.URL, "error")
		o.logger.Warn("extraction failed", zap.String("url", page.URL), zap.Error(err))
		return
	}
	metrics.ObservePage(page.URL, "product")
	stats.ProductFound()
	metrics.ObserveProduct(page.URL, "found")

	// Reserve a slot up front so concurrent workers cannot overshoot the
	// product cap between a check and the store.
	if n := atomic.AddInt64(stored, 1); o.cfg.MaxProducts > 0 && n > int64(o.cfg.MaxProducts) {
		atomic.AddInt64(stored, -1)
		stats.PageSkipped()
		return
	}
	kept := false
	defer func() {
		if !kept {
			atomic.AddInt64(stored, -1)
		}
	}()

	product := normalize.Product(raw)
	attrs := o.inferrer.Infer(ctx, product)
	metrics.ObserveInference(string(attrs.Source))
	if attrs.SkipReason != "" {
		stats.PageSkipped()
		metrics.ObservePage(page.URL, "skipped")
		o.logger.Info("skipping generic listing",
			zap.String("url", page.URL),
			zap.String("reason", attrs.SkipReason))
		return
	}
	summary := o.summarizer.Summarize(ctx, product, attrs)

	var imagePaths []string
	if o.downloader != nil {
		imagePaths = o.downloader.Download(ctx, product.SourceURL, product.Images, stats)
		metrics.ObserveImages(page.URL, len(imagePaths))
	}

	id, err := o.ids.NewID()
	if err != nil {
		stats.ErrorOccurred()
		o.logger.Error("generate jewel id", zap.String("url", page.URL), zap.Error(err))
		return
	}
	now := o.clock.Now()
	jewel := pipeline.Jewel{
		ID:            id,
		Name:          product.Name,
		SourceURL:     product.SourceURL,
		JewelType:     firstNonEmpty(attrs.JewelType, product.JewelType),
		Metal:         product.Metal,
		Gemstone:      firstNonEmpty(attrs.Gemstone, product.Gemstone),
		GemstoneColor: attrs.GemstoneColor,
		MetalColor:    attrs.MetalColor,
		Color:         product.Color,
		PriceAmount:   product.PriceAmount,
		PriceCurrency: product.PriceCurrency,
		Inferred:      attrs,
		Vibe:          summary.Vibe,
		Summary:       summary.Text,
		Images:        imagePaths,
		RawMetadata:   product.Metadata,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if _, _, err := o.jewels.Upsert(ctx, jewel); err != nil {
		stats.ErrorOccurred()
		o.logger.Error("store jewel", zap.String("url", page.URL), zap.Error(err))
		return
	}
	kept = true
	stats.ProductStored()
	metrics.ObserveProduct(page.URL, "stored")
}

// publishCompletion is best-effort: a broker outage never affects the job
// record.
func (o *Orchestrator) publishCompletion(ctx context.Context, event completionEvent) {
	if o.publisher == nil || o.cfg.CompletionTopic == "" {
		return
	}
	if _, err := o.publisher.Publish(ctx, o.cfg.CompletionTopic, event); err != nil {
		o.logger.Warn("publish completion event",
			zap.String("job_id", event.JobID), zap.Error(err))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
