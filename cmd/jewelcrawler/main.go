// Package main wires together the scraper service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/gemfetch/jewelcrawler/internal/api"
	"github.com/gemfetch/jewelcrawler/internal/clock/system"
	"github.com/gemfetch/jewelcrawler/internal/config"
	"github.com/gemfetch/jewelcrawler/internal/crawler"
	"github.com/gemfetch/jewelcrawler/internal/dispatcher"
	"github.com/gemfetch/jewelcrawler/internal/extract"
	"github.com/gemfetch/jewelcrawler/internal/hash/sha256"
	"github.com/gemfetch/jewelcrawler/internal/id/uuid"
	"github.com/gemfetch/jewelcrawler/internal/images"
	"github.com/gemfetch/jewelcrawler/internal/inference"
	"github.com/gemfetch/jewelcrawler/internal/logging"
	"github.com/gemfetch/jewelcrawler/internal/metrics"
	"github.com/gemfetch/jewelcrawler/internal/orchestrator"
	"github.com/gemfetch/jewelcrawler/internal/pipeline"
	pubsubpublisher "github.com/gemfetch/jewelcrawler/internal/publisher/pubsub"
	queuememory "github.com/gemfetch/jewelcrawler/internal/queue/memory"
	"github.com/gemfetch/jewelcrawler/internal/storage/gcs"
	"github.com/gemfetch/jewelcrawler/internal/storage/local"
	storagememory "github.com/gemfetch/jewelcrawler/internal/storage/memory"
	"github.com/gemfetch/jewelcrawler/internal/storage/postgres"
	"github.com/gemfetch/jewelcrawler/internal/summarize"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, stop); err != nil {
		logger.Fatal("service failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger, stop func()) error {
	jobStore, jewelStore, closeStores, err := buildStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStores()

	imageStore, err := buildImageStore(ctx, cfg)
	if err != nil {
		return err
	}

	hasher := sha256.New()
	clock := system.New()
	idGen := uuid.New()

	var downloader *images.Downloader
	if imageStore != nil {
		downloader = images.New(
			imageStore,
			hasher,
			cfg.Storage.MaxImagesPerProduct,
			cfg.RequestTimeout(),
			cfg.Crawler.UserAgent,
			logger.Named("images"),
		)
	}

	crawlCfg := crawler.Config{
		MaxPages:         cfg.Crawler.MaxPages,
		RequestTimeout:   cfg.RequestTimeout(),
		UserAgent:        cfg.Crawler.UserAgent,
		RateLimitPerHost: float64(cfg.Crawler.RateLimitPerHost),
	}
	fetcher, err := crawler.NewCollyFetcher(crawlCfg, logger.Named("fetcher"))
	if err != nil {
		return fmt.Errorf("init fetcher: %w", err)
	}
	var renderer crawler.Renderer
	if cfg.Headless.Enabled {
		chromedpRenderer, err := crawler.NewChromedpRenderer(crawler.RendererConfig{
			MaxParallel: cfg.Headless.MaxParallel,
			NavTimeout:  time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
			DomainQPS:   float64(cfg.Crawler.RateLimitPerHost),
			UserAgent:   cfg.Crawler.UserAgent,
		}, logger.Named("renderer"))
		if err != nil {
			logger.Warn("headless renderer init failed", zap.Error(err))
		} else {
			renderer = chromedpRenderer
			defer chromedpRenderer.Close()
		}
	}
	detector := crawler.NewHeuristicDetector(cfg.Headless.MinHTMLBytes)
	pageCrawler := crawler.New(fetcher, renderer, detector, crawlCfg, clock, logger.Named("crawler"))

	var vision pipeline.VisionClient
	if cfg.Vision.APIKey != "" {
		visionModel, err := inference.NewVisionModel(
			cfg.Vision.APIKey,
			cfg.Vision.Model,
			cfg.Vision.MaxTokens,
			cfg.Vision.Temperature,
			logger.Named("vision"),
		)
		if err != nil {
			logger.Warn("vision model init failed", zap.Error(err))
		} else {
			vision = visionModel
		}
	}
	inferrer := inference.New(vision, logger.Named("inference"))

	var textModel pipeline.TextModel
	if cfg.Vision.APIKey != "" {
		tm, err := inference.NewTextModel(
			cfg.Vision.APIKey,
			cfg.Vision.Model,
			cfg.Vision.MaxTokens,
			cfg.Vision.Temperature,
		)
		if err != nil {
			logger.Warn("text model init failed", zap.Error(err))
		} else {
			textModel = tm
		}
	}
	summarizer := summarize.New(textModel, logger.Named("summarize"))

	var publisher pipeline.Publisher
	completionTopic := ""
	if cfg.PubSub.ProjectID != "" && cfg.PubSub.TopicName != "" {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return fmt.Errorf("init pubsub client: %w", err)
		}
		defer func() {
			if cerr := client.Close(); cerr != nil {
				logger.Warn("pubsub client close failed", zap.Error(cerr))
			}
		}()
		pub, err := pubsubpublisher.New(client)
		if err != nil {
			return fmt.Errorf("init publisher: %w", err)
		}
		publisher = pub
		completionTopic = cfg.PubSub.TopicName
	}

	orch := orchestrator.New(
		pageCrawler,
		extract.New(cfg.Storage.MaxImagesPerProduct),
		inferrer,
		summarizer,
		downloader,
		jobStore,
		jewelStore,
		publisher,
		idGen,
		clock,
		orchestrator.Config{
			Workers:         cfg.Pipeline.Workers,
			MaxProducts:     cfg.Pipeline.MaxProducts,
			CompletionTopic: completionTopic,
		},
		logger.Named("orchestrator"),
	)

	queue := queuememory.NewQueue(cfg.Pipeline.QueueDepth)
	dispatch := dispatcher.New(queue, orch, cfg.Pipeline.Workers, logger.Named("dispatcher"))

	apiServer := api.NewServer(jobStore, jewelStore, orch, queue, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	dispatcherDone := make(chan struct{})
	go func() {
		defer close(dispatcherDone)
		logger.Info("dispatcher started", zap.Int("workers", cfg.Pipeline.Workers))
		dispatch.Start(ctx)
	}()

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	queue.Close()
	<-dispatcherDone
	logger.Info("shutdown complete")
	return nil
}

func buildStores(ctx context.Context, cfg config.Config) (pipeline.JobStore, pipeline.JewelStore, func(), error) {
	if cfg.DB.DSN == "" {
		return storagememory.NewJobStore(), storagememory.NewJewelStore(), func() {}, nil
	}

	jobStore, err := postgres.NewJobStore(ctx, cfg.DB.DSN, int32(cfg.DB.MaxOpenConns))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init job store: %w", err)
	}
	jewelStore, err := postgres.NewJewelStore(ctx, cfg.DB.DSN, int32(cfg.DB.MaxOpenConns))
	if err != nil {
		jobStore.Close()
		return nil, nil, nil, fmt.Errorf("init jewel store: %w", err)
	}
	closeStores := func() {
		jewelStore.Close()
		jobStore.Close()
	}
	return jobStore, jewelStore, closeStores, nil
}

func buildImageStore(ctx context.Context, cfg config.Config) (pipeline.ImageStore, error) {
	switch cfg.Storage.Provider {
	case "local":
		store, err := local.New(cfg.Storage.ImageDir)
		if err != nil {
			return nil, fmt.Errorf("init local image store: %w", err)
		}
		return store, nil
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("init gcs image store: %w", err)
		}
		return store, nil
	case "noop":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.Storage.Provider)
	}
}
