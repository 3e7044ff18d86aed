package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/skypro1111/transcript-worker/internal/audio"
	"github.com/skypro1111/transcript-worker/internal/config"
	"github.com/skypro1111/transcript-worker/internal/enhance"
	"github.com/skypro1111/transcript-worker/internal/job"
	"github.com/skypro1111/transcript-worker/internal/metrics"
	"github.com/skypro1111/transcript-worker/internal/queue"
	"github.com/skypro1111/transcript-worker/internal/server"
	"github.com/skypro1111/transcript-worker/internal/storage/blobstore"
	"github.com/skypro1111/transcript-worker/internal/storage/postgres"
	"github.com/skypro1111/transcript-worker/internal/transcription"
	"github.com/skypro1111/transcript-worker/internal/vad"
	"github.com/skypro1111/transcript-worker/internal/worker"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "transcript-worker"
	serviceVersion    = "1.0.0"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	envFile := flag.String("env", ".env", "Path to environment file with secrets")
	migrate := flag.Bool("migrate", true, "Create the jobs table if it does not exist")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load environment: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.Int("concurrency", cfg.Worker.Concurrency),
		slog.String("queue", cfg.Queue.Name),
		slog.String("storage_backend", cfg.Storage.Backend),
		slog.Float64("chunk_duration", cfg.Audio.ChunkDuration),
		slog.Int("vad_aggressiveness", cfg.VAD.Aggressiveness),
		slog.String("transcribe_endpoint", cfg.Transcription.TranscribeEndpoint),
		slog.Bool("diarization", cfg.Transcription.DiarizeEndpoint != ""),
		slog.String("log_level", cfg.Logging.Level),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appMetrics := metrics.NewMetrics(prometheus.DefaultRegisterer)

	store, err := postgres.New(ctx, postgres.Config{DSN: cfg.Database.DSN, MaxConns: cfg.Database.MaxConns}, logger)
	if err != nil {
		logger.Error("Failed to connect to job store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	if *migrate {
		if err := store.Migrate(ctx); err != nil {
			logger.Error("Failed to migrate job store", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	blobs, err := blobstore.Open(cfg.Storage.Backend, cfg.Storage.ConnectionString, cfg.Storage.LocalDir, logger)
	if err != nil {
		logger.Error("Failed to open blob storage", slog.String("error", err.Error()))
		os.Exit(1)
	}

	processor, err := newPreprocessor(cfg, logger)
	if err != nil {
		logger.Error("Failed to create preprocessor", slog.String("error", err.Error()))
		os.Exit(1)
	}

	client, err := transcription.NewClient(transcription.Config{
		TranscribeEndpoint: cfg.Transcription.TranscribeEndpoint,
		DiarizeEndpoint:    cfg.Transcription.DiarizeEndpoint,
		APIKey:             cfg.Transcription.APIKey,
		Timeout:            cfg.Transcription.GetTimeoutDuration(),
		MaxConcurrent:      cfg.Transcription.MaxConcurrent,
		Language:           cfg.Transcription.Language,
		Model:              cfg.Transcription.Model,
	})
	if err != nil {
		logger.Error("Failed to create transcription client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer client.Close()

	deps := job.Dependencies{
		Jobs:        store,
		Blobs:       blobs,
		Processor:   processor,
		Transcriber: client,
	}
	if cfg.Transcription.DiarizeEndpoint != "" {
		deps.Diarizer = client
	}

	pipeline, err := job.NewPipeline(deps, job.PipelineConfig{
		AudioContainer:      cfg.Storage.AudioContainer,
		TranscriptContainer: cfg.Storage.TranscriptContainer,
	}, logger, appMetrics)
	if err != nil {
		logger.Error("Failed to create pipeline", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Prefetch never drops below concurrency so every goroutine can hold a task
	prefetch := cfg.Queue.Prefetch
	if prefetch < cfg.Worker.Concurrency {
		prefetch = cfg.Worker.Concurrency
	}
	consumer, err := queue.NewConsumer(cfg.Queue.URL, cfg.Queue.Name, prefetch, logger)
	if err != nil {
		logger.Error("Failed to connect to task queue", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer consumer.Close()

	deliveries, err := consumer.Consume(ctx)
	if err != nil {
		logger.Error("Failed to start consuming", slog.String("error", err.Error()))
		os.Exit(1)
	}

	pool := worker.New(pipeline, worker.Config{Concurrency: cfg.Worker.Concurrency}, logger, appMetrics)

	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, server.Dependencies{
			Config:   cfg,
			Worker:   pool,
			Models:   client,
			Jobs:     store,
			Database: store,
			Gatherer: prometheus.DefaultGatherer,
			Metrics:  appMetrics,
		})
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		pool.Run(ctx, deliveries)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...")

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-workerDone:
		logger.Warn("Delivery channel closed, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	// Cancelling interrupts in-flight jobs; their deliveries are requeued
	cancel()

	select {
	case <-workerDone:
	case <-time.After(30 * time.Second):
		logger.Warn("Timed out waiting for in-flight jobs")
	}

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	stats := pool.Stats()
	logger.Info("Final worker statistics",
		slog.Uint64("received", stats.Received),
		slog.Uint64("acked", stats.Acked),
		slog.Uint64("rejected", stats.Rejected),
		slog.Uint64("requeued", stats.Requeued),
	)

	logger.Info("Service stopped")
}

// newPreprocessor builds the chunk → VAD → enhance stage from configuration
func newPreprocessor(cfg *config.Config, logger *slog.Logger) (*enhance.Preprocessor, error) {
	chunker, err := audio.NewChunker(audio.ChunkingConfig{Duration: cfg.Audio.GetChunkDuration()})
	if err != nil {
		return nil, fmt.Errorf("chunker: %w", err)
	}

	segmenter, err := vad.NewSegmenter(cfg.VAD, nil)
	if err != nil {
		return nil, fmt.Errorf("vad: %w", err)
	}

	enhancer, err := enhance.NewEnhancer(cfg.Enhance)
	if err != nil {
		return nil, fmt.Errorf("enhancer: %w", err)
	}

	return enhance.NewPreprocessor(chunker, segmenter, enhancer, cfg.Audio.EnhanceWorkers, logger), nil
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
