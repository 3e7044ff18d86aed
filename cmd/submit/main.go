// Command submit creates a transcription job and enqueues its task.
//
// Either reference audio already in the audio container:
//
//	submit -audio-ref call-42.wav -interval 5min -speaker
//
// or upload a local file first:
//
//	submit -file ./call-42.wav -interval 1min
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/skypro1111/transcript-worker/internal/config"
	"github.com/skypro1111/transcript-worker/internal/job"
	"github.com/skypro1111/transcript-worker/internal/queue"
	"github.com/skypro1111/transcript-worker/internal/storage/blobstore"
	"github.com/skypro1111/transcript-worker/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	envFile := flag.String("env", ".env", "Path to environment file with secrets")
	audioRef := flag.String("audio-ref", "", "Key of a recording already in the audio container")
	file := flag.String("file", "", "Local recording to upload before submitting")
	name := flag.String("name", "", "Blob name for -file (defaults to the file's base name)")
	interval := flag.String("interval", "1min", "Transcript bucket width: 1min or 5min")
	speaker := flag.Bool("speaker", false, "Include speaker labels in the transcript")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if (*audioRef == "") == (*file == "") {
		fmt.Fprintln(os.Stderr, "exactly one of -audio-ref or -file is required")
		flag.Usage()
		os.Exit(2)
	}

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load environment: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	id, err := run(ctx, cfg, logger, *audioRef, *file, *name, *interval, *speaker)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Submit failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(id)
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, audioRef, file, name, interval string, speaker bool) (string, error) {
	store, err := postgres.New(ctx, postgres.Config{DSN: cfg.Database.DSN, MaxConns: 1}, logger)
	if err != nil {
		return "", err
	}
	defer store.Close()

	producer, err := queue.NewProducer(cfg.Queue.URL, cfg.Queue.Name)
	if err != nil {
		return "", err
	}
	defer producer.Close()

	var blobs job.BlobStore
	if file != "" {
		blobs, err = blobstore.Open(cfg.Storage.Backend, cfg.Storage.ConnectionString, cfg.Storage.LocalDir, logger)
		if err != nil {
			return "", err
		}
	}

	submitter := job.NewSubmitter(store, blobs, producer, cfg.Storage.AudioContainer, logger)

	if file == "" {
		return submitter.Submit(ctx, audioRef, interval, speaker)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", file, err)
	}
	if name == "" {
		name = filepath.Base(file)
	}
	return submitter.SubmitAudio(ctx, name, data, interval, speaker)
}
