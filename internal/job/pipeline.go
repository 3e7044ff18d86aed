package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/skypro1111/transcript-worker/internal/audio"
	"github.com/skypro1111/transcript-worker/internal/metrics"
	"github.com/skypro1111/transcript-worker/internal/transcript"
)

// Default blob containers
const (
	DefaultAudioContainer      = "audio-files"
	DefaultTranscriptContainer = "transcripts"
)

// failureTimeout bounds the write that records a failed job.
const failureTimeout = 10 * time.Second

// PipelineConfig contains pipeline configuration
type PipelineConfig struct {
	AudioContainer      string
	TranscriptContainer string
}

// Dependencies are the collaborators a pipeline runs against. Diarizer may
// be nil when no task requests speakers.
type Dependencies struct {
	Jobs        JobStore
	Blobs       BlobStore
	Processor   SignalProcessor
	Transcriber Transcriber
	Diarizer    Diarizer
}

// Pipeline runs transcription jobs end to end
type Pipeline struct {
	deps    Dependencies
	config  PipelineConfig
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Result describes a completed job
type Result struct {
	TranscriptURL      string
	TranscriptFilename string
	Rows               int
	AudioDuration      float64
}

// NewPipeline creates a pipeline. m may be nil.
func NewPipeline(deps Dependencies, config PipelineConfig, logger *slog.Logger, m *metrics.Metrics) (*Pipeline, error) {
	if deps.Jobs == nil || deps.Blobs == nil || deps.Processor == nil || deps.Transcriber == nil {
		return nil, fmt.Errorf("job store, blob store, processor and transcriber are required")
	}
	if config.AudioContainer == "" {
		config.AudioContainer = DefaultAudioContainer
	}
	if config.TranscriptContainer == "" {
		config.TranscriptContainer = DefaultTranscriptContainer
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{deps: deps, config: config, logger: logger, metrics: m}, nil
}

// Run executes task. Invalid arguments are returned before any store is
// touched. Every later failure is recorded as failed and returned; if that
// write itself fails, or the run was interrupted, the error wraps
// ErrStatusNotRecorded and the task should be redelivered. A task for a job
// already in a terminal state is skipped and returns nil.
func (p *Pipeline) Run(ctx context.Context, task Task) error {
	if err := task.Validate(); err != nil {
		return err
	}

	logger := p.logger.With(slog.String("job_id", task.JobID))

	current, err := p.deps.Jobs.Get(ctx, task.JobID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("job %s: %w", task.JobID, err)
		}
		return fmt.Errorf("%w: failed to load job %s: %w", ErrStatusNotRecorded, task.JobID, err)
	}

	if current.Status.Terminal() {
		logger.Info("Skipping redelivered task for finished job", slog.String("status", string(current.Status)))
		p.metrics.RecordJobSkipped()
		return nil
	}

	if err := p.deps.Jobs.Update(ctx, task.JobID, Update{Status: StatusProcessing}); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			logger.Info("Skipping task, job left an active state", slog.String("error", err.Error()))
			p.metrics.RecordJobSkipped()
			return nil
		}
		return fmt.Errorf("%w: failed to mark job processing: %w", ErrStatusNotRecorded, err)
	}

	start := time.Now()
	p.metrics.RecordJobStarted()
	logger.Info("Processing transcription job",
		slog.String("audio_ref", task.AudioRef),
		slog.String("interval", task.Interval),
		slog.Bool("include_speaker", task.IncludeSpeaker),
	)

	result, err := p.execute(ctx, logger, task)
	if err != nil {
		p.metrics.RecordJobFailed(Kind(err), time.Since(start).Seconds())
		return p.fail(ctx, logger, task, err)
	}

	update := Update{
		Status:             StatusCompleted,
		TranscriptURL:      result.TranscriptURL,
		TranscriptFilename: result.TranscriptFilename,
	}
	if err := p.deps.Jobs.Update(ctx, task.JobID, update); err != nil {
		p.metrics.RecordJobFailed(Kind(ErrStatusNotRecorded), time.Since(start).Seconds())
		return fmt.Errorf("%w: failed to mark job completed: %w", ErrStatusNotRecorded, err)
	}

	p.metrics.RecordJobCompleted(time.Since(start).Seconds())
	logger.Info("Transcription job completed",
		slog.String("transcript_url", result.TranscriptURL),
		slog.Int("rows", result.Rows),
		slog.Float64("audio_seconds", result.AudioDuration),
		slog.Duration("duration", time.Since(start)),
	)

	return nil
}

// fail records cause as the job's failure. An interrupted run is left in
// processing for redelivery.
func (p *Pipeline) fail(ctx context.Context, logger *slog.Logger, task Task, cause error) error {
	if ctx.Err() != nil {
		logger.Warn("Transcription job interrupted", slog.String("error", cause.Error()))
		return fmt.Errorf("%w: interrupted: %w", ErrStatusNotRecorded, cause)
	}

	logger.Error("Transcription job failed",
		slog.String("kind", Kind(cause)),
		slog.String("error", cause.Error()),
	)

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureTimeout)
	defer cancel()

	if err := p.deps.Jobs.Update(recordCtx, task.JobID, Update{Status: StatusFailed, Error: cause.Error()}); err != nil {
		logger.Error("Failed to record job failure", slog.String("error", err.Error()))
		return fmt.Errorf("%w: %w (recording failure: %v)", ErrStatusNotRecorded, cause, err)
	}

	return cause
}

// execute runs the stages of one job and uploads the transcript
func (p *Pipeline) execute(ctx context.Context, logger *slog.Logger, task Task) (*Result, error) {
	width, err := transcript.ParseInterval(task.Interval)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedConfiguration, err)
	}
	if task.IncludeSpeaker && p.deps.Diarizer == nil {
		return nil, fmt.Errorf("%w: speakers requested but no diarizer is configured", ErrUnsupportedConfiguration)
	}

	var raw []byte
	err = p.stage(logger, "download", func() error {
		var err error
		raw, err = p.deps.Blobs.Get(ctx, p.config.AudioContainer, task.AudioRef)
		p.metrics.RecordStorageOperation("blob_get", err == nil)
		if err != nil {
			return fmt.Errorf("%w: failed to download %s: %w", ErrStorage, task.AudioRef, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var sig audio.Signal
	err = p.stage(logger, "decode", func() error {
		var err error
		if sig, err = audio.Decode(raw); err != nil {
			return fmt.Errorf("%w: %w", ErrDecode, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var wav []byte
	var duration float64
	err = p.stage(logger, "preprocess", func() error {
		enhanced, stats, err := p.deps.Processor.Process(ctx, sig)
		if err != nil {
			if errors.Is(err, audio.ErrDecode) {
				return fmt.Errorf("%w: %w", ErrDecode, err)
			}
			return fmt.Errorf("preprocessing failed: %w", err)
		}
		duration = enhanced.Duration()
		p.metrics.RecordPreprocessing(stats.Chunks, stats.FallbackChunks, stats.Frames, stats.VoicedFrames, stats.Spans, duration)

		if wav, err = audio.EncodeWAV(enhanced); err != nil {
			return fmt.Errorf("failed to encode enhanced audio: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var segments []transcript.Segment
	err = p.stage(logger, "transcribe", func() error {
		started := time.Now()
		var err error
		segments, err = p.deps.Transcriber.Transcribe(ctx, wav)
		p.metrics.RecordModelRequest("transcribe", err == nil, time.Since(started).Seconds())
		if err != nil {
			return fmt.Errorf("%w: %w", ErrModelInference, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var speakers []transcript.SpeakerSpan
	if task.IncludeSpeaker {
		err = p.stage(logger, "diarize", func() error {
			started := time.Now()
			var err error
			speakers, err = p.deps.Diarizer.Diarize(ctx, wav)
			p.metrics.RecordModelRequest("diarize", err == nil, time.Since(started).Seconds())
			if err != nil {
				return fmt.Errorf("%w: %w", ErrModelInference, err)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	var csv []byte
	var rows int
	err = p.stage(logger, "assemble", func() error {
		assembled, err := transcript.Assemble(segments, speakers, transcript.Options{
			Width:          width,
			Duration:       duration,
			IncludeSpeaker: task.IncludeSpeaker,
		})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrAssembly, err)
		}
		rows = len(assembled)

		if csv, err = transcript.EncodeCSV(assembled, task.IncludeSpeaker); err != nil {
			return fmt.Errorf("%w: failed to render csv: %w", ErrAssembly, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	filename := ArtifactName(task.JobID)
	var url string
	err = p.stage(logger, "upload", func() error {
		var err error
		url, err = p.deps.Blobs.Put(ctx, p.config.TranscriptContainer, filename, csv)
		p.metrics.RecordStorageOperation("blob_put", err == nil)
		if err != nil {
			return fmt.Errorf("%w: failed to upload %s: %w", ErrStorage, filename, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		TranscriptURL:      url,
		TranscriptFilename: filename,
		Rows:               rows,
		AudioDuration:      duration,
	}, nil
}

// stage times fn and labels its failure with the stage name
func (p *Pipeline) stage(logger *slog.Logger, name string, fn func() error) error {
	started := time.Now()
	err := fn()
	elapsed := time.Since(started)

	p.metrics.RecordStage(name, elapsed.Seconds())
	logger.Debug("Stage finished",
		slog.String("stage", name),
		slog.Duration("duration", elapsed),
		slog.Bool("ok", err == nil),
	)

	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
