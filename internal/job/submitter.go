package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/skypro1111/transcript-worker/internal/transcript"
)

// Repository creates and updates job records
type Repository interface {
	JobCreator
	JobStore
}

// Submitter creates pending jobs and enqueues their tasks
type Submitter struct {
	jobs           Repository
	blobs          BlobStore
	queue          TaskQueue
	audioContainer string
	logger         *slog.Logger

	newID func() string
	now   func() time.Time
}

// NewSubmitter creates a submitter. blobs may be nil when audio is always
// uploaded out of band.
func NewSubmitter(jobs Repository, blobs BlobStore, queue TaskQueue, audioContainer string, logger *slog.Logger) *Submitter {
	if audioContainer == "" {
		audioContainer = DefaultAudioContainer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{
		jobs:           jobs,
		blobs:          blobs,
		queue:          queue,
		audioContainer: audioContainer,
		logger:         logger,
		newID:          uuid.NewString,
		now:            time.Now,
	}
}

// Submit validates the arguments, creates a pending job and enqueues it.
// If the task cannot be enqueued the job is marked failed.
func (s *Submitter) Submit(ctx context.Context, audioRef, interval string, includeSpeaker bool) (string, error) {
	task := Task{
		JobID:          s.newID(),
		AudioRef:       audioRef,
		Interval:       interval,
		IncludeSpeaker: includeSpeaker,
	}
	if err := task.Validate(); err != nil {
		return "", err
	}

	now := s.now().UTC()
	record := &Job{
		ID:             task.JobID,
		AudioRef:       audioRef,
		Interval:       interval,
		IncludeSpeaker: includeSpeaker,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.jobs.Create(ctx, record); err != nil {
		return "", fmt.Errorf("%w: failed to create job: %w", ErrStorage, err)
	}

	if err := s.queue.Enqueue(ctx, task); err != nil {
		update := Update{Status: StatusFailed, Error: "enqueue failed: " + err.Error()}
		if uerr := s.jobs.Update(ctx, task.JobID, update); uerr != nil {
			s.logger.Error("Failed to mark unqueued job failed",
				slog.String("job_id", task.JobID),
				slog.String("error", uerr.Error()),
			)
		}
		return "", fmt.Errorf("failed to enqueue job %s: %w", task.JobID, err)
	}

	s.logger.Info("Transcription job submitted",
		slog.String("job_id", task.JobID),
		slog.String("audio_ref", audioRef),
		slog.String("interval", interval),
		slog.Bool("include_speaker", includeSpeaker),
	)

	return task.JobID, nil
}

// SubmitAudio uploads a recording to the audio container under name and
// submits a job for it.
func (s *Submitter) SubmitAudio(ctx context.Context, name string, data []byte, interval string, includeSpeaker bool) (string, error) {
	if s.blobs == nil {
		return "", fmt.Errorf("%w: no blob store configured for uploads", ErrUnsupportedConfiguration)
	}
	if _, err := transcript.ParseInterval(interval); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedConfiguration, err)
	}
	if _, err := s.blobs.Put(ctx, s.audioContainer, name, data); err != nil {
		return "", fmt.Errorf("%w: failed to upload %s: %w", ErrStorage, name, err)
	}
	return s.Submit(ctx, name, interval, includeSpeaker)
}
