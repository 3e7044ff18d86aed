package job

import (
	"context"

	"github.com/skypro1111/transcript-worker/internal/audio"
	"github.com/skypro1111/transcript-worker/internal/enhance"
	"github.com/skypro1111/transcript-worker/internal/transcript"
)

// JobStore reads and writes job records. Update must refuse transitions not
// permitted by CanTransition with ErrInvalidTransition, and report unknown
// ids with ErrNotFound.
type JobStore interface {
	Get(ctx context.Context, id string) (*Job, error)
	Update(ctx context.Context, id string, update Update) error
}

// JobCreator inserts new job records
type JobCreator interface {
	Create(ctx context.Context, job *Job) error
}

// BlobStore reads and writes binary objects grouped in containers. Get
// reports missing keys with ErrNotFound. Put overwrites and returns the
// object's URL.
type BlobStore interface {
	Get(ctx context.Context, container, key string) ([]byte, error)
	Put(ctx context.Context, container, name string, data []byte) (string, error)
}

// Transcriber is the speech-to-text capability
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) ([]transcript.Segment, error)
}

// Diarizer is the speaker diarization capability
type Diarizer interface {
	Diarize(ctx context.Context, wav []byte) ([]transcript.SpeakerSpan, error)
}

// SignalProcessor resamples, segments and enhances a decoded recording
type SignalProcessor interface {
	Process(ctx context.Context, sig audio.Signal) (audio.Signal, enhance.Stats, error)
}

// TaskQueue dispatches tasks with at-least-once delivery
type TaskQueue interface {
	Enqueue(ctx context.Context, task Task) error
}
