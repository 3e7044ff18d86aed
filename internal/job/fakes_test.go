package job

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/skypro1111/transcript-worker/internal/audio"
	"github.com/skypro1111/transcript-worker/internal/enhance"
	"github.com/skypro1111/transcript-worker/internal/transcript"
	"github.com/skypro1111/transcript-worker/internal/vad"
)

// memJobs is an in-memory Repository enforcing the state machine
type memJobs struct {
	mu      sync.Mutex
	jobs    map[string]*Job
	updates []Update
	gets    int

	failUpdatesTo Status // Update to this status returns an error
}

func newMemJobs(jobs ...*Job) *memJobs {
	m := &memJobs{jobs: make(map[string]*Job)}
	for _, j := range jobs {
		m.jobs[j.ID] = j
	}
	return m
}

func (m *memJobs) Create(ctx context.Context, job *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	copied := *job
	m.jobs[job.ID] = &copied
	return nil
}

func (m *memJobs) Get(ctx context.Context, id string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	j, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	copied := *j
	return &copied, nil
}

func (m *memJobs) Update(ctx context.Context, id string, update Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdatesTo != "" && update.Status == m.failUpdatesTo {
		return errors.New("database unavailable")
	}
	j, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if !CanTransition(j.Status, update.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, update.Status)
	}
	j.Status = update.Status
	j.TranscriptURL = update.TranscriptURL
	j.TranscriptFilename = update.TranscriptFilename
	j.Error = update.Error
	m.updates = append(m.updates, update)
	return nil
}

func (m *memJobs) status(id string) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[id].Status
}

// memBlobs is an in-memory BlobStore
type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	gets    int
	putErr  error
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: make(map[string][]byte)}
}

func (b *memBlobs) Get(ctx context.Context, container, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gets++
	data, ok := b.objects[container+"/"+key]
	if !ok {
		return nil, fmt.Errorf("blob %s/%s: %w", container, key, ErrNotFound)
	}
	return data, nil
}

func (b *memBlobs) Put(ctx context.Context, container, name string, data []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.putErr != nil {
		return "", b.putErr
	}
	b.objects[container+"/"+name] = append([]byte(nil), data...)
	return "mem://" + container + "/" + name, nil
}

func (b *memBlobs) object(container, name string) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.objects[container+"/"+name]
}

// fakeModel returns canned transcription and diarization output
type fakeModel struct {
	segments []transcript.Segment
	speakers []transcript.SpeakerSpan
	err      error
	calls    int
}

func (f *fakeModel) Transcribe(ctx context.Context, wav []byte) ([]transcript.Segment, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.segments, nil
}

func (f *fakeModel) Diarize(ctx context.Context, wav []byte) ([]transcript.SpeakerSpan, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.speakers, nil
}

// recordingWAV returns a three second 16 kHz recording with speech-like
// tone bursts
func recordingWAV(t *testing.T) []byte {
	t.Helper()
	const fs = 16000
	x := make([]float64, 3*fs)
	for i := fs / 2; i < 2*fs; i++ {
		x[i] = 0.5 * math.Sin(2*math.Pi*220*float64(i)/fs)
	}
	data, err := audio.EncodeWAV(audio.Signal{Samples: x, SampleRate: fs})
	if err != nil {
		t.Fatalf("Failed to encode recording: %v", err)
	}
	return data
}

func newTestProcessor(t *testing.T) SignalProcessor {
	t.Helper()
	chunker, err := audio.NewChunker(audio.ChunkingConfig{})
	if err != nil {
		t.Fatalf("Failed to create chunker: %v", err)
	}
	segmenter, err := vad.NewSegmenter(vad.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("Failed to create segmenter: %v", err)
	}
	enhancer, err := enhance.NewEnhancer(enhance.DefaultConfig())
	if err != nil {
		t.Fatalf("Failed to create enhancer: %v", err)
	}
	return enhance.NewPreprocessor(chunker, segmenter, enhancer, 1, nil)
}
