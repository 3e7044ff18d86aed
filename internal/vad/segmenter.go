package vad

import (
	"fmt"

	"github.com/skypro1111/transcript-worker/internal/audio"
)

// Config contains segmentation parameters
type Config struct {
	FrameDurationMs   int `yaml:"frame_duration_ms"`
	Aggressiveness    int `yaml:"aggressiveness"`
	PaddingDurationMs int `yaml:"padding_duration_ms"`
}

// DefaultConfig returns the standard 30ms / aggressiveness 2 / 300ms setup.
func DefaultConfig() Config {
	return Config{FrameDurationMs: 30, Aggressiveness: 2, PaddingDurationMs: 300}
}

// Validate validates segmentation parameters
func (c Config) Validate() error {
	switch c.FrameDurationMs {
	case 10, 20, 30:
	default:
		return fmt.Errorf("frame_duration_ms must be 10, 20 or 30, got %d", c.FrameDurationMs)
	}
	if c.Aggressiveness < 0 || c.Aggressiveness > 3 {
		return fmt.Errorf("aggressiveness must be between 0 and 3, got %d", c.Aggressiveness)
	}
	if c.PaddingDurationMs < 0 {
		return fmt.Errorf("padding_duration_ms cannot be negative, got %d", c.PaddingDurationMs)
	}
	return nil
}

// PaddingFrames is the largest frame-index gap bridged when stitching.
func (c Config) PaddingFrames() int {
	return c.PaddingDurationMs / c.FrameDurationMs
}

// Span is a detected speech region in samples, relative to the chunk.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"` // exclusive
}

// Len returns the span length in samples.
func (s Span) Len() int {
	return s.End - s.Start
}

// Result is the outcome of segmenting one chunk
type Result struct {
	Spans        []Span
	Frames       int
	VoicedFrames int
}

// frameSpan is an inclusive range of voiced frame indices
type frameSpan struct {
	first, last int
}

// Segmenter turns chunks into speech spans
type Segmenter struct {
	config     Config
	classifier FrameClassifier
}

// NewSegmenter creates a segmenter. A nil classifier selects the energy
// classifier at the configured aggressiveness.
func NewSegmenter(config Config, classifier FrameClassifier) (*Segmenter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if classifier == nil {
		ec, err := NewEnergyClassifier(config.Aggressiveness)
		if err != nil {
			return nil, err
		}
		classifier = ec
	}

	return &Segmenter{config: config, classifier: classifier}, nil
}

// Config returns the segmentation parameters
func (s *Segmenter) Config() Config {
	return s.config
}

// Segment classifies the frames of chunk and returns ascending,
// non-overlapping spans within [0, chunk.Len()). A trailing partial frame is
// never classified. An empty span list means no speech was found.
func (s *Segmenter) Segment(chunk audio.Signal) (*Result, error) {
	if !audio.IsSupportedRate(chunk.SampleRate) {
		return nil, fmt.Errorf("unsupported sample rate for VAD: %d", chunk.SampleRate)
	}

	frameSamples := chunk.SampleRate * s.config.FrameDurationMs / 1000
	numFrames := chunk.Len() / frameSamples
	pcm := audio.ToPCM16(chunk.Samples)

	voiced := make([]int, 0, numFrames)
	for i := 0; i < numFrames; i++ {
		frame := pcm[i*frameSamples : (i+1)*frameSamples]
		isSpeech, err := s.classifier.IsSpeech(frame, chunk.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("failed to classify frame %d: %w", i, err)
		}
		if isSpeech {
			voiced = append(voiced, i)
		}
	}

	result := &Result{Frames: numFrames, VoicedFrames: len(voiced)}
	if len(voiced) == 0 {
		return result, nil
	}

	paddingSamples := s.config.PaddingDurationMs * chunk.SampleRate / 1000
	result.Spans = toSampleSpans(mergeVoicedFrames(voiced, s.config.PaddingFrames()),
		frameSamples, paddingSamples, chunk.Len())

	return result, nil
}

// mergeVoicedFrames stitches sorted voiced frame indices into spans,
// bridging gaps of at most paddingFrames.
func mergeVoicedFrames(indices []int, paddingFrames int) []frameSpan {
	if len(indices) == 0 {
		return nil
	}

	spans := make([]frameSpan, 0)
	current := frameSpan{first: indices[0], last: indices[0]}

	for _, idx := range indices[1:] {
		if idx-current.last <= paddingFrames {
			current.last = idx
			continue
		}
		spans = append(spans, current)
		current = frameSpan{first: idx, last: idx}
	}

	return append(spans, current)
}

// toSampleSpans converts frame spans to sample spans extended by padding on
// both sides. Extension is clamped to [0, length) and never reaches back past
// the end of the previous span; padded spans are not merged.
func toSampleSpans(frames []frameSpan, frameSamples, padding, length int) []Span {
	spans := make([]Span, 0, len(frames))
	prevEnd := 0

	for _, f := range frames {
		start := f.first*frameSamples - padding
		if start < prevEnd {
			start = prevEnd
		}
		end := (f.last+1)*frameSamples + padding
		if end > length {
			end = length
		}
		if start >= end {
			continue
		}

		spans = append(spans, Span{Start: start, End: end})
		prevEnd = end
	}

	return spans
}
