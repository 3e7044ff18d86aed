package enhance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/skypro1111/transcript-worker/internal/audio"
	"github.com/skypro1111/transcript-worker/internal/vad"
)

// Stats summarizes one preprocessing run
type Stats struct {
	Chunks         int           `json:"chunks"`
	FallbackChunks int           `json:"fallback_chunks"`
	Spans          int           `json:"spans"`
	Frames         int           `json:"frames"`
	VoicedFrames   int           `json:"voiced_frames"`
	Duration       time.Duration `json:"duration"`
}

// ChunkResult is the enhanced output of a single chunk
type ChunkResult struct {
	Chunk    audio.Chunk
	Samples  []float64
	Spans    []vad.Span
	Frames   int
	Voiced   int
	Fallback bool
}

// Preprocessor drives chunking, VAD and enhancement over a whole signal.
type Preprocessor struct {
	chunker   *audio.Chunker
	segmenter *vad.Segmenter
	enhancer  *Enhancer
	workers   int
	logger    *slog.Logger
}

// NewPreprocessor creates a preprocessor. workers bounds how many chunks
// are enhanced at once; values below 1 mean sequential.
func NewPreprocessor(chunker *audio.Chunker, segmenter *vad.Segmenter, enhancer *Enhancer, workers int, logger *slog.Logger) *Preprocessor {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Preprocessor{
		chunker:   chunker,
		segmenter: segmenter,
		enhancer:  enhancer,
		workers:   workers,
		logger:    logger,
	}
}

// Process resamples sig, splits it into chunks, enhances every chunk and
// concatenates the results in chunk order. The output has the resampled
// length; regions outside detected speech are zero.
func (p *Preprocessor) Process(ctx context.Context, sig audio.Signal) (audio.Signal, Stats, error) {
	start := time.Now()

	resampled, err := audio.Resample(sig)
	if err != nil {
		return audio.Signal{}, Stats{}, err
	}

	chunks := p.chunker.Split(resampled)
	results := make([]ChunkResult, len(chunks))
	errs := make([]error, len(chunks))

	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return audio.Signal{}, Stats{}, err
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(i int, chunk audio.Chunk) {
			defer wg.Done()
			defer func() { <-sem }()

			results[i], errs[i] = p.ProcessChunk(resampled.Slice(chunk.Offset, chunk.End()), chunk)
		}(i, chunk)
	}
	wg.Wait()

	out := make([]float64, 0, resampled.Len())
	stats := Stats{Chunks: len(chunks)}

	for i, res := range results {
		if errs[i] != nil {
			return audio.Signal{}, Stats{}, fmt.Errorf("chunk %d: %w", i, errs[i])
		}
		out = append(out, res.Samples...)

		stats.Spans += len(res.Spans)
		stats.Frames += res.Frames
		stats.VoicedFrames += res.Voiced
		if res.Fallback {
			stats.FallbackChunks++
		}
	}
	stats.Duration = time.Since(start)

	p.logger.Debug("Preprocessed signal",
		slog.Int("chunks", stats.Chunks),
		slog.Int("fallback_chunks", stats.FallbackChunks),
		slog.Int("spans", stats.Spans),
		slog.Int("sample_rate", resampled.SampleRate),
		slog.Duration("duration", stats.Duration),
	)

	return audio.Signal{Samples: out, SampleRate: resampled.SampleRate}, stats, nil
}

// ProcessChunk segments one chunk and enhances it. With no speech the whole
// chunk goes through the fallback path; otherwise each span is enhanced in
// place and everything else is zero.
func (p *Preprocessor) ProcessChunk(sig audio.Signal, chunk audio.Chunk) (ChunkResult, error) {
	seg, err := p.segmenter.Segment(sig)
	if err != nil {
		return ChunkResult{}, fmt.Errorf("vad failed: %w", err)
	}

	res := ChunkResult{
		Chunk:  chunk,
		Spans:  seg.Spans,
		Frames: seg.Frames,
		Voiced: seg.VoicedFrames,
	}

	if len(seg.Spans) == 0 {
		enhanced, err := p.enhancer.EnhanceChunkFallback(sig)
		if err != nil {
			return ChunkResult{}, fmt.Errorf("fallback enhancement failed: %w", err)
		}
		res.Samples = enhanced.Samples
		res.Fallback = true
		return res, nil
	}

	res.Samples = make([]float64, sig.Len())
	for _, span := range seg.Spans {
		enhanced, err := p.enhancer.EnhanceSegment(sig.Slice(span.Start, span.End))
		if err != nil {
			return ChunkResult{}, fmt.Errorf("span [%d, %d) enhancement failed: %w", span.Start, span.End, err)
		}
		copy(res.Samples[span.Start:span.End], enhanced.Samples)
	}

	return res, nil
}
