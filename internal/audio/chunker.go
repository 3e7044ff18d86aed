package audio

import (
	"fmt"
	"time"
)

// DefaultChunkDuration bounds per-chunk memory and filter state.
const DefaultChunkDuration = 600 * time.Second

// Chunk is a contiguous region of a parent signal.
type Chunk struct {
	Index  int `json:"index"`
	Offset int `json:"offset"` // sample index into the parent signal
	Length int `json:"length"`
}

// End returns the exclusive end sample of the chunk.
func (c Chunk) End() int {
	return c.Offset + c.Length
}

// ChunkingConfig contains configuration for splitting signals into chunks
type ChunkingConfig struct {
	Duration time.Duration
}

// Chunker partitions signals into fixed-duration chunks. The final chunk may
// be shorter; chunks cover the signal exactly once with no gap.
type Chunker struct {
	config ChunkingConfig
}

// NewChunker creates a new chunker, applying the default duration when unset
func NewChunker(config ChunkingConfig) (*Chunker, error) {
	if config.Duration == 0 {
		config.Duration = DefaultChunkDuration
	}
	if config.Duration < 0 {
		return nil, fmt.Errorf("chunk duration must be positive, got %s", config.Duration)
	}
	return &Chunker{config: config}, nil
}

// ChunkSamples returns the chunk length in samples for the given rate.
func (c *Chunker) ChunkSamples(sampleRate int) int {
	n := int(c.config.Duration.Seconds() * float64(sampleRate))
	if n < 1 {
		n = 1
	}
	return n
}

// Split returns the chunks covering sig in order.
func (c *Chunker) Split(sig Signal) []Chunk {
	return SplitSamples(sig.Len(), c.ChunkSamples(sig.SampleRate))
}

// SplitSamples partitions [0, total) into chunks of at most size samples.
func SplitSamples(total, size int) []Chunk {
	if total <= 0 || size <= 0 {
		return nil
	}

	chunks := make([]Chunk, 0, (total+size-1)/size)
	for offset := 0; offset < total; offset += size {
		length := size
		if offset+length > total {
			length = total - offset
		}
		chunks = append(chunks, Chunk{Index: len(chunks), Offset: offset, Length: length})
	}
	return chunks
}
