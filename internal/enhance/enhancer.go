package enhance

import (
	"fmt"
	"sync"

	"github.com/skypro1111/transcript-worker/internal/audio"
)

// Config contains signal enhancement parameters
type Config struct {
	LowCutHz     float64 `yaml:"low_cut"`
	HighCutHz    float64 `yaml:"high_cut"`
	FilterOrder  int     `yaml:"filter_order"`
	ReverbFactor float64 `yaml:"reverb_factor"`
	FFTSize      int     `yaml:"fft_size"`
	HopSize      int     `yaml:"hop_size"`
}

// DefaultConfig returns the voice-band defaults
func DefaultConfig() Config {
	return Config{
		LowCutHz:     80,
		HighCutHz:    7000,
		FilterOrder:  5,
		ReverbFactor: 0.5,
		FFTSize:      1024,
		HopSize:      512,
	}
}

// Validate validates enhancement parameters
func (c Config) Validate() error {
	if c.LowCutHz <= 0 || c.HighCutHz <= c.LowCutHz {
		return fmt.Errorf("band must satisfy 0 < low_cut < high_cut, got [%.1f, %.1f]", c.LowCutHz, c.HighCutHz)
	}
	if c.FilterOrder < 1 || c.FilterOrder > 10 {
		return fmt.Errorf("filter_order must be between 1 and 10, got %d", c.FilterOrder)
	}
	if c.ReverbFactor < 0 || c.ReverbFactor > 1 {
		return fmt.Errorf("reverb_factor must be between 0 and 1, got %f", c.ReverbFactor)
	}
	if c.FFTSize < 64 || c.FFTSize&(c.FFTSize-1) != 0 {
		return fmt.Errorf("fft_size must be a power of two >= 64, got %d", c.FFTSize)
	}
	if c.HopSize < 1 || c.HopSize > c.FFTSize/2 {
		return fmt.Errorf("hop_size must be between 1 and fft_size/2, got %d", c.HopSize)
	}
	return nil
}

// Enhancer applies speech enhancement to signals. Output always has the
// same length and sample rate as the input. It is safe for concurrent use.
type Enhancer struct {
	config Config

	filters map[int]*bandpass // keyed by sample rate
	mu      sync.Mutex
}

// NewEnhancer creates an enhancer
func NewEnhancer(config Config) (*Enhancer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Enhancer{config: config, filters: make(map[int]*bandpass)}, nil
}

// EnhanceSegment enhances a detected speech span: dereverberate, reduce
// noise, normalize to unit peak, then band-limit.
func (e *Enhancer) EnhanceSegment(sig audio.Signal) (audio.Signal, error) {
	filter, err := e.filterFor(sig.SampleRate)
	if err != nil {
		return audio.Signal{}, err
	}

	x := reduceReverb(sig.Samples, e.config.ReverbFactor, e.config.FFTSize, e.config.HopSize)
	x = reduceNoise(x, sig.SampleRate, e.config.FFTSize)
	x = normalizePeak(x)
	x = filter.apply(x)

	return audio.Signal{Samples: x, SampleRate: sig.SampleRate}, nil
}

// EnhanceChunkFallback enhances a whole chunk in which no speech was
// detected: reduce noise, band-limit, then normalize to unit peak.
func (e *Enhancer) EnhanceChunkFallback(sig audio.Signal) (audio.Signal, error) {
	filter, err := e.filterFor(sig.SampleRate)
	if err != nil {
		return audio.Signal{}, err
	}

	x := reduceNoise(sig.Samples, sig.SampleRate, e.config.FFTSize)
	x = filter.apply(x)
	x = normalizePeak(x)

	return audio.Signal{Samples: x, SampleRate: sig.SampleRate}, nil
}

// filterFor returns the band-pass designed for sampleRate, building it once.
func (e *Enhancer) filterFor(sampleRate int) (*bandpass, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if f, ok := e.filters[sampleRate]; ok {
		return f, nil
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	f, err := newBandpass(e.config.FilterOrder, e.config.LowCutHz, e.config.HighCutHz, float64(sampleRate))
	if err != nil {
		return nil, fmt.Errorf("failed to design band-pass filter: %w", err)
	}
	e.filters[sampleRate] = f
	return f, nil
}
