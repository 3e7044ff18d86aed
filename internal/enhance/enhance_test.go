package enhance

import (
	"math"
	"math/rand"
	"testing"

	"github.com/skypro1111/transcript-worker/internal/audio"
)

func tone(freq, amplitude float64, sampleRate, n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return x
}

func rms(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func peak(x []float64) float64 {
	p := 0.0
	for _, v := range x {
		p = math.Max(p, math.Abs(v))
	}
	return p
}

func newTestEnhancer(t *testing.T) *Enhancer {
	t.Helper()
	e, err := NewEnhancer(DefaultConfig())
	if err != nil {
		t.Fatalf("Failed to create enhancer: %v", err)
	}
	return e
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		expectErr bool
	}{
		{"default", func(c *Config) {}, false},
		{"inverted band", func(c *Config) { c.LowCutHz, c.HighCutHz = 7000, 80 }, true},
		{"zero low cut", func(c *Config) { c.LowCutHz = 0 }, true},
		{"order zero", func(c *Config) { c.FilterOrder = 0 }, true},
		{"reverb factor above one", func(c *Config) { c.ReverbFactor = 1.5 }, true},
		{"fft not power of two", func(c *Config) { c.FFTSize = 1000 }, true},
		{"hop above half fft", func(c *Config) { c.HopSize = 800 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.expectErr && err == nil {
				t.Error("Expected error but got none")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestSTFTRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	x := make([]float64, 5000)
	for i := range x {
		x[i] = rng.Float64()*2 - 1
	}

	y := istft(stft(x, 1024, 256))
	if len(y) != len(x) {
		t.Fatalf("Expected %d samples, got %d", len(x), len(y))
	}
	for i := range x {
		if math.Abs(x[i]-y[i]) > 1e-9 {
			t.Fatalf("Sample %d: expected %f, got %f", i, x[i], y[i])
		}
	}
}

func TestEnhancePreservesLength(t *testing.T) {
	e := newTestEnhancer(t)
	rng := rand.New(rand.NewSource(1))

	for _, n := range []int{1, 100, 1023, 1024, 4801, 16000} {
		for _, rate := range []int{8000, 16000, 48000} {
			x := make([]float64, n)
			for i := range x {
				x[i] = 0.3 * (rng.Float64()*2 - 1)
			}
			sig := audio.Signal{Samples: x, SampleRate: rate}

			seg, err := e.EnhanceSegment(sig)
			if err != nil {
				t.Fatalf("EnhanceSegment(%d @ %d Hz) failed: %v", n, rate, err)
			}
			if seg.Len() != n || seg.SampleRate != rate {
				t.Errorf("EnhanceSegment: expected %d samples at %d Hz, got %d at %d Hz", n, rate, seg.Len(), seg.SampleRate)
			}

			fb, err := e.EnhanceChunkFallback(sig)
			if err != nil {
				t.Fatalf("EnhanceChunkFallback(%d @ %d Hz) failed: %v", n, rate, err)
			}
			if fb.Len() != n || fb.SampleRate != rate {
				t.Errorf("EnhanceChunkFallback: expected %d samples at %d Hz, got %d at %d Hz", n, rate, fb.Len(), fb.SampleRate)
			}
		}
	}
}

func TestEnhanceDoesNotModifyInput(t *testing.T) {
	e := newTestEnhancer(t)
	x := tone(440, 0.4, 16000, 8000)
	orig := append([]float64(nil), x...)

	if _, err := e.EnhanceSegment(audio.Signal{Samples: x, SampleRate: 16000}); err != nil {
		t.Fatalf("EnhanceSegment failed: %v", err)
	}
	if _, err := e.EnhanceChunkFallback(audio.Signal{Samples: x, SampleRate: 16000}); err != nil {
		t.Fatalf("EnhanceChunkFallback failed: %v", err)
	}

	for i := range x {
		if x[i] != orig[i] {
			t.Fatalf("Input sample %d modified: expected %f, got %f", i, orig[i], x[i])
		}
	}
}

func TestZeroInputStaysZero(t *testing.T) {
	e := newTestEnhancer(t)
	sig := audio.Signal{Samples: make([]float64, 4000), SampleRate: 16000}

	for name, fn := range map[string]func(audio.Signal) (audio.Signal, error){
		"segment":  e.EnhanceSegment,
		"fallback": e.EnhanceChunkFallback,
	} {
		out, err := fn(sig)
		if err != nil {
			t.Fatalf("%s failed: %v", name, err)
		}
		if p := peak(out.Samples); p != 0 {
			t.Errorf("%s: expected silent output, got peak %g", name, p)
		}
	}
}

func TestBandpassResponse(t *testing.T) {
	const fs = 16000
	f, err := newBandpass(5, 80, 7000, fs)
	if err != nil {
		t.Fatalf("Failed to design filter: %v", err)
	}
	if len(f.sections) != 5 {
		t.Errorf("Expected 5 sections, got %d", len(f.sections))
	}

	tests := []struct {
		freq     float64
		min, max float64
	}{
		{20, 0, 0.05},
		{1000, 0.9, 1.1},
		{3000, 0.9, 1.1},
		{7900, 0, 0.2},
	}

	for _, tt := range tests {
		in := tone(tt.freq, 1, fs, 2*fs)
		out := f.apply(in)
		gain := rms(out[fs:]) / rms(in[fs:])
		if gain < tt.min || gain > tt.max {
			t.Errorf("%.0f Hz: expected gain in [%.2f, %.2f], got %.4f", tt.freq, tt.min, tt.max, gain)
		}
	}
}

func TestBandpassClampsHighCut(t *testing.T) {
	f, err := newBandpass(5, 80, 7000, 8000)
	if err != nil {
		t.Fatalf("Failed to design filter at 8 kHz: %v", err)
	}
	if math.Abs(f.highHz-3800) > 1e-9 {
		t.Errorf("Expected high cut %.0f Hz, got %.0f Hz", 0.95*4000, f.highHz)
	}

	out := f.apply(tone(1000, 1, 8000, 8000))
	for i, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("Sample %d is not finite: %f", i, v)
		}
	}
}

func TestNormalizePeak(t *testing.T) {
	out := normalizePeak([]float64{0.1, -0.25, 0.2})
	if p := peak(out); math.Abs(p-1) > 1e-12 {
		t.Errorf("Expected peak 1, got %f", p)
	}
	if out[1] != -1 {
		t.Errorf("Expected largest magnitude sample to become -1, got %f", out[1])
	}

	zeros := normalizePeak(make([]float64, 3))
	for i, v := range zeros {
		if v != 0 {
			t.Errorf("Sample %d: expected 0, got %f", i, v)
		}
	}
}

func TestReduceReverbLowersSustainedEnergy(t *testing.T) {
	x := tone(500, 0.5, 16000, 16000)
	y := reduceReverb(x, 0.5, 1024, 512)

	if len(y) != len(x) {
		t.Fatalf("Expected %d samples, got %d", len(x), len(y))
	}
	// A stationary tone sits at its own median, so half of it is removed.
	ratio := rms(y[2048:14000]) / rms(x[2048:14000])
	if ratio < 0.4 || ratio > 0.6 {
		t.Errorf("Expected residual ratio near 0.5, got %.3f", ratio)
	}
}

func TestReduceNoiseKeepsTransients(t *testing.T) {
	const fs = 16000
	rng := rand.New(rand.NewSource(3))
	x := make([]float64, 4*fs)
	for i := range x {
		x[i] = 0.01 * (rng.Float64()*2 - 1)
	}
	burst := tone(1000, 0.5, fs, fs/4)
	for i, v := range burst {
		x[2*fs+i] += v
	}

	y := reduceNoise(x, fs, 1024)

	noiseBefore := rms(x[fs/2 : fs])
	noiseAfter := rms(y[fs/2 : fs])
	if noiseAfter >= noiseBefore/2 {
		t.Errorf("Expected noise floor to drop by half, got %.5f -> %.5f", noiseBefore, noiseAfter)
	}

	burstBefore := rms(x[2*fs+1024 : 2*fs+fs/4-1024])
	burstAfter := rms(y[2*fs+1024 : 2*fs+fs/4-1024])
	if burstAfter < burstBefore/2 {
		t.Errorf("Expected burst to survive, got %.4f -> %.4f", burstBefore, burstAfter)
	}
}
