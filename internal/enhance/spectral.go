package enhance

import (
	"math"
	"math/cmplx"
	"sort"
)

// Noise gate parameters for the non-stationary noise profile.
const (
	noiseTimeConstant = 2.0  // seconds of smoothing for the noise floor
	noiseThreshold    = 2.0  // magnitude must exceed floor by this multiple of itself
	noiseSlope        = 10.0 // sigmoid steepness of the gate
	noisePropDecrease = 1.0  // fraction of gated energy removed
)

// reduceReverb subtracts factor x the per-bin median magnitude (the
// reverberant floor) from the spectrum, clipping at zero and keeping the
// original phase.
func reduceReverb(x []float64, factor float64, fftSize, hop int) []float64 {
	spectrum := stft(x, fftSize, hop)
	if len(spectrum.frames) == 0 {
		return istft(spectrum)
	}

	bins := len(spectrum.frames[0])
	mags := make([]float64, len(spectrum.frames))

	for f := 0; f < bins; f++ {
		for t, frame := range spectrum.frames {
			mags[t] = cmplx.Abs(frame[f])
		}
		floor := factor * median(mags)

		for _, frame := range spectrum.frames {
			mag := cmplx.Abs(frame[f])
			if mag == 0 {
				continue
			}
			reduced := mag - floor
			if reduced < 0 {
				reduced = 0
			}
			frame[f] *= complex(reduced/mag, 0)
		}
	}

	return istft(spectrum)
}

// reduceNoise applies an adaptive spectral gate. The noise profile of each
// bin is its magnitude smoothed over time in both directions; bins that do
// not rise sufficiently above the profile are attenuated.
func reduceNoise(x []float64, sampleRate, fftSize int) []float64 {
	hop := fftSize / 4
	spectrum := stft(x, fftSize, hop)
	if len(spectrum.frames) == 0 {
		return istft(spectrum)
	}

	framesPerSecond := float64(sampleRate) / float64(hop)
	alpha := 1 - math.Exp(-1/(noiseTimeConstant*framesPerSecond))

	bins := len(spectrum.frames[0])
	mags := make([]float64, len(spectrum.frames))
	floor := make([]float64, len(spectrum.frames))

	for f := 0; f < bins; f++ {
		for t, frame := range spectrum.frames {
			mags[t] = cmplx.Abs(frame[f])
		}
		smoothForwardBackward(floor, mags, alpha)

		for t, frame := range spectrum.frames {
			frame[f] *= complex(gateGain(mags[t], floor[t]), 0)
		}
	}

	return istft(spectrum)
}

// gateGain maps a bin magnitude against its noise floor to a gain in [0, 1].
func gateGain(mag, floor float64) float64 {
	if floor <= 1e-12 {
		return 1
	}
	arg := noiseSlope * ((mag-floor)/floor - noiseThreshold)
	if arg > 50 {
		arg = 50
	} else if arg < -50 {
		arg = -50
	}
	mask := 1 / (1 + math.Exp(-arg))
	return 1 - noisePropDecrease*(1-mask)
}

// smoothForwardBackward writes a zero-phase exponential moving average of
// src into dst.
func smoothForwardBackward(dst, src []float64, alpha float64) {
	acc := src[0]
	for i, v := range src {
		acc += alpha * (v - acc)
		dst[i] = acc
	}
	acc = dst[len(dst)-1]
	for i := len(dst) - 1; i >= 0; i-- {
		acc += alpha * (dst[i] - acc)
		dst[i] = acc
	}
}

// normalizePeak scales x to unit peak amplitude. All-zero input is
// returned as a zero copy.
func normalizePeak(x []float64) []float64 {
	out := make([]float64, len(x))
	peak := 0.0
	for _, v := range x {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	if peak < 1e-12 {
		copy(out, x)
		return out
	}
	for i, v := range x {
		out[i] = v / peak
	}
	return out
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
