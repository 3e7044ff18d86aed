package enhance

import (
	"fmt"
	"math"
	"math/cmplx"
	"sort"
)

// biquad is one second-order section, a0 normalized to 1.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
}

// bandpass is a Butterworth band-pass built as a cascade of second-order
// sections (one per prototype order).
type bandpass struct {
	sections []biquad
	lowHz    float64
	highHz   float64
}

// newBandpass designs an order-N digital Butterworth band-pass for
// [lowHz, highHz] at sample rate fs using the bilinear transform. A high
// edge at or above Nyquist is clamped to 0.95 of Nyquist.
func newBandpass(order int, lowHz, highHz, fs float64) (*bandpass, error) {
	if order < 1 {
		return nil, fmt.Errorf("filter order must be positive, got %d", order)
	}
	nyquist := fs / 2
	if highHz >= nyquist {
		highHz = 0.95 * nyquist
	}
	if lowHz <= 0 || lowHz >= highHz {
		return nil, fmt.Errorf("invalid band [%.1f, %.1f] Hz at %.0f Hz", lowHz, highHz, fs)
	}

	// Pre-warped analog edges for the bilinear transform with T = 1/2.
	const k = 4.0
	w1 := k * math.Tan(math.Pi*lowHz/fs)
	w2 := k * math.Tan(math.Pi*highHz/fs)
	bw := w2 - w1
	w0 := math.Sqrt(w1 * w2)

	// Analog lowpass prototype poles, transformed lowpass -> bandpass,
	// then mapped to the z-plane.
	poles := make([]complex128, 0, 2*order)
	for m := 0; m < order; m++ {
		theta := math.Pi * float64(2*m+order+1) / float64(2*order)
		p := cmplx.Exp(complex(0, theta))
		a := p * complex(bw/2, 0)
		d := cmplx.Sqrt(a*a - complex(w0*w0, 0))
		for _, s := range []complex128{a + d, a - d} {
			poles = append(poles, (complex(k, 0)+s)/(complex(k, 0)-s))
		}
	}

	f := &bandpass{sections: pairPoles(poles), lowHz: lowHz, highHz: highHz}

	// Unity gain at the digital image of the analog center frequency.
	center := 2 * math.Atan(w0/k)
	if g := cmplx.Abs(f.response(center)); g > 0 {
		f.sections[0].b0 /= g
		f.sections[0].b1 /= g
		f.sections[0].b2 /= g
	}

	return f, nil
}

// pairPoles groups z-plane poles into sections. Every section carries one
// zero at z=1 and one at z=-1 (the band-pass zeros).
func pairPoles(poles []complex128) []biquad {
	const eps = 1e-12
	var upper []complex128
	var reals []float64

	for _, p := range poles {
		switch {
		case math.Abs(imag(p)) <= eps:
			reals = append(reals, real(p))
		case imag(p) > 0:
			upper = append(upper, p)
		}
	}
	sort.Float64s(reals)

	sections := make([]biquad, 0, len(upper)+len(reals)/2)
	for _, p := range upper {
		sections = append(sections, biquad{
			b0: 1, b1: 0, b2: -1,
			a1: -2 * real(p),
			a2: real(p)*real(p) + imag(p)*imag(p),
		})
	}
	for i := 0; i+1 < len(reals); i += 2 {
		sections = append(sections, biquad{
			b0: 1, b1: 0, b2: -1,
			a1: -(reals[i] + reals[i+1]),
			a2: reals[i] * reals[i+1],
		})
	}

	return sections
}

// response evaluates the cascade frequency response at omega rad/sample.
func (f *bandpass) response(omega float64) complex128 {
	z1 := cmplx.Exp(complex(0, -omega))
	z2 := z1 * z1
	h := complex(1, 0)
	for _, s := range f.sections {
		num := complex(s.b0, 0) + complex(s.b1, 0)*z1 + complex(s.b2, 0)*z2
		den := 1 + complex(s.a1, 0)*z1 + complex(s.a2, 0)*z2
		h *= num / den
	}
	return h
}

// apply runs the causal cascade over x from zero initial state.
func (f *bandpass) apply(x []float64) []float64 {
	y := make([]float64, len(x))
	copy(y, x)

	for _, s := range f.sections {
		var z1, z2 float64
		for i, in := range y {
			out := s.b0*in + z1
			z1 = s.b1*in - s.a1*out + z2
			z2 = s.b2*in - s.a2*out
			y[i] = out
		}
	}

	return y
}
