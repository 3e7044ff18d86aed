package enhance

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// spectrogram is a short-time spectrum: frames x (fftSize/2+1) bins.
type spectrogram struct {
	frames  [][]complex128
	fftSize int
	hop     int
	length  int // length of the analysed signal
}

// hann returns a periodic Hann window of length n.
func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// stft computes the centered short-time transform of x. The signal is
// zero-padded by fftSize/2 on both sides; hop must not exceed fftSize/2.
func stft(x []float64, fftSize, hop int) *spectrogram {
	sg := &spectrogram{fftSize: fftSize, hop: hop, length: len(x)}
	if len(x) == 0 {
		return sg
	}

	half := fftSize / 2
	padded := make([]float64, len(x)+fftSize)
	copy(padded[half:], x)

	window := hann(fftSize)
	fft := fourier.NewFFT(fftSize)
	numFrames := 1 + len(x)/hop
	sg.frames = make([][]complex128, numFrames)

	frame := make([]float64, fftSize)
	for t := 0; t < numFrames; t++ {
		start := t * hop
		for i := range frame {
			frame[i] = padded[start+i] * window[i]
		}
		sg.frames[t] = fft.Coefficients(nil, frame)
	}

	return sg
}

// istft reconstructs a signal of sg.length samples by windowed
// overlap-add, normalized by the summed squared window.
func istft(sg *spectrogram) []float64 {
	out := make([]float64, sg.length)
	if sg.length == 0 || len(sg.frames) == 0 {
		return out
	}

	fftSize, hop := sg.fftSize, sg.hop
	total := (len(sg.frames)-1)*hop + fftSize
	acc := make([]float64, total)
	norm := make([]float64, total)

	window := hann(fftSize)
	fft := fourier.NewFFT(fftSize)
	frame := make([]float64, fftSize)
	scale := 1 / float64(fftSize)

	for t, coeffs := range sg.frames {
		fft.Sequence(frame, coeffs)
		start := t * hop
		for i, v := range frame {
			acc[start+i] += v * scale * window[i]
			norm[start+i] += window[i] * window[i]
		}
	}

	half := fftSize / 2
	for i := range out {
		j := i + half
		if j >= total {
			break
		}
		if norm[j] > 1e-10 {
			out[i] = acc[j] / norm[j]
		} else {
			out[i] = acc[j]
		}
	}

	return out
}
