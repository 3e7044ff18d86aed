package audio

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// TargetSampleRate is the rate used when the source rate is not supported.
const TargetSampleRate = 16000

// resampleQuality is the beep interpolation quality (1-64).
const resampleQuality = 4

// streamBufferSize is the number of frames pulled from a beep streamer per call.
const streamBufferSize = 4096

// ErrDecode is returned when the source bytes cannot be parsed as audio.
var ErrDecode = errors.New("audio decode failed")

// supportedRates are the sample rates the frame-level detector accepts.
var supportedRates = map[int]bool{8000: true, 16000: true, 32000: true, 48000: true}

// Signal is a mono audio signal with float amplitudes in [-1, 1].
// Stages treat it as an immutable value: they return new signals instead of
// writing into the samples they were given.
type Signal struct {
	Samples    []float64
	SampleRate int
}

// Len returns the number of samples.
func (s Signal) Len() int {
	return len(s.Samples)
}

// Duration returns the signal length in seconds.
func (s Signal) Duration() float64 {
	if s.SampleRate <= 0 {
		return 0
	}
	return float64(len(s.Samples)) / float64(s.SampleRate)
}

// Slice returns the sub-signal [start, end) sharing the same sample rate.
func (s Signal) Slice(start, end int) Signal {
	return Signal{Samples: s.Samples[start:end], SampleRate: s.SampleRate}
}

// IsSupportedRate reports whether rate can be fed to the VAD unchanged.
func IsSupportedRate(rate int) bool {
	return supportedRates[rate]
}

// Container identifies the encapsulation of an audio file
type Container string

// Containers recognised by Decode
const (
	ContainerUnknown Container = ""
	ContainerWAV     Container = "wav"
	ContainerFLAC    Container = "flac"
	ContainerOgg     Container = "ogg"
	ContainerMP3     Container = "mp3"
)

// DetectContainer sniffs the leading bytes of data
func DetectContainer(data []byte) Container {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return ContainerWAV
	case bytes.HasPrefix(data, []byte("fLaC")):
		return ContainerFLAC
	case bytes.HasPrefix(data, []byte("OggS")):
		return ContainerOgg
	case bytes.HasPrefix(data, []byte("ID3")):
		return ContainerMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		// MPEG audio frame sync
		return ContainerMP3
	}
	return ContainerUnknown
}

// Decode parses a WAV, FLAC, Ogg Vorbis or MP3 recording and downmixes it
// to a mono Signal at the source sample rate. WAV files may carry any number
// of channels; the compressed formats are limited to stereo. A recording
// without samples is a decode error.
func Decode(data []byte) (Signal, error) {
	if len(data) == 0 {
		return Signal{}, fmt.Errorf("%w: empty input", ErrDecode)
	}

	var (
		sig Signal
		err error
	)
	switch container := DetectContainer(data); container {
	case ContainerWAV:
		sig, err = decodeWAV(data)
	case ContainerFLAC:
		// A plain reader keeps the decoder from scanning for a seek table
		sig, err = decodeStream(flac.Decode(bufio.NewReader(bytes.NewReader(data))))
	case ContainerOgg:
		sig, err = decodeStream(vorbis.Decode(io.NopCloser(bytes.NewReader(data))))
	case ContainerMP3:
		sig, err = decodeStream(mp3.Decode(io.NopCloser(bytes.NewReader(data))))
	default:
		return Signal{}, fmt.Errorf("%w: unrecognised audio container", ErrDecode)
	}
	if err != nil {
		return Signal{}, err
	}

	if sig.Len() == 0 {
		return Signal{}, fmt.Errorf("%w: recording contains no samples", ErrDecode)
	}
	return sig, nil
}

// decodeWAV hands mono and stereo files to beep and downmixes wider layouts
// itself, since beep only reads the first two channels.
func decodeWAV(data []byte) (Signal, error) {
	layout, err := parseWAV(data)
	if err != nil {
		return Signal{}, err
	}

	if layout.info.Channels > 2 {
		samples, err := downmixPCM(layout)
		if err != nil {
			return Signal{}, err
		}
		return Signal{Samples: samples, SampleRate: int(layout.info.SampleRate)}, nil
	}

	return decodeStream(wav.Decode(bytes.NewReader(data)))
}

// decodeStream drains a beep decoder into a mono Signal
func decodeStream(streamer beep.StreamSeekCloser, format beep.Format, err error) (Signal, error) {
	if err != nil {
		return Signal{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer streamer.Close()

	if format.SampleRate <= 0 {
		return Signal{}, fmt.Errorf("%w: invalid sample rate %d", ErrDecode, format.SampleRate)
	}
	if format.NumChannels > 2 {
		return Signal{}, fmt.Errorf("%w: %d channels not supported for this container", ErrDecode, format.NumChannels)
	}

	capacity := streamer.Len()
	if capacity < 0 {
		capacity = 0
	}
	samples := drain(make([]float64, 0, capacity), streamer)
	if err := streamer.Err(); err != nil {
		return Signal{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return Signal{Samples: samples, SampleRate: int(format.SampleRate)}, nil
}

// Resample returns sig unchanged when its rate is supported, otherwise a copy
// resampled to TargetSampleRate.
func Resample(sig Signal) (Signal, error) {
	if IsSupportedRate(sig.SampleRate) {
		return sig, nil
	}
	if sig.SampleRate <= 0 {
		return Signal{}, fmt.Errorf("%w: invalid sample rate %d", ErrDecode, sig.SampleRate)
	}

	expected := int(int64(len(sig.Samples)) * TargetSampleRate / int64(sig.SampleRate))
	resampler := beep.Resample(resampleQuality,
		beep.SampleRate(sig.SampleRate), beep.SampleRate(TargetSampleRate), monoStreamer(sig.Samples))

	out := drain(make([]float64, 0, expected+streamBufferSize), resampler)

	// The interpolator may run a few frames short or long at the tail.
	if len(out) > expected {
		out = out[:expected]
	}
	for len(out) < expected {
		out = append(out, 0)
	}

	return Signal{Samples: out, SampleRate: TargetSampleRate}, nil
}

// monoStreamer exposes samples as a beep.Streamer with identical channels.
func monoStreamer(samples []float64) beep.Streamer {
	pos := 0
	return beep.StreamerFunc(func(frames [][2]float64) (int, bool) {
		if pos >= len(samples) {
			return 0, false
		}
		n := fillFrames(frames, samples[pos:])
		pos += n
		return n, true
	})
}

func fillFrames(frames [][2]float64, samples []float64) int {
	n := len(frames)
	if len(samples) < n {
		n = len(samples)
	}
	for i := 0; i < n; i++ {
		frames[i][0] = samples[i]
		frames[i][1] = samples[i]
	}
	return n
}

// drain reads s until exhaustion, appending the channel average to dst.
func drain(dst []float64, s beep.Streamer) []float64 {
	buf := make([][2]float64, streamBufferSize)
	for {
		n, ok := s.Stream(buf)
		for i := 0; i < n; i++ {
			dst = append(dst, (buf[i][0]+buf[i][1])/2)
		}
		if !ok {
			return dst
		}
	}
}
