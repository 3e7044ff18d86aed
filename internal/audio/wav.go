package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// wavHeader is the canonical 44-byte header of a PCM WAV file
type wavHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // File size - 8 bytes
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16 // NumChannels * BitsPerSample / 8
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // Number of bytes in the data
}

// ToPCM16 converts float samples to 16-bit PCM, clipping out-of-range values.
func ToPCM16(samples []float64) []int16 {
	pcm := make([]int16, len(samples))
	for i, s := range samples {
		v := s * 32767
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		pcm[i] = int16(v)
	}
	return pcm
}

// EncodeWAV encodes a signal as a 16-bit mono PCM WAV file
func EncodeWAV(sig Signal) ([]byte, error) {
	if sig.Len() == 0 {
		return nil, fmt.Errorf("cannot encode empty audio signal")
	}
	if sig.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sig.SampleRate)
	}

	const numChannels, bitsPerSample = 1, 16
	pcm := ToPCM16(sig.Samples)
	dataSize := uint32(len(pcm) * 2)

	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   numChannels,
		SampleRate:    uint32(sig.SampleRate),
		ByteRate:      uint32(sig.SampleRate) * numChannels * bitsPerSample / 8,
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(pcm)*2))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, pcm); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}

	return buf.Bytes(), nil
}

// WAVInfo describes the format of a WAV file without decoding its samples
type WAVInfo struct {
	SampleRate    uint32  `json:"sample_rate"`
	Channels      uint16  `json:"channels"`
	BitsPerSample uint16  `json:"bits_per_sample"`
	Duration      float64 `json:"duration_seconds"`
	DataSize      uint32  `json:"data_size_bytes"`
	NumFrames     uint32  `json:"num_frames"`
}

// WAV format tags
const (
	wavFormatPCM        = 1
	wavFormatFloat      = 3
	wavFormatExtensible = 0xFFFE
)

// wavLayout is a parsed RIFF/WAVE file: its fmt details and the raw bytes
// of its data chunk
type wavLayout struct {
	info   WAVInfo
	format uint16
	data   []byte
}

// ProbeWAV walks the RIFF chunks of data and returns the fmt and data
// details. Unknown chunks (LIST, fact, ...) are skipped.
func ProbeWAV(data []byte) (*WAVInfo, error) {
	layout, err := parseWAV(data)
	if err != nil {
		return nil, err
	}
	return &layout.info, nil
}

func parseWAV(data []byte) (*wavLayout, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: missing RIFF/WAVE header", ErrDecode)
	}

	var layout wavLayout
	info := &layout.info
	haveFmt, haveData := false, false

	for pos := 12; pos+8 <= len(data); {
		id := string(data[pos : pos+4])
		size := binary.LittleEndian.Uint32(data[pos+4 : pos+8])
		body := pos + 8

		switch id {
		case "fmt ":
			if body+16 > len(data) {
				return nil, fmt.Errorf("%w: truncated fmt chunk", ErrDecode)
			}
			layout.format = binary.LittleEndian.Uint16(data[body:])
			info.Channels = binary.LittleEndian.Uint16(data[body+2:])
			info.SampleRate = binary.LittleEndian.Uint32(data[body+4:])
			info.BitsPerSample = binary.LittleEndian.Uint16(data[body+14:])
			// Extensible files carry the real tag in the sub-format GUID.
			if layout.format == wavFormatExtensible && size >= 26 && body+26 <= len(data) {
				layout.format = binary.LittleEndian.Uint16(data[body+24:])
			}
			haveFmt = true
		case "data":
			end := body + int(size)
			if end > len(data) || end < body {
				end = len(data)
			}
			info.DataSize = uint32(end - body)
			layout.data = data[body:end]
			haveData = true
		}

		if haveFmt && haveData {
			break
		}
		// Chunks are word aligned.
		pos = body + int(size) + int(size&1)
	}

	if !haveFmt || !haveData {
		return nil, fmt.Errorf("%w: missing fmt or data chunk", ErrDecode)
	}
	if info.SampleRate == 0 || info.Channels == 0 || info.BitsPerSample == 0 {
		return nil, fmt.Errorf("%w: invalid fmt chunk", ErrDecode)
	}

	frameBytes := uint32(info.Channels) * uint32(math.Ceil(float64(info.BitsPerSample)/8))
	info.NumFrames = info.DataSize / frameBytes
	info.Duration = float64(info.NumFrames) / float64(info.SampleRate)

	return &layout, nil
}

// downmixPCM averages every channel of the data chunk into one mono
// sample per frame, scaled so full-scale PCM maps to [-1, 1].
func downmixPCM(layout *wavLayout) ([]float64, error) {
	channels := int(layout.info.Channels)
	width := (int(layout.info.BitsPerSample) + 7) / 8

	var sample func(b []byte) float64
	switch {
	case layout.format == wavFormatPCM && width == 1:
		sample = func(b []byte) float64 { return (float64(b[0]) - 128) / 128 }
	case layout.format == wavFormatPCM && width == 2:
		sample = func(b []byte) float64 { return float64(int16(binary.LittleEndian.Uint16(b))) / (1 << 15) }
	case layout.format == wavFormatPCM && width == 3:
		sample = func(b []byte) float64 {
			v := int32(uint32(b[0])<<8|uint32(b[1])<<16|uint32(b[2])<<24) >> 8
			return float64(v) / (1 << 23)
		}
	case layout.format == wavFormatPCM && width == 4:
		sample = func(b []byte) float64 { return float64(int32(binary.LittleEndian.Uint32(b))) / (1 << 31) }
	case layout.format == wavFormatFloat && width == 4:
		sample = func(b []byte) float64 { return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))) }
	default:
		return nil, fmt.Errorf("%w: unsupported WAV encoding (format %d, %d bits)", ErrDecode, layout.format, layout.info.BitsPerSample)
	}

	frame := channels * width
	n := len(layout.data) / frame
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			off := i*frame + ch*width
			sum += sample(layout.data[off : off+width])
		}
		out[i] = sum / float64(channels)
	}
	return out, nil
}
