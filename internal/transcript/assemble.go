package transcript

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// UnknownSpeaker labels lines with no attributable diarization span.
const UnknownSpeaker = "Unknown"

// ErrAssembly is returned for inconsistent segment or duration data.
var ErrAssembly = errors.New("transcript assembly failed")

// Segment is one transcribed utterance, in seconds from recording start.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// SpeakerSpan is one diarization turn, in seconds from recording start.
type SpeakerSpan struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// Row is one output line: a segment placed in a bucket.
type Row struct {
	Bucket  Bucket
	Speaker string // empty unless speakers were requested
	Start   int    // whole seconds
	End     int
	Text    string
}

// Options controls assembly
type Options struct {
	Width          int     // bucket width in seconds
	Duration       float64 // recording length in seconds
	IncludeSpeaker bool
}

// dedupKey identifies an attributed utterance across the whole job.
type dedupKey struct {
	speaker    string
	start, end int
	text       string
}

// Assemble places every segment into each bucket it strictly overlaps and,
// when speakers are requested, attributes it to the first overlapping
// speaker span not already used for the same utterance. Rows are ordered by
// bucket, then by segment.
func Assemble(segments []Segment, speakers []SpeakerSpan, opts Options) ([]Row, error) {
	buckets, err := Buckets(opts.Duration, opts.Width)
	if err != nil {
		return nil, err
	}

	for i, seg := range segments {
		if math.IsNaN(seg.Start) || math.IsNaN(seg.End) || seg.Start < 0 || seg.End < seg.Start {
			return nil, fmt.Errorf("%w: segment %d has invalid bounds (%v, %v)", ErrAssembly, i, seg.Start, seg.End)
		}
	}

	labels := make([]string, len(speakers))
	for i, sp := range speakers {
		if sp.End < sp.Start {
			return nil, fmt.Errorf("%w: speaker span %d has invalid bounds (%v, %v)", ErrAssembly, i, sp.Start, sp.End)
		}
		labels[i] = SpeakerLabel(sp.Speaker)
	}

	seen := make(map[dedupKey]struct{})
	rows := make([]Row, 0, len(segments))

	for _, bucket := range buckets {
		for _, seg := range segments {
			if !bucket.overlaps(seg.Start, seg.End) {
				continue
			}

			row := Row{
				Bucket: bucket,
				Start:  int(math.Floor(seg.Start)),
				End:    int(math.Floor(seg.End)),
				Text:   strings.TrimSpace(seg.Text),
			}

			if opts.IncludeSpeaker {
				row.Speaker = UnknownSpeaker
				for i, sp := range speakers {
					if math.Max(seg.Start, sp.Start) >= math.Min(seg.End, sp.End) {
						continue
					}
					key := dedupKey{speaker: labels[i], start: row.Start, end: row.End, text: row.Text}
					if _, dup := seen[key]; dup {
						continue
					}
					seen[key] = struct{}{}
					row.Speaker = labels[i]
					break
				}
			}

			rows = append(rows, row)
		}
	}

	return rows, nil
}

// SpeakerLabel converts a diarization label (SPEAKER_#1) to its display form.
func SpeakerLabel(raw string) string {
	return strings.ReplaceAll(raw, "#", "Person")
}
