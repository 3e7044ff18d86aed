package transcript

import (
	"errors"
	"math"
	"math/rand"
	"reflect"
	"strings"
	"testing"
)

func TestParseInterval(t *testing.T) {
	tests := []struct {
		name      string
		expected  int
		expectErr bool
	}{
		{"1min", 60, false},
		{"5min", 300, false},
		{"10min", 0, true},
		{"", 0, true},
		{"1MIN", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := ParseInterval(tt.name)
			if tt.expectErr {
				if !errors.Is(err, ErrInvalidInterval) {
					t.Errorf("Expected ErrInvalidInterval, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if w != tt.expected {
				t.Errorf("Expected %d seconds, got %d", tt.expected, w)
			}
		})
	}
}

func TestBucketsScenario(t *testing.T) {
	buckets, err := Buckets(130, 60)
	if err != nil {
		t.Fatalf("Buckets failed: %v", err)
	}

	expected := []Bucket{{0, 60}, {60, 120}, {120, 180}}
	if !reflect.DeepEqual(buckets, expected) {
		t.Errorf("Expected %v, got %v", expected, buckets)
	}
}

func TestBucketsPartition(t *testing.T) {
	rng := rand.New(rand.NewSource(5))

	for i := 0; i < 200; i++ {
		duration := rng.Float64() * 4000
		width := []int{60, 300}[rng.Intn(2)]

		buckets, err := Buckets(duration, width)
		if err != nil {
			t.Fatalf("Buckets(%v, %d) failed: %v", duration, width, err)
		}
		if buckets[0].Start != 0 {
			t.Errorf("Expected first bucket at 0, got %d", buckets[0].Start)
		}
		for j := 1; j < len(buckets); j++ {
			if buckets[j].Start != buckets[j-1].End {
				t.Fatalf("Gap or overlap between %v and %v", buckets[j-1], buckets[j])
			}
		}
		for _, b := range buckets {
			if b.End-b.Start != width {
				t.Fatalf("Expected width %d, got bucket %v", width, b)
			}
		}
		if last := buckets[len(buckets)-1].End; float64(last) < duration {
			t.Errorf("Expected last bucket end >= %v, got %d", duration, last)
		}
	}
}

func TestBucketsInvalid(t *testing.T) {
	for _, tt := range []struct {
		duration float64
		width    int
	}{
		{-1, 60},
		{math.NaN(), 60},
		{math.Inf(1), 60},
		{10, 0},
	} {
		if _, err := Buckets(tt.duration, tt.width); !errors.Is(err, ErrAssembly) {
			t.Errorf("Buckets(%v, %d): expected ErrAssembly, got %v", tt.duration, tt.width, err)
		}
	}
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		seconds  int
		expected string
	}{
		{0, "0:00:00"},
		{59, "0:00:59"},
		{60, "0:01:00"},
		{3599, "0:59:59"},
		{3600, "1:00:00"},
		{3725, "1:02:05"},
		{90000, "25:00:00"},
	}

	for _, tt := range tests {
		if got := FormatClock(tt.seconds); got != tt.expected {
			t.Errorf("FormatClock(%d): expected %q, got %q", tt.seconds, tt.expected, got)
		}
	}
}

func TestAssembleSegmentInTwoBuckets(t *testing.T) {
	segments := []Segment{{Start: 55, End: 65, Text: " hello "}}

	rows, err := Assemble(segments, nil, Options{Width: 60, Duration: 130})
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	expected := []Row{
		{Bucket: Bucket{0, 60}, Start: 55, End: 65, Text: "hello"},
		{Bucket: Bucket{60, 120}, Start: 55, End: 65, Text: "hello"},
	}
	if !reflect.DeepEqual(rows, expected) {
		t.Errorf("Expected %+v, got %+v", expected, rows)
	}
}

func TestAssembleStrictOverlap(t *testing.T) {
	segments := []Segment{
		{Start: 50, End: 60, Text: "ends at boundary"},
		{Start: 60, End: 70, Text: "starts at boundary"},
	}

	rows, err := Assemble(segments, nil, Options{Width: 60, Duration: 70})
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d: %+v", len(rows), rows)
	}
	if rows[0].Bucket.Start != 0 || rows[0].Text != "ends at boundary" {
		t.Errorf("Unexpected first row: %+v", rows[0])
	}
	if rows[1].Bucket.Start != 60 || rows[1].Text != "starts at boundary" {
		t.Errorf("Unexpected second row: %+v", rows[1])
	}
}

func TestAssembleSpeakerDedup(t *testing.T) {
	segments := []Segment{{Start: 55, End: 65, Text: "hello"}}
	speakers := []SpeakerSpan{{Start: 50, End: 70, Speaker: "SPEAKER_#1"}}

	rows, err := Assemble(segments, speakers, Options{Width: 60, Duration: 130, IncludeSpeaker: true})
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if rows[0].Speaker != "SPEAKER_Person1" {
		t.Errorf("Expected first row speaker SPEAKER_Person1, got %q", rows[0].Speaker)
	}
	if rows[1].Speaker != UnknownSpeaker {
		t.Errorf("Expected second row speaker %q, got %q", UnknownSpeaker, rows[1].Speaker)
	}
}

func TestAssembleSpeakerSelection(t *testing.T) {
	speakers := []SpeakerSpan{
		{Start: 0, End: 10, Speaker: "A"},
		{Start: 8, End: 30, Speaker: "B"},
		{Start: 40, End: 50, Speaker: "C"},
	}

	tests := []struct {
		name     string
		segments []Segment
		expected []string
	}{
		{"first overlapping span wins", []Segment{{Start: 9, End: 12, Text: "x"}}, []string{"A"}},
		{"touching span does not overlap", []Segment{{Start: 10, End: 12, Text: "x"}}, []string{"B"}},
		{"no overlap", []Segment{{Start: 32, End: 38, Text: "x"}}, []string{UnknownSpeaker}},
		{
			"repeated utterance falls through to next span",
			[]Segment{{Start: 9, End: 12, Text: "x"}, {Start: 9.5, End: 12.2, Text: "x"}},
			[]string{"A", "B"},
		},
		{
			"different text is not a duplicate",
			[]Segment{{Start: 9, End: 12, Text: "x"}, {Start: 9, End: 12, Text: "y"}},
			[]string{"A", "A"},
		},
		{
			"exhausted spans yield unknown",
			[]Segment{{Start: 9, End: 12, Text: "x"}, {Start: 9, End: 12, Text: "x"}, {Start: 9, End: 12, Text: "x"}},
			[]string{"A", "B", UnknownSpeaker},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := Assemble(tt.segments, speakers, Options{Width: 60, Duration: 50, IncludeSpeaker: true})
			if err != nil {
				t.Fatalf("Assemble failed: %v", err)
			}
			got := make([]string, len(rows))
			for i, r := range rows {
				got[i] = r.Speaker
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Expected speakers %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestAssembleWithoutSpeakerIgnoresSpans(t *testing.T) {
	rows, err := Assemble(
		[]Segment{{Start: 1, End: 2, Text: "hi"}},
		[]SpeakerSpan{{Start: 0, End: 5, Speaker: "A"}},
		Options{Width: 60, Duration: 5},
	)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if len(rows) != 1 || rows[0].Speaker != "" {
		t.Errorf("Expected one row with no speaker, got %+v", rows)
	}
}

func TestAssembleInvalidSegments(t *testing.T) {
	tests := []struct {
		name     string
		segments []Segment
		speakers []SpeakerSpan
	}{
		{"end before start", []Segment{{Start: 10, End: 5}}, nil},
		{"negative start", []Segment{{Start: -1, End: 5}}, nil},
		{"nan bounds", []Segment{{Start: math.NaN(), End: 5}}, nil},
		{"speaker end before start", nil, []SpeakerSpan{{Start: 5, End: 1, Speaker: "A"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Assemble(tt.segments, tt.speakers, Options{Width: 60, Duration: 30, IncludeSpeaker: true})
			if !errors.Is(err, ErrAssembly) {
				t.Errorf("Expected ErrAssembly, got %v", err)
			}
		})
	}
}

func TestAssembleRowOrder(t *testing.T) {
	segments := []Segment{
		{Start: 10, End: 20, Text: "a"},
		{Start: 50, End: 70, Text: "b"},
		{Start: 65, End: 80, Text: "c"},
	}

	rows, err := Assemble(segments, nil, Options{Width: 60, Duration: 90})
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	var got []string
	for _, r := range rows {
		got = append(got, FormatClock(r.Bucket.Start)+" "+r.Text)
	}
	expected := []string{"0:00:00 a", "0:00:00 b", "0:01:00 b", "0:01:00 c"}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestWriteCSV(t *testing.T) {
	rows := []Row{
		{Bucket: Bucket{0, 60}, Speaker: "SPEAKER_Person1", Start: 55, End: 65, Text: "hello, world"},
		{Bucket: Bucket{60, 120}, Speaker: UnknownSpeaker, Start: 55, End: 65, Text: `say "hi"`},
	}

	t.Run("with speaker", func(t *testing.T) {
		data, err := EncodeCSV(rows, true)
		if err != nil {
			t.Fatalf("EncodeCSV failed: %v", err)
		}
		expected := "Interval Start,Interval End,Speaker,Start Time,End Time,Text\r\n" +
			"0:00:00,0:01:00,SPEAKER_Person1,0:00:55,0:01:05,\"hello, world\"\r\n" +
			"0:01:00,0:02:00,Unknown,0:00:55,0:01:05,\"say \"\"hi\"\"\"\r\n"
		if string(data) != expected {
			t.Errorf("Expected:\n%q\ngot:\n%q", expected, string(data))
		}
	})

	t.Run("without speaker", func(t *testing.T) {
		data, err := EncodeCSV(rows[:1], false)
		if err != nil {
			t.Fatalf("EncodeCSV failed: %v", err)
		}
		expected := "Interval Start,Interval End,Start Time,End Time,Text\r\n" +
			"0:00:00,0:01:00,0:00:55,0:01:05,\"hello, world\"\r\n"
		if string(data) != expected {
			t.Errorf("Expected:\n%q\ngot:\n%q", expected, string(data))
		}
	})

	t.Run("header only", func(t *testing.T) {
		data, err := EncodeCSV(nil, false)
		if err != nil {
			t.Fatalf("EncodeCSV failed: %v", err)
		}
		if strings.Count(string(data), "\r\n") != 1 {
			t.Errorf("Expected a single header line, got %q", string(data))
		}
	})
}
