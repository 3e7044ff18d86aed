package transcript

import (
	"errors"
	"fmt"
	"math"
)

// Supported interval names
const (
	OneMinute   = "1min"
	FiveMinutes = "5min"
)

// ErrInvalidInterval is returned for interval names other than 1min and 5min.
var ErrInvalidInterval = errors.New("invalid interval")

var intervalSeconds = map[string]int{
	OneMinute:   60,
	FiveMinutes: 300,
}

// ParseInterval returns the bucket width in seconds for an interval name.
func ParseInterval(name string) (int, error) {
	w, ok := intervalSeconds[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q, choose %q or %q", ErrInvalidInterval, name, OneMinute, FiveMinutes)
	}
	return w, nil
}

// Bucket is a half-open time window [Start, End) in whole seconds.
type Bucket struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// overlaps reports whether (start, end) strictly overlaps the bucket.
func (b Bucket) overlaps(start, end float64) bool {
	return math.Max(float64(b.Start), start) < math.Min(float64(b.End), end)
}

// Buckets partitions [0, (floor(duration/width)+1)*width) into contiguous
// buckets of width seconds.
func Buckets(duration float64, width int) ([]Bucket, error) {
	if width <= 0 {
		return nil, fmt.Errorf("%w: bucket width must be positive, got %d", ErrAssembly, width)
	}
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration < 0 {
		return nil, fmt.Errorf("%w: invalid duration %v", ErrAssembly, duration)
	}

	n := int(duration/float64(width)) + 1
	buckets := make([]Bucket, n)
	for i := range buckets {
		buckets[i] = Bucket{Start: i * width, End: (i + 1) * width}
	}
	return buckets, nil
}

// FormatClock renders whole seconds as H:MM:SS. Hours are not wrapped.
func FormatClock(seconds int) string {
	sign := ""
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	return fmt.Sprintf("%s%d:%02d:%02d", sign, seconds/3600, seconds/60%60, seconds%60)
}
