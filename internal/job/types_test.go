package job

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		allowed  bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusCompleted, false},
		{StatusProcessing, StatusProcessing, true},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusPending, false},
		{StatusCompleted, StatusProcessing, false},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusProcessing, false},
		{StatusFailed, StatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.allowed {
				t.Errorf("Expected %v, got %v", tt.allowed, got)
			}
		})
	}
}

func TestAllowedFrom(t *testing.T) {
	tests := []struct {
		to       Status
		expected []Status
	}{
		{StatusProcessing, []Status{StatusPending, StatusProcessing}},
		{StatusCompleted, []Status{StatusProcessing}},
		{StatusFailed, []Status{StatusPending, StatusProcessing}},
		{StatusPending, nil},
	}

	for _, tt := range tests {
		if got := AllowedFrom(tt.to); !reflect.DeepEqual(got, tt.expected) {
			t.Errorf("AllowedFrom(%s): expected %v, got %v", tt.to, tt.expected, got)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	for status, terminal := range map[Status]bool{
		StatusPending:    false,
		StatusProcessing: false,
		StatusCompleted:  true,
		StatusFailed:     true,
	} {
		if status.Terminal() != terminal {
			t.Errorf("%s: expected terminal=%v", status, terminal)
		}
		if !status.Valid() {
			t.Errorf("%s: expected valid", status)
		}
	}
	if Status("archived").Valid() {
		t.Error("Expected unknown status to be invalid")
	}
}

func TestTaskValidate(t *testing.T) {
	tests := []struct {
		name     string
		task     Task
		expected error
	}{
		{"valid 1min", Task{JobID: "a", AudioRef: "x.wav", Interval: "1min"}, nil},
		{"valid 5min", Task{JobID: "a", AudioRef: "x.wav", Interval: "5min", IncludeSpeaker: true}, nil},
		{"bad interval", Task{JobID: "a", AudioRef: "x.wav", Interval: "10min"}, ErrUnsupportedConfiguration},
		{"missing job id", Task{AudioRef: "x.wav", Interval: "1min"}, ErrInvalidTask},
		{"missing audio", Task{JobID: "a", Interval: "1min"}, ErrInvalidTask},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.task.Validate()
			if tt.expected == nil && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
			if tt.expected != nil && !errors.Is(err, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, err)
			}
		})
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		err      error
		expected string
	}{
		{nil, "none"},
		{fmt.Errorf("download: %w: %w", ErrStorage, ErrNotFound), "not_found"},
		{fmt.Errorf("upload: %w", ErrStorage), "storage"},
		{fmt.Errorf("%w: %w", ErrStatusNotRecorded, ErrModelInference), "status_not_recorded"},
		{fmt.Errorf("transcribe: %w", ErrModelInference), "model_inference"},
		{errors.New("boom"), "internal"},
	}

	for _, tt := range tests {
		if got := Kind(tt.err); got != tt.expected {
			t.Errorf("Kind(%v): expected %q, got %q", tt.err, tt.expected, got)
		}
	}
}

func TestArtifactName(t *testing.T) {
	if got := ArtifactName("42"); got != "42_transcript.csv" {
		t.Errorf("Expected 42_transcript.csv, got %q", got)
	}
}
