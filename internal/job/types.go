package job

import (
	"fmt"
	"time"

	"github.com/skypro1111/transcript-worker/internal/transcript"
)

// Status is the lifecycle state of a job
type Status string

// Job states
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// transitions lists the states each state may move to. processing ->
// processing admits a task redelivered while its first run was in flight.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusProcessing, StatusCompleted, StatusFailed},
}

// Valid reports whether s is a known state
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s is final
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether a job in state from may move to state to
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AllowedFrom returns the states from which to can be entered
func AllowedFrom(to Status) []Status {
	var from []Status
	for _, s := range []Status{StatusPending, StatusProcessing, StatusCompleted, StatusFailed} {
		if CanTransition(s, to) {
			from = append(from, s)
		}
	}
	return from
}

// Job is a transcription job record
type Job struct {
	ID                 string    `json:"id"`
	AudioRef           string    `json:"audio_ref"`
	Interval           string    `json:"interval"`
	IncludeSpeaker     bool      `json:"include_speaker"`
	Status             Status    `json:"job_status"`
	TranscriptURL      string    `json:"transcript_blob_url,omitempty"`
	TranscriptFilename string    `json:"transcript_filename,omitempty"`
	Error              string    `json:"error,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Update is a status write. Empty strings are stored as NULL.
type Update struct {
	Status             Status `json:"job_status"`
	TranscriptURL      string `json:"transcript_blob_url,omitempty"`
	TranscriptFilename string `json:"transcript_filename,omitempty"`
	Error              string `json:"error,omitempty"`
}

// Task is the queued invocation of the pipeline for one job
type Task struct {
	JobID          string `json:"job_id"`
	AudioRef       string `json:"audio_ref"`
	Interval       string `json:"interval"`
	IncludeSpeaker bool   `json:"include_speaker"`
}

// Validate checks task arguments. An interval other than 1min or 5min
// yields ErrUnsupportedConfiguration.
func (t Task) Validate() error {
	if t.JobID == "" {
		return fmt.Errorf("%w: job_id cannot be empty", ErrInvalidTask)
	}
	if t.AudioRef == "" {
		return fmt.Errorf("%w: audio_ref cannot be empty", ErrInvalidTask)
	}
	if _, err := transcript.ParseInterval(t.Interval); err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedConfiguration, err)
	}
	return nil
}

// ArtifactName returns the transcript blob name for a job
func ArtifactName(jobID string) string {
	return jobID + "_transcript.csv"
}
