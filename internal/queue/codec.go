package queue

import (
	"encoding/json"
	"fmt"

	"github.com/skypro1111/transcript-worker/internal/job"
)

// ContentType of encoded tasks
const ContentType = "application/json"

// EncodeTask serializes a task message body
func EncodeTask(task job.Task) ([]byte, error) {
	body, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("failed to encode task: %w", err)
	}
	return body, nil
}

// DecodeTask parses a task message body. Argument validation is left to
// the pipeline.
func DecodeTask(body []byte) (job.Task, error) {
	var task job.Task
	if err := json.Unmarshal(body, &task); err != nil {
		return job.Task{}, fmt.Errorf("%w: malformed task message: %v", job.ErrInvalidTask, err)
	}
	return task, nil
}
