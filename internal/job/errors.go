package job

import "errors"

// Error kinds surfaced by the pipeline. Check with errors.Is.
var (
	ErrDecode                   = errors.New("decode error")
	ErrUnsupportedConfiguration = errors.New("unsupported configuration")
	ErrInvalidTask              = errors.New("invalid task")
	ErrStorage                  = errors.New("storage failure")
	ErrNotFound                 = errors.New("not found")
	ErrModelInference           = errors.New("model inference failure")
	ErrAssembly                 = errors.New("assembly error")
	ErrInvalidTransition        = errors.New("invalid status transition")
	ErrStatusNotRecorded        = errors.New("job status not recorded")
)

// Kind returns a short label for the error kind of err, for metrics and logs.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrStatusNotRecorded):
		return "status_not_recorded"
	case errors.Is(err, ErrUnsupportedConfiguration):
		return "unsupported_configuration"
	case errors.Is(err, ErrInvalidTask):
		return "invalid_task"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrStorage):
		return "storage"
	case errors.Is(err, ErrModelInference):
		return "model_inference"
	case errors.Is(err, ErrAssembly):
		return "assembly"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	default:
		return "internal"
	}
}
