// Package job holds the transcription job model, its state machine, the
// ports through which jobs reach storage, models and the task queue, and the
// Pipeline that runs one job end to end.
//
// A job moves pending -> processing -> completed|failed. Terminal states are
// final; a task redelivered for a terminal job is skipped. Any failure after
// the task's arguments have been validated is recorded as failed with its
// message, so callers can always observe the outcome through the JobStore.
package job
