// Package worker consumes task deliveries and runs them through the job
// pipeline on a fixed pool of goroutines.
//
// Settlement policy: success is acknowledged; malformed tasks, invalid
// arguments and failures already recorded on the job are rejected without
// requeue; a failure that could not be recorded is requeued so the job is
// retried rather than left unobservable.
package worker
