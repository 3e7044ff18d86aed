// Package server implements the HTTP monitoring endpoints of the transcript worker:
// health, live job state, worker and model statistics, sanitized configuration,
// and Prometheus metrics.
package server
