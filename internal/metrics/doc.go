// Package metrics defines the Prometheus metrics exported by the worker.
package metrics
