// Package queue carries transcription tasks over RabbitMQ. Tasks are JSON
// messages on a durable queue, published persistent and consumed with
// manual acknowledgement, giving at-least-once delivery.
package queue
