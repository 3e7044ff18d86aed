package worker

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/skypro1111/transcript-worker/internal/job"
	"github.com/skypro1111/transcript-worker/internal/metrics"
	"github.com/skypro1111/transcript-worker/internal/queue"
)

// Delivery outcomes
const (
	OutcomeAck     = "ack"
	OutcomeReject  = "reject"
	OutcomeRequeue = "requeue"
)

// Runner executes one task
type Runner interface {
	Run(ctx context.Context, task job.Task) error
}

// Config contains worker pool configuration
type Config struct {
	Concurrency int
}

// ActiveJob describes a task currently being processed
type ActiveJob struct {
	JobID          string        `json:"job_id"`
	Interval       string        `json:"interval"`
	IncludeSpeaker bool          `json:"include_speaker"`
	StartedAt      time.Time     `json:"started_at"`
	Elapsed        time.Duration `json:"elapsed"`
}

// Stats is a snapshot of worker activity
type Stats struct {
	Concurrency int         `json:"concurrency"`
	Received    uint64      `json:"received"`
	Acked       uint64      `json:"acked"`
	Rejected    uint64      `json:"rejected"`
	Requeued    uint64      `json:"requeued"`
	Active      []ActiveJob `json:"active"`
}

// Worker runs deliveries through a Runner on a pool of goroutines
type Worker struct {
	runner      Runner
	concurrency int
	logger      *slog.Logger
	metrics     *metrics.Metrics

	active   map[uint64]*ActiveJob // keyed by delivery tag
	received uint64
	acked    uint64
	rejected uint64
	requeued uint64

	mu sync.RWMutex
}

// New creates a worker. m may be nil.
func New(runner Runner, config Config, logger *slog.Logger, m *metrics.Metrics) *Worker {
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		runner:      runner,
		concurrency: config.Concurrency,
		logger:      logger,
		metrics:     m,
		active:      make(map[uint64]*ActiveJob),
	}
}

// Run processes deliveries until the channel closes or ctx is cancelled,
// then waits for in-flight tasks to settle.
func (w *Worker) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	w.logger.Info("Worker pool started", slog.Int("concurrency", w.concurrency))

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case d, ok := <-deliveries:
					if !ok {
						return
					}
					w.handle(ctx, d)
				}
			}
		}()
	}
	wg.Wait()

	stats := w.Stats()
	w.logger.Info("Worker pool stopped",
		slog.Uint64("received", stats.Received),
		slog.Uint64("acked", stats.Acked),
		slog.Uint64("rejected", stats.Rejected),
		slog.Uint64("requeued", stats.Requeued),
	)
}

// handle runs one delivery and settles it
func (w *Worker) handle(ctx context.Context, d amqp.Delivery) {
	w.metrics.RecordDelivery()
	w.mu.Lock()
	w.received++
	w.mu.Unlock()

	task, err := queue.DecodeTask(d.Body)
	if err != nil {
		w.logger.Warn("Rejecting malformed task",
			slog.Uint64("delivery_tag", d.DeliveryTag),
			slog.String("error", err.Error()),
		)
		w.settle(d, OutcomeReject)
		return
	}

	w.track(d.DeliveryTag, task)
	err = w.runner.Run(ctx, task)
	w.untrack(d.DeliveryTag)

	outcome := Outcome(err)
	if err != nil {
		w.logger.Warn("Task finished with error",
			slog.String("job_id", task.JobID),
			slog.String("kind", job.Kind(err)),
			slog.String("outcome", outcome),
			slog.String("error", err.Error()),
		)
	}
	w.settle(d, outcome)
}

// Outcome maps a pipeline result to a delivery outcome
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeAck
	case errors.Is(err, job.ErrStatusNotRecorded):
		return OutcomeRequeue
	default:
		return OutcomeReject
	}
}

func (w *Worker) settle(d amqp.Delivery, outcome string) {
	var err error
	switch outcome {
	case OutcomeAck:
		err = d.Ack(false)
	case OutcomeRequeue:
		err = d.Nack(false, true)
	default:
		err = d.Reject(false)
	}
	if err != nil {
		w.logger.Error("Failed to settle delivery",
			slog.Uint64("delivery_tag", d.DeliveryTag),
			slog.String("outcome", outcome),
			slog.String("error", err.Error()),
		)
		return
	}

	w.metrics.RecordDeliveryOutcome(outcome)

	w.mu.Lock()
	defer w.mu.Unlock()
	switch outcome {
	case OutcomeAck:
		w.acked++
	case OutcomeRequeue:
		w.requeued++
	default:
		w.rejected++
	}
}

func (w *Worker) track(tag uint64, task job.Task) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.active[tag] = &ActiveJob{
		JobID:          task.JobID,
		Interval:       task.Interval,
		IncludeSpeaker: task.IncludeSpeaker,
		StartedAt:      time.Now(),
	}
}

func (w *Worker) untrack(tag uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.active, tag)
}

// ActiveJobCount returns the number of tasks in flight
func (w *Worker) ActiveJobCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.active)
}

// Stats returns a snapshot of worker activity, active jobs oldest first
func (w *Worker) Stats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()

	now := time.Now()
	active := make([]ActiveJob, 0, len(w.active))
	for _, a := range w.active {
		snapshot := *a
		snapshot.Elapsed = now.Sub(a.StartedAt)
		active = append(active, snapshot)
	}
	sort.Slice(active, func(i, j int) bool { return active[i].StartedAt.Before(active[j].StartedAt) })

	return Stats{
		Concurrency: w.concurrency,
		Received:    w.received,
		Acked:       w.acked,
		Rejected:    w.rejected,
		Requeued:    w.requeued,
		Active:      active,
	}
}
