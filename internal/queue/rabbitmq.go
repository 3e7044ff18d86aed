package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/skypro1111/transcript-worker/internal/job"
)

// DefaultQueue is the task queue name
const DefaultQueue = "transcription.jobs"

// Consumer receives task deliveries from a durable queue
type Consumer struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	queue  string
	tag    string
	logger *slog.Logger
}

// Producer publishes tasks to a durable queue. It implements job.TaskQueue.
type Producer struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
	mu    sync.Mutex
}

// declare opens a channel on conn and declares the durable queue
func declare(conn *amqp.Connection, queue string) (*amqp.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	return ch, nil
}

// NewConsumer connects and prepares to consume queue. prefetch bounds the
// number of unacknowledged deliveries held by this consumer.
func NewConsumer(url, queue string, prefetch int, logger *slog.Logger) (*Consumer, error) {
	if queue == "" {
		queue = DefaultQueue
	}
	if prefetch < 1 {
		prefetch = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := declare(conn, queue)
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := ch.Qos(prefetch, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	return &Consumer{
		conn:   conn,
		ch:     ch,
		queue:  queue,
		tag:    "transcript-worker-" + uuid.NewString()[:8],
		logger: logger,
	}, nil
}

// Consume starts delivery with manual acknowledgement. The channel closes
// when the connection is lost or Close is called.
func (c *Consumer) Consume(ctx context.Context) (<-chan amqp.Delivery, error) {
	deliveries, err := c.ch.ConsumeWithContext(ctx, c.queue, c.tag, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to consume %s: %w", c.queue, err)
	}

	c.logger.Info("Consuming task queue",
		slog.String("queue", c.queue),
		slog.String("consumer_tag", c.tag),
	)
	return deliveries, nil
}

// Close cancels the consumer and closes the connection
func (c *Consumer) Close() error {
	if c.ch != nil {
		if err := c.ch.Cancel(c.tag, false); err != nil {
			c.logger.Warn("Failed to cancel consumer", slog.String("error", err.Error()))
		}
		c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// NewProducer connects and declares the queue tasks are published to
func NewProducer(url, queue string) (*Producer, error) {
	if queue == "" {
		queue = DefaultQueue
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := declare(conn, queue)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &Producer{conn: conn, ch: ch, queue: queue}, nil
}

// Enqueue publishes a persistent task message
func (p *Producer) Enqueue(ctx context.Context, task job.Task) error {
	body, err := EncodeTask(task)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, publishing(task, body))
	if err != nil {
		return fmt.Errorf("failed to publish task for job %s: %w", task.JobID, err)
	}
	return nil
}

// publishing builds the AMQP message for a task
func publishing(task job.Task, body []byte) amqp.Publishing {
	return amqp.Publishing{
		ContentType:   ContentType,
		DeliveryMode:  amqp.Persistent,
		MessageId:     uuid.NewString(),
		CorrelationId: task.JobID,
		Timestamp:     time.Now().UTC(),
		Type:          "transcription.job",
		Body:          body,
	}
}

// Close closes the channel and connection
func (p *Producer) Close() error {
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
