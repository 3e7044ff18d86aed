package queue

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/skypro1111/transcript-worker/internal/job"
)

func TestTaskCodec(t *testing.T) {
	task := job.Task{JobID: "job-1", AudioRef: "call.wav", Interval: "5min", IncludeSpeaker: true}

	body, err := EncodeTask(task)
	if err != nil {
		t.Fatalf("EncodeTask failed: %v", err)
	}
	expected := `{"job_id":"job-1","audio_ref":"call.wav","interval":"5min","include_speaker":true}`
	if string(body) != expected {
		t.Errorf("Expected %s, got %s", expected, body)
	}

	decoded, err := DecodeTask(body)
	if err != nil {
		t.Fatalf("DecodeTask failed: %v", err)
	}
	if decoded != task {
		t.Errorf("Expected %+v, got %+v", task, decoded)
	}
}

func TestDecodeTaskDefaults(t *testing.T) {
	task, err := DecodeTask([]byte(`{"job_id":"7","audio_ref":"a.wav","interval":"1min"}`))
	if err != nil {
		t.Fatalf("DecodeTask failed: %v", err)
	}
	if task.IncludeSpeaker {
		t.Error("Expected include_speaker to default to false")
	}
}

func TestDecodeTaskMalformed(t *testing.T) {
	for _, body := range []string{"", "not json", `{"job_id":`, `["job-1"]`} {
		if _, err := DecodeTask([]byte(body)); !errors.Is(err, job.ErrInvalidTask) {
			t.Errorf("DecodeTask(%q): expected ErrInvalidTask, got %v", body, err)
		}
	}
}

func TestPublishing(t *testing.T) {
	task := job.Task{JobID: "job-9", AudioRef: "a.wav", Interval: "1min"}
	msg := publishing(task, []byte("{}"))

	if msg.DeliveryMode != amqp.Persistent {
		t.Errorf("Expected persistent delivery, got %d", msg.DeliveryMode)
	}
	if msg.CorrelationId != "job-9" {
		t.Errorf("Expected correlation id job-9, got %q", msg.CorrelationId)
	}
	if msg.MessageId == "" {
		t.Error("Expected message id")
	}
	if msg.ContentType != ContentType {
		t.Errorf("Expected content type %s, got %s", ContentType, msg.ContentType)
	}
}

func TestRoundTripThroughBroker(t *testing.T) {
	url := os.Getenv("TEST_RABBITMQ_URL")
	if url == "" {
		t.Skip("TEST_RABBITMQ_URL not set")
	}
	queueName := "transcription.jobs.test." + time.Now().Format("150405.000")

	producer, err := NewProducer(url, queueName)
	if err != nil {
		t.Fatalf("NewProducer failed: %v", err)
	}
	defer producer.Close()

	consumer, err := NewConsumer(url, queueName, 1, nil)
	if err != nil {
		t.Fatalf("NewConsumer failed: %v", err)
	}
	defer consumer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	task := job.Task{JobID: "job-rt", AudioRef: "a.wav", Interval: "1min"}
	if err := producer.Enqueue(ctx, task); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	deliveries, err := consumer.Consume(ctx)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}

	select {
	case d := <-deliveries:
		got, err := DecodeTask(d.Body)
		if err != nil {
			t.Fatalf("DecodeTask failed: %v", err)
		}
		if got != task {
			t.Errorf("Expected %+v, got %+v", task, got)
		}
		d.Ack(false)
	case <-ctx.Done():
		t.Fatal("Timed out waiting for delivery")
	}
}
