package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/segmentio/kafka-go"
)

// KafkaJobEnqueuer is a queue.Enqueuer that hands execution messages to
// workers consuming a Kafka topic. The idempotency key, or the job id when
// it is empty, is the record key.
type KafkaJobEnqueuer struct {
	writer MessageWriter
}

func NewKafkaJobEnqueuer(brokers []string, topic string) *KafkaJobEnqueuer {
	return &KafkaJobEnqueuer{writer: newWriter(brokers, topic)}
}

func NewKafkaJobEnqueuerWithWriter(writer MessageWriter) *KafkaJobEnqueuer {
	return &KafkaJobEnqueuer{writer: writer}
}

func (e *KafkaJobEnqueuer) Enqueue(ctx context.Context, msg *job.ExecutionMessage) error {
	if e == nil || e.writer == nil {
		return fmt.Errorf("notify: kafka job writer is not configured")
	}
	if msg == nil {
		return fmt.Errorf("notify: execution message is required")
	}
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notify: encode execution message: %w", err)
	}
	key := strings.TrimSpace(msg.IdempotencyKey)
	if key == "" {
		key = msg.JobID
	}
	return e.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "job_id", Value: []byte(msg.JobID)},
		},
	})
}

func (e *KafkaJobEnqueuer) Close() error {
	if e == nil || e.writer == nil {
		return nil
	}
	return e.writer.Close()
}

var _ queue.Enqueuer = (*KafkaJobEnqueuer)(nil)
