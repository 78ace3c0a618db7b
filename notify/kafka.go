package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/goliatone/go-lightning-webhooks/access"
)

const EventAccessGranted = "access.granted"

// MessageWriter is the subset of kafka.Writer the notifier needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// AccessGrantedRecord is the Kafka value for one grant.
type AccessGrantedRecord struct {
	Event      string    `json:"event"`
	GrantID    string    `json:"grant_id"`
	IdentityID string    `json:"identity_id"`
	Pubkey     string    `json:"pubkey"`
	ContentID  string    `json:"content_id"`
	Provider   string    `json:"provider"`
	Reference  string    `json:"reference,omitempty"`
	GrantedAt  time.Time `json:"granted_at"`
}

// KafkaNotifier publishes grants keyed by pubkey, so all grants for one
// identity land on the same partition.
type KafkaNotifier struct {
	writer MessageWriter
	topic  string
}

func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	writer := newWriter(brokers, topic)
	return &KafkaNotifier{writer: writer, topic: writer.Topic}
}

func newWriter(brokers []string, topic string) *kafka.Writer {
	addrs := make([]string, 0, len(brokers))
	for _, broker := range brokers {
		if broker = strings.TrimSpace(broker); broker != "" {
			addrs = append(addrs, broker)
		}
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(addrs...),
		Topic:                  strings.TrimSpace(topic),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaNotifierWithWriter(writer MessageWriter) *KafkaNotifier {
	return &KafkaNotifier{writer: writer}
}

func (n *KafkaNotifier) AccessGranted(ctx context.Context, grant access.Grant) error {
	if n == nil || n.writer == nil {
		return fmt.Errorf("notify: kafka writer is not configured")
	}
	value, err := json.Marshal(NewAccessGrantedRecord(grant))
	if err != nil {
		return fmt.Errorf("notify: encode access granted record: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(grant.Pubkey),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(EventAccessGranted)},
			{Key: "provider", Value: []byte(grant.Provider)},
		},
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("notify: publish to %q: %w", n.topic, err)
	}
	return nil
}

func (n *KafkaNotifier) Close() error {
	if n == nil || n.writer == nil {
		return nil
	}
	return n.writer.Close()
}

func NewAccessGrantedRecord(grant access.Grant) AccessGrantedRecord {
	return AccessGrantedRecord{
		Event:      EventAccessGranted,
		GrantID:    grant.ID,
		IdentityID: grant.IdentityID,
		Pubkey:     grant.Pubkey,
		ContentID:  grant.ContentID,
		Provider:   grant.Provider,
		Reference:  grant.Reference,
		GrantedAt:  grant.CreatedAt.UTC(),
	}
}

var _ access.Notifier = (*KafkaNotifier)(nil)
