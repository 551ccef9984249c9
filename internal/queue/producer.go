package queue

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"

	"github.com/rpattn/versioned/internal/domain"
)

// Producer publishes version-created events so downstream consumers can react
// to entity changes. It is optional: a nil producer skips publishing.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a Kafka producer. Username and password are optional;
// when set, SASL/PLAIN over TLS is used.
func NewProducer(broker, topic, username, password string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(broker),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		WriteTimeout: 10 * time.Second,
	}

	if username != "" {
		writer.Transport = &kafka.Transport{
			SASL: plain.Mechanism{Username: username, Password: password},
			TLS:  &tls.Config{},
		}
	}

	return &Producer{writer: writer}
}

// versionEvent is the wire shape of a version-created notification.
type versionEvent struct {
	EntityKind string      `json:"entity_kind"`
	EntityID   string      `json:"entity_id"`
	Version    int64       `json:"version"`
	Changer    *domain.Ref `json:"changer,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// PublishVersionCreated emits one event for a committed version record.
// Publishing is best effort; a broker failure never fails the update that
// already committed.
func (p *Producer) PublishVersionCreated(ctx context.Context, record domain.VersionRecord) {
	if p == nil || p.writer == nil {
		return
	}

	payload, err := json.Marshal(versionEvent{
		EntityKind: record.Entity.Kind,
		EntityID:   record.Entity.ID,
		Version:    record.Version,
		Changer:    record.Changer,
		CreatedAt:  record.CreatedAt,
	})
	if err != nil {
		log.Printf("[QUEUE] Failed to marshal version event: %v", err)
		return
	}

	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.writer.WriteMessages(publishCtx, kafka.Message{
		Key:   []byte(record.Entity.String()),
		Value: payload,
		Time:  time.Now(),
	})
	if err != nil {
		log.Printf("[QUEUE] Failed to publish version event for %s: %v", record.Entity, err)
	}
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
