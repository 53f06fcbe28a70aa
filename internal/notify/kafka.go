// Package notify publishes migration events to Kafka so downstream
// consumers learn about new canonical datasets without polling the store.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/sewaa/forecast-sync/internal/domain"
	"github.com/sewaa/forecast-sync/internal/observability"
)

// MigrationEvent describes one dataset that reached the canonical store.
type MigrationEvent struct {
	Source     string    `json:"source"`
	Region     string    `json:"region,omitempty"`
	File       string    `json:"file"`
	Path       string    `json:"path"`
	MigratedAt time.Time `json:"migrated_at"`
}

// Publisher produces migration events to a Kafka topic. It implements the
// migrator's Notifier contract.
type Publisher struct {
	writer  *kafkago.Writer
	logger  *slog.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewPublisher creates a Kafka producer for the migration-events topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger, metrics *observability.Metrics) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger, metrics: metrics, now: time.Now}
}

// DatasetMigrated publishes one event. Messages are keyed by source so a
// consumer sees each source's migrations in order.
func (p *Publisher) DatasetMigrated(ctx context.Context, source domain.Source, region, path string) error {
	event := MigrationEvent{
		Source:     string(source),
		Region:     region,
		File:       filepath.Base(path),
		Path:       path,
		MigratedAt: p.now().UTC(),
	}
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish migration event for %s: %w", event.File, err)
	}
	p.metrics.EventsPublished.Inc()
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a MigrationEvent into a Kafka message.
func serializeToMessage(event MigrationEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize migration event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.Source),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte(event.Source)},
			{Key: "migrated_at", Value: []byte(event.MigratedAt.Format(time.RFC3339))},
		},
	}, nil
}
