// Package events publishes knowledge base match and ingestion events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ewfx/gaipl-booleans/pkg/models"
)

// batchTimeout bounds how long a synchronous write waits to fill a batch.
// kafka-go defaults to one second, which would stall every publish.
const batchTimeout = 10 * time.Millisecond

// KafkaConfig configures the event publisher. Events are disabled when Brokers is empty.
type KafkaConfig struct {
	Brokers     []string      `yaml:"brokers"`
	MatchTopic  string        `yaml:"match_topic"`
	IngestTopic string        `yaml:"ingest_topic"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Enabled reports whether any broker is configured.
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

func (c KafkaConfig) topicFor(t models.EventType) string {
	switch t {
	case models.EventTypeArticleMatched:
		return c.MatchTopic
	case models.EventTypeIndexIngested:
		return c.IngestTopic
	default:
		return ""
	}
}

// Publisher sends events somewhere. It satisfies knowledgebase.EventPublisher.
type Publisher interface {
	Publish(ctx context.Context, event models.Event) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes JSON-encoded events keyed by Event.Key.
type KafkaPublisher struct {
	writer messageWriter
	config KafkaConfig
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewPublisher returns a Kafka publisher, or a no-op publisher when no brokers are configured.
func NewPublisher(cfg KafkaConfig, logger *slog.Logger) Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Enabled() {
		logger.Info("kafka brokers not configured, events disabled")
		return NopPublisher{}
	}

	return newKafkaPublisher(newWriter(cfg), cfg, logger)
}

func newWriter(cfg KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		Compression:            kafka.Gzip,
		BatchTimeout:           batchTimeout,
		RequiredAcks:           kafka.RequireAll,
		WriteTimeout:           cfg.Timeout,
		AllowAutoTopicCreation: false,
	}
}

func newKafkaPublisher(w messageWriter, cfg KafkaConfig, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: w,
		config: cfg,
		logger: logger,
	}
}

// Publish writes one event to the topic mapped to its type.
func (p *KafkaPublisher) Publish(ctx context.Context, event models.Event) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPublisherClosed
	}
	p.mu.Unlock()

	topic := p.config.topicFor(event.EventType())
	if topic == "" {
		return fmt.Errorf("%w: %s", ErrUnroutedEvent, event.EventType())
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.EventType(), err)
	}

	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(event.Key()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType())},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	p.logger.Debug("event published", "topic", topic, "type", event.EventType(), "key", event.Key())
	return nil
}

// Close flushes and closes the writer. Calling it twice is a no-op.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.writer.Close()
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, models.Event) error { return nil }
func (NopPublisher) Close() error { return nil }
