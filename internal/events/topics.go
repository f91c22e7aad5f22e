package events

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/segmentio/kafka-go"
)

// TopicConfig defines Kafka topic configuration
type TopicConfig struct {
	Name              string
	Partitions        int
	ReplicationFactor int
	RetentionMs       int64
	CleanupPolicy     string
}

// Topics returns the topic definitions for the configured event topics.
func Topics(cfg KafkaConfig) []TopicConfig {
	return []TopicConfig{
		{
			Name:              cfg.MatchTopic,
			Partitions:        6,
			ReplicationFactor: 1,
			RetentionMs:       604800000, // 7 days
			CleanupPolicy:     "delete",
		},
		{
			Name:              cfg.IngestTopic,
			Partitions:        1,
			ReplicationFactor: 1,
			RetentionMs:       2592000000, // 30 days
			CleanupPolicy:     "delete",
		},
	}
}

func (t TopicConfig) kafkaConfig() kafka.TopicConfig {
	return kafka.TopicConfig{
		Topic:             t.Name,
		NumPartitions:     t.Partitions,
		ReplicationFactor: t.ReplicationFactor,
		ConfigEntries: []kafka.ConfigEntry{
			{ConfigName: "retention.ms", ConfigValue: strconv.FormatInt(t.RetentionMs, 10)},
			{ConfigName: "cleanup.policy", ConfigValue: t.CleanupPolicy},
		},
	}
}

// TopicManager creates and inspects the event topics.
type TopicManager struct {
	brokers []string
	logger  *slog.Logger
}

func NewTopicManager(brokers []string, logger *slog.Logger) *TopicManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &TopicManager{brokers: brokers, logger: logger}
}

// Ping opens and closes a connection to the first broker.
func (tm *TopicManager) Ping(ctx context.Context) error {
	if len(tm.brokers) == 0 {
		return ErrNoBrokers
	}
	conn, err := kafka.DialContext(ctx, "tcp", tm.brokers[0])
	if err != nil {
		return fmt.Errorf("connect to kafka broker: %w", err)
	}
	return conn.Close()
}

// EnsureTopics creates each topic through the controller. Topics that already
// exist are logged and skipped.
func (tm *TopicManager) EnsureTopics(ctx context.Context, topics []TopicConfig) error {
	if len(tm.brokers) == 0 {
		return ErrNoBrokers
	}

	conn, err := kafka.DialContext(ctx, "tcp", tm.brokers[0])
	if err != nil {
		return fmt.Errorf("connect to kafka broker: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("get controller: %w", err)
	}

	controllerConn, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("connect to controller: %w", err)
	}
	defer controllerConn.Close()

	for _, t := range topics {
		if t.Name == "" {
			continue
		}
		if err := controllerConn.CreateTopics(t.kafkaConfig()); err != nil {
			tm.logger.Warn("create topic", "topic", t.Name, "error", err)
			continue
		}
		tm.logger.Info("created topic", "topic", t.Name)
	}
	return nil
}
