// Package app assembles the knowledge base components from configuration.
package app

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/ewfx/gaipl-booleans/internal/config"
	"github.com/ewfx/gaipl-booleans/internal/embedding"
	"github.com/ewfx/gaipl-booleans/internal/events"
	"github.com/ewfx/gaipl-booleans/internal/health"
	"github.com/ewfx/gaipl-booleans/internal/knowledgebase"
	"github.com/ewfx/gaipl-booleans/internal/vectorindex"
)

// Components holds the shared dependencies of both binaries. Nothing here
// dials out on construction; connections happen on first use.
type Components struct {
	Embedder  knowledgebase.Embedder
	Cache     *embedding.CachedEmbedder
	Index     vectorindex.Index
	Publisher events.Publisher
	Topics    *events.TopicManager

	redis  *redis.Client
	logger *slog.Logger
}

// Build creates the embedder (with the redis cache when enabled), the vector
// index backend and the event publisher.
func Build(cfg *config.Config, logger *slog.Logger) (*Components, error) {
	if logger == nil {
		logger = slog.Default()
	}

	openaiEmbedder, err := embedding.NewOpenAIEmbedder(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}

	c := &Components{
		Embedder: openaiEmbedder,
		logger:   logger,
	}

	if cfg.Cache.Enabled {
		c.redis = embedding.NewRedisClient(cfg.Cache)
		c.Cache = embedding.NewCachedEmbedder(openaiEmbedder, c.redis, cfg.Cache, openaiEmbedder.Model(), logger)
		c.Embedder = c.Cache
		logger.Info("embedding cache enabled", "addr", cfg.Cache.Addr)
	}

	index, err := vectorindex.Open(cfg.VectorIndex)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("vector index: %w", err)
	}
	c.Index = index

	c.Publisher = events.NewPublisher(cfg.Events, logger)
	if cfg.Events.Enabled() {
		c.Topics = events.NewTopicManager(cfg.Events.Brokers, logger)
	}

	return c, nil
}

// HealthChecker registers a check for every component that can be probed.
func (c *Components) HealthChecker() *health.HealthChecker {
	hc := health.NewHealthChecker()
	hc.Register(&health.VectorIndexHealthCheck{Index: c.Index})
	if c.Cache != nil {
		hc.Register(&health.PingHealthCheck{CheckName: "embedding_cache", Target: c.Cache})
	}
	if c.Topics != nil {
		hc.Register(&health.PingHealthCheck{CheckName: "kafka", Target: c.Topics})
	}
	return hc
}

// Close releases every component, returning the joined errors.
func (c *Components) Close() error {
	var errs []error
	if c.Publisher != nil {
		if err := c.Publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	if c.Index != nil {
		if err := c.Index.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close vector index: %w", err))
		}
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	return errors.Join(errs...)
}
