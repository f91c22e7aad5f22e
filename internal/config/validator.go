package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/ewfx/gaipl-booleans/internal/embedding"
	"github.com/ewfx/gaipl-booleans/internal/logging"
	"github.com/ewfx/gaipl-booleans/internal/vectorindex"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Validate checks that every required value is present and consistent.
func (c *Config) Validate() error {
	if err := c.validateEmbedding(); err != nil {
		return fmt.Errorf("%w: embedding: %v", ErrInvalidConfig, err)
	}

	if err := c.validateVectorIndex(); err != nil {
		return fmt.Errorf("%w: vector_index: %v", ErrInvalidConfig, err)
	}

	if err := c.validateKnowledgeBase(); err != nil {
		return fmt.Errorf("%w: knowledge_base: %v", ErrInvalidConfig, err)
	}

	if err := c.validateAPI(); err != nil {
		return fmt.Errorf("%w: api: %v", ErrInvalidConfig, err)
	}

	if err := c.validateEvents(); err != nil {
		return fmt.Errorf("%w: events: %v", ErrInvalidConfig, err)
	}

	if err := c.validateLogging(); err != nil {
		return fmt.Errorf("%w: logging: %v", ErrInvalidConfig, err)
	}

	return nil
}

func (c *Config) validateEmbedding() error {
	switch c.Embedding.Provider {
	case embedding.ProviderAzure:
		if c.Embedding.Endpoint == "" {
			return fmt.Errorf("endpoint is required (AZURE_OPENAI_ENDPOINT)")
		}
		if _, err := url.ParseRequestURI(c.Embedding.Endpoint); err != nil {
			return fmt.Errorf("invalid endpoint: %v", err)
		}
		if c.Embedding.Deployment == "" {
			return fmt.Errorf("deployment is required (AZURE_DEPLOYMENT_NAME)")
		}
	case embedding.ProviderOpenAI:
		if err := embedding.CheckOpenAIModel(c.Embedding.Deployment); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid provider: %s (must be azure or openai)", c.Embedding.Provider)
	}

	if c.Embedding.APIKey == "" {
		return fmt.Errorf("api_key is required")
	}
	return nil
}

func (c *Config) validateVectorIndex() error {
	vi := c.VectorIndex
	if vi.Name == "" {
		return fmt.Errorf("name is required")
	}
	if vi.Dimension <= 0 {
		return fmt.Errorf("dimension must be greater than 0")
	}

	switch vi.Metric {
	case vectorindex.MetricCosine, vectorindex.MetricEuclidean, vectorindex.MetricDotProduct:
	default:
		return fmt.Errorf("invalid metric: %s (must be cosine, euclidean, or dotproduct)", vi.Metric)
	}

	switch vi.Backend {
	case vectorindex.BackendPinecone:
		if vi.Pinecone.APIKey == "" {
			return fmt.Errorf("pinecone.api_key is required (PINECONE_API_KEY)")
		}
		if vi.Pinecone.Cloud == "" || vi.Pinecone.Region == "" {
			return fmt.Errorf("pinecone.cloud and pinecone.region are required")
		}
	case vectorindex.BackendPGVector:
		if vi.PGVector.DSN == "" {
			return fmt.Errorf("pgvector.dsn is required (PGVECTOR_DSN)")
		}
	default:
		return fmt.Errorf("invalid backend: %s (must be pinecone or pgvector)", vi.Backend)
	}
	return nil
}

func (c *Config) validateKnowledgeBase() error {
	if c.KnowledgeBase.ArticlesPath == "" {
		return fmt.Errorf("articles_path is required")
	}
	if c.KnowledgeBase.TopK <= 0 {
		return fmt.Errorf("top_k must be greater than 0")
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}

	if c.API.EnableCORS && len(c.API.AllowedOrigins) == 0 {
		return fmt.Errorf("allowed_origins is required when CORS is enabled")
	}

	return nil
}

func (c *Config) validateEvents() error {
	for _, broker := range c.Events.Brokers {
		if !strings.Contains(broker, ":") {
			return fmt.Errorf("invalid broker format: %s (expected host:port)", broker)
		}
	}

	if c.Events.Enabled() && (c.Events.MatchTopic == "" || c.Events.IngestTopic == "") {
		return fmt.Errorf("match_topic and ingest_topic are required when brokers are set")
	}

	return nil
}

func (c *Config) validateLogging() error {
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return err
	}

	format := strings.ToLower(c.Logging.Format)
	validFormats := map[string]bool{"json": true, "text": true}

	if !validFormats[format] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", format)
	}

	return nil
}
