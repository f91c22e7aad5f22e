package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ewfx/gaipl-booleans/internal/api"
	"github.com/ewfx/gaipl-booleans/internal/embedding"
	"github.com/ewfx/gaipl-booleans/internal/events"
	"github.com/ewfx/gaipl-booleans/internal/logging"
	"github.com/ewfx/gaipl-booleans/internal/telemetry"
	"github.com/ewfx/gaipl-booleans/internal/vectorindex"
)

// DefaultPath is used when neither --config nor CONFIG_PATH is set.
const DefaultPath = "config/config.yaml"

// Config represents the overall application configuration
type Config struct {
	Embedding     embedding.Config        `yaml:"embedding"`
	VectorIndex   vectorindex.Config      `yaml:"vector_index"`
	KnowledgeBase KnowledgeBaseConfig     `yaml:"knowledge_base"`
	API           api.GatewayConfig       `yaml:"api"`
	Cache         embedding.CacheConfig   `yaml:"cache"`
	Events        events.KafkaConfig      `yaml:"events"`
	Logging       logging.Config          `yaml:"logging"`
	Tracing       telemetry.TracingConfig `yaml:"tracing"`
}

// KnowledgeBaseConfig locates the article file and tunes retrieval.
type KnowledgeBaseConfig struct {
	ArticlesPath string `yaml:"articles_path"`
	TopK         int    `yaml:"top_k"`
}

// Default returns the configuration used before the file and environment are applied.
func Default() *Config {
	return &Config{
		Embedding: embedding.Config{
			Provider:   embedding.ProviderAzure,
			APIVersion: "2024-02-01",
			Timeout:    30 * time.Second,
		},
		VectorIndex: vectorindex.Config{
			Backend:   vectorindex.BackendPinecone,
			Name:      "kb-index",
			Dimension: 1536,
			Metric:    vectorindex.MetricCosine,
			Pinecone: vectorindex.PineconeConfig{
				Cloud:        "aws",
				Region:       "us-east-1",
				ReadyTimeout: 2 * time.Minute,
			},
			PGVector: vectorindex.PGVectorConfig{
				MaxOpenConns: 10,
			},
		},
		KnowledgeBase: KnowledgeBaseConfig{
			ArticlesPath: "kb_articles.json",
			TopK:         1,
		},
		API: api.DefaultGatewayConfig(),
		Cache: embedding.CacheConfig{
			Addr:   "localhost:6379",
			Prefix: "kb:embedding",
			TTL:    24 * time.Hour,
		},
		Events: events.KafkaConfig{
			MatchTopic:  "kb.matches",
			IngestTopic: "kb.ingested",
			Timeout:     10 * time.Second,
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "text",
		},
		Tracing: telemetry.TracingConfig{
			ServiceName: "kbchat",
			Environment: "development",
			Endpoint:    "localhost:4318",
			Insecure:    true,
			SampleRate:  1.0,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path, an
// optional .env file and the process environment, then validates it.
// A missing file at path is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type lookupFunc func(key string) (string, bool)

// applyEnv overrides file values with the environment variables the service
// has always been configured with.
func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("EMBEDDING_PROVIDER", &c.Embedding.Provider)
	str("AZURE_OPENAI_ENDPOINT", &c.Embedding.Endpoint)
	str("AZURE_OPENAI_API_KEY", &c.Embedding.APIKey)
	str("AZURE_API_VERSION", &c.Embedding.APIVersion)
	str("AZURE_DEPLOYMENT_NAME", &c.Embedding.Deployment)
	if c.Embedding.Provider == embedding.ProviderOpenAI {
		str("OPENAI_API_KEY", &c.Embedding.APIKey)
		str("OPENAI_EMBEDDING_MODEL", &c.Embedding.Deployment)
	}

	str("VECTOR_INDEX_BACKEND", &c.VectorIndex.Backend)
	str("VECTOR_INDEX_NAME", &c.VectorIndex.Name)
	str("PINECONE_API_KEY", &c.VectorIndex.Pinecone.APIKey)
	str("PINECONE_ENVIRONMENT", &c.VectorIndex.Pinecone.Region)
	str("PINECONE_INDEX_HOST", &c.VectorIndex.Pinecone.IndexHost)
	str("PGVECTOR_DSN", &c.VectorIndex.PGVector.DSN)

	str("KB_ARTICLES_PATH", &c.KnowledgeBase.ArticlesPath)

	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		c.Events.Brokers = splitList(v)
	}
	if v, ok := lookup("REDIS_ADDR"); ok && v != "" {
		c.Cache.Addr = v
		c.Cache.Enabled = true
	}
	str("REDIS_PASSWORD", &c.Cache.Password)

	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)

	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.API.Port = port
	}

	if v, ok := lookup("OTEL_EXPORTER_OTLP_ENDPOINT"); ok && v != "" {
		c.Tracing.Endpoint = v
		c.Tracing.Enabled = true
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
