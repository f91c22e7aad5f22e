// Package vectorindex adapts hosted and self-hosted vector stores to the
// knowledge base's VectorIndex and Provisioner contracts.
package vectorindex

import (
	"errors"
	"fmt"
	"time"

	"github.com/ewfx/gaipl-booleans/internal/knowledgebase"
)

const (
	BackendPinecone = "pinecone"
	BackendPGVector = "pgvector"

	MetricCosine     = "cosine"
	MetricEuclidean  = "euclidean"
	MetricDotProduct = "dotproduct"
)

var (
	// ErrUnknownBackend is returned for an unsupported backend name
	ErrUnknownBackend = errors.New("unknown vector index backend")

	// ErrIndexNotFound is returned when the data plane host cannot be resolved
	ErrIndexNotFound = errors.New("vector index not found")

	// ErrIndexNotReady is returned when a new index does not become ready in time
	ErrIndexNotReady = errors.New("vector index not ready")
)

// Config selects and configures the vector index backend.
type Config struct {
	Backend   string         `yaml:"backend"` // pinecone, pgvector
	Name      string         `yaml:"name"`
	Dimension int            `yaml:"dimension"`
	Metric    string         `yaml:"metric"` // cosine, euclidean, dotproduct
	Pinecone  PineconeConfig `yaml:"pinecone"`
	PGVector  PGVectorConfig `yaml:"pgvector"`
}

type PineconeConfig struct {
	APIKey string `yaml:"api_key"`
	// ControllerHost overrides the control plane URL, e.g. for pinecone-local.
	ControllerHost string `yaml:"controller_host"`
	// IndexHost skips the describe call used to find the data plane host.
	IndexHost    string        `yaml:"index_host"`
	Namespace    string        `yaml:"namespace"`
	Cloud        string        `yaml:"cloud"`
	Region       string        `yaml:"region"`
	Insecure     bool          `yaml:"insecure"`
	ReadyTimeout time.Duration `yaml:"ready_timeout"`
}

type PGVectorConfig struct {
	DSN          string `yaml:"dsn"`
	Table        string `yaml:"table"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// Index is a vector store that can also provision itself.
type Index interface {
	knowledgebase.VectorIndex
	knowledgebase.Provisioner
}

// Open builds the backend named in cfg. Connections are established lazily.
func Open(cfg Config) (Index, error) {
	switch cfg.Backend {
	case BackendPinecone, "":
		return NewPinecone(cfg)
	case BackendPGVector:
		return NewPGVector(cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Backend)
	}
}
