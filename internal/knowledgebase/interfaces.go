package knowledgebase

import (
	"context"

	"github.com/ewfx/gaipl-booleans/pkg/models"
)

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex is the external nearest-neighbour store.
type VectorIndex interface {
	// Upsert writes all entries in a single call.
	Upsert(ctx context.Context, entries []Entry) error
	// Query returns up to topK matches, best first, with metadata.
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)
	Stats(ctx context.Context) (*IndexStats, error)
	Close() error
}

// Provisioner creates the index when it does not exist yet.
type Provisioner interface {
	EnsureIndex(ctx context.Context) (created bool, err error)
}

// EventPublisher receives match and ingestion events.
type EventPublisher interface {
	Publish(ctx context.Context, event models.Event) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, models.Event) error { return nil }
