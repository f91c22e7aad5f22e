package app

import (
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewfx/gaipl-booleans/internal/config"
	"github.com/ewfx/gaipl-booleans/internal/events"
	"github.com/ewfx/gaipl-booleans/internal/vectorindex"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Embedding.Endpoint = "https://example.openai.azure.com/"
	cfg.Embedding.APIKey = "key"
	cfg.Embedding.Deployment = "ada"
	cfg.VectorIndex.Backend = vectorindex.BackendPGVector
	cfg.VectorIndex.PGVector.DSN = "postgres://localhost/kb?sslmode=disable"
	return cfg
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildMinimal(t *testing.T) {
	c, err := Build(testConfig(), discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	assert.Nil(t, c.Cache)
	assert.Nil(t, c.Topics)
	assert.IsType(t, &vectorindex.PGVector{}, c.Index)
	assert.IsType(t, events.NopPublisher{}, c.Publisher)
}

func TestBuildWithCacheAndEvents(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig()
	cfg.Cache.Enabled = true
	cfg.Cache.Addr = mr.Addr()
	cfg.Events.Brokers = []string{"localhost:9092"}

	c, err := Build(cfg, discard())
	require.NoError(t, err)

	require.NotNil(t, c.Cache)
	assert.Same(t, c.Cache, c.Embedder)
	assert.NotNil(t, c.Topics)
	assert.IsType(t, &events.KafkaPublisher{}, c.Publisher)

	assert.NoError(t, c.Close())
}

func TestBuildUnknownBackend(t *testing.T) {
	cfg := testConfig()
	cfg.VectorIndex.Backend = "faiss"

	_, err := Build(cfg, discard())
	assert.ErrorIs(t, err, vectorindex.ErrUnknownBackend)
}
