package knowledgebase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewfx/gaipl-booleans/pkg/models"
)

func newTestIngester(index VectorIndex, provisioner Provisioner, publisher EventPublisher, cfg IngestConfig) (*Ingester, *keywordEmbedder) {
	embedder := &keywordEmbedder{vocabulary: testVocabulary}
	cfg.Dimension = len(testVocabulary)
	return NewIngester(embedder, index, provisioner, publisher, cfg, nil), embedder
}

func TestIngestUpsertsOneBatch(t *testing.T) {
	index := newMemoryIndex()
	provisioner := &memoryProvisioner{}
	publisher := &recordingPublisher{}
	ing, embedder := newTestIngester(index, provisioner, publisher, IngestConfig{IndexName: "kb-index", CollectStats: true})

	articles := []Article{
		{ID: "KB001", Content: "Restart the service using `systemctl restart svc`."},
		{ID: "KB002", Content: "Clear the cache with `rm -rf /tmp/cache`."},
	}

	report, err := ing.Run(context.Background(), articles)
	require.NoError(t, err)

	assert.True(t, report.IndexCreated)
	assert.Equal(t, 2, report.Upserted)
	assert.Equal(t, 1, index.upsertCalls)
	assert.Equal(t, 2, embedder.calls)
	require.NotNil(t, report.Stats)
	assert.Equal(t, 2, report.Stats.TotalVectorCount)
	assert.Equal(t, len(testVocabulary), report.Stats.Dimension)

	entry := index.entries["KB002"]
	assert.Equal(t, articles[1].Content, entry.Metadata[MetadataArticleKey])

	require.Len(t, publisher.events, 1)
	ev, ok := publisher.events[0].(models.IngestEvent)
	require.True(t, ok)
	assert.Equal(t, "kb-index", ev.IndexName)
	assert.Equal(t, 2, ev.Upserted)
}

func TestIngestProvisioningIsIdempotent(t *testing.T) {
	index := newMemoryIndex()
	provisioner := &memoryProvisioner{}
	ing, _ := newTestIngester(index, provisioner, nil, IngestConfig{IndexName: "kb-index"})

	articles := []Article{{ID: "KB001", Content: "Restart `svc`."}}

	first, err := ing.Run(context.Background(), articles)
	require.NoError(t, err)
	second, err := ing.Run(context.Background(), articles)
	require.NoError(t, err)

	assert.True(t, first.IndexCreated)
	assert.False(t, second.IndexCreated)
	assert.Equal(t, 1, provisioner.creates)
	assert.Len(t, index.entries, 1)
}

func TestIngestSkipProvision(t *testing.T) {
	provisioner := &memoryProvisioner{}
	ing, _ := newTestIngester(newMemoryIndex(), provisioner, nil, IngestConfig{SkipProvision: true})

	report, err := ing.Run(context.Background(), []Article{{ID: "KB001", Content: "disk"}})
	require.NoError(t, err)
	assert.False(t, report.IndexCreated)
	assert.Zero(t, provisioner.creates)
}

func TestIngestEmbeddingFailureAbortsRun(t *testing.T) {
	index := newMemoryIndex()
	ing, embedder := newTestIngester(index, &memoryProvisioner{}, nil, IngestConfig{})
	embedder.err = errProvider

	_, err := ing.Run(context.Background(), []Article{{ID: "KB001", Content: "disk"}})
	assert.ErrorIs(t, err, errProvider)
	assert.Zero(t, index.upsertCalls)
}

func TestIngestProvisionFailure(t *testing.T) {
	ing, _ := newTestIngester(newMemoryIndex(), &memoryProvisioner{err: errProvider}, nil, IngestConfig{})

	_, err := ing.Run(context.Background(), []Article{{ID: "KB001", Content: "disk"}})
	assert.ErrorIs(t, err, errProvider)
}

func TestIngestNoArticlesSkipsUpsert(t *testing.T) {
	index := newMemoryIndex()
	ing, _ := newTestIngester(index, &memoryProvisioner{}, nil, IngestConfig{})

	report, err := ing.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, report.Upserted)
	assert.Zero(t, index.upsertCalls)
}

func TestIngestThenMatchRoundTrip(t *testing.T) {
	index := newMemoryIndex()
	ing, _ := newTestIngester(index, &memoryProvisioner{}, nil, IngestConfig{})

	content := "Network issues: reset the interface with `ip link set eth0 up`."
	_, err := ing.Run(context.Background(), []Article{
		{ID: "X", Content: content},
		{ID: "Y", Content: "Disk is full. Run `df -h`."},
	})
	require.NoError(t, err)

	svc, _ := newTestService(t, index, nil, nil)
	result, err := svc.Match(context.Background(), MatchRequest{Issue: "the network keeps dropping"})
	require.NoError(t, err)
	assert.Equal(t, "X", result.ArticleID)
	assert.Equal(t, content, result.KBUsed)
}
