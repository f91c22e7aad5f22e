package knowledgebase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ewfx/gaipl-booleans/internal/telemetry"
	"github.com/ewfx/gaipl-booleans/pkg/models"
)

// Ingester embeds KB articles and writes them to the vector index.
type Ingester struct {
	embedder    Embedder
	index       VectorIndex
	provisioner Provisioner
	publisher   EventPublisher
	logger      *slog.Logger
	config      IngestConfig
}

func NewIngester(embedder Embedder, index VectorIndex, provisioner Provisioner, publisher EventPublisher, config IngestConfig, logger *slog.Logger) *Ingester {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{
		embedder:    embedder,
		index:       index,
		provisioner: provisioner,
		publisher:   publisher,
		logger:      logger,
		config:      config,
	}
}

// Run provisions the index, embeds every article and upserts them as one batch.
// Any embedding or upsert failure fails the whole run.
func (ing *Ingester) Run(ctx context.Context, articles []Article) (*IngestReport, error) {
	ctx, span := telemetry.StartSpan(ctx, "kb.ingest")
	defer span.End()

	report := &IngestReport{}

	if !ing.config.SkipProvision && ing.provisioner != nil {
		created, err := ing.provisioner.EnsureIndex(ctx)
		if err != nil {
			telemetry.RecordSpanError(span, err, nil)
			return nil, fmt.Errorf("failed to provision index: %w", err)
		}
		report.IndexCreated = created
		if created {
			ing.logger.Info("created vector index", "index", ing.config.IndexName, "dimension", ing.config.Dimension)
		}
	}

	entries := make([]Entry, 0, len(articles))
	for _, article := range articles {
		vector, err := embed(ctx, ing.embedder, article.Content, ing.config.Dimension)
		if err != nil {
			telemetry.RecordSpanError(span, err, map[string]string{"kb.article_id": article.ID})
			return nil, fmt.Errorf("failed to generate embedding for article %s: %w", article.ID, err)
		}
		entries = append(entries, NewEntry(article, vector))
	}

	if len(entries) > 0 {
		if err := ing.index.Upsert(ctx, entries); err != nil {
			telemetry.RecordSpanError(span, err, nil)
			return nil, fmt.Errorf("failed to upsert %d entries: %w", len(entries), err)
		}
	}
	report.Upserted = len(entries)
	ing.logger.Info("vector index updated", "index", ing.config.IndexName, "upserted", report.Upserted)

	if ing.config.CollectStats {
		stats, err := ing.index.Stats(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe index: %w", err)
		}
		report.Stats = stats
	}

	event := models.IngestEvent{
		BaseEvent:    models.NewBaseEvent(models.EventTypeIndexIngested, ing.config.Source),
		IndexName:    ing.config.IndexName,
		IndexCreated: report.IndexCreated,
		Upserted:     report.Upserted,
	}
	if err := ing.publisher.Publish(ctx, event); err != nil {
		ing.logger.Warn("failed to publish ingest event", "error", err)
	}

	return report, nil
}
