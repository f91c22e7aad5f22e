package knowledgebase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ewfx/gaipl-booleans/internal/telemetry"
	"github.com/ewfx/gaipl-booleans/pkg/models"
)

type KnowledgeBaseService struct {
	embedder  Embedder
	index     VectorIndex
	catalog   *Catalog
	publisher EventPublisher
	logger    *slog.Logger
	config    KBConfig

	publishing sync.WaitGroup
}

// NewKnowledgeBaseService wires the query path. catalog, publisher and logger may be nil.
func NewKnowledgeBaseService(embedder Embedder, index VectorIndex, catalog *Catalog, publisher EventPublisher, config KBConfig, logger *slog.Logger) *KnowledgeBaseService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.TopK <= 0 {
		config.TopK = 1
	}
	return &KnowledgeBaseService{
		embedder:  embedder,
		index:     index,
		catalog:   catalog,
		publisher: publisher,
		logger:    logger,
		config:    config,
	}
}

// Match resolves an issue to its nearest KB article and extracts the article's commands.
// The top neighbour is used whatever its score.
func (kbs *KnowledgeBaseService) Match(ctx context.Context, req MatchRequest) (*MatchResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "kb.match")
	defer span.End()

	if req.Issue == "" {
		return nil, ErrEmptyIssue
	}

	embedding, err := embed(ctx, kbs.embedder, req.Issue, kbs.config.Dimension)
	if err != nil {
		telemetry.RecordSpanError(span, err, nil)
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	matches, err := kbs.query(ctx, embedding)
	if err != nil {
		telemetry.RecordSpanError(span, err, nil)
		return nil, fmt.Errorf("failed to query index: %w", err)
	}

	kbs.logger.Debug("vector index query result", "matches", matches)

	if len(matches) == 0 {
		return nil, ErrNoMatch
	}

	best := matches[0]
	text, err := kbs.articleText(best)
	if err != nil {
		telemetry.RecordSpanError(span, err, nil)
		return nil, err
	}

	result := &MatchResult{
		ArticleID: best.ID,
		Score:     best.Score,
		KBUsed:    text,
		Commands:  ExtractCommands(text),
		DryRun:    req.DryRun,
	}

	telemetry.AddSpanAttributes(span, map[string]string{
		"kb.article_id": result.ArticleID,
		"kb.dry_run":    fmt.Sprint(result.DryRun),
	})
	kbs.logger.Info("matched kb article",
		"article_id", result.ArticleID,
		"score", result.Score,
		"commands", len(result.Commands),
		"dry_run", result.DryRun,
	)

	kbs.publishMatch(ctx, req, result)

	return result, nil
}

func (kbs *KnowledgeBaseService) query(ctx context.Context, embedding []float32) ([]Match, error) {
	ctx, span := telemetry.StartSpan(ctx, "kb.query")
	defer span.End()

	return kbs.index.Query(ctx, embedding, kbs.config.TopK)
}

// articleText prefers the indexed metadata and falls back to the local catalog.
func (kbs *KnowledgeBaseService) articleText(m Match) (string, error) {
	if text, ok := m.ArticleText(); ok {
		return text, nil
	}
	if article, ok := kbs.catalog.Get(m.ID); ok {
		kbs.logger.Warn("match has no kb_article metadata, using local catalog", "article_id", m.ID)
		return article.Content, nil
	}
	return "", fmt.Errorf("%w: %s", ErrArticleTextMissing, m.ID)
}

// publishMatch emits the match event off the request path.
func (kbs *KnowledgeBaseService) publishMatch(ctx context.Context, req MatchRequest, result *MatchResult) {
	event := models.MatchEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeArticleMatched, kbs.config.Source),
		Issue:     req.Issue,
		ArticleID: result.ArticleID,
		Score:     result.Score,
		Commands:  result.Commands,
		DryRun:    result.DryRun,
	}
	ctx = context.WithoutCancel(ctx)

	kbs.publishing.Add(1)
	go func() {
		defer kbs.publishing.Done()
		if err := kbs.publisher.Publish(ctx, event); err != nil {
			kbs.logger.Warn("failed to publish match event", "article_id", result.ArticleID, "error", err)
		}
	}()
}

// Wait blocks until every pending match event has been handed to the publisher.
func (kbs *KnowledgeBaseService) Wait() {
	kbs.publishing.Wait()
}

// embed is shared by the query and ingestion paths.
func embed(ctx context.Context, embedder Embedder, text string, dimension int) ([]float32, error) {
	ctx, span := telemetry.StartSpan(ctx, "kb.embed")
	defer span.End()

	vector, err := embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if dimension > 0 && len(vector) != dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), dimension)
	}
	return vector, nil
}
