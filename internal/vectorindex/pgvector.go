package vectorindex

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/ewfx/gaipl-booleans/internal/knowledgebase"
)

// PGVector stores KB entries in a PostgreSQL table with a pgvector column.
type PGVector struct {
	db        *sqlx.DB
	table     string
	dimension int
	metric    string
}

func NewPGVector(cfg Config) (*PGVector, error) {
	db, err := sqlx.Open("postgres", cfg.PGVector.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.PGVector.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.PGVector.MaxOpenConns)
	}
	return newPGVector(db, cfg), nil
}

func newPGVector(db *sqlx.DB, cfg Config) *PGVector {
	table := cfg.PGVector.Table
	if table == "" {
		table = strings.ReplaceAll(cfg.Name, "-", "_")
	}
	metric := cfg.Metric
	if metric == "" {
		metric = MetricCosine
	}
	return &PGVector{
		db:        db,
		table:     table,
		dimension: cfg.Dimension,
		metric:    metric,
	}
}

// distance returns the pgvector operator and HNSW operator class for the metric.
func (p *PGVector) distance() (operator, opclass string) {
	switch p.metric {
	case MetricEuclidean:
		return "<->", "vector_l2_ops"
	case MetricDotProduct:
		return "<#>", "vector_ip_ops"
	default:
		return "<=>", "vector_cosine_ops"
	}
}

// scoreExpr turns the distance into a score where larger is closer, except for
// euclidean which reports the raw distance.
func (p *PGVector) scoreExpr() string {
	switch p.metric {
	case MetricEuclidean:
		return "embedding <-> $1"
	case MetricDotProduct:
		return "(embedding <#> $1) * -1"
	default:
		return "1 - (embedding <=> $1)"
	}
}

// EnsureIndex creates the extension, table and HNSW index when the table is missing.
func (p *PGVector) EnsureIndex(ctx context.Context) (bool, error) {
	var exists bool
	err := p.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1)`,
		p.table)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", p.table, err)
	}
	if exists {
		return false, nil
	}

	_, opclass := p.distance()
	table := pq.QuoteIdentifier(p.table)
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (id text PRIMARY KEY, embedding vector(%d) NOT NULL, metadata jsonb NOT NULL DEFAULT '{}'::jsonb)`,
			table, p.dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding %s)`,
			pq.QuoteIdentifier(p.table+"_embedding_idx"), table, opclass),
	}
	for _, stmt := range statements {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return false, fmt.Errorf("provision %s: %w", p.table, err)
		}
	}
	return true, nil
}

// Upsert writes every entry in one multi-row INSERT ... ON CONFLICT statement.
func (p *PGVector) Upsert(ctx context.Context, entries []knowledgebase.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	var query strings.Builder
	fmt.Fprintf(&query, `INSERT INTO %s (id, embedding, metadata) VALUES `, pq.QuoteIdentifier(p.table))

	args := make([]any, 0, len(entries)*3)
	for i, e := range entries {
		if i > 0 {
			query.WriteString(", ")
		}
		offset := i * 3
		fmt.Fprintf(&query, "($%d, $%d, $%d)", offset+1, offset+2, offset+3)

		metadata, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("metadata for %s: %w", e.ID, err)
		}
		args = append(args, e.ID, pgvector.NewVector(e.Vector), string(metadata))
	}
	query.WriteString(` ON CONFLICT (id) DO UPDATE SET embedding = EXCLUDED.embedding, metadata = EXCLUDED.metadata`)

	_, err := p.db.ExecContext(ctx, query.String(), args...)
	return err
}

type pgMatch struct {
	ID       string  `db:"id"`
	Metadata []byte  `db:"metadata"`
	Score    float64 `db:"score"`
}

// Query returns the topK closest rows ordered by the metric's distance operator.
func (p *PGVector) Query(ctx context.Context, vector []float32, topK int) ([]knowledgebase.Match, error) {
	operator, _ := p.distance()
	query := fmt.Sprintf(`SELECT id, metadata, %s AS score FROM %s ORDER BY embedding %s $1 LIMIT $2`,
		p.scoreExpr(), pq.QuoteIdentifier(p.table), operator)

	var rows []pgMatch
	if err := p.db.SelectContext(ctx, &rows, query, pgvector.NewVector(vector), topK); err != nil {
		return nil, err
	}

	matches := make([]knowledgebase.Match, 0, len(rows))
	for _, r := range rows {
		metadata := make(map[string]string)
		if len(r.Metadata) > 0 {
			if err := json.Unmarshal(r.Metadata, &metadata); err != nil {
				return nil, fmt.Errorf("decode metadata for %s: %w", r.ID, err)
			}
		}
		matches = append(matches, knowledgebase.Match{
			ID:       r.ID,
			Score:    float32(r.Score),
			Metadata: metadata,
		})
	}
	return matches, nil
}

func (p *PGVector) Stats(ctx context.Context) (*knowledgebase.IndexStats, error) {
	var count int
	if err := p.db.GetContext(ctx, &count, fmt.Sprintf(`SELECT count(*) FROM %s`, pq.QuoteIdentifier(p.table))); err != nil {
		return nil, err
	}
	return &knowledgebase.IndexStats{
		Dimension:        p.dimension,
		TotalVectorCount: count,
	}, nil
}

func (p *PGVector) Close() error {
	return p.db.Close()
}
