package vectorindex

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pinecone-io/go-pinecone/v2/pinecone"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ewfx/gaipl-booleans/internal/knowledgebase"
)

// pineconeControlPlane is the part of *pinecone.Client used here.
type pineconeControlPlane interface {
	ListIndexes(ctx context.Context) ([]*pinecone.Index, error)
	CreateServerlessIndex(ctx context.Context, in *pinecone.CreateServerlessIndexRequest) (*pinecone.Index, error)
	DescribeIndex(ctx context.Context, idxName string) (*pinecone.Index, error)
}

// pineconeDataPlane is the part of *pinecone.IndexConnection used here.
type pineconeDataPlane interface {
	UpsertVectors(ctx context.Context, in []*pinecone.Vector) (uint32, error)
	QueryByVectorValues(ctx context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error)
	DescribeIndexStats(ctx context.Context) (*pinecone.DescribeIndexStatsResponse, error)
	Close() error
}

// Pinecone stores KB entries in a serverless Pinecone index.
type Pinecone struct {
	control      pineconeControlPlane
	dial         func(host string) (pineconeDataPlane, error)
	config       Config
	pollInterval time.Duration

	mu   sync.Mutex
	conn pineconeDataPlane
}

func NewPinecone(cfg Config) (*Pinecone, error) {
	client, err := pinecone.NewClient(pinecone.NewClientParams{
		ApiKey: cfg.Pinecone.APIKey,
		Host:   cfg.Pinecone.ControllerHost,
	})
	if err != nil {
		return nil, fmt.Errorf("create pinecone client: %w", err)
	}

	var dialOpts []grpc.DialOption
	if cfg.Pinecone.Insecure {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	dial := func(host string) (pineconeDataPlane, error) {
		conn, err := client.Index(pinecone.NewIndexConnParams{
			Host:      host,
			Namespace: cfg.Pinecone.Namespace,
		}, dialOpts...)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}

	return newPinecone(client, dial, cfg), nil
}

func newPinecone(control pineconeControlPlane, dial func(string) (pineconeDataPlane, error), cfg Config) *Pinecone {
	if cfg.Pinecone.ReadyTimeout == 0 {
		cfg.Pinecone.ReadyTimeout = 2 * time.Minute
	}
	return &Pinecone{
		control:      control,
		dial:         dial,
		config:       cfg,
		pollInterval: 2 * time.Second,
	}
}

// EnsureIndex creates the index when no index of that name exists and waits for it to be ready.
func (p *Pinecone) EnsureIndex(ctx context.Context) (bool, error) {
	indexes, err := p.control.ListIndexes(ctx)
	if err != nil {
		return false, fmt.Errorf("list indexes: %w", err)
	}
	for _, idx := range indexes {
		if idx != nil && idx.Name == p.config.Name {
			return false, nil
		}
	}

	_, err = p.control.CreateServerlessIndex(ctx, &pinecone.CreateServerlessIndexRequest{
		Name:      p.config.Name,
		Dimension: int32(p.config.Dimension),
		Metric:    pinecone.IndexMetric(p.config.Metric),
		Cloud:     pinecone.Cloud(p.config.Pinecone.Cloud),
		Region:    p.config.Pinecone.Region,
	})
	if err != nil {
		return false, fmt.Errorf("create index %s: %w", p.config.Name, err)
	}

	if err := p.waitReady(ctx); err != nil {
		return true, err
	}
	return true, nil
}

func (p *Pinecone) waitReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.config.Pinecone.ReadyTimeout)
	defer cancel()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		idx, err := p.control.DescribeIndex(ctx, p.config.Name)
		if err == nil && idx.Status != nil && idx.Status.Ready {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s", ErrIndexNotReady, p.config.Name)
		case <-ticker.C:
		}
	}
}

func (p *Pinecone) connection(ctx context.Context) (pineconeDataPlane, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil {
		return p.conn, nil
	}

	host := p.config.Pinecone.IndexHost
	if host == "" {
		idx, err := p.control.DescribeIndex(ctx, p.config.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrIndexNotFound, p.config.Name, err)
		}
		host = idx.Host
	}

	conn, err := p.dial(host)
	if err != nil {
		return nil, fmt.Errorf("connect to index %s: %w", p.config.Name, err)
	}
	p.conn = conn
	return conn, nil
}

// Upsert sends every entry in one UpsertVectors call.
func (p *Pinecone) Upsert(ctx context.Context, entries []knowledgebase.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	conn, err := p.connection(ctx)
	if err != nil {
		return err
	}

	vectors := make([]*pinecone.Vector, len(entries))
	for i, e := range entries {
		metadata, err := toMetadata(e.Metadata)
		if err != nil {
			return fmt.Errorf("metadata for %s: %w", e.ID, err)
		}
		vectors[i] = &pinecone.Vector{
			Id:       e.ID,
			Values:   e.Vector,
			Metadata: metadata,
		}
	}

	_, err = conn.UpsertVectors(ctx, vectors)
	return err
}

// Query returns the topK nearest entries with their metadata.
func (p *Pinecone) Query(ctx context.Context, vector []float32, topK int) ([]knowledgebase.Match, error) {
	conn, err := p.connection(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, err
	}

	matches := make([]knowledgebase.Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if m == nil || m.Vector == nil {
			continue
		}
		matches = append(matches, knowledgebase.Match{
			ID:       m.Vector.Id,
			Score:    m.Score,
			Metadata: fromMetadata(m.Vector.Metadata),
		})
	}
	return matches, nil
}

func (p *Pinecone) Stats(ctx context.Context) (*knowledgebase.IndexStats, error) {
	conn, err := p.connection(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := conn.DescribeIndexStats(ctx)
	if err != nil {
		return nil, err
	}
	return &knowledgebase.IndexStats{
		Dimension:        int(resp.Dimension),
		TotalVectorCount: int(resp.TotalVectorCount),
	}, nil
}

func (p *Pinecone) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}

func toMetadata(m map[string]string) (*pinecone.Metadata, error) {
	if len(m) == 0 {
		return nil, nil
	}
	fields := make(map[string]any, len(m))
	for k, v := range m {
		fields[k] = v
	}
	return structpb.NewStruct(fields)
}

func fromMetadata(s *pinecone.Metadata) map[string]string {
	out := make(map[string]string, len(s.GetFields()))
	for k, v := range s.GetFields() {
		if sv, ok := v.GetKind().(*structpb.Value_StringValue); ok {
			out[k] = sv.StringValue
			continue
		}
		out[k] = fmt.Sprint(v.AsInterface())
	}
	return out
}
