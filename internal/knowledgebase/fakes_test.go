package knowledgebase

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/ewfx/gaipl-booleans/pkg/models"
)

// keywordEmbedder maps text onto a small fixed vocabulary so similar texts land close together.
type keywordEmbedder struct {
	vocabulary []string
	err        error
	calls      int
}

func (e *keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	lower := strings.ToLower(text)
	vec := make([]float32, len(e.vocabulary))
	for i, word := range e.vocabulary {
		vec[i] = float32(strings.Count(lower, word))
	}
	return vec, nil
}

// memoryIndex is a brute-force cosine index standing in for the external store.
type memoryIndex struct {
	mu          sync.Mutex
	entries     map[string]Entry
	upsertCalls int
	queryErr    error
	fixed       []Match
	useFixed    bool
}

func newMemoryIndex() *memoryIndex {
	return &memoryIndex{entries: make(map[string]Entry)}
}

func (m *memoryIndex) Upsert(_ context.Context, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertCalls++
	for _, e := range entries {
		m.entries[e.ID] = e
	}
	return nil
}

func (m *memoryIndex) Query(_ context.Context, vector []float32, topK int) ([]Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	if m.useFixed {
		return m.fixed, nil
	}
	matches := make([]Match, 0, len(m.entries))
	for _, e := range m.entries {
		matches = append(matches, Match{ID: e.ID, Score: cosine(vector, e.Vector), Metadata: e.Metadata})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (m *memoryIndex) Stats(context.Context) (*IndexStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dim := 0
	for _, e := range m.entries {
		dim = len(e.Vector)
		break
	}
	return &IndexStats{Dimension: dim, TotalVectorCount: len(m.entries)}, nil
}

func (m *memoryIndex) Close() error { return nil }

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// memoryProvisioner creates its index at most once.
type memoryProvisioner struct {
	exists  bool
	creates int
	err     error
}

func (p *memoryProvisioner) EnsureIndex(context.Context) (bool, error) {
	if p.err != nil {
		return false, p.err
	}
	if p.exists {
		return false, nil
	}
	p.exists = true
	p.creates++
	return true, nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	events  []models.Event
	err     error
	release chan struct{} // when set, Publish blocks until it is closed
}

func (p *recordingPublisher) Publish(_ context.Context, event models.Event) error {
	if p.release != nil {
		<-p.release
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) published() []models.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Event(nil), p.events...)
}

var errProvider = errors.New("provider unavailable")
