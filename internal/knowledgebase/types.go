package knowledgebase

import "strings"

// MetadataArticleKey is the metadata field that carries an article's text in the index.
const MetadataArticleKey = "kb_article"

// Article is a knowledge base document as stored in kb_articles.json.
type Article struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// Entry is one (id, vector, metadata) triple written to the vector index.
type Entry struct {
	ID       string
	Vector   []float32
	Metadata map[string]string
}

// NewEntry builds the index entry for an article.
func NewEntry(article Article, vector []float32) Entry {
	return Entry{
		ID:       article.ID,
		Vector:   vector,
		Metadata: map[string]string{MetadataArticleKey: article.Content},
	}
}

// Match is a ranked query hit returned by the vector index.
type Match struct {
	ID       string
	Score    float32
	Metadata map[string]string
}

// ArticleText returns the kb_article metadata of the match.
func (m Match) ArticleText() (string, bool) {
	text, ok := m.Metadata[MetadataArticleKey]
	return text, ok
}

// IndexStats summarises the external index.
type IndexStats struct {
	Dimension        int
	TotalVectorCount int
}

// MatchRequest is a free-text issue to resolve against the knowledge base.
type MatchRequest struct {
	Issue  string
	DryRun bool
}

// MatchResult is the article chosen for an issue and the commands found in it.
type MatchResult struct {
	ArticleID string
	Score     float32
	KBUsed    string
	Commands  []string
	DryRun    bool
}

// JoinedCommands returns the commands newline-joined, or "" when there are none.
func (r MatchResult) JoinedCommands() string {
	return strings.Join(r.Commands, "\n")
}

// IngestReport describes one ingestion run.
type IngestReport struct {
	IndexCreated bool
	Upserted     int
	Stats        *IndexStats
}

// KBConfig tunes the query path.
type KBConfig struct {
	// TopK is the number of neighbours requested; only the first is used.
	TopK int
	// Dimension is the expected embedding length. Zero disables the check.
	Dimension int
	// Source names the emitting service on published events.
	Source string
}

// IngestConfig tunes the ingestion path.
type IngestConfig struct {
	IndexName     string
	Dimension     int
	SkipProvision bool
	CollectStats  bool
	Source        string
}
