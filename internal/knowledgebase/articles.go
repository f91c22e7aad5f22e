package knowledgebase

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// LoadArticles reads a JSON array of {id, content} objects from path.
func LoadArticles(path string) ([]Article, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open articles: %w", err)
	}
	defer f.Close()

	return ReadArticles(f)
}

// ReadArticles decodes and validates an article collection.
func ReadArticles(r io.Reader) ([]Article, error) {
	var articles []Article
	if err := json.NewDecoder(r).Decode(&articles); err != nil {
		return nil, fmt.Errorf("decode articles: %w", err)
	}

	for i, a := range articles {
		if a.ID == "" {
			return nil, fmt.Errorf("%w: article %d has no id", ErrInvalidArticle, i)
		}
	}
	return articles, nil
}

// Catalog is the in-process, read-only view of the loaded articles.
type Catalog struct {
	articles []Article
	byID     map[string]Article
}

// NewCatalog indexes articles by id. Later duplicates win, as they would in the index.
func NewCatalog(articles []Article) *Catalog {
	c := &Catalog{
		articles: articles,
		byID:     make(map[string]Article, len(articles)),
	}
	for _, a := range articles {
		c.byID[a.ID] = a
	}
	return c
}

// Get looks up an article by id.
func (c *Catalog) Get(id string) (Article, bool) {
	if c == nil {
		return Article{}, false
	}
	a, ok := c.byID[id]
	return a, ok
}

// Articles returns the articles in file order.
func (c *Catalog) Articles() []Article {
	if c == nil {
		return nil
	}
	return c.articles
}

// Len returns the number of distinct article ids.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.byID)
}
