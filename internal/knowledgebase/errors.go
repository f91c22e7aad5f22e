package knowledgebase

import "errors"

var (
	// ErrEmptyIssue is returned when a match request carries no issue text
	ErrEmptyIssue = errors.New("issue is required")

	// ErrNoMatch is returned when the vector index has no neighbour for the issue
	ErrNoMatch = errors.New("no KB match found")

	// ErrArticleTextMissing is returned when a match has no article text in metadata or catalog
	ErrArticleTextMissing = errors.New("matched entry has no article text")

	// ErrDimensionMismatch is returned when an embedding has an unexpected length
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrInvalidArticle is returned for articles without an id
	ErrInvalidArticle = errors.New("invalid article")
)
