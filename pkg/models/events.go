package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of knowledge base event
type EventType string

const (
	EventTypeArticleMatched EventType = "kb.article_matched"
	EventTypeIndexIngested  EventType = "kb.index_ingested"
)

// BaseEvent represents the base structure for all events
type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"` // Source system/service
}

// NewBaseEvent stamps a fresh event of the given type.
func NewBaseEvent(eventType EventType, source string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Source:    source,
	}
}

// MatchEvent is emitted for every issue that resolved to a KB article
type MatchEvent struct {
	BaseEvent
	Issue     string   `json:"issue"`
	ArticleID string   `json:"article_id"`
	Score     float32  `json:"score"`
	Commands  []string `json:"commands"`
	DryRun    bool     `json:"dry_run"`
}

// IngestEvent is emitted once per ingestion run
type IngestEvent struct {
	BaseEvent
	IndexName    string `json:"index_name"`
	IndexCreated bool   `json:"index_created"`
	Upserted     int    `json:"upserted"`
}

// Key returns the partition key used when the event is published.
func (e MatchEvent) Key() string { return e.ArticleID }

// Key returns the partition key used when the event is published.
func (e IngestEvent) Key() string { return e.IndexName }

// Event is anything the event publisher can route and key.
type Event interface {
	EventType() EventType
	Key() string
}

// EventType returns the event's routing type.
func (e BaseEvent) EventType() EventType { return e.Type }
