package domain

import "time"

// Domain contains core models shared across the ingestion pipeline.

// ArticleRecord is the persisted unit of the pipeline, keyed by the
// document key derived from its URL. A record with a non-empty
// Description is complete and is never reprocessed.
type ArticleRecord struct {
	URL         string    `json:"url"`
	DocumentKey string    `json:"document_key"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url,omitempty"`
	Category    string    `json:"category,omitempty"`
	Source      string    `json:"source,omitempty"`
	ScrapedText string    `json:"scraped_text,omitempty"`
	PublishedAt time.Time `json:"published_at,omitzero"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
	UpdatedAt   time.Time `json:"updated_at,omitzero"`
}

// Complete reports whether the record has been fully rewritten.
func (r ArticleRecord) Complete() bool {
	return r.Description != ""
}

// FeedEntry is a transient candidate produced per RSS item. It is never
// persisted on its own; it seeds an ArticleRecord write.
type FeedEntry struct {
	Link         string
	Title        string
	Description  string
	EnclosureURL string
	Category     string
	Source       string
	PublishedAt  time.Time
}
