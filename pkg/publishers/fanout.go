package publishers

import (
	"context"

	"github.com/headliner-hq/headliner/internal/domain"
)

// Fanout delivers each persisted article to every configured publisher.
// Delivery failures are logged and swallowed: downstream sinks are a
// best-effort side channel, never a reason to fail the pipeline.
type Fanout struct {
	pubs []Publisher
	log  Logger
}

// NewFanout builds a fanout over the given publishers.
func NewFanout(pubs []Publisher, log Logger) *Fanout {
	return &Fanout{pubs: pubs, log: ensureLogger(log)}
}

// ArticlePersisted publishes an ingest event for the record.
func (f *Fanout) ArticlePersisted(ctx context.Context, rec domain.ArticleRecord) {
	if f == nil || len(f.pubs) == 0 {
		return
	}

	evt := Event{
		URL:         rec.URL,
		Title:       rec.Title,
		Description: rec.Description,
		Source:      rec.Source,
		Category:    rec.Category,
		PublishedAt: rec.PublishedAt,
	}

	for _, pub := range f.pubs {
		if err := pub.Publish(ctx, evt); err != nil {
			f.log.WarnObj("publisher delivery failed", "publisher_delivery_error", map[string]any{
				"publisher_id": pub.ID(),
				"url":          rec.URL,
				"error":        err.Error(),
			})
		}
	}
}
