package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/headliner-hq/headliner/internal/domain"
	"github.com/headliner-hq/headliner/internal/logger"
	"github.com/headliner-hq/headliner/internal/rewrite"
	"github.com/headliner-hq/headliner/internal/store"
)

// Outcome is the terminal state of one per-article pipeline run.
type Outcome string

const (
	// OutcomeSkipped means a complete record already exists; no network
	// calls were made.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeNoContent means extraction yielded nothing usable; the
	// rewrite service was not called.
	OutcomeNoContent Outcome = "no_content"
	// OutcomePersisted means the article was rewritten and upserted.
	OutcomePersisted Outcome = "persisted"
	// OutcomeFailed means the rewrite or the persistence failed; the
	// article is retried on the next poll.
	OutcomeFailed Outcome = "failed"
)

// ArticleStore is the dedup/persistence surface the orchestrator needs.
type ArticleStore interface {
	Exists(ctx context.Context, url string) (store.Presence, error)
	Upsert(ctx context.Context, rec domain.ArticleRecord) error
}

// ContentExtractor returns best-effort page text, empty when unusable.
type ContentExtractor interface {
	Extract(ctx context.Context, url string) string
}

// Rewriter produces a rewritten title/description from raw material.
type Rewriter interface {
	Rewrite(ctx context.Context, in rewrite.Input) (rewrite.Result, error)
}

// EventPublisher receives a notification for every persisted article.
type EventPublisher interface {
	ArticlePersisted(ctx context.Context, rec domain.ArticleRecord)
}

// Orchestrator drives the per-article pipeline: existence check, content
// extraction, rewrite, idempotent persistence. Each run is independent;
// a failure never propagates past the article it belongs to.
type Orchestrator struct {
	store     ArticleStore
	extractor ContentExtractor
	rewriter  Rewriter
	publisher EventPublisher
	log       logger.Logger
}

// NewOrchestrator wires the pipeline dependencies. publisher may be nil.
func NewOrchestrator(st ArticleStore, ex ContentExtractor, rw Rewriter, pub EventPublisher, log logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Orchestrator{
		store:     st,
		extractor: ex,
		rewriter:  rw,
		publisher: pub,
		log:       log,
	}
}

// Process runs the pipeline for a single candidate entry.
func (o *Orchestrator) Process(ctx context.Context, entry domain.FeedEntry) (Outcome, error) {
	url := strings.TrimSpace(entry.Link)
	if url == "" {
		return OutcomeFailed, fmt.Errorf("entry link is empty")
	}

	presence, err := o.store.Exists(ctx, url)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("existence check %s: %w", url, err)
	}
	if presence.Present && presence.Complete {
		o.log.DebugObj("complete record exists, skipping", "article_skip", map[string]any{
			"url": url,
		})
		return OutcomeSkipped, nil
	}

	text := o.extractor.Extract(ctx, url)
	if text == "" {
		// Persist the seed metadata so the incomplete record is visible
		// and retried on the next run.
		if uErr := o.store.Upsert(ctx, seedRecord(entry)); uErr != nil {
			return OutcomeFailed, fmt.Errorf("persist seed %s: %w", url, uErr)
		}
		o.log.InfoObj("no usable content extracted", "article_no_content", map[string]any{
			"url": url,
		})
		return OutcomeNoContent, nil
	}

	result, err := o.rewriter.Rewrite(ctx, rewrite.Input{
		Title:       entry.Title,
		Description: entry.Description,
		RawText:     text,
	})
	if err != nil {
		o.log.WarnObj("rewrite failed, article retried next run", "article_rewrite_error", map[string]any{
			"url":   url,
			"error": err.Error(),
		})
		return OutcomeFailed, fmt.Errorf("rewrite %s: %w", url, err)
	}

	rec := seedRecord(entry)
	rec.Title = result.Title
	rec.Description = result.Description
	rec.ScrapedText = text
	if err := o.store.Upsert(ctx, rec); err != nil {
		return OutcomeFailed, fmt.Errorf("persist %s: %w", url, err)
	}

	if o.publisher != nil {
		o.publisher.ArticlePersisted(ctx, rec)
	}

	o.log.InfoObj("article persisted", "article_persisted", map[string]any{
		"url":      url,
		"fallback": result.Fallback,
	})
	return OutcomePersisted, nil
}

// seedRecord maps the transient feed entry onto a record skeleton.
func seedRecord(entry domain.FeedEntry) domain.ArticleRecord {
	return domain.ArticleRecord{
		URL:         strings.TrimSpace(entry.Link),
		Title:       strings.TrimSpace(entry.Title),
		ImageURL:    strings.TrimSpace(entry.EnclosureURL),
		Category:    strings.TrimSpace(entry.Category),
		Source:      strings.TrimSpace(entry.Source),
		PublishedAt: entry.PublishedAt,
	}
}
