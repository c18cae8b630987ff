package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/headliner-hq/headliner/internal/domain"
	"github.com/headliner-hq/headliner/internal/logger"
	"github.com/headliner-hq/headliner/pkg/feeds"
	"github.com/headliner-hq/headliner/pkg/httpclient"
)

const (
	defaultPerFeedCap  = 5
	defaultFeedTimeout = 15 * time.Second
)

// ErrRunInProgress is returned when a poll is triggered while another
// run is still executing. Overlapping runs are skipped, not queued.
var ErrRunInProgress = errors.New("poll run already in progress")

// FeedParser fetches and parses one feed into candidate entries.
type FeedParser interface {
	Parse(ctx context.Context, feed feeds.Feed) ([]domain.FeedEntry, error)
}

// gofeedParser implements FeedParser with gofeed.
type gofeedParser struct {
	parser *gofeed.Parser
}

// NewFeedParser returns a FeedParser with a bounded fetch timeout and a
// browser-like user agent.
func NewFeedParser() FeedParser {
	p := gofeed.NewParser()
	p.Client = &http.Client{Timeout: defaultFeedTimeout}
	p.UserAgent = httpclient.BrowserUserAgent
	return &gofeedParser{parser: p}
}

// Parse fetches the feed URL and maps its items to candidate entries.
func (g *gofeedParser) Parse(ctx context.Context, feed feeds.Feed) ([]domain.FeedEntry, error) {
	parsed, err := g.parser.ParseURLWithContext(feed.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", feed.ID, err)
	}

	entries := make([]domain.FeedEntry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil || item.Link == "" {
			continue
		}

		entry := domain.FeedEntry{
			Link:        item.Link,
			Title:       item.Title,
			Description: item.Description,
			Category:    feed.Category,
			Source:      feed.ID,
		}
		if len(item.Enclosures) > 0 {
			entry.EnclosureURL = item.Enclosures[0].URL
		}
		if entry.Category == "" && len(item.Categories) > 0 {
			entry.Category = item.Categories[0]
		}
		if item.PublishedParsed != nil {
			entry.PublishedAt = *item.PublishedParsed
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Poller fetches the configured feeds and hands capped candidate lists to
// the batch scheduler. At most one run executes at a time: a trigger that
// arrives mid-run is dropped with ErrRunInProgress.
type Poller struct {
	feeds      []feeds.Feed
	parser     FeedParser
	scheduler  *BatchScheduler
	process    ProcessFunc
	perFeedCap int
	running    atomic.Bool
	log        logger.Logger
}

// NewPoller wires the poller. A perFeedCap of zero gets the default cap.
func NewPoller(feedList []feeds.Feed, parser FeedParser, scheduler *BatchScheduler, process ProcessFunc, perFeedCap int, log logger.Logger) *Poller {
	if parser == nil {
		parser = NewFeedParser()
	}
	if perFeedCap <= 0 {
		perFeedCap = defaultPerFeedCap
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Poller{
		feeds:      feedList,
		parser:     parser,
		scheduler:  scheduler,
		process:    process,
		perFeedCap: perFeedCap,
		log:        log,
	}
}

// PollAll runs one full poll across every enabled feed. A fetch or parse
// failure in one feed never prevents the others from being polled.
func (p *Poller) PollAll(ctx context.Context) (RunReport, error) {
	if !p.running.CompareAndSwap(false, true) {
		p.log.InfoObj("poll trigger dropped, run in progress", "poll_overlap_skip", nil)
		return RunReport{}, ErrRunInProgress
	}
	defer p.running.Store(false)

	started := time.Now()
	var candidates []domain.FeedEntry

	for _, feed := range p.feeds {
		if ctx.Err() != nil {
			break
		}
		if !feed.EnabledValue() {
			continue
		}

		entries, err := p.parser.Parse(ctx, feed)
		if err != nil {
			p.log.WarnObj("feed poll failed", "feed_poll_error", map[string]any{
				"feed_id": feed.ID,
				"error":   err.Error(),
			})
			continue
		}

		if len(entries) > p.perFeedCap {
			entries = entries[:p.perFeedCap]
		}
		candidates = append(candidates, entries...)

		p.log.DebugObj("feed polled", "feed_polled", map[string]any{
			"feed_id": feed.ID,
			"entries": len(entries),
		})
	}

	report := p.scheduler.Run(ctx, candidates, p.process)

	p.log.InfoObj("poll run finished", "poll_run_done", map[string]any{
		"candidates":  len(candidates),
		"persisted":   report.Persisted,
		"skipped":     report.Skipped,
		"no_content":  report.NoContent,
		"failed":      report.Failed,
		"duration_ms": time.Since(started).Milliseconds(),
	})
	return report, nil
}
