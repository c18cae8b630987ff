package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/headliner-hq/headliner/internal/domain"
	"github.com/headliner-hq/headliner/pkg/feeds"
)

// fakeFeedParser serves canned entries or errors per feed id.
type fakeFeedParser struct {
	entries map[string][]domain.FeedEntry
	errs    map[string]error
}

func (p *fakeFeedParser) Parse(_ context.Context, feed feeds.Feed) ([]domain.FeedEntry, error) {
	if err := p.errs[feed.ID]; err != nil {
		return nil, err
	}
	return p.entries[feed.ID], nil
}

func feedEntries(source string, n int) []domain.FeedEntry {
	out := make([]domain.FeedEntry, n)
	for i := range out {
		out[i] = domain.FeedEntry{
			Link:   fmt.Sprintf("https://%s.example.com/%d", source, i),
			Source: source,
		}
	}
	return out
}

func newTestPoller(parser FeedParser, feedList []feeds.Feed, process ProcessFunc, cap int) *Poller {
	scheduler := newTestScheduler(10, nil)
	return NewPoller(feedList, parser, scheduler, process, cap, nil)
}

func TestPollAllIsolatesFeedFailures(t *testing.T) {
	parser := &fakeFeedParser{
		entries: map[string][]domain.FeedEntry{"good": feedEntries("good", 2)},
		errs:    map[string]error{"bad": errors.New("feed fetch: connection refused")},
	}
	feedList := []feeds.Feed{{ID: "bad", URL: "https://bad.example.com/rss"}, {ID: "good", URL: "https://good.example.com/rss"}}

	var processed []string
	p := newTestPoller(parser, feedList, func(_ context.Context, e domain.FeedEntry) (Outcome, error) {
		processed = append(processed, e.Link)
		return OutcomePersisted, nil
	}, 5)

	report, err := p.PollAll(context.Background())
	require.NoError(t, err)

	// The failing feed must not prevent the healthy feed's entries from
	// being processed in the same run.
	require.Len(t, processed, 2)
	require.Equal(t, 2, report.Persisted)
}

func TestPollAllCapsEntriesPerFeed(t *testing.T) {
	parser := &fakeFeedParser{
		entries: map[string][]domain.FeedEntry{"busy": feedEntries("busy", 20)},
	}
	feedList := []feeds.Feed{{ID: "busy", URL: "https://busy.example.com/rss"}}

	var processed int
	p := newTestPoller(parser, feedList, func(context.Context, domain.FeedEntry) (Outcome, error) {
		processed++
		return OutcomeSkipped, nil
	}, 5)

	_, err := p.PollAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, processed)
}

func TestPollAllSkipsDisabledFeeds(t *testing.T) {
	off := false
	parser := &fakeFeedParser{
		entries: map[string][]domain.FeedEntry{
			"on":  feedEntries("on", 1),
			"off": feedEntries("off", 1),
		},
	}
	feedList := []feeds.Feed{
		{ID: "on", URL: "https://on.example.com/rss"},
		{ID: "off", URL: "https://off.example.com/rss", Enabled: &off},
	}

	var processed []string
	p := newTestPoller(parser, feedList, func(_ context.Context, e domain.FeedEntry) (Outcome, error) {
		processed = append(processed, e.Source)
		return OutcomeSkipped, nil
	}, 5)

	_, err := p.PollAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"on"}, processed)
}

func TestPollAllDropsOverlappingRun(t *testing.T) {
	parser := &fakeFeedParser{
		entries: map[string][]domain.FeedEntry{"slow": feedEntries("slow", 1)},
	}
	feedList := []feeds.Feed{{ID: "slow", URL: "https://slow.example.com/rss"}}

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	p := newTestPoller(parser, feedList, func(context.Context, domain.FeedEntry) (Outcome, error) {
		once.Do(func() {
			close(started)
			<-release
		})
		return OutcomeSkipped, nil
	}, 5)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := p.PollAll(context.Background())
		require.NoError(t, err)
	}()

	<-started
	_, err := p.PollAll(context.Background())
	require.ErrorIs(t, err, ErrRunInProgress)

	close(release)
	wg.Wait()

	// After the run finishes the guard is released again.
	_, err = p.PollAll(context.Background())
	require.NoError(t, err)
}
