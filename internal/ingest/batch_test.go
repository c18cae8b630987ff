package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/headliner-hq/headliner/internal/domain"
)

func entriesFor(urls ...string) []domain.FeedEntry {
	out := make([]domain.FeedEntry, len(urls))
	for i, u := range urls {
		out[i] = domain.FeedEntry{Link: u}
	}
	return out
}

// newTestScheduler returns a scheduler whose waits are recorded instead
// of slept.
func newTestScheduler(size int, delays *[]time.Duration) *BatchScheduler {
	s := NewBatchScheduler(size, 3*time.Second, 0, nil)
	s.sleep = func(_ context.Context, d time.Duration) error {
		if delays != nil {
			*delays = append(*delays, d)
		}
		return nil
	}
	return s
}

func TestSplitBatchesPreservesOrder(t *testing.T) {
	entries := entriesFor("a", "b", "c", "d", "e")

	batches := splitBatches(entries, 2)
	require.Len(t, batches, 3)
	require.Equal(t, "a", batches[0][0].Link)
	require.Equal(t, "b", batches[0][1].Link)
	require.Equal(t, "c", batches[1][0].Link)
	require.Equal(t, "e", batches[2][0].Link)
}

func TestSplitBatchesEmpty(t *testing.T) {
	require.Nil(t, splitBatches(nil, 5))
}

func TestRunProcessesAllInOrder(t *testing.T) {
	s := newTestScheduler(2, nil)

	var seen []string
	report := s.Run(context.Background(), entriesFor("a", "b", "c"), func(_ context.Context, e domain.FeedEntry) (Outcome, error) {
		seen = append(seen, e.Link)
		return OutcomePersisted, nil
	})

	require.Equal(t, []string{"a", "b", "c"}, seen)
	require.Equal(t, 3, report.Attempted)
	require.Equal(t, 3, report.Persisted)
	require.Len(t, report.Batches, 2)
}

func TestRunIsolatesFailures(t *testing.T) {
	s := newTestScheduler(2, nil)

	report := s.Run(context.Background(), entriesFor("a", "b", "c", "d"), func(_ context.Context, e domain.FeedEntry) (Outcome, error) {
		if e.Link == "b" {
			return OutcomeFailed, errors.New("rewrite exhausted retries")
		}
		return OutcomePersisted, nil
	})

	// One failure must not abort the remaining items or batches.
	require.Equal(t, 4, report.Attempted)
	require.Equal(t, 3, report.Persisted)
	require.Equal(t, 1, report.Failed)
}

func TestRunNoCooldownAfterFinalBatch(t *testing.T) {
	var delays []time.Duration
	s := newTestScheduler(2, &delays)

	s.Run(context.Background(), entriesFor("a", "b", "c", "d"), func(context.Context, domain.FeedEntry) (Outcome, error) {
		return OutcomeSkipped, nil
	})

	// Two batches, exactly one cooldown between them.
	require.Equal(t, []time.Duration{3 * time.Second}, delays)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	s := newTestScheduler(1, nil)
	var processed int
	report := s.Run(ctx, entriesFor("a", "b", "c"), func(context.Context, domain.FeedEntry) (Outcome, error) {
		processed++
		cancel()
		return OutcomePersisted, nil
	})

	require.Equal(t, 1, processed)
	require.Equal(t, 1, report.Attempted)
}

func TestRunCountsOutcomes(t *testing.T) {
	s := newTestScheduler(4, nil)

	outcomes := map[string]Outcome{
		"a": OutcomePersisted,
		"b": OutcomeSkipped,
		"c": OutcomeNoContent,
		"d": OutcomeFailed,
	}
	report := s.Run(context.Background(), entriesFor("a", "b", "c", "d"), func(_ context.Context, e domain.FeedEntry) (Outcome, error) {
		return outcomes[e.Link], nil
	})

	require.Equal(t, 1, report.Persisted)
	require.Equal(t, 1, report.Skipped)
	require.Equal(t, 1, report.NoContent)
	require.Equal(t, 1, report.Failed)
}
