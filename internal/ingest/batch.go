package ingest

import (
	"context"
	"time"

	"github.com/headliner-hq/headliner/internal/domain"
	"github.com/headliner-hq/headliner/internal/logger"
)

const (
	defaultBatchSize    = 5
	defaultCooldown     = 3 * time.Second
	defaultArticleDelay = 5 * time.Second
)

// ProcessFunc runs the per-article pipeline for one candidate.
type ProcessFunc func(ctx context.Context, entry domain.FeedEntry) (Outcome, error)

// BatchResult aggregates outcomes for one batch.
type BatchResult struct {
	Index     int
	Attempted int
	Persisted int
	Skipped   int
	NoContent int
	Failed    int
}

// RunReport aggregates results across all batches of one run.
type RunReport struct {
	Batches   []BatchResult
	Attempted int
	Persisted int
	Skipped   int
	NoContent int
	Failed    int
}

// merge folds a batch result into the report totals.
func (r *RunReport) merge(b BatchResult) {
	r.Batches = append(r.Batches, b)
	r.Attempted += b.Attempted
	r.Persisted += b.Persisted
	r.Skipped += b.Skipped
	r.NoContent += b.NoContent
	r.Failed += b.Failed
}

// BatchScheduler splits candidates into fixed-size batches and processes
// them strictly sequentially to respect the rewrite service's aggregate
// rate limit. Batches are separated by a cooldown, articles within a
// batch by a shorter delay. A failed article only counts against its own
// batch; later batches always run.
type BatchScheduler struct {
	size         int
	cooldown     time.Duration
	articleDelay time.Duration
	log          logger.Logger
	sleep        func(ctx context.Context, d time.Duration) error
}

// NewBatchScheduler builds a scheduler; zero values get defaults.
func NewBatchScheduler(size int, cooldown, articleDelay time.Duration, log logger.Logger) *BatchScheduler {
	if size <= 0 {
		size = defaultBatchSize
	}
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	if articleDelay < 0 {
		articleDelay = defaultArticleDelay
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &BatchScheduler{
		size:         size,
		cooldown:     cooldown,
		articleDelay: articleDelay,
		log:          log,
		sleep:        sleepCtx,
	}
}

// Run processes all entries in input order and returns the aggregate
// report. It stops early only when the context is cancelled.
func (s *BatchScheduler) Run(ctx context.Context, entries []domain.FeedEntry, process ProcessFunc) RunReport {
	var report RunReport

	batches := splitBatches(entries, s.size)
	for i, batch := range batches {
		if ctx.Err() != nil {
			break
		}

		result := s.runBatch(ctx, i, batch, process)
		report.merge(result)

		if result.Failed > 0 {
			s.log.WarnObj("batch finished with failures", "batch_failures", map[string]any{
				"batch":  i,
				"failed": result.Failed,
			})
		}

		// No cooldown after the final batch.
		if i < len(batches)-1 {
			if err := s.sleep(ctx, s.cooldown); err != nil {
				break
			}
		}
	}

	return report
}

// runBatch processes the articles of one batch sequentially.
func (s *BatchScheduler) runBatch(ctx context.Context, index int, batch []domain.FeedEntry, process ProcessFunc) BatchResult {
	result := BatchResult{Index: index}

	for i, entry := range batch {
		if ctx.Err() != nil {
			break
		}

		result.Attempted++
		outcome, err := process(ctx, entry)
		switch outcome {
		case OutcomePersisted:
			result.Persisted++
		case OutcomeSkipped:
			result.Skipped++
		case OutcomeNoContent:
			result.NoContent++
		default:
			result.Failed++
			if err != nil {
				s.log.WarnObj("article processing failed", "batch_article_error", map[string]any{
					"batch": index,
					"url":   entry.Link,
					"error": err.Error(),
				})
			}
		}

		if s.articleDelay > 0 && i < len(batch)-1 {
			if sErr := s.sleep(ctx, s.articleDelay); sErr != nil {
				break
			}
		}
	}

	return result
}

// splitBatches chunks entries into groups of at most size, preserving
// input order.
func splitBatches(entries []domain.FeedEntry, size int) [][]domain.FeedEntry {
	if len(entries) == 0 {
		return nil
	}

	batches := make([][]domain.FeedEntry, 0, (len(entries)+size-1)/size)
	for start := 0; start < len(entries); start += size {
		end := min(start+size, len(entries))
		batches = append(batches, entries[start:end])
	}
	return batches
}

// sleepCtx waits for d or until the context is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
