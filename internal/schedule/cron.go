package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/headliner-hq/headliner/internal/ingest"
	"github.com/headliner-hq/headliner/internal/logger"
)

// Runner executes one full poll run.
type Runner interface {
	PollAll(ctx context.Context) (ingest.RunReport, error)
}

// Scheduler drives the recurring poll on a cron spec.
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	runner Runner
	log    logger.Logger
}

// New builds a scheduler for the given cron spec (e.g. "@every 1h").
func New(spec string, runner Runner, log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Scheduler{
		cron:   cron.New(),
		spec:   spec,
		runner: runner,
		log:    log,
	}
}

// Start registers the poll job and starts the cron loop. An overlapping
// run is skipped by the poller itself, so ticks are safe to fire blindly.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() { s.runOnce(ctx) })
	if err != nil {
		return fmt.Errorf("register poll schedule %q: %w", s.spec, err)
	}

	s.cron.Start()
	s.log.InfoObj("poll schedule started", "schedule_started", map[string]any{
		"spec": s.spec,
	})
	return nil
}

// runOnce executes one scheduled poll. A run dropped by the poller's
// overlap guard is not an error at this level.
func (s *Scheduler) runOnce(ctx context.Context) {
	if _, err := s.runner.PollAll(ctx); err != nil && !errors.Is(err, ingest.ErrRunInProgress) {
		s.log.ErrorObj("scheduled poll run failed", "schedule_run_error", map[string]any{
			"error": err.Error(),
		})
	}
}

// Stop tears down the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
