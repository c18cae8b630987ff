package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/headliner-hq/headliner/internal/config"
	"github.com/headliner-hq/headliner/internal/extract"
	"github.com/headliner-hq/headliner/internal/ingest"
	"github.com/headliner-hq/headliner/internal/logger"
	"github.com/headliner-hq/headliner/internal/rewrite"
	"github.com/headliner-hq/headliner/internal/schedule"
	"github.com/headliner-hq/headliner/internal/server"
	"github.com/headliner-hq/headliner/internal/store"
	"github.com/headliner-hq/headliner/pkg/feeds"
	"github.com/headliner-hq/headliner/pkg/httpclient"
	"github.com/headliner-hq/headliner/pkg/publishers"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "headliner:", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return err
	}
	defer st.Close()

	feedRegistry, err := feeds.LoadRegistry(cfg.FeedsFile)
	if err != nil {
		return err
	}

	fanout, err := buildFanout(ctx, cfg.PublishersFile, log)
	if err != nil {
		return err
	}

	extractor := extract.New(httpclient.NewRestyClient(cfg.ExtractTimeout), log)
	rewriter := rewrite.New(rewrite.Config{
		Endpoint:    cfg.RewriteEndpoint,
		APIKey:      cfg.RewriteAPIKey,
		Model:       cfg.RewriteModel,
		Temperature: cfg.RewriteTemperature,
		MaxTokens:   cfg.RewriteMaxTokens,
		MaxRetries:  cfg.RewriteMaxRetries,
		BaseDelay:   cfg.RewriteBaseDelay,
	}, nil, log)

	orchestrator := ingest.NewOrchestrator(st, extractor, rewriter, fanout, log)
	scheduler := ingest.NewBatchScheduler(cfg.BatchSize, cfg.BatchCooldown, cfg.ArticleDelay, log)
	poller := ingest.NewPoller(feedRegistry.Enabled(), nil, scheduler, orchestrator.Process, cfg.PerFeedCap, log)

	cronJob := schedule.New(cfg.PollSpec, poller, log)
	if err := cronJob.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = cronJob.Stop(stopCtx)
	}()

	srv := server.New(server.Config{
		Addr:         cfg.ServerAddr,
		BatchSize:    cfg.BatchSize,
		Cooldown:     cfg.BatchCooldown,
		ArticleDelay: cfg.ArticleDelay,
	}, orchestrator, poller, log)

	log.InfoObj("headliner started", "startup", map[string]any{
		"addr":      cfg.ServerAddr,
		"feeds":     len(feedRegistry.Enabled()),
		"poll_spec": cfg.PollSpec,
	})

	return srv.Start(ctx)
}

// buildFanout constructs the ingest-event fanout, or nil when no
// publishers file is configured.
func buildFanout(ctx context.Context, path string, log logger.Logger) (*publishers.Fanout, error) {
	if path == "" {
		return nil, nil
	}

	reg, err := publishers.LoadRegistry(path)
	if err != nil {
		return nil, err
	}

	pubs, err := publishers.BuildAll(ctx, reg.Enabled(), log)
	if err != nil {
		return nil, err
	}
	return publishers.NewFanout(pubs, log), nil
}
