package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/headliner-hq/headliner/internal/domain"
	"github.com/headliner-hq/headliner/internal/ingest"
	"github.com/headliner-hq/headliner/internal/logger"
)

// Runner executes one full poll run. The server never blocks a request
// on it; triggers are queued and drained by a background worker.
type Runner interface {
	PollAll(ctx context.Context) (ingest.RunReport, error)
}

// Config holds the trigger server settings.
type Config struct {
	Addr         string
	BatchSize    int
	Cooldown     time.Duration
	ArticleDelay time.Duration
}

// Server exposes the manual trigger endpoints in front of the pipeline.
type Server struct {
	cfg          Config
	orchestrator *ingest.Orchestrator
	runner       Runner
	jobs         chan struct{}
	engine       *gin.Engine
	log          logger.Logger
}

// articleRequest is the body of POST /process-article.
type articleRequest struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`
	PublishedAt string `json:"publishedAt"`
	Source      string `json:"source"`
	Category    string `json:"category"`
}

// articlesRequest is the body of POST /process-articles.
type articlesRequest struct {
	URLs      []string `json:"urls"`
	Source    string   `json:"source"`
	Category  string   `json:"category"`
	BatchSize int      `json:"batchSize"`
}

// New builds the trigger server. The gin engine is constructed here so
// tests can drive it through httptest without binding a port.
func New(cfg Config, orchestrator *ingest.Orchestrator, runner Runner, log logger.Logger) *Server {
	if log == nil {
		log = logger.NopLogger{}
	}

	s := &Server{
		cfg:          cfg,
		orchestrator: orchestrator,
		runner:       runner,
		jobs:         make(chan struct{}, 1),
		log:          log,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.POST("/process-article", s.handleProcessArticle)
	engine.POST("/process-articles", s.handleProcessArticles)
	engine.GET("/run-job-now", s.handleRunJobNow)
	engine.GET("/healthz", s.handleHealthz)

	s.engine = engine
	return s
}

// Handler exposes the router for tests and for the HTTP server.
func (s *Server) Handler() http.Handler { return s.engine }

// Start runs the trigger worker loop and the HTTP listener until the
// context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go s.drainJobs(ctx)

	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// drainJobs runs queued poll triggers one at a time.
func (s *Server) drainJobs(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.jobs:
			if _, err := s.runner.PollAll(ctx); err != nil && !errors.Is(err, ingest.ErrRunInProgress) {
				s.log.ErrorObj("triggered poll run failed", "trigger_run_error", map[string]any{
					"error": err.Error(),
				})
			}
		}
	}
}

// handleProcessArticle runs the single-article pipeline synchronously.
func (s *Server) handleProcessArticle(c *gin.Context) {
	var req articleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err.Error())
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		badRequest(c, "missing required field", "url is required")
		return
	}

	entry := domain.FeedEntry{
		Link:         req.URL,
		Title:        req.Title,
		Description:  req.Description,
		EnclosureURL: req.ImageURL,
		Category:     req.Category,
		Source:       req.Source,
		PublishedAt:  parseTime(req.PublishedAt),
	}

	outcome, err := s.orchestrator.Process(c.Request.Context(), entry)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "article processing failed",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"url": req.URL, "outcome": string(outcome)},
	})
}

// handleProcessArticles runs a batch of URLs synchronously through the
// batch scheduler.
func (s *Server) handleProcessArticles(c *gin.Context) {
	var req articlesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err.Error())
		return
	}

	urls := make([]string, 0, len(req.URLs))
	for _, u := range req.URLs {
		if trimmed := strings.TrimSpace(u); trimmed != "" {
			urls = append(urls, trimmed)
		}
	}
	if len(urls) == 0 {
		badRequest(c, "missing required field", "urls is required and must be non-empty")
		return
	}

	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = s.cfg.BatchSize
	}

	entries := make([]domain.FeedEntry, len(urls))
	for i, u := range urls {
		entries[i] = domain.FeedEntry{Link: u, Source: req.Source, Category: req.Category}
	}

	scheduler := ingest.NewBatchScheduler(batchSize, s.cfg.Cooldown, s.cfg.ArticleDelay, s.log)
	report := scheduler.Run(c.Request.Context(), entries, s.orchestrator.Process)

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"processed": report.Persisted,
		"data": gin.H{
			"attempted":  report.Attempted,
			"persisted":  report.Persisted,
			"skipped":    report.Skipped,
			"no_content": report.NoContent,
			"failed":     report.Failed,
		},
	})
}

// handleRunJobNow queues a full poll run and acknowledges immediately.
// A second trigger while one is queued is coalesced into it.
func (s *Server) handleRunJobNow(c *gin.Context) {
	select {
	case s.jobs <- struct{}{}:
	default:
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    "poll run queued",
	})
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// badRequest writes the 400 error envelope.
func badRequest(c *gin.Context, msg, details string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   msg,
		"details": details,
	})
}

// parseTime parses an RFC3339 timestamp, returning zero on failure.
func parseTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
