package publishers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/headliner-hq/headliner/pkg/httpclient"
)

// httpPublisher posts events as JSON to a configured HTTP sink.
type httpPublisher struct {
	id      string
	url     string
	headers map[string]string
	client  httpclient.Client
	log     Logger
}

// newHTTPPublisher builds an HTTP publisher from configuration.
func newHTTPPublisher(_ context.Context, cfg Config, log Logger) (Publisher, error) {
	if cfg.HTTP == nil {
		return nil, fmt.Errorf("publisher %q missing http configuration", cfg.ID)
	}
	if cfg.HTTP.Method != http.MethodPost {
		return nil, fmt.Errorf("http method %q not supported for publisher %q", cfg.HTTP.Method, cfg.ID)
	}

	headers := map[string]string{"Content-Type": "application/json"}
	for k, v := range cfg.HTTP.Headers {
		headers[k] = v
	}

	timeout := time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second

	return &httpPublisher{
		id:      cfg.ID,
		url:     cfg.HTTP.URL,
		headers: headers,
		client:  httpclient.NewRestyClient(timeout),
		log:     ensureLogger(log),
	}, nil
}

func (p *httpPublisher) ID() string   { return p.id }
func (p *httpPublisher) Type() string { return TypeHTTP }

// Publish posts the event to the sink URL.
func (p *httpPublisher) Publish(ctx context.Context, evt Event) error {
	resp, err := p.client.Post(ctx, p.url, p.headers, evt)
	if err != nil {
		p.log.ErrorObj("http publisher send failed", "publisher_http_error", map[string]any{
			"publisher_id": p.id,
			"error":        err.Error(),
		})
		return fmt.Errorf("post event to %s: %w", p.url, err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return fmt.Errorf("http sink %s returned status %d", p.url, resp.StatusCode())
	}

	p.log.DebugObj("http publisher delivered event", "publisher_http_delivery", map[string]any{
		"publisher_id": p.id,
		"status":       resp.StatusCode(),
	})
	return nil
}
