package rewrite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/headliner-hq/headliner/internal/logger"
	"github.com/headliner-hq/headliner/pkg/httpclient"
)

const (
	defaultMaxRetries  = 3
	defaultBaseDelay   = 1200 * time.Millisecond
	defaultTemperature = 0.7
	defaultMaxTokens   = 600
	defaultTimeout     = 30 * time.Second

	systemPrompt = "You are a news editor. You rewrite article titles and descriptions " +
		"to be concise and neutral. Respond with JSON only, no commentary."
)

var (
	// ErrRateLimited is returned after the retry budget for 429 responses
	// is exhausted.
	ErrRateLimited = errors.New("rewrite service rate limited")

	// ErrBatchMisaligned is returned when the service answers a batch
	// request with a different number of items than were sent. There is
	// no defined correspondence between the two lists, so the batch fails
	// explicitly instead of guessing an alignment.
	ErrBatchMisaligned = errors.New("rewrite batch response item count mismatch")
)

// Input carries the raw material for one rewrite.
type Input struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	RawText     string `json:"text,omitempty"`
}

// Result is a rewritten title/description pair. Fallback marks results
// synthesized locally because the service reply was not parseable; such
// results substitute 1:1 for parsed ones and never abort a batch.
type Result struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Fallback    bool   `json:"-"`
}

// Config holds the rewrite service settings.
type Config struct {
	Endpoint    string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	MaxRetries  int
	BaseDelay   time.Duration
}

// sanitize fills config defaults.
func (c Config) sanitize() Config {
	if c.Temperature == 0 {
		c.Temperature = defaultTemperature
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = defaultMaxTokens
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = defaultBaseDelay
	}
	return c
}

// Client calls a chat-completion style rewrite service. It owns the
// retry/backoff policy for rate limiting: 429 responses are retried with
// exponential backoff up to MaxRetries attempts, every other failure
// propagates immediately.
type Client struct {
	cfg    Config
	client httpclient.Client
	log    logger.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// New builds a rewrite client from configuration.
func New(cfg Config, client httpclient.Client, log logger.Logger) *Client {
	if client == nil {
		client = httpclient.NewRestyClient(defaultTimeout)
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Client{
		cfg:    cfg.sanitize(),
		client: client,
		log:    log,
		sleep:  sleepCtx,
	}
}

// chatRequest is the chat-completions request body.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the subset of the chat-completions response consumed
// here: the first choice's message content.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Rewrite produces a rewritten title/description for one article. A
// non-parseable service reply degrades to a fallback Result built from
// the input; transport and non-429 HTTP failures are returned as errors.
func (c *Client) Rewrite(ctx context.Context, in Input) (Result, error) {
	raw, err := c.complete(ctx, buildSinglePrompt(in))
	if err != nil {
		return Result{}, err
	}
	return parseSingleResponse(raw, in), nil
}

// RewriteBatch rewrites several articles in one service call. On a
// non-parseable reply every input is echoed back unchanged as a fallback;
// a count mismatch between request and response fails with
// ErrBatchMisaligned.
func (c *Client) RewriteBatch(ctx context.Context, items []Input) ([]Result, error) {
	if len(items) == 0 {
		return nil, nil
	}

	raw, err := c.complete(ctx, buildBatchPrompt(items))
	if err != nil {
		return nil, err
	}
	return parseBatchResponse(raw, items)
}

// complete performs the chat-completion call, retrying only on 429.
func (c *Client) complete(ctx context.Context, userPrompt string) (string, error) {
	body := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}
	headers := map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
		"Content-Type":  "application/json",
	}

	delay := c.cfg.BaseDelay
	for attempt := 1; ; attempt++ {
		resp, err := c.client.Post(ctx, c.cfg.Endpoint, headers, body)
		if err != nil {
			return "", fmt.Errorf("rewrite request: %w", err)
		}

		switch {
		case resp.StatusCode() == http.StatusOK:
			return firstChoiceContent(resp.Body())
		case resp.StatusCode() == http.StatusTooManyRequests:
			if attempt >= c.cfg.MaxRetries {
				return "", fmt.Errorf("%w after %d attempts", ErrRateLimited, attempt)
			}
			c.log.WarnObj("rewrite service rate limited, backing off", "rewrite_backoff", map[string]any{
				"attempt":  attempt,
				"delay_ms": delay.Milliseconds(),
			})
			if sErr := c.sleep(ctx, delay); sErr != nil {
				return "", sErr
			}
			delay *= 2
		default:
			return "", fmt.Errorf("rewrite service status %d body: %s",
				resp.StatusCode(), responseSnippet(resp.Body()))
		}
	}
}

// firstChoiceContent pulls the first choice's message content out of the
// service response envelope.
func firstChoiceContent(body []byte) (string, error) {
	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode rewrite response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("rewrite response has no choices body: %s", responseSnippet(body))
	}
	return parsed.Choices[0].Message.Content, nil
}

// parseSingleResponse decodes the model output, degrading to a fallback
// built from the input when it is not the expected JSON object.
func parseSingleResponse(raw string, in Input) Result {
	var out Result
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &out); err == nil && out.Title != "" {
		return out
	}
	return fallbackResult(in)
}

// parseBatchResponse decodes the model output array. Parse failure echoes
// the inputs; a length mismatch is an unresolved alignment failure.
func parseBatchResponse(raw string, items []Input) ([]Result, error) {
	var out []Result
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &out); err != nil {
		results := make([]Result, len(items))
		for i, in := range items {
			results[i] = fallbackResult(in)
		}
		return results, nil
	}
	if len(out) != len(items) {
		return nil, fmt.Errorf("%w: sent %d got %d", ErrBatchMisaligned, len(items), len(out))
	}
	return out, nil
}

// fallbackResult builds a substitute from the best available input.
func fallbackResult(in Input) Result {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = truncate(strings.TrimSpace(in.RawText), 80)
	}
	return Result{
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Fallback:    true,
	}
}

// buildSinglePrompt embeds the available text with a strict output
// contract: one JSON object with exactly the two keys.
func buildSinglePrompt(in Input) string {
	var b strings.Builder
	b.WriteString("Rewrite the following article metadata. ")
	b.WriteString(`Respond with exactly one JSON object: {"title": "...", "description": "..."}.`)
	b.WriteString("\n\n")
	writeInput(&b, in)
	return b.String()
}

// buildBatchPrompt embeds every item with a strict array output contract.
func buildBatchPrompt(items []Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rewrite the following %d articles. ", len(items))
	fmt.Fprintf(&b, "Respond with exactly one JSON array of %d objects, one per article in input order, ", len(items))
	b.WriteString(`each {"title": "...", "description": "..."}.`)
	for i, in := range items {
		fmt.Fprintf(&b, "\n\nArticle %d:\n", i+1)
		writeInput(&b, in)
	}
	return b.String()
}

// writeInput appends the non-empty parts of an input to the prompt.
func writeInput(b *strings.Builder, in Input) {
	if t := strings.TrimSpace(in.Title); t != "" {
		fmt.Fprintf(b, "Title: %s\n", t)
	}
	if d := strings.TrimSpace(in.Description); d != "" {
		fmt.Fprintf(b, "Description: %s\n", d)
	}
	if raw := strings.TrimSpace(in.RawText); raw != "" {
		fmt.Fprintf(b, "Body:\n%s\n", truncate(raw, 4000))
	}
}

// stripCodeFences removes a wrapping markdown code block, which chat
// models emit around JSON despite instructions not to.
func stripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// truncate shortens s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	for len(string(runes)) > n {
		runes = runes[:len(runes)-1]
	}
	return string(runes)
}

// responseSnippet returns a truncated snippet of the response body for
// error messages.
func responseSnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
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
