package extract

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/headliner-hq/headliner/internal/logger"
	"github.com/headliner-hq/headliner/pkg/httpclient"
)

const (
	maxHTMLBodyBytes = 1 << 20 // 1 MiB
	defaultTimeout   = 10 * time.Second
	minParagraphLen  = 40
	maxParagraphs    = 12
)

// bodySelectors are tried in order before falling back to meta tags and
// bare paragraphs.
var bodySelectors = []string{
	"article",
	`div[itemprop="articleBody"]`,
	"div.article-body",
	"div.article-content",
	"div.story-body",
	"div.post-content",
	"div.entry-content",
	"main",
}

// Extractor fetches a page and returns best-effort plain text. It never
// returns an error to its caller: anything that goes wrong yields an
// empty string, which callers treat as "no usable content".
type Extractor struct {
	client httpclient.Client
	log    logger.Logger
}

// New builds an Extractor. A nil client gets a default one with a bounded
// timeout; there are no retries by design.
func New(client httpclient.Client, log logger.Logger) *Extractor {
	if client == nil {
		client = httpclient.NewRestyClient(defaultTimeout)
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Extractor{client: client, log: log}
}

// Extract fetches url and returns readable body text, or "" when the page
// cannot be fetched or yields nothing usable.
func (e *Extractor) Extract(ctx context.Context, url string) string {
	headers := map[string]string{
		"User-Agent": httpclient.BrowserUserAgent,
		"Accept":     "text/html,application/xhtml+xml",
	}

	resp, err := e.client.Get(ctx, url, headers)
	if err != nil {
		e.log.WarnObj("page fetch failed", "extract_fetch_error", map[string]any{
			"url":   url,
			"error": err.Error(),
		})
		return ""
	}
	if resp.StatusCode() != http.StatusOK {
		e.log.WarnObj("page fetch returned non-200", "extract_fetch_status", map[string]any{
			"url":    url,
			"status": resp.StatusCode(),
		})
		return ""
	}

	body := resp.Body()
	if len(body) > maxHTMLBodyBytes {
		body = body[:maxHTMLBodyBytes]
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		e.log.WarnObj("html parse failed", "extract_parse_error", map[string]any{
			"url":   url,
			"error": err.Error(),
		})
		return ""
	}

	if text := bodyText(doc); text != "" {
		return text
	}
	if text := metaDescription(doc); text != "" {
		return text
	}
	return paragraphFallback(doc)
}

// bodyText returns collapsed paragraph text from the first selector that
// matches a substantial article body.
func bodyText(doc *goquery.Document) string {
	for _, sel := range bodySelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}

		var parts []string
		node.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
			if t := collapseSpace(p.Text()); len(t) >= minParagraphLen {
				parts = append(parts, t)
			}
			return len(parts) < maxParagraphs
		})
		if len(parts) > 0 {
			return strings.Join(parts, "\n\n")
		}
	}
	return ""
}

// metaDescription falls back to og:description / meta description tags.
func metaDescription(doc *goquery.Document) string {
	for _, sel := range []string{
		`meta[property="og:description"]`,
		`meta[name="description"]`,
	} {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			if val, ok := node.Attr("content"); ok {
				if t := collapseSpace(val); t != "" {
					return t
				}
			}
		}
	}
	return ""
}

// paragraphFallback returns the first substantial paragraphs anywhere in
// the document.
func paragraphFallback(doc *goquery.Document) string {
	var parts []string
	doc.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		if t := collapseSpace(p.Text()); len(t) >= minParagraphLen {
			parts = append(parts, t)
		}
		return len(parts) < maxParagraphs
	})
	return strings.Join(parts, "\n\n")
}

// collapseSpace trims and normalizes runs of whitespace to single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
