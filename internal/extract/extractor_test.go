package extract

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/headliner-hq/headliner/pkg/httpclient"
)

// fakeResponse implements httpclient.Response with canned values.
type fakeResponse struct {
	body   []byte
	status int
}

func (r fakeResponse) Body() []byte    { return r.body }
func (r fakeResponse) StatusCode() int { return r.status }

// fakeClient returns one canned response or error for any request.
type fakeClient struct {
	resp fakeResponse
	err  error
}

func (c *fakeClient) Get(context.Context, string, map[string]string) (httpclient.Response, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.resp, nil
}

func (c *fakeClient) Post(context.Context, string, map[string]string, any) (httpclient.Response, error) {
	return nil, errors.New("not implemented")
}

func extractFrom(t *testing.T, html string) string {
	t.Helper()

	e := New(&fakeClient{resp: fakeResponse{body: []byte(html), status: http.StatusOK}}, nil)
	return e.Extract(context.Background(), "https://example.com/a")
}

func TestExtractArticleBody(t *testing.T) {
	html := `<html><body>
		<article>
			<p>First paragraph of the story, long enough to count as body text.</p>
			<p>Second paragraph with additional detail and typical sentence length.</p>
		</article>
	</body></html>`

	text := extractFrom(t, html)
	require.Contains(t, text, "First paragraph of the story")
	require.Contains(t, text, "Second paragraph with additional detail")
}

func TestExtractSkipsShortParagraphs(t *testing.T) {
	html := `<html><body><article>
		<p>Ad</p>
		<p>This paragraph is substantial enough to be treated as article content.</p>
	</article></body></html>`

	text := extractFrom(t, html)
	require.NotContains(t, text, "Ad")
	require.Contains(t, text, "substantial enough")
}

func TestExtractMetaDescriptionFallback(t *testing.T) {
	html := `<html><head>
		<meta property="og:description" content="Summary from the og tag.">
	</head><body><div>no paragraphs here</div></body></html>`

	require.Equal(t, "Summary from the og tag.", extractFrom(t, html))
}

func TestExtractParagraphFallback(t *testing.T) {
	html := `<html><body>
		<div class="unknown-layout">
			<p>Stray paragraph that is long enough to be picked up by the fallback.</p>
		</div>
	</body></html>`

	require.Contains(t, extractFrom(t, html), "Stray paragraph")
}

func TestExtractEmptyOnFetchError(t *testing.T) {
	e := New(&fakeClient{err: errors.New("connection refused")}, nil)
	require.Empty(t, e.Extract(context.Background(), "https://example.com/a"))
}

func TestExtractEmptyOnNon200(t *testing.T) {
	e := New(&fakeClient{resp: fakeResponse{body: []byte("not found"), status: http.StatusNotFound}}, nil)
	require.Empty(t, e.Extract(context.Background(), "https://example.com/a"))
}

func TestExtractEmptyOnNoUsableContent(t *testing.T) {
	require.Empty(t, extractFrom(t, `<html><body><div>nav</div></body></html>`))
}

func TestCollapseSpace(t *testing.T) {
	require.Equal(t, "a b c", collapseSpace("  a\n\tb   c "))
}
