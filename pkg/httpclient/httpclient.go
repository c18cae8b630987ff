package httpclient

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
)

// BrowserUserAgent is sent on outbound page fetches so news sites serve
// the same markup they serve a browser.
const BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Response is the subset of an HTTP response the service consumes.
type Response interface {
	Body() []byte
	StatusCode() int
}

// Client issues outbound HTTP requests with a bounded timeout.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (Response, error)
	Post(ctx context.Context, url string, headers map[string]string, body any) (Response, error)
}

// restyClient implements Client on top of resty.
type restyClient struct {
	c *resty.Client
}

// NewRestyClient returns a Client with the given per-request timeout.
func NewRestyClient(timeout time.Duration) Client {
	c := resty.New().
		SetTimeout(timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))
	return &restyClient{c: c}
}

// Get issues a GET request with the provided headers.
func (r *restyClient) Get(ctx context.Context, url string, headers map[string]string) (Response, error) {
	resp, err := r.c.R().
		SetContext(ctx).
		SetHeaders(headers).
		Get(url)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Post issues a POST request; body is JSON-encoded by resty unless it is
// already a byte slice.
func (r *restyClient) Post(ctx context.Context, url string, headers map[string]string, body any) (Response, error) {
	resp, err := r.c.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(body).
		Post(url)
	if err != nil {
		return nil, err
	}
	return resp, nil
}
