package publishers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/headliner-hq/headliner/internal/domain"
)

func newSinkPublisher(t *testing.T, url string, headers map[string]string) Publisher {
	t.Helper()

	pub, err := newHTTPPublisher(context.Background(), Config{
		ID:   "sink",
		Type: TypeHTTP,
		HTTP: &HTTPConfig{
			URL:            url,
			Method:         http.MethodPost,
			Headers:        headers,
			TimeoutSeconds: 2,
		},
	}, nopLogger{})
	require.NoError(t, err)
	return pub
}

func TestHTTPPublisherDeliversEvent(t *testing.T) {
	var got Event
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Sink-Token")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	pub := newSinkPublisher(t, srv.URL, map[string]string{"X-Sink-Token": "tok"})

	evt := Event{
		URL:         "https://example.com/a",
		Title:       "Rewritten",
		Description: "Summary",
		Source:      "world-news",
		Category:    "world",
		PublishedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, pub.Publish(context.Background(), evt))

	require.Equal(t, "tok", gotHeader)
	require.Equal(t, evt.URL, got.URL)
	require.Equal(t, evt.Title, got.Title)
}

func TestHTTPPublisherRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	pub := newSinkPublisher(t, srv.URL, nil)

	err := pub.Publish(context.Background(), Event{URL: "https://example.com/a"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
}

func TestHTTPPublisherRejectsNonPostMethod(t *testing.T) {
	_, err := newHTTPPublisher(context.Background(), Config{
		ID:   "sink",
		Type: TypeHTTP,
		HTTP: &HTTPConfig{URL: "https://example.com", Method: http.MethodGet},
	}, nopLogger{})
	require.Error(t, err)
}

// recordingPublisher captures published events and can fail on demand.
type recordingPublisher struct {
	id     string
	events []Event
	err    error
}

func (p *recordingPublisher) ID() string   { return p.id }
func (p *recordingPublisher) Type() string { return TypeHTTP }

func (p *recordingPublisher) Publish(_ context.Context, evt Event) error {
	p.events = append(p.events, evt)
	return p.err
}

func TestFanoutDeliversToAllPublishers(t *testing.T) {
	a := &recordingPublisher{id: "a"}
	b := &recordingPublisher{id: "b"}
	fan := NewFanout([]Publisher{a, b}, nopLogger{})

	rec := domain.ArticleRecord{
		URL:    "https://example.com/a",
		Title:  "T",
		Source: "s",
	}
	fan.ArticlePersisted(context.Background(), rec)

	require.Len(t, a.events, 1)
	require.Len(t, b.events, 1)
	require.Equal(t, rec.URL, a.events[0].URL)
}

func TestFanoutSwallowsDeliveryFailures(t *testing.T) {
	failing := &recordingPublisher{id: "bad", err: errors.New("sink down")}
	ok := &recordingPublisher{id: "ok"}
	fan := NewFanout([]Publisher{failing, ok}, nopLogger{})

	fan.ArticlePersisted(context.Background(), domain.ArticleRecord{URL: "https://example.com/a"})

	// A failing sink does not stop delivery to the remaining ones.
	require.Len(t, ok.events, 1)
}

func TestFanoutNilReceiver(t *testing.T) {
	var fan *Fanout
	fan.ArticlePersisted(context.Background(), domain.ArticleRecord{URL: "https://example.com/a"})
}
