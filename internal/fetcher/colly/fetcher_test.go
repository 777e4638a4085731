package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/edital-monitor/internal/monitor"
)

func TestFetcherSendsBrowserIdentity(t *testing.T) {
	t.Parallel()

	headers := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>Edital aberto</body></html>"))
	}))
	defer srv.Close()

	doc, err := New(Config{}).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, doc.StatusCode)
	assert.Contains(t, string(doc.Body), "Edital aberto")
	assert.Contains(t, doc.URL, srv.Listener.Addr().String())

	got := <-headers
	assert.Contains(t, got.Get("User-Agent"), "Chrome/120.0.0.0")
	assert.Equal(t, "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7", got.Get("Accept-Language"))
	assert.Contains(t, got.Get("Accept"), "text/html")
}

func TestFetcherRevisitsSameURL(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := New(Config{})
	for i := 0; i < 3; i++ {
		_, err := f.Fetch(context.Background(), srv.URL)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetcherNon2xxIsNetworkError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(Config{}).Fetch(context.Background(), srv.URL)
	var netErr *monitor.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.StatusNotFound, netErr.StatusCode)
	assert.Equal(t, srv.URL, netErr.URL)
}

func TestFetcherTimeoutIsNetworkError(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		_, _ = w.Write([]byte("late"))
	}))
	defer srv.Close()
	defer close(release)

	_, err := New(Config{Timeout: 50 * time.Millisecond}).Fetch(context.Background(), srv.URL)
	var netErr *monitor.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Error(t, netErr.Err)
}

func TestFetcherUnreachableHost(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := New(Config{Timeout: time.Second}).Fetch(context.Background(), addr)
	var netErr *monitor.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Zero(t, netErr.StatusCode)
}

func TestFetcherContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	_, err := New(Config{}).Fetch(ctx, srv.URL)
	var netErr *monitor.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{Headers: http.Header{"X-Trace": {"yes"}}})
	start := time.Unix(0, 0)
	var (
		result   monitor.RawDocument
		status   int
		fetchErr error
	)

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, start, &result, &status, &fetchErr)
	require.NotNil(t, hooks.onRequest)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	collyReq := &colly.Request{Headers: &http.Header{"X-Trace": {"stale"}}}
	hooks.onRequest(collyReq)
	assert.Equal(t, []string{"yes"}, collyReq.Headers.Values("X-Trace"))

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusCreated,
		Body:       []byte("body"),
		Request:    &colly.Request{URL: mustParseURL(t, "https://example.com")},
	})
	assert.Equal(t, http.StatusCreated, result.StatusCode)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "body", string(result.Body))

	hooks.onError(&colly.Response{StatusCode: http.StatusBadGateway}, errors.New("boom"))
	assert.Equal(t, http.StatusBadGateway, status)
	require.EqualError(t, fetchErr, "boom")
}

func TestNewAppliesDefaults(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	assert.Equal(t, DefaultUserAgent, f.cfg.UserAgent)
	assert.Equal(t, DefaultTimeout, f.cfg.Timeout)
	assert.Equal(t, DefaultHeaders(), f.cfg.Headers)

	collector := f.buildCollector()
	assert.True(t, collector.AllowURLRevisit)
	assert.True(t, collector.ParseHTTPErrorResponse)
	assert.Equal(t, DefaultUserAgent, collector.UserAgent)
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse url %q: %v", raw, err)
	}
	return u
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback) {
	s.onRequest = cb
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
