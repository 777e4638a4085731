// Package collyfetcher implements monitor.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/edital-monitor/internal/monitor"
)

// DefaultUserAgent is a desktop Chrome identity; some portals reject the
// default Go client signature.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DefaultTimeout bounds a single fetch.
const DefaultTimeout = 30 * time.Second

// DefaultHeaders returns the browser-like request headers sent with every fetch.
// Accept-Encoding is left to the transport so gzip bodies are decoded.
func DefaultHeaders() http.Header {
	return http.Header{
		"Accept":          {"text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"},
		"Accept-Language": {"pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7"},
		"Connection":      {"keep-alive"},
	}
}

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Headers   http.Header
	Timeout   time.Duration
}

// Fetcher implements monitor.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	transport     http.RoundTripper
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher. Zero values fall back to DefaultUserAgent,
// DefaultHeaders and DefaultTimeout.
func New(cfg Config) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Headers == nil {
		cfg.Headers = DefaultHeaders()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	c := colly.NewCollector(colly.Async(false))
	transport := newHTTPTransport()
	c.WithTransport(transport)

	return &Fetcher{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET using Colly. Transport failures, timeouts
// and non-2xx statuses are returned as *monitor.NetworkError.
func (f *Fetcher) Fetch(ctx context.Context, url string) (monitor.RawDocument, error) {
	var (
		result   monitor.RawDocument
		status   int
		fetchErr error
	)
	start := time.Now()
	collector := f.buildCollector()
	f.configureCollectorHooks(collector, start, &result, &status, &fetchErr)

	if err := f.runCollector(ctx, collector, url, &fetchErr); err != nil {
		if ctx.Err() != nil {
			// The visit goroutine may still be writing; leave its results alone.
			return monitor.RawDocument{}, &monitor.NetworkError{URL: url, Err: err}
		}
		return monitor.RawDocument{}, &monitor.NetworkError{URL: url, StatusCode: status, Err: err}
	}
	if result.StatusCode < http.StatusOK || result.StatusCode >= http.StatusMultipleChoices {
		return monitor.RawDocument{}, &monitor.NetworkError{URL: url, StatusCode: result.StatusCode}
	}
	return result, nil
}

func (f *Fetcher) buildCollector() *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.UserAgent = f.cfg.UserAgent
	collector.AllowURLRevisit = true
	collector.ParseHTTPErrorResponse = true
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(f.cfg.Timeout)
	collector.WithTransport(f.transport)
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	start time.Time,
	result *monitor.RawDocument,
	status *int,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		f.copyHeaders(r)
	})

	hooks.OnResponse(func(r *colly.Response) {
		*status = r.StatusCode
		*result = monitor.RawDocument{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil {
			*status = r.StatusCode
		}
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

func (f *Fetcher) copyHeaders(r *colly.Request) {
	for key, values := range f.cfg.Headers {
		r.Headers.Del(key)
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
}
