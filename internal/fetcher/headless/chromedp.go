// Package headless renders JavaScript-heavy pages with a headless browser.
package headless

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/edital-monitor/internal/monitor"
)

// DefaultNavigationTimeout bounds a rendered fetch when none is configured.
const DefaultNavigationTimeout = 30 * time.Second

// Config controls the behavior of the headless fetcher.
type Config struct {
	UserAgent         string
	Headers           http.Header
	NavigationTimeout time.Duration
	// SettleDelay is how long to wait after the body is ready for scripts
	// to finish rendering.
	SettleDelay time.Duration
}

// Fetcher implements monitor.Fetcher using chromedp and headless Chrome.
// Fetches are serialized; the monitor polls one page at a time.
type Fetcher struct {
	cfg         Config
	mu          sync.Mutex
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewChromedp creates a headless fetcher backed by chromedp. The browser
// process starts lazily on the first fetch.
func NewChromedp(cfg Config) *Fetcher {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = DefaultNavigationTimeout
	}
	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = 0
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Fetcher{
		cfg:         cfg,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}
}

// Close shuts the browser down.
func (f *Fetcher) Close() {
	f.allocCancel()
}

// Fetch navigates to url and returns the rendered DOM. Navigation failures,
// timeouts and non-2xx document statuses are returned as *monitor.NetworkError.
func (f *Fetcher) Fetch(ctx context.Context, url string) (monitor.RawDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	taskCtx, taskCancel := chromedp.NewContext(f.allocator)
	defer taskCancel()
	taskCtx, cancel := context.WithTimeout(taskCtx, f.cfg.NavigationTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	meta := &documentMeta{}
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	start := time.Now()
	html, finalURL, err := f.render(taskCtx, url)
	if err != nil {
		return monitor.RawDocument{}, &monitor.NetworkError{URL: url, Err: err}
	}

	status, responseURL := meta.snapshotWithFallbacks(url, finalURL)
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return monitor.RawDocument{}, &monitor.NetworkError{URL: url, StatusCode: status}
	}
	return monitor.RawDocument{
		URL:        responseURL,
		StatusCode: status,
		Body:       []byte(html),
		Duration:   time.Since(start),
	}, nil
}

func (f *Fetcher) render(ctx context.Context, url string) (string, string, error) {
	var (
		html     string
		finalURL string
	)
	actions := []chromedp.Action{
		f.networkSetupAction(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if f.cfg.SettleDelay > 0 {
		actions = append(actions, chromedp.Sleep(f.cfg.SettleDelay))
	}
	actions = append(actions,
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, finalURL, nil
}

func (f *Fetcher) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if len(f.cfg.Headers) > 0 {
			if err := network.SetExtraHTTPHeaders(toNetworkHeaders(f.cfg.Headers)).Do(ctx); err != nil {
				return fmt.Errorf("set extra headers: %w", err)
			}
		}
		return nil
	})
}

// documentMeta records the status of the main document response.
type documentMeta struct {
	mu     sync.RWMutex
	status int
	url    string
}

func (m *documentMeta) capture(event *network.EventResponseReceived) {
	if event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != 0 {
		// Keep the first document response; iframes report documents too.
		return
	}
	m.status = int(event.Response.Status)
	m.url = event.Response.URL
}

func (m *documentMeta) captureEvent(ev any) {
	if resp, ok := ev.(*network.EventResponseReceived); ok {
		m.capture(resp)
	}
}

func (m *documentMeta) snapshotWithFallbacks(requestURL, finalURL string) (int, string) {
	m.mu.RLock()
	status, url := m.status, m.url
	m.mu.RUnlock()
	switch {
	case url != "":
	case finalURL != "":
		url = finalURL
	default:
		url = requestURL
	}
	if status == 0 {
		status = http.StatusOK
	}
	return status, url
}

func toNetworkHeaders(h http.Header) network.Headers {
	headers := network.Headers{}
	for key, values := range h {
		switch len(values) {
		case 0:
		case 1:
			headers[key] = values[0]
		default:
			headers[key] = append([]string(nil), values...)
		}
	}
	return headers
}
