package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/edital-monitor/internal/config"
	"github.com/JakeFAU/edital-monitor/internal/monitor"
	"github.com/JakeFAU/edital-monitor/internal/ratelimit"
	"github.com/JakeFAU/edital-monitor/internal/subscribers"
)

const testAPIKey = "s3cret"

type fakeMonitor struct {
	mu       sync.Mutex
	running  bool
	checks   int
	resets   int
	startErr error
	journal  *monitor.Journal
}

func newFakeMonitor() *fakeMonitor {
	return &fakeMonitor{journal: monitor.NewJournal(10, fixedClock{}, zap.NewNop())}
}

func (m *fakeMonitor) Start(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	if m.running {
		return monitor.ErrAlreadyRunning
	}
	m.running = true
	return nil
}

func (m *fakeMonitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return monitor.ErrNotRunning
	}
	m.running = false
	return nil
}

func (m *fakeMonitor) Restart(ctx context.Context) error {
	_ = m.Stop()
	return m.Start(ctx)
}

func (m *fakeMonitor) CheckNow() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return monitor.ErrNotRunning
	}
	m.checks++
	return nil
}

func (m *fakeMonitor) ResetFingerprint() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return monitor.ErrNotRunning
	}
	m.resets++
	return nil
}

func (m *fakeMonitor) Status() monitor.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return monitor.Status{
		Running:       m.running,
		Generation:    "gen-1",
		CycleCount:    3,
		KeywordsFound: []string{"resultado"},
		Fingerprint:   "abc123",
	}
}

func (m *fakeMonitor) Journal() *monitor.Journal { return m.journal }

type fixedClock struct{}

func (fixedClock) Now() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

type memStore struct {
	mu     sync.Mutex
	emails []string
}

func (s *memStore) Load(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.emails...), nil
}

func (s *memStore) Save(_ context.Context, emails []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emails = append([]string(nil), emails...)
	return nil
}

type harness struct {
	server  *Server
	monitor *fakeMonitor
	store   *memStore
	config  *config.Manager
	mailErr error
}

func newHarness(t *testing.T, adminEnabled bool) *harness {
	t.Helper()
	cfg := config.Default()
	cfg.Auth.AdminEnabled = adminEnabled
	cfg.Auth.APIKey = testAPIKey
	cfg.Email.SMTPPassword = "hunter2"
	h := &harness{
		monitor: newFakeMonitor(),
		store:   &memStore{},
		config:  config.NewManager("", cfg),
	}
	h.server = NewServer(Dependencies{
		Monitor:     h.monitor,
		Subscribers: subscribers.NewService(h.store),
		Config:      h.config,
		TestMail: func(context.Context, config.EmailConfig) error {
			return h.mailErr
		},
	}, zap.NewNop())
	return h
}

func (h *harness) do(t *testing.T, method, path string, body string, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if admin {
		req.Header.Set("X-API-Key", testAPIKey)
	}
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthAndReady(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/healthz", "", false).Code)
	rec := h.do(t, http.MethodGet, "/readyz", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestReadyReportsDependencyFailure(t *testing.T) {
	t.Parallel()

	srv := NewServer(Dependencies{
		Monitor: newFakeMonitor(),
		Config:  config.NewManager("", config.Default()),
		Ready:   func(context.Context) error { return errors.New("database unreachable") },
	}, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "database unreachable")
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)
	rec := h.do(t, http.MethodGet, "/metrics", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "edital_monitor_running")
}

func TestStatus(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)
	rec := h.do(t, http.MethodGet, "/api/status", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["running"])
	assert.EqualValues(t, 3, body["cycle_count"])
	assert.Equal(t, []any{"resultado"}, body["keywords_found"])
	assert.NotContains(t, body, "generation")
	assert.NotContains(t, body, "fingerprint")
}

func TestLogsNewestFirstWithLimit(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)
	for _, msg := range []string{"first", "second", "third"} {
		h.monitor.journal.Record(monitor.LevelInfo, msg)
	}

	rec := h.do(t, http.MethodGet, "/api/logs?limit=2", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Logs []monitor.LogEntry `json:"logs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Logs, 2)
	assert.Equal(t, "third", body.Logs[0].Message)
	assert.Equal(t, "second", body.Logs[1].Message)

	rec = h.do(t, http.MethodGet, "/api/logs?limit=abc", "", false)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Logs, 3)
}

func TestConfigMasksSecrets(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	rec := h.do(t, http.MethodGet, "/api/config", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"smtp_password":"***"`)
	assert.NotContains(t, rec.Body.String(), "hunter2")
	assert.NotContains(t, rec.Body.String(), testAPIKey)
}

func TestSubscribeFlow(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)

	rec := h.do(t, http.MethodPost, "/api/subscribers", `{"email":" User@Example.com "}`, false)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 1, body["total_subscribers"])
	assert.Equal(t, "user@example.com", body["email"])

	rec = h.do(t, http.MethodGet, "/api/subscribers", "", false)
	assert.JSONEq(t, `{"count":1}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "user@example.com")

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "empty", body: `{"email":"  "}`, want: "email not provided"},
		{name: "missing at", body: `{"email":"nobody"}`, want: "invalid email"},
		{name: "duplicate", body: `{"email":"USER@example.com"}`, want: "email already subscribed"},
		{name: "bad json", body: `{`, want: "invalid JSON"},
	}
	for _, tt := range tests {
		rec := h.do(t, http.MethodPost, "/api/subscribers", tt.body, false)
		assert.Equal(t, http.StatusBadRequest, rec.Code, tt.name)
		assert.Contains(t, rec.Body.String(), tt.want, tt.name)
	}
	assert.Equal(t, []string{"user@example.com"}, h.store.emails)
}

func TestAdminRoutesRequireKey(t *testing.T) {
	t.Parallel()

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/start"},
		{http.MethodPost, "/api/stop"},
		{http.MethodPost, "/api/restart"},
		{http.MethodPost, "/api/check-now"},
		{http.MethodPost, "/api/reset-hash"},
		{http.MethodPost, "/api/clear-logs"},
		{http.MethodPost, "/api/test-email"},
		{http.MethodPost, "/api/config"},
		{http.MethodGet, "/api/diagnostic"},
		{http.MethodGet, "/api/subscribers/list"},
		{http.MethodDelete, "/api/subscribers/a@example.com"},
	}

	disabled := newHarness(t, false)
	enabled := newHarness(t, true)
	for _, rt := range routes {
		rec := disabled.do(t, rt.method, rt.path, "", true)
		assert.Equal(t, http.StatusForbidden, rec.Code, "%s %s with admin disabled", rt.method, rt.path)
		assert.Contains(t, rec.Body.String(), AdminRequired)

		rec = enabled.do(t, rt.method, rt.path, "", false)
		assert.Equal(t, http.StatusForbidden, rec.Code, "%s %s without key", rt.method, rt.path)
	}
	assert.False(t, disabled.monitor.running)
}

func TestAdminLifecycle(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)

	assert.Equal(t, http.StatusConflict, h.do(t, http.MethodPost, "/api/stop", "", true).Code)
	assert.Equal(t, http.StatusConflict, h.do(t, http.MethodPost, "/api/check-now", "", true).Code)

	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/start", "", true).Code)
	rec := h.do(t, http.MethodPost, "/api/start", "", true)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), monitor.ErrAlreadyRunning.Error())

	assert.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/check-now", "", true).Code)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/reset-hash", "", true).Code)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/restart", "", true).Code)
	assert.Equal(t, 1, h.monitor.checks)
	assert.Equal(t, 1, h.monitor.resets)

	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/stop", "", true).Code)
	assert.False(t, h.monitor.running)
}

func TestAdminStartConfigError(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	h.monitor.startErr = &monitor.ConfigError{Err: errors.New("url is required")}
	rec := h.do(t, http.MethodPost, "/api/start", "", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminClearLogs(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	h.monitor.journal.Record(monitor.LevelInfo, "something")
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/clear-logs", "", true).Code)
	assert.Zero(t, h.monitor.journal.Len())
}

func TestAdminTestEmail(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/test-email", "", true).Code)

	h.mailErr = errors.New("535 authentication failed")
	rec := h.do(t, http.MethodPost, "/api/test-email", "", true)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "authentication failed")
}

func TestAdminUpdateConfig(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	rec := h.do(t, http.MethodPost, "/api/config",
		`{"url":"https://example.org/edital","keywords":["Gabarito"],"interval_minutes":2,"email":{"smtp_password":"***"}}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["restart_required"])

	cur := h.config.Current()
	assert.Equal(t, "https://example.org/edital", cur.URL)
	assert.Equal(t, []string{"Gabarito"}, cur.Keywords)
	assert.Equal(t, 2, cur.IntervalMinutes)
	assert.Equal(t, "hunter2", cur.Email.SMTPPassword)

	rec = h.do(t, http.MethodPost, "/api/config", `{"interval_minutes":0}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 2, h.config.Current().IntervalMinutes)
}

func TestSubscribeIsThrottledPerClient(t *testing.T) {
	t.Parallel()

	store := &memStore{}
	srv := NewServer(Dependencies{
		Monitor:          newFakeMonitor(),
		Subscribers:      subscribers.NewService(store),
		Config:           config.NewManager("", config.Default()),
		SubscribeLimiter: ratelimit.New(ratelimit.Config{PerMinute: 1, Burst: 1}),
	}, zap.NewNop())

	post := func(remote, email string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/subscribers",
			bytes.NewReader([]byte(`{"email":"`+email+`"}`)))
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, post("192.0.2.1:4000", "a@example.com").Code)
	rec := post("192.0.2.1:4001", "b@example.com")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), TooManyRequests)
	assert.Equal(t, http.StatusOK, post("192.0.2.2:4000", "b@example.com").Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/subscribers", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminSubscriberManagement(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	h.store.emails = []string{"a@example.com", "b@example.com"}

	rec := h.do(t, http.MethodGet, "/api/subscribers/list", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"emails":["a@example.com","b@example.com"],"count":2}`, rec.Body.String())

	assert.Equal(t, http.StatusOK, h.do(t, http.MethodDelete, "/api/subscribers/A@example.com", "", true).Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodDelete, "/api/subscribers/a@example.com", "", true).Code)
	assert.Equal(t, []string{"b@example.com"}, h.store.emails)
}

func TestAdminDiagnostic(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	rec := h.do(t, http.MethodGet, "/api/diagnostic", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Contains(t, body, "status")
	assert.Contains(t, body, "runtime")
	status := body["status"].(map[string]any)
	assert.Equal(t, "gen-1", status["generation"])
	assert.Equal(t, "abc123", status["fingerprint"])
	logs := body["logs"].(map[string]any)
	assert.EqualValues(t, 10, logs["capacity"])
	assert.NotContains(t, rec.Body.String(), "hunter2")
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	handler := recoverMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequestIDPropagates(t *testing.T) {
	t.Parallel()

	var seen string
	handler := requestIDMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}
