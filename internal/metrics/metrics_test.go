package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"just host", "example.com", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if monitorCyclesTotal == nil || monitorChangesTotal == nil ||
		httpRequestsTotal == nil || httpRequestDurationSeconds == nil || monitorRunning == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObserveMonitorMetrics(t *testing.T) {
	Init()

	before := testutil.ToFloat64(monitorCyclesTotal.WithLabelValues("changed"))
	ObserveCycle("changed")
	if val := testutil.ToFloat64(monitorCyclesTotal.WithLabelValues("changed")); val != before+1 {
		t.Errorf("Expected changed cycles to grow by 1, got %f -> %f", before, val)
	}

	beforeChanges := testutil.ToFloat64(monitorChangesTotal.WithLabelValues("portal.example.gov.br"))
	ObserveChange("https://Portal.example.gov.br/edital")
	if val := testutil.ToFloat64(monitorChangesTotal.WithLabelValues("portal.example.gov.br")); val != beforeChanges+1 {
		t.Errorf("Expected changes to grow by 1, got %f -> %f", beforeChanges, val)
	}

	beforeRecipients := testutil.ToFloat64(monitorRecipientsTotal)
	ObserveNotification("sent", 3)
	ObserveNotification("error", 0)
	if val := testutil.ToFloat64(monitorRecipientsTotal); val != beforeRecipients+3 {
		t.Errorf("Expected recipients to grow by 3, got %f -> %f", beforeRecipients, val)
	}

	beforeBytes := testutil.ToFloat64(monitorFetchBytesTotal.WithLabelValues("fetch.example"))
	ObserveFetch("https://fetch.example/page", "ok", 150*time.Millisecond, 2048)
	if val := testutil.ToFloat64(monitorFetchBytesTotal.WithLabelValues("fetch.example")); val != beforeBytes+2048 {
		t.Errorf("Expected fetched bytes to grow by 2048, got %f -> %f", beforeBytes, val)
	}

	SetRunning(true)
	if val := testutil.ToFloat64(monitorRunning); val != 1 {
		t.Errorf("Expected running gauge 1, got %f", val)
	}
	SetRunning(false)
	if val := testutil.ToFloat64(monitorRunning); val != 0 {
		t.Errorf("Expected running gauge 0, got %f", val)
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
