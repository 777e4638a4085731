// Package monitor defines core types shared across subsystems.
package monitor

import (
	"context"
	"time"
)

// Level is the severity attached to a journal entry.
type Level string

// Journal levels surfaced through the log query endpoint.
const (
	LevelInfo    Level = "INFO"
	LevelAlert   Level = "ALERT"
	LevelError   Level = "ERROR"
	LevelSuccess Level = "SUCCESS"
)

// RawDocument is the body and metadata returned by a Fetcher.
type RawDocument struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// PollCycleResult is produced once per completed cycle.
type PollCycleResult struct {
	Fingerprint   string    `json:"fingerprint"`
	Changed       bool      `json:"changed"`
	KeywordsFound []string  `json:"keywords_found"`
	ContentLength int       `json:"content_length"`
	Timestamp     time.Time `json:"timestamp"`
}

// LogEntry is one line of the in-memory journal.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
}

// Status is a point-in-time snapshot of the scheduler state.
type Status struct {
	Running         bool       `json:"running"`
	Generation      string     `json:"generation,omitempty"`
	CycleCount      int        `json:"cycle_count"`
	LastCheck       *time.Time `json:"last_check"`
	NextCheck       *time.Time `json:"next_check"`
	KeywordsFound   []string   `json:"keywords_found"`
	ChangesDetected int        `json:"changes_detected"`
	Fingerprint     string     `json:"fingerprint,omitempty"`
}

// Alert is the payload handed to a Notifier when a change is detected.
type Alert struct {
	URL        string
	Keywords   []string
	Changed    bool
	DetectedAt time.Time
}

// ChangeEvent is published to the configured topic on every detected change.
type ChangeEvent struct {
	URL                 string    `json:"url"`
	Generation          string    `json:"generation"`
	Cycle               int       `json:"cycle"`
	Fingerprint         string    `json:"fingerprint"`
	PreviousFingerprint string    `json:"previous_fingerprint"`
	KeywordsFound       []string  `json:"keywords_found"`
	SnapshotURI         string    `json:"snapshot_uri,omitempty"`
	DetectedAt          time.Time `json:"detected_at"`
}

// Settings is the configuration a generation runs with. It is read once when
// the generation starts.
type Settings struct {
	URL                  string
	Keywords             []string
	Interval             time.Duration
	NotificationsEnabled bool
	Notifier             Notifier
	Topic                string
	SnapshotPrefix       string
}

// SettingsSource yields the settings for a new generation.
type SettingsSource interface {
	Settings(ctx context.Context) (Settings, error)
}

// SettingsFunc adapts a function to SettingsSource.
type SettingsFunc func(ctx context.Context) (Settings, error)

// Settings calls f.
func (f SettingsFunc) Settings(ctx context.Context) (Settings, error) {
	return f(ctx)
}

// StaticSettings returns a SettingsSource that always yields s.
func StaticSettings(s Settings) SettingsSource {
	return SettingsFunc(func(context.Context) (Settings, error) {
		return s, nil
	})
}
