package config

import (
	"fmt"
	"sync"
)

// Manager holds the live configuration and persists admin edits.
type Manager struct {
	path string

	mu  sync.RWMutex
	cfg Config
}

// NewManager wraps an already loaded configuration. An empty path keeps
// updates in memory.
func NewManager(path string, cfg Config) *Manager {
	return &Manager{path: path, cfg: cfg}
}

// Path returns the backing file.
func (m *Manager) Path() string {
	return m.path
}

// Current returns a copy of the live configuration.
func (m *Manager) Current() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.cfg
	out.Keywords = append([]string(nil), m.cfg.Keywords...)
	return out
}

// Update applies mutate to a copy of the live configuration, validates the
// result and saves it. The live configuration is replaced only when both
// succeed. A masked password in the result keeps the stored one.
func (m *Manager) Update(mutate func(*Config)) (Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.cfg
	next.Keywords = append([]string(nil), m.cfg.Keywords...)
	mutate(&next)
	if next.Email.SMTPPassword == MaskedPassword {
		next.Email.SMTPPassword = m.cfg.Email.SMTPPassword
	}
	next.Keywords = splitKeywords(next.Keywords)
	if err := next.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	if m.path != "" {
		if err := Save(m.path, next); err != nil {
			return Config{}, err
		}
	}
	m.cfg = next
	return next, nil
}
