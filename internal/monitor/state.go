package monitor

import (
	"context"
	"sync"
	"time"
)

// state is the process-wide monitor state. Writes from a polling task go
// through commit so that a superseded generation can never mutate it.
type state struct {
	mu         sync.RWMutex
	running    bool
	generation string
	cycleCount int
	lastCheck  time.Time
	nextCheck  time.Time
	keywords   []string
	changes    int
	detector   *ChangeDetector
	cancel     context.CancelFunc
	wake       chan struct{}
}

// begin activates a new generation and resets the per-run counters.
func (s *state) begin(gen string, detector *ChangeDetector, cancel context.CancelFunc) (chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil, ErrAlreadyRunning
	}
	s.running = true
	s.generation = gen
	s.cycleCount = 0
	s.changes = 0
	s.keywords = nil
	s.lastCheck = time.Time{}
	s.nextCheck = time.Time{}
	s.detector = detector
	s.cancel = cancel
	s.wake = make(chan struct{}, 1)
	return s.wake, nil
}

// end deactivates the current generation and returns its cancel func.
func (s *state) end() (context.CancelFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil, ErrNotRunning
	}
	cancel := s.cancel
	s.running = false
	s.generation = ""
	s.cancel = nil
	s.wake = nil
	return cancel, nil
}

func (s *state) isActive(gen string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running && s.generation == gen
}

// commit runs fn under the write lock only if gen is still the active
// generation. It reports whether fn ran.
func (s *state) commit(gen string, fn func(*state)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.generation != gen {
		return false
	}
	fn(s)
	return true
}

func (s *state) activeDetector() *ChangeDetector {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return nil
	}
	return s.detector
}

func (s *state) wakeChannel() chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wake
}

func (s *state) snapshot() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{
		Running:         s.running,
		Generation:      s.generation,
		CycleCount:      s.cycleCount,
		KeywordsFound:   append([]string{}, s.keywords...),
		ChangesDetected: s.changes,
	}
	if !s.lastCheck.IsZero() {
		t := s.lastCheck
		st.LastCheck = &t
	}
	if s.running && !s.nextCheck.IsZero() {
		t := s.nextCheck
		st.NextCheck = &t
	}
	if s.detector != nil {
		st.Fingerprint, _ = s.detector.Baseline()
	}
	return st
}
