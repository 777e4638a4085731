package monitor

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultJournalCapacity bounds the journal when no capacity is given.
const DefaultJournalCapacity = 100

// Journal is a bounded, newest-first buffer of LogEntry values. Every entry
// recorded through Record is mirrored to the zap logger.
type Journal struct {
	mu     sync.RWMutex
	ring   []LogEntry
	next   int
	size   int
	clock  Clock
	logger *zap.Logger
}

// NewJournal builds a Journal. A non-positive capacity uses DefaultJournalCapacity.
func NewJournal(capacity int, clock Clock, logger *zap.Logger) *Journal {
	if capacity <= 0 {
		capacity = DefaultJournalCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Journal{
		ring:   make([]LogEntry, capacity),
		clock:  clock,
		logger: logger,
	}
}

// Record stamps and appends a message, then mirrors it to zap.
func (j *Journal) Record(level Level, msg string, fields ...zap.Field) LogEntry {
	entry := LogEntry{Timestamp: j.clock.Now(), Level: level, Message: msg}
	j.Append(entry)
	fields = append(fields, zap.String("level", string(level)))
	if ce := j.logger.Check(zapLevel(level), msg); ce != nil {
		ce.Write(fields...)
	}
	return entry
}

// Append stores an entry, dropping the oldest once the buffer is full.
func (j *Journal) Append(entry LogEntry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ring[j.next] = entry
	j.next = (j.next + 1) % len(j.ring)
	if j.size < len(j.ring) {
		j.size++
	}
}

// Recent returns up to limit entries, newest first. A non-positive limit
// returns everything held.
func (j *Journal) Recent(limit int) []LogEntry {
	j.mu.RLock()
	defer j.mu.RUnlock()
	n := j.size
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]LogEntry, 0, n)
	idx := j.next
	for i := 0; i < n; i++ {
		idx = (idx - 1 + len(j.ring)) % len(j.ring)
		out = append(out, j.ring[idx])
	}
	return out
}

// Clear drops every entry.
func (j *Journal) Clear() {
	j.mu.Lock()
	defer j.mu.Unlock()
	clear(j.ring)
	j.next = 0
	j.size = 0
}

// Len reports how many entries are held.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.size
}

// Capacity reports the maximum number of entries held.
func (j *Journal) Capacity() int {
	return len(j.ring)
}

func zapLevel(level Level) zapcore.Level {
	switch level {
	case LevelAlert:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
