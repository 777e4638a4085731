// Package memory keeps page snapshots in-memory for development and tests.
package memory

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// Snapshot is one archived page.
type Snapshot struct {
	ContentType string
	Body        []byte
}

// BlobStore stores snapshots in-memory and returns memory:// URIs.
type BlobStore struct {
	mu        sync.RWMutex
	snapshots map[string]Snapshot
}

// NewBlobStore creates an empty in-memory snapshot store.
func NewBlobStore() *BlobStore {
	return &BlobStore{snapshots: make(map[string]Snapshot)}
}

// PutObject stores a copy of the content under path.
func (s *BlobStore) PutObject(_ context.Context, path string, contentType string, data io.Reader) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	body, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[path] = Snapshot{ContentType: contentType, Body: body}
	return "memory://" + path, nil
}

// Get returns a copy of the snapshot stored under path.
func (s *BlobStore) Get(path string) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[path]
	if !ok {
		return Snapshot{}, false
	}
	snap.Body = append([]byte(nil), snap.Body...)
	return snap, true
}

// Paths lists stored snapshot paths in lexical order.
func (s *BlobStore) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.snapshots))
	for p := range s.snapshots {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
