package subscribers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore keeps subscribers in a JSON document of the form
// {"emails": [...]}.
type FileStore struct {
	path string
}

type fileDocument struct {
	Emails []string `json:"emails"`
}

// NewFileStore returns a store backed by path. The file is created empty on
// first use.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the list, creating an empty file when none exists.
func (s *FileStore) Load(ctx context.Context) ([]string, error) {
	// #nosec G304 -- path comes from configuration.
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := s.Save(ctx, []string{}); err != nil {
			return nil, err
		}
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	var doc fileDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	if doc.Emails == nil {
		doc.Emails = []string{}
	}
	return doc.Emails, nil
}

// Save replaces the file contents atomically.
func (s *FileStore) Save(_ context.Context, emails []string) error {
	if emails == nil {
		emails = []string{}
	}
	raw, err := json.MarshalIndent(fileDocument{Emails: emails}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode subscribers: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".subscribers-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write subscribers: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close subscribers: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}
