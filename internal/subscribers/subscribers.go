// Package subscribers manages the list of email addresses that receive
// change alerts.
package subscribers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/JakeFAU/edital-monitor/internal/monitor"
)

var (
	// ErrDuplicate is returned when adding an address already subscribed.
	ErrDuplicate = errors.New("email already subscribed")
	// ErrNotFound is returned when removing an address that is not subscribed.
	ErrNotFound = errors.New("email not subscribed")
)

// Store persists the subscriber list.
type Store interface {
	Load(ctx context.Context) ([]string, error)
	Save(ctx context.Context, emails []string) error
}

// Normalize trims and lower-cases an address.
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate accepts any trimmed, non-empty address containing "@".
func Validate(email string) error {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return &monitor.ValidationError{Field: "email", Value: email, Reason: "must not be empty"}
	}
	if !strings.Contains(trimmed, "@") {
		return &monitor.ValidationError{Field: "email", Value: email, Reason: "must contain @"}
	}
	return nil
}

// Service applies subscriber rules on top of a Store. Every call reloads the
// list so edits made by other processes are visible.
type Service struct {
	store Store
	mu    sync.Mutex
}

// NewService wraps store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Add subscribes email and returns the new subscriber count.
func (s *Service) Add(ctx context.Context, email string) (int, error) {
	if err := Validate(email); err != nil {
		return 0, err
	}
	normalized := Normalize(email)

	s.mu.Lock()
	defer s.mu.Unlock()
	emails, err := s.store.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load subscribers: %w", err)
	}
	for _, existing := range emails {
		if Normalize(existing) == normalized {
			return len(emails), ErrDuplicate
		}
	}
	emails = append(emails, normalized)
	if err := s.store.Save(ctx, emails); err != nil {
		return 0, fmt.Errorf("save subscribers: %w", err)
	}
	return len(emails), nil
}

// Remove unsubscribes email, matching case-insensitively.
func (s *Service) Remove(ctx context.Context, email string) error {
	target := Normalize(email)

	s.mu.Lock()
	defer s.mu.Unlock()
	emails, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load subscribers: %w", err)
	}
	kept := make([]string, 0, len(emails))
	for _, existing := range emails {
		if Normalize(existing) != target {
			kept = append(kept, existing)
		}
	}
	if len(kept) == len(emails) {
		return ErrNotFound
	}
	if err := s.store.Save(ctx, kept); err != nil {
		return fmt.Errorf("save subscribers: %w", err)
	}
	return nil
}

// List returns the current subscribers in insertion order.
func (s *Service) List(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	emails, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load subscribers: %w", err)
	}
	if emails == nil {
		emails = []string{}
	}
	return emails, nil
}

// Count returns the number of subscribers.
func (s *Service) Count(ctx context.Context) (int, error) {
	emails, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(emails), nil
}
