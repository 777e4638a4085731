package monitor

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRunning is returned by Start when a generation is active.
	ErrAlreadyRunning = errors.New("monitor already running")
	// ErrNotRunning is returned by control operations that need an active generation.
	ErrNotRunning = errors.New("monitor not running")
)

// NetworkError reports a transport failure, a timeout or a non-2xx status.
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 && e.Err == nil {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ParseError reports markup that could not be turned into text.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse document: %s: %v", e.Reason, e.Err)
	}
	return "parse document: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// DeliveryError reports a failed notification batch. Delivered counts the
// recipients that were sent before the batch aborted.
type DeliveryError struct {
	Recipient string
	Delivered int
	Err       error
}

func (e *DeliveryError) Error() string {
	if e.Recipient != "" {
		return fmt.Sprintf("deliver to %s: %v", e.Recipient, e.Err)
	}
	return fmt.Sprintf("deliver alert: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// ConfigError reports missing or malformed persisted configuration.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ValidationError reports input rejected at the boundary.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}
