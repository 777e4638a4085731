// Package system provides a real clock implementation.
package system

import (
	"fmt"
	"time"
)

// Clock implements monitor.Clock using time.Now.
type Clock struct {
	loc *time.Location
}

// New creates a Clock reporting UTC.
func New() *Clock {
	return &Clock{loc: time.UTC}
}

// NewIn creates a Clock reporting times in the named IANA zone, such as
// "America/Sao_Paulo". An empty name means UTC.
func NewIn(name string) (*Clock, error) {
	if name == "" {
		return New(), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", name, err)
	}
	return &Clock{loc: loc}, nil
}

// Now returns the current time.
func (c Clock) Now() time.Time {
	if c.loc == nil {
		return time.Now().UTC()
	}
	return time.Now().In(c.loc)
}
