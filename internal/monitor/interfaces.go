package monitor

import (
	"context"
	"io"
	"time"
)

// Fetcher retrieves the raw page for a URL. Failures are reported as a
// *NetworkError.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (RawDocument, error)
}

// Extractor turns raw markup into the flattened text that gets fingerprinted.
type Extractor interface {
	Extract(raw []byte) (string, error)
}

// Hasher computes content fingerprints.
type Hasher interface {
	Fingerprint(text string) string
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces generation IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Notifier delivers an alert to recipients and reports how many received it.
type Notifier interface {
	Notify(ctx context.Context, alert Alert, recipients []string) (int, error)
}

// SubscriberSource lists the current alert recipients.
type SubscriberSource interface {
	List(ctx context.Context) ([]string, error)
}

// Publisher pushes change events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BlobStore writes page snapshots and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}
