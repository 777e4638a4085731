// Package sha256 provides SHA-256 content fingerprints.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher implements monitor.Hasher using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Fingerprint returns the hex digest of the UTF-8 bytes of text.
func (h *Hasher) Fingerprint(text string) string {
	return h.Sum([]byte(text))
}

// Sum hashes data and returns a hex digest.
func (h *Hasher) Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
