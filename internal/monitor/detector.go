package monitor

import "sync"

// ChangeDetector compares each new fingerprint with the one seen on the
// previous call. The first observation never counts as a change.
type ChangeDetector struct {
	mu       sync.Mutex
	hasher   Hasher
	baseline string
	primed   bool
}

// NewChangeDetector builds a detector with no baseline.
func NewChangeDetector(hasher Hasher) *ChangeDetector {
	return &ChangeDetector{hasher: hasher}
}

// Fingerprint returns the digest of text without touching the baseline.
func (d *ChangeDetector) Fingerprint(text string) string {
	return d.hasher.Fingerprint(text)
}

// DetectChange fingerprints text and reports whether it differs from the
// baseline. The baseline is replaced with the new digest on every call.
func (d *ChangeDetector) DetectChange(text string) (bool, string) {
	digest := d.hasher.Fingerprint(text)
	d.mu.Lock()
	defer d.mu.Unlock()
	changed := d.primed && digest != d.baseline
	d.baseline = digest
	d.primed = true
	return changed, digest
}

// Reset drops the baseline. The next DetectChange re-baselines and reports
// no change.
func (d *ChangeDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.baseline = ""
	d.primed = false
}

// Baseline returns the stored digest and whether one is set.
func (d *ChangeDetector) Baseline() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.baseline, d.primed
}
