package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/edital-monitor/internal/hash/sha256"
)

func TestChangeDetectorFirstObservationIsNeutral(t *testing.T) {
	t.Parallel()

	d := NewChangeDetector(sha256.New())
	changed, digest := d.DetectChange("Edital aberto")
	assert.False(t, changed)
	assert.Equal(t, d.Fingerprint("Edital aberto"), digest)

	changed, again := d.DetectChange("Edital aberto")
	assert.False(t, changed)
	assert.Equal(t, digest, again)
}

func TestChangeDetectorDetectsTransition(t *testing.T) {
	t.Parallel()

	d := NewChangeDetector(sha256.New())
	_, first := d.DetectChange("Edital aberto")

	changed, second := d.DetectChange("Resultado Final publicado")
	assert.True(t, changed)
	assert.NotEqual(t, first, second)

	baseline, ok := d.Baseline()
	require.True(t, ok)
	assert.Equal(t, second, baseline)

	changed, _ = d.DetectChange("Resultado Final publicado")
	assert.False(t, changed)
}

func TestChangeDetectorEmptyTextIsAValidObservation(t *testing.T) {
	t.Parallel()

	d := NewChangeDetector(sha256.New())
	changed, _ := d.DetectChange("")
	assert.False(t, changed)
	changed, _ = d.DetectChange("x")
	assert.True(t, changed)
}

// Reset nulls the baseline, so the following observation re-baselines
// silently instead of reporting a change.
func TestChangeDetectorResetRebaselinesWithoutChange(t *testing.T) {
	t.Parallel()

	d := NewChangeDetector(sha256.New())
	d.DetectChange("A")
	d.Reset()

	_, ok := d.Baseline()
	require.False(t, ok)

	changed, digest := d.DetectChange("B")
	assert.False(t, changed, "reset does not force the next cycle to report a change")
	baseline, ok := d.Baseline()
	require.True(t, ok)
	assert.Equal(t, digest, baseline)
}
