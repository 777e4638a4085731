package autofetcher

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/edital-monitor/internal/monitor"
)

// Detector decides when a static document must be re-rendered.
type Detector interface {
	ShouldPromote(doc monitor.RawDocument) bool
}

// Fetcher tries the static fetcher first and promotes to the headless one
// when the detector asks for it. A failed headless render falls back to the
// static document so a cycle still has something to hash.
type Fetcher struct {
	static   monitor.Fetcher
	headless monitor.Fetcher
	detector Detector
	logger   *zap.Logger
}

// New wires the two fetchers. A nil detector uses NewHeuristic(0).
func New(static, headless monitor.Fetcher, detector Detector, logger *zap.Logger) *Fetcher {
	if detector == nil {
		detector = NewHeuristic(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{static: static, headless: headless, detector: detector, logger: logger}
}

// Fetch implements monitor.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, url string) (monitor.RawDocument, error) {
	doc, err := f.static.Fetch(ctx, url)
	if err != nil {
		return monitor.RawDocument{}, err
	}
	if f.headless == nil || !f.detector.ShouldPromote(doc) {
		return doc, nil
	}
	f.logger.Debug("promoting fetch to headless", zap.String("url", url), zap.Int("bytes", len(doc.Body)))
	rendered, err := f.headless.Fetch(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return monitor.RawDocument{}, err
		}
		f.logger.Warn("headless render failed, using static body", zap.String("url", url), zap.Error(err))
		return doc, nil
	}
	return rendered, nil
}
