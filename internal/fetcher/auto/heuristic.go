// Package autofetcher fetches pages statically and falls back to a headless
// browser when the static body looks like a client-rendered shell.
package autofetcher

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/JakeFAU/edital-monitor/internal/monitor"
)

// DefaultBodyThreshold is the size below which script-heavy bodies are
// treated as unrendered.
const DefaultBodyThreshold = 2048

// Heuristic decides whether a static fetch needs a headless re-render.
type Heuristic struct {
	BodyThreshold int
}

// NewHeuristic returns a Heuristic; a non-positive threshold uses DefaultBodyThreshold.
func NewHeuristic(threshold int) *Heuristic {
	if threshold <= 0 {
		threshold = DefaultBodyThreshold
	}
	return &Heuristic{BodyThreshold: threshold}
}

var spaMarkers = [][]byte{
	[]byte("__next"),
	[]byte(`id="root"`),
	[]byte(`id="app"`),
	[]byte("data-reactroot"),
	[]byte("ng-version"),
}

// ShouldPromote reports whether doc looks like a shell that only a browser
// can fill in.
func (h *Heuristic) ShouldPromote(doc monitor.RawDocument) bool {
	if doc.StatusCode != http.StatusOK {
		return false
	}
	body := doc.Body
	if len(bytes.TrimSpace(body)) == 0 {
		return true
	}
	if len(body) < h.BodyThreshold && scriptHeavy(body) {
		return true
	}
	for _, marker := range spaMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return false
}

// scriptHeavy reports whether script elements cover at least a quarter of body.
func scriptHeavy(body []byte) bool {
	lower := strings.ToLower(string(body))
	total := len(lower)
	if total == 0 {
		return false
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	covered := 0
	pos := 0
	for {
		rel := strings.Index(lower[pos:], openTag)
		if rel == -1 {
			break
		}
		start := pos + rel
		tagEnd := strings.IndexByte(lower[start:], '>')
		if tagEnd == -1 {
			// Unterminated tag swallows the rest of the document.
			covered += total - start
			break
		}
		contentStart := start + tagEnd + 1
		end := total
		if relEnd := strings.Index(lower[contentStart:], closeTag); relEnd != -1 {
			end = contentStart + relEnd + len(closeTag)
		}
		covered += end - start
		pos = end
	}
	return covered*100/total >= 25
}
