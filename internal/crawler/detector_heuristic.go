package crawler

import (
	"bytes"
	"context"

	"github.com/PuerkitoBio/goquery"
)

// jsShellMarkers are substrings that betray a client-rendered shell page.
var jsShellMarkers = [][]byte{
	[]byte("window.__initial_state__"),
	[]byte("id=\"__next\""),
	[]byte("id=\"app\""),
	[]byte("ng-app"),
}

// HeuristicDetector flags pages whose plain fetch is an empty JS shell.
type HeuristicDetector struct {
	minHTMLBytes int
}

// NewHeuristicDetector constructs a Detector with the configured threshold.
func NewHeuristicDetector(minBytes int) *HeuristicDetector {
	return &HeuristicDetector{minHTMLBytes: minBytes}
}

// NeedsJS inspects the page for signals that rendering is required.
func (d *HeuristicDetector) NeedsJS(_ context.Context, page Page) bool {
	if d == nil {
		return false
	}
	if d.minHTMLBytes > 0 && len(page.Body) < d.minHTMLBytes {
		return true
	}
	lower := bytes.ToLower(page.Body)
	marked := false
	for _, marker := range jsShellMarkers {
		if bytes.Contains(lower, marker) {
			marked = true
			break
		}
	}
	if !marked {
		return false
	}
	// Shell markers alone are common on fully rendered pages; require the
	// visible body to also be nearly empty.
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return true
	}
	text := bytes.TrimSpace([]byte(doc.Find("body").Text()))
	return len(text) < 200
}
