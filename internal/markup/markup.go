// Package markup extracts text from raw HTML documents with goquery.
package markup

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultSelector targets the page's top-level heading.
const DefaultSelector = "h1"

// HeadingExtractor returns the combined text of every element matching a CSS
// selector.
type HeadingExtractor struct {
	selector string
}

// NewHeadingExtractor builds an extractor for selector, defaulting to h1.
func NewHeadingExtractor(selector string) *HeadingExtractor {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		selector = DefaultSelector
	}
	return &HeadingExtractor{selector: selector}
}

// Selector reports the CSS selector in use.
func (h *HeadingExtractor) Selector() string {
	return h.selector
}

// ExtractText parses document and returns the trimmed text of all matches,
// or "" when nothing matches.
func (h *HeadingExtractor) ExtractText(document []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(document))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	return strings.TrimSpace(doc.Find(h.selector).Text()), nil
}
