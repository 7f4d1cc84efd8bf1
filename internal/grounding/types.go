package grounding

import "strings"

// Placeholder texts recorded when a strategy finds nothing or fails.
const (
	StaticNotFound  = "No static content found."
	DynamicNotFound = "No dynamic content found."
	StaticFailed    = "Failed to fetch static content."
	DynamicFailed   = "Failed to fetch dynamic content."
)

// Strategy names an extraction strategy.
type Strategy string

const (
	// StrategyStatic parses the raw markup returned by a plain HTTP fetch.
	StrategyStatic Strategy = "static"
	// StrategyDynamic queries the DOM of a page rendered by a headless browser.
	StrategyDynamic Strategy = "dynamic"
)

// SourceResult is the outcome of extracting a single URL. It is created once
// per URL and never mutated afterwards.
type SourceResult struct {
	URL           string `json:"url"`
	StaticText    string `json:"staticText"`
	DynamicText   string `json:"dynamicText"`
	StaticFailed  bool   `json:"staticFailed"`
	DynamicFailed bool   `json:"dynamicFailed"`
}

// Failed reports whether either strategy failed for this source.
func (r SourceResult) Failed() bool {
	return r.StaticFailed || r.DynamicFailed
}

// Citation is the per-source reference returned to the caller.
type Citation struct {
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Citation renders the caller-facing citation for this source.
func (r SourceResult) Citation() Citation {
	return Citation{
		URL:     r.URL,
		Content: r.StaticText + " / " + r.DynamicText,
	}
}

// Citations maps results to citations, preserving order.
func Citations(results []SourceResult) []Citation {
	citations := make([]Citation, 0, len(results))
	for _, r := range results {
		citations = append(citations, r.Citation())
	}
	return citations
}

func orPlaceholder(text, placeholder string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return placeholder
	}
	return text
}
