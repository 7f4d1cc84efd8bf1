package grounding

import "context"

// DocumentFetcher retrieves the raw markup of a page.
type DocumentFetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// MarkupExtractor pulls the designated text out of raw markup. It returns an
// empty string when the element is absent.
type MarkupExtractor interface {
	ExtractText(document []byte) (string, error)
}

// Renderer loads a page in a headless browser, waits for the network to
// settle, and returns the designated element's text from the rendered DOM.
// It returns an empty string when the element is absent.
type Renderer interface {
	RenderText(ctx context.Context, rawURL string) (string, error)
}

// Throttle delays outbound requests to a host. Wait returns an error only when
// ctx ends first.
type Throttle interface {
	Wait(ctx context.Context, rawURL string) error
}

// SourceExtractor produces a SourceResult for one URL. Implementations must
// not panic or return partial results; failures are encoded in the result.
type SourceExtractor interface {
	Extract(ctx context.Context, rawURL string) SourceResult
}
