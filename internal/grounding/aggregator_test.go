package grounding

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubExtractor echoes the URL back, sleeping longer for earlier URLs so that
// completion order is the reverse of input order.
type stubExtractor struct {
	total   int
	failing map[string]bool
	active  atomic.Int32
	peak    atomic.Int32
}

func (s *stubExtractor) Extract(_ context.Context, rawURL string) SourceResult {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	var idx int
	_, _ = fmt.Sscanf(rawURL, "https://example.com/%d", &idx)
	time.Sleep(time.Duration(s.total-idx) * 5 * time.Millisecond)
	if s.failing[rawURL] {
		return SourceResult{
			URL:           rawURL,
			StaticText:    StaticFailed,
			DynamicText:   DynamicFailed,
			StaticFailed:  true,
			DynamicFailed: true,
		}
	}
	return SourceResult{URL: rawURL, StaticText: "s" + rawURL, DynamicText: "d" + rawURL}
}

func makeURLs(n int) []string {
	urls := make([]string, n)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://example.com/%d", i)
	}
	return urls
}

func TestAggregator_PreservesInputOrder(t *testing.T) {
	t.Parallel()

	urls := makeURLs(6)
	agg := NewAggregator(&stubExtractor{total: len(urls)}, 0, zap.NewNop())

	results := agg.Aggregate(context.Background(), urls)

	require.Len(t, results, len(urls))
	for i, r := range results {
		require.Equal(t, urls[i], r.URL)
	}
}

func TestAggregator_IsolatesFailures(t *testing.T) {
	t.Parallel()

	urls := makeURLs(4)
	stub := &stubExtractor{total: len(urls), failing: map[string]bool{urls[1]: true}}
	agg := NewAggregator(stub, 2, zap.NewNop())

	results := agg.Aggregate(context.Background(), urls)

	require.Len(t, results, 4)
	require.True(t, results[1].Failed())
	require.Equal(t, StaticFailed, results[1].StaticText)
	require.Equal(t, DynamicFailed, results[1].DynamicText)
	for _, i := range []int{0, 2, 3} {
		require.False(t, results[i].Failed())
		require.Equal(t, "s"+urls[i], results[i].StaticText)
	}
}

func TestAggregator_RespectsConcurrencyLimit(t *testing.T) {
	t.Parallel()

	urls := makeURLs(8)
	stub := &stubExtractor{total: len(urls)}
	agg := NewAggregator(stub, 2, zap.NewNop())

	_ = agg.Aggregate(context.Background(), urls)

	require.LessOrEqual(t, stub.peak.Load(), int32(2))
}

func TestAggregator_EmptyInput(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(&stubExtractor{}, 4, nil)

	results := agg.Aggregate(context.Background(), nil)

	require.Empty(t, results)
	require.Equal(t, "", RenderContext(results))
}

func TestAggregator_WithRealExtractorMixedOutcomes(t *testing.T) {
	t.Parallel()

	good, bad := "https://good.example", "https://bad.example"
	fetcher := &fakeFetcher{
		docs: map[string]string{good: "Good"},
		errs: map[string]error{bad: errors.New("503 Service Unavailable")},
	}
	renderer := &fakeRenderer{
		texts: map[string]string{good: "Good"},
		errs:  map[string]error{bad: errors.New("navigation failed")},
	}
	ex := NewExtractor(fetcher, passthroughParser{}, renderer, nil, ExtractorConfig{}, zap.NewNop())
	agg := NewAggregator(ex, 4, zap.NewNop())

	results := agg.Aggregate(context.Background(), []string{bad, good, bad})

	require.Len(t, results, 3)
	require.True(t, results[0].Failed())
	require.False(t, results[1].Failed())
	require.True(t, results[2].Failed())
	require.Equal(t, "Good", results[1].StaticText)
}

func TestRenderContext(t *testing.T) {
	t.Parallel()

	results := []SourceResult{
		{URL: "https://example.com", StaticText: "Example Domain", DynamicText: "Example Domain"},
		{URL: "https://example.org", StaticText: StaticFailed, DynamicText: DynamicFailed, StaticFailed: true, DynamicFailed: true},
	}

	got := RenderContext(results)

	want := "Source 1: https://example.com\nStatic Content: \"Example Domain\"\nDynamic Content: \"Example Domain\"" +
		"\n\n" +
		"Source 2: https://example.org\nStatic Content: \"Failed to fetch static content.\"\nDynamic Content: \"Failed to fetch dynamic content.\""
	require.Equal(t, want, got)
}

func TestCitations(t *testing.T) {
	t.Parallel()

	results := []SourceResult{
		{URL: "https://b.example", StaticText: "B", DynamicText: DynamicNotFound},
		{URL: "https://a.example", StaticText: "A", DynamicText: "A"},
	}

	require.Equal(t, []Citation{
		{URL: "https://b.example", Content: "B / No dynamic content found."},
		{URL: "https://a.example", Content: "A / A"},
	}, Citations(results))
	require.Empty(t, Citations(nil))
}
