package grounding

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Aggregator drives a SourceExtractor over an ordered URL list.
type Aggregator struct {
	extractor   SourceExtractor
	concurrency int
	logger      *zap.Logger
}

// NewAggregator builds an Aggregator. concurrency caps the number of URLs
// extracted at once; values <= 0 mean one goroutine per URL.
func NewAggregator(extractor SourceExtractor, concurrency int, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		extractor:   extractor,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Aggregate extracts every URL and returns one result per URL in input order.
// A failing URL never stops the others.
func (a *Aggregator) Aggregate(ctx context.Context, urls []string) []SourceResult {
	results := make([]SourceResult, len(urls))
	if len(urls) == 0 {
		return results
	}

	start := time.Now()
	var g errgroup.Group
	if a.concurrency > 0 {
		g.SetLimit(a.concurrency)
	}
	for i, rawURL := range urls {
		g.Go(func() error {
			results[i] = a.extractor.Extract(ctx, rawURL)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
		}
	}
	a.logger.Info("sources aggregated",
		zap.Int("sources", len(urls)),
		zap.Int("failed", failed),
		zap.Duration("duration", time.Since(start)),
	)
	return results
}
