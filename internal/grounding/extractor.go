package grounding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sourcechat/internal/metrics"
)

// ErrRendererUnavailable is returned by strategies that have no backend.
var ErrRendererUnavailable = errors.New("renderer not configured")

// ExtractorConfig bounds each strategy. A zero timeout leaves the bound to the
// strategy implementation.
type ExtractorConfig struct {
	StaticTimeout  time.Duration
	DynamicTimeout time.Duration
}

// Extractor runs the static and dynamic strategies for a URL.
type Extractor struct {
	fetcher  DocumentFetcher
	parser   MarkupExtractor
	renderer Renderer
	throttle Throttle
	cfg      ExtractorConfig
	logger   *zap.Logger
}

// NewExtractor builds an Extractor. renderer and throttle may be nil; a nil
// renderer makes every dynamic extraction fail.
func NewExtractor(
	fetcher DocumentFetcher,
	parser MarkupExtractor,
	renderer Renderer,
	throttle Throttle,
	cfg ExtractorConfig,
	logger *zap.Logger,
) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		fetcher:  fetcher,
		parser:   parser,
		renderer: renderer,
		throttle: throttle,
		cfg:      cfg,
		logger:   logger,
	}
}

// Extract runs both strategies concurrently and joins them into one result.
// It always returns; strategy failures become placeholder text.
func (e *Extractor) Extract(ctx context.Context, rawURL string) SourceResult {
	result := SourceResult{URL: rawURL}
	var wg sync.WaitGroup
	wg.Go(func() {
		text, err := e.run(ctx, StrategyStatic, rawURL, e.cfg.StaticTimeout, e.static)
		if err != nil {
			result.StaticText, result.StaticFailed = StaticFailed, true
			return
		}
		result.StaticText = orPlaceholder(text, StaticNotFound)
	})
	wg.Go(func() {
		text, err := e.run(ctx, StrategyDynamic, rawURL, e.cfg.DynamicTimeout, e.dynamic)
		if err != nil {
			result.DynamicText, result.DynamicFailed = DynamicFailed, true
			return
		}
		result.DynamicText = orPlaceholder(text, DynamicNotFound)
	})
	wg.Wait()
	return result
}

type strategyFunc func(ctx context.Context, rawURL string) (string, error)

// run isolates one strategy: it applies the timeout, converts panics into
// errors, and records the outcome.
func (e *Extractor) run(
	ctx context.Context,
	strategy Strategy,
	rawURL string,
	timeout time.Duration,
	fn strategyFunc,
) (text string, err error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%s extraction panicked: %v", strategy, rec)
		}
		status := "ok"
		if err != nil {
			status = "failed"
			e.logger.Warn("extraction failed",
				zap.String("url", rawURL),
				zap.String("strategy", string(strategy)),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
		}
		metrics.ObserveExtraction(string(strategy), status, time.Since(start))
	}()

	if e.throttle != nil {
		if err := e.throttle.Wait(ctx, rawURL); err != nil {
			return "", err
		}
	}
	return fn(ctx, rawURL)
}

func (e *Extractor) static(ctx context.Context, rawURL string) (string, error) {
	if e.fetcher == nil || e.parser == nil {
		return "", errors.New("static fetcher not configured")
	}
	doc, err := e.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return "", fmt.Errorf("fetch document: %w", err)
	}
	text, err := e.parser.ExtractText(doc)
	if err != nil {
		return "", fmt.Errorf("parse document: %w", err)
	}
	return text, nil
}

func (e *Extractor) dynamic(ctx context.Context, rawURL string) (string, error) {
	if e.renderer == nil {
		return "", ErrRendererUnavailable
	}
	text, err := e.renderer.RenderText(ctx, rawURL)
	if err != nil {
		return "", fmt.Errorf("render page: %w", err)
	}
	return text, nil
}
