// Package headless renders pages in headless Chrome and reads text from the
// resulting DOM.
package headless

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Config controls the behavior of the headless renderer.
type Config struct {
	MaxParallel       int
	UserAgent         string
	Selector          string
	NavigationTimeout time.Duration
	// IdleWindow is how long the network must stay quiet before the DOM is read.
	IdleWindow time.Duration
	// IdleMaxInflight is the number of requests tolerated while "quiet".
	IdleMaxInflight int
	NoSandbox       bool
}

// Renderer implements grounding.Renderer using chromedp. Every render runs in
// its own browser, which is torn down before RenderText returns.
type Renderer struct {
	cfg         Config
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
	logger      *zap.Logger
}

// NewChromedp creates a renderer backed by chromedp. No browser is started
// until the first render.
func NewChromedp(cfg Config, logger *zap.Logger) (*Renderer, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.IdleMaxInflight < 0 {
		return nil, fmt.Errorf("idle max inflight must be >= 0")
	}
	if strings.TrimSpace(cfg.Selector) == "" {
		cfg.Selector = "h1"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.NoSandbox {
		opts = append(opts,
			chromedp.NoSandbox,
			chromedp.Flag("disable-setuid-sandbox", true),
		)
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Renderer{
		cfg:         cfg,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
		logger:      logger,
	}, nil
}

// Close cancels the allocator context, killing any browser still running.
func (r *Renderer) Close() {
	r.allocCancel()
}

// RenderText navigates to rawURL, waits for the network to go idle, and
// returns the trimmed innerText of the first element matching the selector.
// It returns "" when no element matches.
func (r *Renderer) RenderText(ctx context.Context, rawURL string) (string, error) {
	if err := r.acquire(ctx); err != nil {
		return "", err
	}
	defer r.release()

	session, closeSession := r.openSession(ctx)
	defer closeSession()

	tracker := newIdleTracker(time.Now, r.cfg.IdleMaxInflight)
	chromedp.ListenTarget(session, tracker.captureEvent)

	var text string
	actions := []chromedp.Action{
		r.networkSetupAction(),
		chromedp.Navigate(rawURL),
		waitNetworkIdle(tracker, r.idleWindow()),
		chromedp.Evaluate(selectorTextScript(r.cfg.Selector), &text),
	}
	start := time.Now()
	if err := chromedp.Run(session, actions...); err != nil {
		return "", fmt.Errorf("chromedp run: %w", err)
	}
	r.logger.Debug("page rendered",
		zap.String("url", rawURL),
		zap.Duration("duration", time.Since(start)),
	)
	return strings.TrimSpace(text), nil
}

// openSession starts a dedicated browser bounded by the navigation timeout.
// The returned func closes the browser and must be called on every path.
func (r *Renderer) openSession(ctx context.Context) (context.Context, func()) {
	browserCtx, browserCancel := chromedp.NewContext(r.allocator)
	sessionCtx, timeoutCancel := context.WithTimeout(browserCtx, r.navTimeout())
	stop := context.AfterFunc(ctx, timeoutCancel)
	return sessionCtx, func() {
		stop()
		timeoutCancel()
		if err := chromedp.Cancel(browserCtx); err != nil {
			r.logger.Debug("browser close", zap.Error(err))
		}
		browserCancel()
	}
}

func (r *Renderer) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if r.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(r.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func (r *Renderer) acquire(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	select {
	case r.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (r *Renderer) release() {
	if r.limiter == nil {
		return
	}
	select {
	case <-r.limiter:
	default:
	}
}

func (r *Renderer) navTimeout() time.Duration {
	if r.cfg.NavigationTimeout > 0 {
		return r.cfg.NavigationTimeout
	}
	return 30 * time.Second
}

func (r *Renderer) idleWindow() time.Duration {
	if r.cfg.IdleWindow > 0 {
		return r.cfg.IdleWindow
	}
	return 500 * time.Millisecond
}

func selectorTextScript(selector string) string {
	quoted, _ := json.Marshal(selector) // a string always marshals
	return fmt.Sprintf(
		`(() => { const el = document.querySelector(%s); return el ? el.innerText.trim() : ""; })()`,
		quoted,
	)
}

// waitNetworkIdle blocks until no more than the tracker's tolerated number of
// requests have been pending for a full window. The surrounding context
// bounds the wait.
func waitNetworkIdle(tracker *idleTracker, window time.Duration) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		poll := window / 5
		if poll < 10*time.Millisecond {
			poll = 10 * time.Millisecond
		}
		ticker := time.NewTicker(poll)
		defer ticker.Stop()
		for {
			if tracker.quietFor() >= window {
				return nil
			}
			select {
			case <-ctx.Done():
				return fmt.Errorf("wait for network idle: %w", ctx.Err())
			case <-ticker.C:
			}
		}
	}
}

// idleTracker counts in-flight network requests from CDP events.
type idleTracker struct {
	mu          sync.Mutex
	now         func() time.Time
	maxInflight int
	inflight    map[network.RequestID]struct{}
	// quietSince is zero while more than maxInflight requests are pending.
	quietSince time.Time
}

func newIdleTracker(now func() time.Time, maxInflight int) *idleTracker {
	return &idleTracker{
		now:         now,
		maxInflight: maxInflight,
		inflight:    make(map[network.RequestID]struct{}),
		quietSince:  now(),
	}
}

func (t *idleTracker) captureEvent(ev any) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		t.started(e.RequestID)
	case *network.EventLoadingFinished:
		t.finished(e.RequestID)
	case *network.EventLoadingFailed:
		t.finished(e.RequestID)
	}
}

func (t *idleTracker) started(id network.RequestID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.inflight[id]; ok {
		// Redirects reuse the request ID.
		return
	}
	t.inflight[id] = struct{}{}
	if len(t.inflight) > t.maxInflight {
		t.quietSince = time.Time{}
	}
}

func (t *idleTracker) finished(id network.RequestID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.inflight[id]; !ok {
		return
	}
	delete(t.inflight, id)
	if len(t.inflight) <= t.maxInflight && t.quietSince.IsZero() {
		t.quietSince = t.now()
	}
}

// quietFor reports how long the network has been idle, or 0 if it is busy.
func (t *idleTracker) quietFor() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.quietSince.IsZero() {
		return 0
	}
	return t.now().Sub(t.quietSince)
}
