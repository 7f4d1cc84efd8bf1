package headless

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"go.uber.org/zap"
)

func TestNewChromedpValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewChromedp(Config{MaxParallel: -1}, nil); err == nil {
		t.Fatal("expected error for negative max parallel")
	}
	if _, err := NewChromedp(Config{IdleMaxInflight: -1}, nil); err == nil {
		t.Fatal("expected error for negative idle inflight")
	}
	renderer, err := NewChromedp(Config{MaxParallel: 2}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer renderer.Close()
	if cap(renderer.limiter) != 2 {
		t.Fatalf("expected limiter capacity 2, got %d", cap(renderer.limiter))
	}
	if renderer.cfg.Selector != "h1" {
		t.Fatalf("expected default selector h1, got %q", renderer.cfg.Selector)
	}
}

func TestRendererDefaults(t *testing.T) {
	t.Parallel()

	renderer := &Renderer{}
	if got := renderer.navTimeout(); got != 30*time.Second {
		t.Fatalf("expected default nav timeout, got %v", got)
	}
	if got := renderer.idleWindow(); got != 500*time.Millisecond {
		t.Fatalf("expected default idle window, got %v", got)
	}
	renderer.cfg.NavigationTimeout = time.Second
	renderer.cfg.IdleWindow = 100 * time.Millisecond
	if renderer.navTimeout() != time.Second || renderer.idleWindow() != 100*time.Millisecond {
		t.Fatal("expected overrides to be used")
	}
}

func TestSelectorTextScriptQuotesSelector(t *testing.T) {
	t.Parallel()

	script := selectorTextScript(`a[title="x"]`)
	if !strings.Contains(script, `document.querySelector("a[title=\"x\"]")`) {
		t.Fatalf("selector not safely quoted: %s", script)
	}
	if !strings.Contains(script, "innerText.trim()") {
		t.Fatalf("expected innerText read: %s", script)
	}
}

type fakeNow struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeNow) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeNow) advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func TestIdleTrackerCountsInflightRequests(t *testing.T) {
	t.Parallel()

	clock := &fakeNow{t: time.Unix(0, 0)}
	tracker := newIdleTracker(clock.now, 1)

	clock.advance(time.Second)
	if got := tracker.quietFor(); got != time.Second {
		t.Fatalf("expected idle since creation, got %v", got)
	}

	tracker.captureEvent(&network.EventRequestWillBeSent{RequestID: "a"})
	tracker.captureEvent(&network.EventRequestWillBeSent{RequestID: "a"}) // redirect
	if got := tracker.quietFor(); got != time.Second {
		t.Fatalf("one request is tolerated, got %v", got)
	}

	tracker.captureEvent(&network.EventRequestWillBeSent{RequestID: "b"})
	if got := tracker.quietFor(); got != 0 {
		t.Fatalf("expected busy network, got %v", got)
	}

	clock.advance(200 * time.Millisecond)
	tracker.captureEvent(&network.EventLoadingFailed{RequestID: "b"})
	clock.advance(300 * time.Millisecond)
	if got := tracker.quietFor(); got != 300*time.Millisecond {
		t.Fatalf("expected quiet for 300ms, got %v", got)
	}

	tracker.captureEvent(&network.EventLoadingFinished{RequestID: "a"})
	tracker.captureEvent(&network.EventLoadingFinished{RequestID: "unknown"})
	if got := tracker.quietFor(); got != 300*time.Millisecond {
		t.Fatalf("dropping below the threshold must not restart the window, got %v", got)
	}
}

func TestWaitNetworkIdleIsBounded(t *testing.T) {
	t.Parallel()

	tracker := newIdleTracker(time.Now, 0)
	tracker.captureEvent(&network.EventRequestWillBeSent{RequestID: "stuck"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := waitNetworkIdle(tracker, 20*time.Millisecond)(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("wait was not bounded: %v", time.Since(start))
	}
}

func TestWaitNetworkIdleReturnsWhenQuiet(t *testing.T) {
	t.Parallel()

	tracker := newIdleTracker(time.Now, 0)
	tracker.captureEvent(&network.EventRequestWillBeSent{RequestID: "doc"})
	go func() {
		time.Sleep(20 * time.Millisecond)
		tracker.captureEvent(&network.EventLoadingFinished{RequestID: "doc"})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := waitNetworkIdle(tracker, 30*time.Millisecond)(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAcquireHonorsContext(t *testing.T) {
	t.Parallel()

	renderer := &Renderer{limiter: make(chan struct{}, 1)}
	if err := renderer.acquire(context.Background()); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := renderer.acquire(ctx); err == nil {
		t.Fatal("expected canceled acquire to fail")
	}
	renderer.release()
	if err := renderer.acquire(context.Background()); err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
}

func TestNoopRendererError(t *testing.T) {
	t.Parallel()

	if _, err := NewNoop().RenderText(context.Background(), "https://example.com"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

func TestChromedpRenderer_RenderText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<!doctype html><html><body><h1>static</h1>`+
			`<script>document.querySelector('h1').innerText = 'rendered heading';</script></body></html>`)
	}))
	defer srv.Close()

	renderer, err := NewChromedp(Config{
		MaxParallel:       1,
		NavigationTimeout: 10 * time.Second,
		IdleWindow:        100 * time.Millisecond,
		IdleMaxInflight:   0,
		NoSandbox:         true,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer renderer.Close()

	text, err := renderer.RenderText(context.Background(), srv.URL)
	if err != nil {
		t.Skipf("chromedp unavailable: %v", err)
	}
	if text != "rendered heading" {
		t.Fatalf("expected rendered heading, got %q", text)
	}
}
