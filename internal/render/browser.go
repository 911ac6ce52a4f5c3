package render

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/siteharvest/siteharvest/internal/metrics"
)

var errQuiesceTimeout = errors.New("network quiescence timeout")

// quietWindow is how long the network must stay silent before a page is
// considered quiescent.
const quietWindow = 500 * time.Millisecond

// Browser renders pages with headless Chrome via chromedp. One browser
// process is launched per run; each render gets its own tab.
type Browser struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	opts          Options
	logger        *zap.Logger
}

// NewBrowser launches the headless browser session.
func NewBrowser(opts Options, logger *zap.Logger) (*Browser, error) {
	execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.UserAgent(opts.UserAgent),
	)
	if !opts.VerifyTLS {
		execOpts = append(execOpts, chromedp.Flag("ignore-certificate-errors", true))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), execOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &Browser{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		opts:          opts,
		logger:        logger,
	}, nil
}

// Close tears down the browser and its allocator.
func (b *Browser) Close(context.Context) error {
	b.browserCancel()
	b.allocCancel()
	return nil
}

// Render navigates to rawURL in a fresh tab. It waits for the
// content-loaded milestone within the navigation timeout, then tries for
// network quiescence with a shorter budget; if quiescence never arrives the
// partial DOM is accepted and flagged as degraded. A failed navigation is
// retried exactly once with a commit-only wait.
func (b *Browser) Render(ctx context.Context, rawURL string) (Result, error) {
	res, err := b.renderOnce(ctx, rawURL)
	if err == nil {
		return res, nil
	}

	b.logger.Warn("Navigation failed, retrying with minimal wait",
		zap.String("url", rawURL), zap.Error(err))
	metrics.ObserveRenderRetry()

	res, retryErr := b.renderCommitted(ctx, rawURL)
	if retryErr != nil {
		return Result{}, fmt.Errorf("render retry: %w", retryErr)
	}
	return res, nil
}

func (b *Browser) renderOnce(parent context.Context, rawURL string) (Result, error) {
	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	defer cancelTab()
	stop := forwardCancel(parent, cancelTab)
	defer stop()

	tracker := newQuiescenceTracker()
	chromedp.ListenTarget(tabCtx, tracker.observe)

	navCtx, cancelNav := context.WithTimeout(tabCtx, b.opts.navTimeout())
	defer cancelNav()
	err := chromedp.Run(navCtx,
		network.Enable(),
		emulation.SetUserAgentOverride(b.opts.UserAgent),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return Result{}, fmt.Errorf("navigate: %w", err)
	}

	degraded := false
	if waitErr := tracker.waitQuiet(tabCtx, b.opts.quiesceTimeout(), quietWindow); waitErr != nil {
		// Degrade, don't fail: whatever HTML is present is still usable.
		b.logger.Debug("Network never reached quiescence, continuing with partial content",
			zap.String("url", rawURL), zap.Error(waitErr))
		degraded = true
		metrics.ObserveDegradedRender()
	}

	html, err := b.captureHTML(tabCtx)
	if err != nil {
		return Result{}, err
	}
	return Result{
		HTML:     html,
		Degraded: degraded,
		Suspect:  len(html) < suspectContentLength,
	}, nil
}

// renderCommitted is the most permissive attempt: navigation is considered
// done as soon as the request is committed, and whatever DOM exists is
// captured.
func (b *Browser) renderCommitted(parent context.Context, rawURL string) (Result, error) {
	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	defer cancelTab()
	stop := forwardCancel(parent, cancelTab)
	defer stop()

	runCtx, cancelRun := context.WithTimeout(tabCtx, b.opts.retryTimeout())
	defer cancelRun()

	var html string
	err := chromedp.Run(runCtx,
		emulation.SetUserAgentOverride(b.opts.UserAgent),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, _, errText, _, err := page.Navigate(rawURL).Do(ctx)
			if err != nil {
				return err
			}
			if errText != "" {
				return fmt.Errorf("navigation error: %s", errText)
			}
			return nil
		}),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return Result{}, fmt.Errorf("commit navigation: %w", err)
	}
	return Result{
		HTML:     html,
		Degraded: true,
		Suspect:  len(html) < suspectContentLength,
	}, nil
}

func (b *Browser) captureHTML(tabCtx context.Context) (string, error) {
	captureCtx, cancel := context.WithTimeout(tabCtx, 5*time.Second)
	defer cancel()
	var html string
	if err := chromedp.Run(captureCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("capture html: %w", err)
	}
	return html, nil
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// quiescenceTracker counts in-flight network requests observed on a tab so
// the renderer can wait for the network to go quiet.
type quiescenceTracker struct {
	mu       sync.Mutex
	inflight int
	lastSeen time.Time
}

func newQuiescenceTracker() *quiescenceTracker {
	return &quiescenceTracker{lastSeen: time.Now()}
}

func (t *quiescenceTracker) observe(ev any) {
	switch ev.(type) {
	case *network.EventRequestWillBeSent:
		t.mu.Lock()
		t.inflight++
		t.lastSeen = time.Now()
		t.mu.Unlock()
	case *network.EventLoadingFinished, *network.EventLoadingFailed:
		t.mu.Lock()
		if t.inflight > 0 {
			t.inflight--
		}
		t.lastSeen = time.Now()
		t.mu.Unlock()
	}
}

func (t *quiescenceTracker) quietSince(window time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inflight <= 0 && time.Since(t.lastSeen) >= window
}

// waitQuiet blocks until the network has been silent for window, the
// timeout elapses, or ctx is done. Timeout is reported as
// errQuiesceTimeout so callers can degrade instead of failing.
func (t *quiescenceTracker) waitQuiet(ctx context.Context, timeout, window time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if t.quietSince(window) {
			return nil
		}
		if time.Now().After(deadline) {
			return errQuiesceTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
