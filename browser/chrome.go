/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// ChromeLauncher starts Chrome through chromedp. When RemoteURL is set it
// attaches to an already running browser instead of spawning one.
type ChromeLauncher struct {
	ExecPath  string
	RemoteURL string
	Headless  bool
	Width     int
	Height    int
	Logger    *zap.Logger
}

func (l *ChromeLauncher) Launch(ctx context.Context) (Browser, error) {
	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)

	// The browser lives until Close, not until the launching request ends.
	base := context.WithoutCancel(ctx)

	if l.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(base, l.RemoteURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", l.Headless),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-setuid-sandbox", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.WindowSize(l.width(), l.height()),
		)
		if l.ExecPath != "" {
			opts = append(opts, chromedp.ExecPath(l.ExecPath))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(base, opts...)
	}

	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Sugar().Debugf),
		chromedp.WithErrorf(logger.Sugar().Warnf),
	)

	b := &chromeBrowser{
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
	}

	// The first Run on a chromedp context starts the process and the initial
	// tab. It must see the browser context itself: a derived context with a
	// deadline would bound the browser's lifetime. Cancelling ctx while the
	// start is pending tears the allocator down instead.
	stop := context.AfterFunc(ctx, allocCancel)
	err := chromedp.Run(b.ctx)
	if !stop() {
		_ = b.Close()
		return nil, fmt.Errorf("start chrome: %w", context.Cause(ctx))
	}
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	return b, nil
}

func (l *ChromeLauncher) width() int {
	if l.Width <= 0 {
		return 1280
	}
	return l.Width
}

func (l *ChromeLauncher) height() int {
	if l.Height <= 0 {
		return 720
	}
	return l.Height
}

type chromeBrowser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc

	mu     sync.Mutex
	opened bool
	tabs   []context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

// NewPage opens a tab. The first call reuses the tab chromedp created with
// the browser.
func (b *chromeBrowser) NewPage(ctx context.Context) (Page, error) {
	b.mu.Lock()
	tabCtx, extra := b.ctx, b.opened
	if extra {
		var cancel context.CancelFunc
		tabCtx, cancel = chromedp.NewContext(b.ctx)
		b.tabs = append(b.tabs, cancel)
	}
	b.opened = true
	b.mu.Unlock()

	if extra {
		if err := chromedp.Run(tabCtx); err != nil {
			return nil, fmt.Errorf("open tab: %w", err)
		}
	}

	p := &chromePage{ctx: tabCtx, browser: b}
	if err := p.run(ctx, page.SetLifecycleEventsEnabled(true)); err != nil {
		return nil, fmt.Errorf("enable lifecycle events: %w", err)
	}

	return p, nil
}

// Close shuts the browser down. Only the first call does any work; later
// calls return the same result.
func (b *chromeBrowser) Close() error {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		tabs := b.tabs
		b.tabs = nil
		b.mu.Unlock()

		for _, cancel := range tabs {
			cancel()
		}

		b.closeErr = chromedp.Cancel(b.ctx)
		b.cancel()
		b.allocCancel()
	})

	return b.closeErr
}

// run executes actions on target, aborting when ctx is done. chromedp
// needs a context derived from the target, so the caller's deadline and
// cancellation are forwarded onto a child of it.
func (b *chromeBrowser) run(ctx context.Context, target context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(target)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	return err
}

type chromePage struct {
	ctx     context.Context
	browser *chromeBrowser
}

func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	return p.browser.run(ctx, p.ctx, actions...)
}

// Navigate loads url and waits for the networkIdle lifecycle event of the
// new document.
func (p *chromePage) Navigate(ctx context.Context, url string) error {
	var mainFrame cdp.FrameID
	if err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}
		mainFrame = tree.Frame.ID
		return nil
	})); err != nil {
		return fmt.Errorf("frame tree: %w", err)
	}

	listenCtx, stopListening := context.WithCancel(p.ctx)
	defer stopListening()

	idle := make(chan struct{}, 1)
	chromedp.ListenTarget(listenCtx, func(ev any) {
		if mainFrameIdle(ev, mainFrame) {
			select {
			case idle <- struct{}{}:
			default:
			}
		}
	})

	if err := p.run(ctx, chromedp.Navigate(url)); err != nil {
		return err
	}

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrNetworkIdle, ctx.Err())
	}
}

// mainFrameIdle reports whether ev is the networkIdle lifecycle event of
// the top-level frame. Iframes reach networkIdle on their own schedule.
func mainFrameIdle(ev any, mainFrame cdp.FrameID) bool {
	e, ok := ev.(*page.EventLifecycleEvent)
	return ok && e.Name == "networkIdle" && e.FrameID == mainFrame
}

const pruneScript = `(function(selectors) {
	for (const selector of selectors) {
		const element = document.querySelector(selector);
		if (element) {
			element.remove();
		}
	}
	return true;
})(%s)`

func (p *chromePage) Prune(ctx context.Context, selectors []string) error {
	encoded, err := json.Marshal(selectors)
	if err != nil {
		return err
	}

	var ok bool
	return p.run(ctx, chromedp.Evaluate(fmt.Sprintf(pruneScript, encoded), &ok))
}

func (p *chromePage) WaitScene(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (p *chromePage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}
