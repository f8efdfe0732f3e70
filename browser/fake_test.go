package browser

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var errTransport = errors.New("net::ERR_CONNECTION_RESET")

// fakePage scripts the outcome of each call by URL.
type fakePage struct {
	mu sync.Mutex

	// navFailures maps a URL to the number of times Navigate fails on it
	// before succeeding. A negative count fails forever.
	navFailures map[string]int
	// hangNavigate makes Navigate block until ctx is done.
	hangNavigate bool
	// sceneMissing makes WaitScene block until ctx is done.
	sceneMissing bool
	screenshotErr error

	navigations []string
	pruned      [][]string
	current     string
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	p.navigations = append(p.navigations, url)
	hang := p.hangNavigate
	remaining, scripted := p.navFailures[url]
	if scripted && remaining != 0 {
		if remaining > 0 {
			p.navFailures[url] = remaining - 1
		}
		p.mu.Unlock()
		return errTransport
	}
	p.current = url
	p.mu.Unlock()

	if hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (p *fakePage) Prune(_ context.Context, selectors []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pruned = append(p.pruned, selectors)
	return nil
}

func (p *fakePage) WaitScene(ctx context.Context, _ string) error {
	if p.sceneMissing {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (p *fakePage) Screenshot(context.Context) ([]byte, error) {
	if p.screenshotErr != nil {
		return nil, p.screenshotErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return []byte("png:" + p.current), nil
}

func (p *fakePage) navigationCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.navigations)
}

type fakeBrowser struct {
	page     *fakePage
	pageErr  error
	closeErr error
	closes   atomic.Int32
}

func (b *fakeBrowser) NewPage(context.Context) (Page, error) {
	if b.pageErr != nil {
		return nil, b.pageErr
	}
	return b.page, nil
}

func (b *fakeBrowser) Close() error {
	b.closes.Add(1)
	return b.closeErr
}

type fakeLauncher struct {
	browser   *fakeBrowser
	launchErr error
	launches  atomic.Int32
}

func (l *fakeLauncher) Launch(context.Context) (Browser, error) {
	l.launches.Add(1)
	if l.launchErr != nil {
		return nil, l.launchErr
	}
	return l.browser, nil
}
