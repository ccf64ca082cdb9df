// Package cdpengine implements engine.Engine on a Chromium instance driven
// over the DevTools protocol. Each page is one browser tab.
package cdpengine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/dgnsrekt/pulse/internal/engine"
)

// Engine owns the browser connection and every tab it created.
type Engine struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	controlID     target.ID

	done      chan struct{}
	closeOnce sync.Once

	mu    sync.Mutex
	pages map[target.ID]*Page
}

var _ engine.Engine = (*Engine)(nil)

// Connect attaches to the browser at cdpURL (http://host:port). The tab
// chromedp opens for the browser connection stays open as the control tab;
// when it or the connection goes away, Done is closed.
func Connect(ctx context.Context, cdpURL string) (*Engine, error) {
	slog.Info("connecting to chromium", "url", cdpURL)
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), cdpURL)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	e := &Engine{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		done:          make(chan struct{}),
		pages:         make(map[target.ID]*Page),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- chromedp.Run(browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
			return target.SetDiscoverTargets(true).Do(e.browserExec(ctx))
		}))
	}()
	select {
	case err := <-errCh:
		if err != nil {
			browserCancel()
			allocCancel()
			return nil, fmt.Errorf("connect to browser: %w", err)
		}
	case <-ctx.Done():
		browserCancel()
		allocCancel()
		return nil, ctx.Err()
	}

	if c := chromedp.FromContext(browserCtx); c != nil && c.Target != nil {
		e.controlID = c.Target.TargetID
	}
	chromedp.ListenBrowser(browserCtx, e.onBrowserEvent)
	go e.watch()

	slog.Info("connected to chromium", "control_target", e.controlID)
	return e, nil
}

func (e *Engine) browserExec(ctx context.Context) context.Context {
	return cdp.WithExecutor(ctx, chromedp.FromContext(e.browserCtx).Browser)
}

func (e *Engine) watch() {
	var lost <-chan struct{}
	if c := chromedp.FromContext(e.browserCtx); c != nil && c.Browser != nil {
		lost = c.Browser.LostConnection
	}
	select {
	case <-lost:
		slog.Warn("browser connection lost")
	case <-e.browserCtx.Done():
	case <-e.done:
		return
	}
	e.markDone()
}

func (e *Engine) markDone() {
	e.closeOnce.Do(func() { close(e.done) })
}

// onBrowserEvent runs on chromedp's event loop and must not block.
func (e *Engine) onBrowserEvent(ev any) {
	switch ev := ev.(type) {
	case *target.EventTargetInfoChanged:
		info := ev.TargetInfo
		if info == nil {
			return
		}
		e.mu.Lock()
		p := e.pages[info.TargetID]
		e.mu.Unlock()
		if p != nil {
			p.push(engine.PageEvent{Kind: engine.PageTitleChanged, URL: info.URL, Title: info.Title})
		}
	case *target.EventTargetDestroyed:
		if ev.TargetID == e.controlID && e.controlID != "" {
			slog.Info("control tab closed")
			go e.markDone()
		}
	}
}

// NewPage opens a background about:blank tab.
func (e *Engine) NewPage(ctx context.Context) (engine.Page, error) {
	select {
	case <-e.done:
		return nil, fmt.Errorf("browser is gone")
	default:
	}

	id, err := target.CreateTarget("about:blank").WithBackground(true).Do(e.browserExec(ctx))
	if err != nil {
		return nil, fmt.Errorf("create target: %w", err)
	}

	pageCtx, cancel := chromedp.NewContext(e.browserCtx, chromedp.WithTargetID(id))
	p := newPage(id, pageCtx, cancel, e.forget)
	chromedp.ListenTarget(pageCtx, p.onTargetEvent)
	if err := p.attach(ctx); err != nil {
		p.detach()
		return nil, fmt.Errorf("attach target: %w", err)
	}

	e.mu.Lock()
	e.pages[id] = p
	e.mu.Unlock()

	slog.Debug("tab created", "target_id", id)
	return p, nil
}

func (e *Engine) forget(id target.ID) {
	e.mu.Lock()
	delete(e.pages, id)
	e.mu.Unlock()
}

// Done is closed when the browser connection or control tab goes away.
func (e *Engine) Done() <-chan struct{} { return e.done }

// Close detaches from the browser without closing it.
func (e *Engine) Close() error {
	e.mu.Lock()
	pages := make([]*Page, 0, len(e.pages))
	for _, p := range e.pages {
		pages = append(pages, p)
	}
	e.mu.Unlock()
	for _, p := range pages {
		p.detach()
	}

	e.markDone()
	e.browserCancel()
	e.allocCancel()
	slog.Info("cdp engine closed")
	return nil
}
