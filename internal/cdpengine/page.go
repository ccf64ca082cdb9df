package cdpengine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/dgnsrekt/pulse/internal/engine"
)

const eventBuffer = 64

// Page is one tab.
type Page struct {
	id     target.ID
	ctx    context.Context
	cancel context.CancelFunc
	forget func(target.ID)

	events    chan engine.PageEvent
	done      chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	subs    map[int]func(engine.PageEvent)
	nextSub int
}

var _ engine.Page = (*Page)(nil)

func newPage(id target.ID, ctx context.Context, cancel context.CancelFunc, forget func(target.ID)) *Page {
	p := &Page{
		id:     id,
		ctx:    ctx,
		cancel: cancel,
		forget: forget,
		events: make(chan engine.PageEvent, eventBuffer),
		done:   make(chan struct{}),
		subs:   make(map[int]func(engine.PageEvent)),
	}
	go p.pump()
	return p
}

func enableDomains() chromedp.Action {
	return chromedp.Tasks{page.Enable(), runtime.Enable()}
}

// onTargetEvent runs on chromedp's event loop and must not block.
func (p *Page) onTargetEvent(ev any) {
	switch ev := ev.(type) {
	case *page.EventFrameNavigated:
		if ev.Frame != nil && ev.Frame.ParentID == "" {
			p.push(engine.PageEvent{Kind: engine.PageNavigated, URL: ev.Frame.URL})
		}
	case *page.EventNavigatedWithinDocument:
		p.push(engine.PageEvent{Kind: engine.PageNavigated, URL: ev.URL})
	}
}

func (p *Page) push(ev engine.PageEvent) {
	select {
	case <-p.done:
		return
	default:
	}
	select {
	case p.events <- ev:
	default:
		slog.Warn("page event buffer full, dropping event", "target_id", p.id, "kind", ev.Kind)
	}
}

// pump delivers events in arrival order off the chromedp loop.
func (p *Page) pump() {
	for {
		select {
		case ev := <-p.events:
			p.mu.Lock()
			subs := make([]func(engine.PageEvent), 0, len(p.subs))
			for _, fn := range p.subs {
				subs = append(subs, fn)
			}
			p.mu.Unlock()
			for _, fn := range subs {
				fn(ev)
			}
		case <-p.done:
			return
		}
	}
}

func (p *Page) closed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// attach makes the first chromedp.Run for the tab. chromedp starts the tab's
// message loop on the context of that first call, so it must be the page's
// own context; ctx only bounds how long the caller waits.
func (p *Page) attach(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- chromedp.Run(p.ctx, enableDomains())
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run executes actions on an attached tab, bounded by both ctx and the tab's
// life. Cancelling the derived context stops only these actions.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	if p.closed() {
		return engine.ErrPageClosed
	}
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var res page.NavigateReturns
		if err := cdp.Execute(ctx, page.CommandNavigate, page.Navigate(url), &res); err != nil {
			return err
		}
		if res.ErrorText != "" {
			slog.Warn("navigation reported an error", "target_id", p.id, "url", url, "error", res.ErrorText)
		}
		return nil
	}))
}

// Show brings the tab to the front.
func (p *Page) Show(ctx context.Context) error {
	return p.run(ctx, page.BringToFront())
}

// Hide is a no-op: tabs in one window are mutually exclusive, so showing
// another tab hides this one.
func (p *Page) Hide(context.Context) error {
	if p.closed() {
		return engine.ErrPageClosed
	}
	return nil
}

// SetBounds sizes the tab's viewport. The offset is owned by the browser
// chrome above the tab.
func (p *Page) SetBounds(ctx context.Context, r engine.Rect) error {
	return p.run(ctx, emulation.SetDeviceMetricsOverride(int64(r.Width), int64(r.Height), 0, false))
}

func (p *Page) DispatchMouse(ctx context.Context, ev engine.MouseEvent) error {
	return p.run(ctx, mouseParams(ev))
}

func (p *Page) DispatchKey(ctx context.Context, ev engine.KeyEvent) error {
	return p.run(ctx, keyParams(ev))
}

func (p *Page) Evaluate(ctx context.Context, expression string, out any) error {
	if out == nil {
		var discard any
		out = &discard
	}
	return p.run(ctx, chromedp.Evaluate(expression, out, func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
		return ep.WithAwaitPromise(true)
	}))
}

func (p *Page) History(ctx context.Context) (bool, bool, error) {
	var idx int64
	var n int
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		cur, entries, err := page.GetNavigationHistory().Do(ctx)
		if err != nil {
			return err
		}
		idx, n = cur, len(entries)
		return nil
	}))
	if err != nil {
		return false, false, err
	}
	back, fwd := historyFlags(idx, n)
	return back, fwd, nil
}

func (p *Page) GoBack(ctx context.Context) error    { return p.traverse(ctx, -1) }
func (p *Page) GoForward(ctx context.Context) error { return p.traverse(ctx, 1) }

func (p *Page) traverse(ctx context.Context, step int64) error {
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		cur, entries, err := page.GetNavigationHistory().Do(ctx)
		if err != nil {
			return err
		}
		next := cur + step
		if next < 0 || next >= int64(len(entries)) {
			return fmt.Errorf("no history entry at offset %d", step)
		}
		return page.NavigateToHistoryEntry(entries[next].ID).Do(ctx)
	}))
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().WithFormat(page.CaptureScreenshotFormatPng).Do(ctx)
		return err
	}))
	return buf, err
}

func (p *Page) Subscribe(fn func(engine.PageEvent)) func() {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

// Close closes the tab. Later calls return ErrPageClosed.
func (p *Page) Close(ctx context.Context) error {
	if p.closed() {
		return engine.ErrPageClosed
	}
	err := p.run(ctx, page.Close())
	p.detach()
	if err != nil {
		return fmt.Errorf("close tab: %w", err)
	}
	return nil
}

// detach stops event delivery and releases the chromedp context.
func (p *Page) detach() {
	p.closeOnce.Do(func() {
		close(p.done)
		p.forget(p.id)
		p.cancel()
	})
}

func historyFlags(current int64, entries int) (back, forward bool) {
	return current > 0, current < int64(entries)-1
}

func mouseParams(ev engine.MouseEvent) *input.DispatchMouseEventParams {
	button := ev.Button
	if button == "" {
		button = "left"
	}
	return input.DispatchMouseEvent(input.MouseType(ev.Type), ev.X, ev.Y).
		WithButton(input.MouseButton(button)).
		WithClickCount(int64(ev.ClickCount))
}

func keyParams(ev engine.KeyEvent) *input.DispatchKeyEventParams {
	p := input.DispatchKeyEvent(input.KeyType(ev.Type))
	if ev.Key != "" {
		p = p.WithKey(ev.Key)
	}
	if ev.Code != "" {
		p = p.WithCode(ev.Code)
	}
	if ev.Text != "" {
		p = p.WithText(ev.Text).WithUnmodifiedText(ev.Text)
	}
	if ev.VirtualKeyCode != 0 {
		p = p.WithWindowsVirtualKeyCode(int64(ev.VirtualKeyCode)).
			WithNativeVirtualKeyCode(int64(ev.VirtualKeyCode))
	}
	return p
}
