// Package enginetest provides an in-memory engine for tests.
package enginetest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dgnsrekt/pulse/internal/engine"
)

// ErrClosed is returned by operations on a closed FakePage.
var ErrClosed = engine.ErrPageClosed

// FakeEngine hands out FakePages and remembers them in creation order.
type FakeEngine struct {
	mu     sync.Mutex
	pages  []*FakePage
	done   chan struct{}
	once   sync.Once
	NewErr error
	OnPage func(*FakePage)
}

// NewFakeEngine returns an empty FakeEngine.
func NewFakeEngine() *FakeEngine {
	return &FakeEngine{done: make(chan struct{})}
}

func (e *FakeEngine) NewPage(context.Context) (engine.Page, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.NewErr != nil {
		return nil, e.NewErr
	}
	p := &FakePage{canBack: false}
	e.pages = append(e.pages, p)
	if e.OnPage != nil {
		e.OnPage(p)
	}
	return p, nil
}

func (e *FakeEngine) Done() <-chan struct{} { return e.done }

func (e *FakeEngine) Close() error {
	e.once.Do(func() { close(e.done) })
	return nil
}

// Pages returns the pages created so far.
func (e *FakeEngine) Pages() []*FakePage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*FakePage(nil), e.pages...)
}

// Page returns the i-th created page.
func (e *FakeEngine) Page(i int) *FakePage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pages[i]
}

// FakePage records every call made against it.
type FakePage struct {
	mu sync.Mutex

	Calls     []string
	Mouse     []engine.MouseEvent
	Keys      []engine.KeyEvent
	Scripts   []string
	Navigated []string
	Bounds    []engine.Rect
	Visible   bool
	Closed    bool

	// EvalFn, when set, produces the Evaluate result.
	EvalFn        func(expression string, out any) error
	ScreenshotPNG []byte
	ScreenshotErr error
	DispatchErr   error
	NavigateErr   error

	canBack    bool
	canForward bool
	subs       map[int]func(engine.PageEvent)
	nextSub    int
}

func (p *FakePage) record(call string) error {
	p.Calls = append(p.Calls, call)
	if p.Closed {
		return ErrClosed
	}
	return nil
}

func (p *FakePage) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Navigated = append(p.Navigated, url)
	if err := p.record("navigate " + url); err != nil {
		return err
	}
	return p.NavigateErr
}

func (p *FakePage) Show(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Visible = true
	return p.record("show")
}

func (p *FakePage) Hide(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Visible = false
	return p.record("hide")
}

func (p *FakePage) SetBounds(_ context.Context, r engine.Rect) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Bounds = append(p.Bounds, r)
	return p.record(fmt.Sprintf("bounds %d,%d %dx%d", r.X, r.Y, r.Width, r.Height))
}

func (p *FakePage) DispatchMouse(_ context.Context, ev engine.MouseEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.DispatchErr != nil {
		return p.DispatchErr
	}
	p.Mouse = append(p.Mouse, ev)
	return p.record("mouse " + string(ev.Type))
}

func (p *FakePage) DispatchKey(_ context.Context, ev engine.KeyEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.DispatchErr != nil {
		return p.DispatchErr
	}
	p.Keys = append(p.Keys, ev)
	return p.record("key " + string(ev.Type))
}

func (p *FakePage) Evaluate(_ context.Context, expression string, out any) error {
	p.mu.Lock()
	p.Scripts = append(p.Scripts, expression)
	err := p.record("eval")
	fn := p.EvalFn
	p.mu.Unlock()
	if err != nil {
		return err
	}
	if fn != nil {
		return fn(expression, out)
	}
	return nil
}

// SetHistory controls what History reports.
func (p *FakePage) SetHistory(back, forward bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.canBack, p.canForward = back, forward
}

func (p *FakePage) History(context.Context) (bool, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.canBack, p.canForward, p.record("history")
}

func (p *FakePage) GoBack(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.record("back")
}

func (p *FakePage) GoForward(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.record("forward")
}

func (p *FakePage) Screenshot(context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("screenshot"); err != nil {
		return nil, err
	}
	if p.ScreenshotErr != nil {
		return nil, p.ScreenshotErr
	}
	return p.ScreenshotPNG, nil
}

func (p *FakePage) Subscribe(fn func(engine.PageEvent)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.subs == nil {
		p.subs = make(map[int]func(engine.PageEvent))
	}
	p.nextSub++
	id := p.nextSub
	p.subs[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}

// Subscribers reports how many subscriptions are live.
func (p *FakePage) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

// Emit delivers ev synchronously to every subscriber.
func (p *FakePage) Emit(ev engine.PageEvent) {
	p.mu.Lock()
	fns := make([]func(engine.PageEvent), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (p *FakePage) Close(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	p.Calls = append(p.Calls, "close")
	return nil
}

// CallLog returns the recorded calls joined by "; ".
func (p *FakePage) CallLog() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.Join(p.Calls, "; ")
}

// KeyEvents returns a copy of the recorded key events.
func (p *FakePage) KeyEvents() []engine.KeyEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]engine.KeyEvent(nil), p.Keys...)
}

// MouseEvents returns a copy of the recorded mouse events.
func (p *FakePage) MouseEvents() []engine.MouseEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]engine.MouseEvent(nil), p.Mouse...)
}

// IsVisible reports the last Show/Hide state.
func (p *FakePage) IsVisible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Visible
}

// IsClosed reports whether Close was called.
func (p *FakePage) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Closed
}

// LastBounds returns the most recent SetBounds rect and whether any was set.
func (p *FakePage) LastBounds() (engine.Rect, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Bounds) == 0 {
		return engine.Rect{}, false
	}
	return p.Bounds[len(p.Bounds)-1], true
}

// BoundsCount returns how many times SetBounds was called.
func (p *FakePage) BoundsCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Bounds)
}
