package action

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/dgnsrekt/pulse/internal/engine"
)

// ErrNoActiveSurface is the failure reason when nothing is active.
const ErrNoActiveSurface = "no active surface"

const (
	extractTextJS = `document.body ? document.body.innerText : ""`
	scrollJSFmt   = `(window.scrollBy(0, %d), window.scrollY)`
)

// Resolver returns the page of the active surface at the moment of the
// call.
type Resolver func(ctx context.Context) (engine.Page, bool)

// Executor performs content-level commands on whatever surface is active
// when each command runs.
type Executor struct {
	resolve Resolver
	timeout time.Duration
}

// NewExecutor returns an Executor. A zero timeout disables the per-command
// deadline.
func NewExecutor(resolve Resolver, timeout time.Duration) *Executor {
	return &Executor{resolve: resolve, timeout: timeout}
}

// Execute runs cmd and reports the outcome. It never panics on content
// layer faults; those become failed Results.
func (e *Executor) Execute(ctx context.Context, cmd Command) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("action panicked", "action", cmd.Kind, "panic", r)
			res = Fail(fmt.Sprintf("%s failed: %v", cmd.Kind, r))
		}
	}()

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	page, ok := e.resolve(ctx)
	if !ok || page == nil {
		return Fail(ErrNoActiveSurface)
	}
	if err := cmd.Validate(); err != nil {
		return Fail(err.Error())
	}

	switch cmd.Kind {
	case KindClick:
		return wrap(cmd, click(ctx, page, cmd.X, cmd.Y))
	case KindType:
		return wrap(cmd, typeText(ctx, page, cmd.Text))
	case KindScroll:
		var y float64
		err := page.Evaluate(ctx, fmt.Sprintf(scrollJSFmt, cmd.ScrollDelta()), &y)
		return wrap(cmd, err)
	case KindSubmit:
		return wrap(cmd, pressEnter(ctx, page))
	case KindBack, KindForward:
		return wrap(cmd, traverse(ctx, page, cmd.Kind == KindBack))
	case KindExtractText:
		var text string
		if err := page.Evaluate(ctx, extractTextJS, &text); err != nil {
			return wrap(cmd, err)
		}
		return Ok(Truncate(text, MaxExtractChars))
	}
	return Fail(fmt.Sprintf("unrecognized command: %s", cmd.Kind))
}

func wrap(cmd Command, err error) Result {
	if err != nil {
		slog.Warn("action failed", "action", cmd.Kind, "error", err)
		return Fail(fmt.Sprintf("%s failed: %v", cmd.Kind, err))
	}
	return Ok("")
}

func click(ctx context.Context, page engine.Page, x, y float64) error {
	for _, typ := range []engine.MouseEventType{engine.MousePressed, engine.MouseReleased} {
		ev := engine.MouseEvent{Type: typ, X: x, Y: y, Button: "left", ClickCount: 1}
		if err := page.DispatchMouse(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func typeText(ctx context.Context, page engine.Page, text string) error {
	for _, r := range text {
		ch := string(r)
		events := []engine.KeyEvent{
			{Type: engine.KeyRawDown, Key: ch},
			{Type: engine.KeyChar, Key: ch, Text: ch},
			{Type: engine.KeyUp, Key: ch},
		}
		for _, ev := range events {
			if err := page.DispatchKey(ctx, ev); err != nil {
				return err
			}
		}
	}
	return nil
}

func pressEnter(ctx context.Context, page engine.Page) error {
	down := engine.KeyEvent{Type: engine.KeyDown, Key: "Enter", Code: "Enter", Text: "\r", VirtualKeyCode: 13}
	if err := page.DispatchKey(ctx, down); err != nil {
		return err
	}
	up := engine.KeyEvent{Type: engine.KeyUp, Key: "Enter", Code: "Enter", VirtualKeyCode: 13}
	return page.DispatchKey(ctx, up)
}

func traverse(ctx context.Context, page engine.Page, back bool) error {
	canBack, canForward, err := page.History(ctx)
	if err != nil {
		return err
	}
	switch {
	case back && canBack:
		return page.GoBack(ctx)
	case !back && canForward:
		return page.GoForward(ctx)
	}
	return nil
}

// Truncate shortens s to at most max characters.
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
