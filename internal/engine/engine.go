// Package engine defines the content-layer boundary: the operations the
// session core needs from whatever renders a surface.
package engine

import (
	"context"
	"errors"
)

// ErrPageClosed is returned by operations on a page after Close.
var ErrPageClosed = errors.New("page closed")

// Engine creates isolated rendering contexts.
type Engine interface {
	// NewPage creates a blank page. The page is not shown until Show.
	NewPage(ctx context.Context) (Page, error)
	// Done is closed when the host window (browser) goes away.
	Done() <-chan struct{}
	Close() error
}

// Page is one rendering context backing a surface.
type Page interface {
	// Navigate begins loading url and returns without waiting for load.
	Navigate(ctx context.Context, url string) error
	Show(ctx context.Context) error
	Hide(ctx context.Context) error
	SetBounds(ctx context.Context, r Rect) error

	DispatchMouse(ctx context.Context, ev MouseEvent) error
	DispatchKey(ctx context.Context, ev KeyEvent) error
	// Evaluate runs a script expression and decodes its JSON result into out.
	Evaluate(ctx context.Context, expression string, out any) error

	// History reports whether back and forward navigation are available.
	History(ctx context.Context) (canBack, canForward bool, err error)
	GoBack(ctx context.Context) error
	GoForward(ctx context.Context) error

	// Screenshot returns the visible viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)

	// Subscribe registers fn for navigation and title events. Events for
	// one page are delivered in order. The returned func unsubscribes.
	Subscribe(fn func(PageEvent)) (unsubscribe func())

	Close(ctx context.Context) error
}

// Rect is a placement in window content coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Size is a width/height pair.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// PageEventKind distinguishes page notifications.
type PageEventKind int

const (
	PageNavigated PageEventKind = iota + 1
	PageTitleChanged
)

// PageEvent is a navigation-completed or title-changed notification.
type PageEvent struct {
	Kind  PageEventKind
	URL   string
	Title string
}

// MouseEventType mirrors the CDP mouse event types used for clicks.
type MouseEventType string

const (
	MousePressed  MouseEventType = "mousePressed"
	MouseReleased MouseEventType = "mouseReleased"
)

// MouseEvent is a synthesized pointer event in viewport coordinates.
type MouseEvent struct {
	Type       MouseEventType
	X          float64
	Y          float64
	Button     string
	ClickCount int
}

// KeyEventType mirrors the CDP key event types.
type KeyEventType string

const (
	KeyDown    KeyEventType = "keyDown"
	KeyRawDown KeyEventType = "rawKeyDown"
	KeyChar    KeyEventType = "char"
	KeyUp      KeyEventType = "keyUp"
)

// KeyEvent is a synthesized keyboard event.
type KeyEvent struct {
	Type           KeyEventType
	Key            string
	Code           string
	Text           string
	VirtualKeyCode int
}
