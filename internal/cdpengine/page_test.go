package cdpengine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"

	"github.com/dgnsrekt/pulse/internal/engine"
)

func TestMouseParams(t *testing.T) {
	p := mouseParams(engine.MouseEvent{Type: engine.MousePressed, X: 10, Y: 20, ClickCount: 1})
	if string(p.Type) != "mousePressed" {
		t.Fatalf("Type = %q; want mousePressed", p.Type)
	}
	if p.X != 10 || p.Y != 20 {
		t.Fatalf("position = (%v,%v); want (10,20)", p.X, p.Y)
	}
	if string(p.Button) != "left" {
		t.Fatalf("Button = %q; want left", p.Button)
	}
	if p.ClickCount != 1 {
		t.Fatalf("ClickCount = %d; want 1", p.ClickCount)
	}
}

func TestKeyParams(t *testing.T) {
	p := keyParams(engine.KeyEvent{Type: engine.KeyDown, Key: "Enter", Code: "Enter", Text: "\r", VirtualKeyCode: 13})
	if string(p.Type) != "keyDown" || p.Key != "Enter" || p.Code != "Enter" {
		t.Fatalf("keyParams() = %+v; want Enter keyDown", p)
	}
	if p.Text != "\r" || p.WindowsVirtualKeyCode != 13 || p.NativeVirtualKeyCode != 13 {
		t.Fatalf("keyParams() text/vk = %q/%d/%d; want \\r/13/13", p.Text, p.WindowsVirtualKeyCode, p.NativeVirtualKeyCode)
	}

	up := keyParams(engine.KeyEvent{Type: engine.KeyUp, Key: "a"})
	if up.Text != "" || up.WindowsVirtualKeyCode != 0 {
		t.Fatalf("keyParams(keyUp) = %+v; want no text or key code", up)
	}
}

func TestHistoryFlags(t *testing.T) {
	cases := []struct {
		cur     int64
		n       int
		back    bool
		forward bool
	}{
		{0, 1, false, false},
		{0, 3, false, true},
		{1, 3, true, true},
		{2, 3, true, false},
	}
	for _, tc := range cases {
		back, fwd := historyFlags(tc.cur, tc.n)
		if back != tc.back || fwd != tc.forward {
			t.Fatalf("historyFlags(%d,%d) = %v,%v; want %v,%v", tc.cur, tc.n, back, fwd, tc.back, tc.forward)
		}
	}
}

func newDetachedPage(t *testing.T) (*Page, *[]target.ID) {
	t.Helper()
	var forgotten []target.ID
	ctx, cancel := context.WithCancel(context.Background())
	p := newPage("T1", ctx, cancel, func(id target.ID) { forgotten = append(forgotten, id) })
	return p, &forgotten
}

func TestPageEventsDeliveredInOrder(t *testing.T) {
	p, _ := newDetachedPage(t)
	defer p.detach()

	var mu sync.Mutex
	var got []string
	done := make(chan struct{})
	p.Subscribe(func(ev engine.PageEvent) {
		mu.Lock()
		got = append(got, ev.URL)
		n := len(got)
		mu.Unlock()
		if n == 3 {
			close(done)
		}
	})

	p.onTargetEvent(&page.EventFrameNavigated{Frame: &cdp.Frame{URL: "https://a.example/"}})
	p.onTargetEvent(&page.EventFrameNavigated{Frame: &cdp.Frame{URL: "https://ad.example/", ParentID: "F0"}})
	p.onTargetEvent(&page.EventNavigatedWithinDocument{URL: "https://a.example/#b"})
	p.push(engine.PageEvent{Kind: engine.PageTitleChanged, URL: "https://a.example/#b", Title: "A"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for events")
	}
	mu.Lock()
	defer mu.Unlock()
	want := []string{"https://a.example/", "https://a.example/#b", "https://a.example/#b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d url = %q; want %q", i, got[i], want[i])
		}
	}
}

func TestDetachedPageRejectsOperations(t *testing.T) {
	p, forgotten := newDetachedPage(t)
	p.detach()
	p.detach()

	if len(*forgotten) != 1 || (*forgotten)[0] != "T1" {
		t.Fatalf("forget calls = %v; want [T1]", *forgotten)
	}
	if err := p.Show(context.Background()); !errors.Is(err, engine.ErrPageClosed) {
		t.Fatalf("Show() error = %v; want ErrPageClosed", err)
	}
	if err := p.Hide(context.Background()); !errors.Is(err, engine.ErrPageClosed) {
		t.Fatalf("Hide() error = %v; want ErrPageClosed", err)
	}
	if err := p.Close(context.Background()); !errors.Is(err, engine.ErrPageClosed) {
		t.Fatalf("Close() error = %v; want ErrPageClosed", err)
	}
}
