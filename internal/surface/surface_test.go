package surface

import (
	"testing"

	"github.com/dgnsrekt/pulse/internal/engine"
)

func TestNormalizeLocation(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"example.com", "https://example.com"},
		{"localhost:3000/path", "https://localhost:3000/path"},
		{"http://example.com", "http://example.com"},
		{"https://example.com", "https://example.com"},
		{"about:blank", "about:blank"},
		{"file:///tmp/a.html", "file:///tmp/a.html"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeLocation(tt.in); got != tt.want {
				t.Fatalf("NormalizeLocation(%q) = %q; want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLayoutRegion(t *testing.T) {
	got := LayoutRegion(engine.Size{Width: 1280, Height: 800}, 80)
	want := engine.Rect{X: 0, Y: 80, Width: 1280, Height: 720}
	if got != want {
		t.Fatalf("LayoutRegion() = %+v; want %+v", got, want)
	}

	if got := LayoutRegion(engine.Size{Width: 100, Height: 40}, 80); got.Height != 0 {
		t.Fatalf("LayoutRegion() height = %d; want 0 when header exceeds window", got.Height)
	}
}
