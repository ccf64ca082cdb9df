// Package surface owns the set of browsing surfaces of one session: ids,
// titles, urls, which one is active, and where it is placed in the window.
package surface

import (
	"strings"

	"github.com/dgnsrekt/pulse/internal/engine"
)

// DefaultTitle is the title of a surface whose page has not reported one.
const DefaultTitle = "New Tab"

// Surface is one browsing context tracked by the Manager.
type Surface struct {
	ID    int
	URL   string
	Title string
}

// Info is the externally visible view of a Surface.
type Info struct {
	ID       int    `json:"id"`
	URL      string `json:"url"`
	Title    string `json:"title"`
	IsActive bool   `json:"is_active"`
}

// EventKind names a surface lifecycle notification.
type EventKind string

const (
	EventCreated  EventKind = "surface.created"
	EventUpdated  EventKind = "surface.updated"
	EventSwitched EventKind = "surface.switched"
	EventClosed   EventKind = "surface.closed"

	// EventLoadFailed reports that the location given to Open could not be
	// loaded. The surface stays open.
	EventLoadFailed EventKind = "surface.load_failed"
)

// Field identifies what an update event changed.
type Field string

const (
	FieldURL   Field = "url"
	FieldTitle Field = "title"
)

// Event is emitted by the Manager after each state change.
type Event struct {
	Kind     EventKind `json:"kind"`
	Surface  Info      `json:"surface"`
	Location string    `json:"location,omitempty"`
	Changed  Field     `json:"changed,omitempty"`
	Error    string    `json:"error,omitempty"`
	ActiveID int       `json:"active_id"`
}

// NormalizeLocation prefixes https:// onto locations that carry no scheme.
// Blank input stays blank.
func NormalizeLocation(location string) string {
	loc := strings.TrimSpace(location)
	if loc == "" {
		return ""
	}
	if strings.Contains(loc, "://") {
		return loc
	}
	lower := strings.ToLower(loc)
	for _, prefix := range []string{"about:", "data:", "file:", "chrome:", "view-source:", "blob:"} {
		if strings.HasPrefix(lower, prefix) {
			return loc
		}
	}
	return "https://" + loc
}

// LayoutRegion is the window content area below the header reservation.
func LayoutRegion(window engine.Size, header int) engine.Rect {
	if header < 0 {
		header = 0
	}
	height := window.Height - header
	if height < 0 {
		height = 0
	}
	width := window.Width
	if width < 0 {
		width = 0
	}
	return engine.Rect{X: 0, Y: header, Width: width, Height: height}
}
