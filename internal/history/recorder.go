// Package history keeps a per-session record of pages visited on any
// surface, searchable by keyword.
package history

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/pulse/internal/clock"
	"github.com/dgnsrekt/pulse/internal/surface"
)

const (
	DefaultCapacity    = 500
	DefaultRecentLimit = 10
	DefaultSearchLimit = 3
)

// Visit is one completed navigation.
type Visit struct {
	Kind      string    `json:"kind"`
	SessionID string    `json:"session_id"`
	SurfaceID int       `json:"surface_id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	VisitedAt time.Time `json:"visited_at"`
}

// Sink persists visit records.
type Sink interface {
	Write(record any) error
}

// Recorder turns surface update events into visits.
type Recorder struct {
	session  string
	sink     Sink
	clock    clock.Clock
	capacity int

	mu     sync.Mutex
	visits []Visit
}

// NewRecorder returns a Recorder for session. sink may be nil.
func NewRecorder(session string, sink Sink, clk clock.Clock) *Recorder {
	if clk == nil {
		clk = clock.Real()
	}
	return &Recorder{session: session, sink: sink, clock: clk, capacity: DefaultCapacity}
}

// Observe consumes a surface event.
func (r *Recorder) Observe(ev surface.Event) {
	if ev.Kind != surface.EventUpdated {
		return
	}
	switch ev.Changed {
	case surface.FieldURL:
		if ev.Surface.URL == "" || strings.HasPrefix(ev.Surface.URL, "about:") {
			return
		}
		title := ev.Surface.Title
		if title == surface.DefaultTitle {
			title = ""
		}
		r.add(Visit{
			Kind:      "visit",
			SessionID: r.session,
			SurfaceID: ev.Surface.ID,
			URL:       ev.Surface.URL,
			Title:     title,
			VisitedAt: r.clock.Now().UTC(),
		})
	case surface.FieldTitle:
		r.retitle(ev.Surface.ID, ev.Surface.URL, ev.Surface.Title)
	}
}

func (r *Recorder) add(v Visit) {
	r.mu.Lock()
	r.visits = append(r.visits, v)
	if over := len(r.visits) - r.capacity; over > 0 {
		r.visits = append(r.visits[:0:0], r.visits[over:]...)
	}
	r.mu.Unlock()
	r.persist(v)
}

func (r *Recorder) retitle(surfaceID int, url, title string) {
	r.mu.Lock()
	var updated *Visit
	for i := len(r.visits) - 1; i >= 0; i-- {
		v := &r.visits[i]
		if v.SurfaceID == surfaceID {
			if v.URL == url {
				v.Title = title
				updated = v
			}
			break
		}
	}
	var rec Visit
	if updated != nil {
		rec = *updated
		rec.Kind = "title"
	}
	r.mu.Unlock()
	if updated != nil {
		r.persist(rec)
	}
}

func (r *Recorder) persist(v Visit) {
	if r.sink == nil {
		return
	}
	if err := r.sink.Write(v); err != nil {
		slog.Warn("history journal write failed", "session_id", r.session, "surface_id", v.SurfaceID, "kind", v.Kind, "error", err)
	}
}

// Recent returns up to limit visits, newest first.
func (r *Recorder) Recent(limit int) []Visit {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Visit, 0, limit)
	for i := len(r.visits) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.visits[i])
	}
	return out
}

// Search returns up to limit visits whose url or title contains query,
// case-insensitively, newest first.
func (r *Recorder) Search(query string, limit int) []Visit {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Visit
	for i := len(r.visits) - 1; i >= 0 && len(out) < limit; i-- {
		v := r.visits[i]
		if strings.Contains(strings.ToLower(v.URL), q) || strings.Contains(strings.ToLower(v.Title), q) {
			out = append(out, v)
		}
	}
	return out
}
