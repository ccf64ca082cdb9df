package surface

import (
	"context"
	"log/slog"
	"sort"

	"github.com/dgnsrekt/pulse/internal/engine"
	"github.com/dgnsrekt/pulse/internal/errcode"
)

// Options configures a Manager.
type Options struct {
	Window       engine.Size
	HeaderHeight int

	// OnEvent receives every lifecycle event in emission order.
	OnEvent func(Event)

	// Deliver routes page notifications back into HandlePageEvent. The
	// session loop sets it to hop onto its own goroutine; when nil the
	// Manager handles them inline.
	Deliver func(id int, ev engine.PageEvent)
}

type entry struct {
	surface     Surface
	page        engine.Page
	unsubscribe func()
}

// Manager tracks surfaces and the active one. It is not safe for
// concurrent use: one session loop owns it.
type Manager struct {
	engine   engine.Engine
	opts     Options
	entries  map[int]*entry
	nextID   int
	activeID int
}

// NewManager creates an empty Manager backed by eng.
func NewManager(eng engine.Engine, opts Options) *Manager {
	m := &Manager{
		engine:  eng,
		opts:    opts,
		entries: make(map[int]*entry),
	}
	if m.opts.Deliver == nil {
		m.opts.Deliver = m.HandlePageEvent
	}
	return m
}

// Open creates a surface, starts loading location when non-blank, and
// makes it active.
func (m *Manager) Open(ctx context.Context, location string) (Info, error) {
	page, err := m.engine.NewPage(ctx)
	if err != nil {
		return Info{}, errcode.New(errcode.CodeUnavailable, "create surface", err)
	}

	m.nextID++
	id := m.nextID
	e := &entry{
		surface: Surface{ID: id, Title: DefaultTitle},
		page:    page,
	}
	deliver := m.opts.Deliver
	e.unsubscribe = page.Subscribe(func(ev engine.PageEvent) { deliver(id, ev) })
	m.entries[id] = e

	target := NormalizeLocation(location)
	var navErr error
	if target != "" {
		if navErr = page.Navigate(ctx, target); navErr != nil {
			slog.Warn("surface initial navigation failed", "surface_id", id, "url", target, "error", navErr)
		}
	}

	m.show(ctx, e)
	slog.Info("surface opened", "surface_id", id, "location", target)
	m.emit(Event{Kind: EventCreated, Surface: m.info(e), Location: target})
	m.emit(Event{Kind: EventSwitched, Surface: m.info(e)})
	if navErr != nil {
		m.emit(Event{Kind: EventLoadFailed, Surface: m.info(e), Location: target, Error: navErr.Error()})
	}
	return m.info(e), nil
}

// Activate makes id the active surface and hides every other one.
func (m *Manager) Activate(ctx context.Context, id int) error {
	e, ok := m.entries[id]
	if !ok {
		return errcode.NotFound("surface %d not found", id)
	}
	m.show(ctx, e)
	m.emit(Event{Kind: EventSwitched, Surface: m.info(e)})
	return nil
}

// Close disposes id. When it was active the surviving surface with the
// highest id becomes active, or none when nothing is left.
func (m *Manager) Close(ctx context.Context, id int) error {
	e, ok := m.entries[id]
	if !ok {
		return errcode.NotFound("surface %d not found", id)
	}

	m.dispose(ctx, e)
	wasActive := m.activeID == id
	if wasActive {
		m.activeID = 0
	}

	var next *entry
	if wasActive {
		next = m.highest()
		if next != nil {
			m.show(ctx, next)
		}
	}

	closed := Info{ID: e.surface.ID, URL: e.surface.URL, Title: e.surface.Title}
	m.emit(Event{Kind: EventClosed, Surface: closed})
	if next != nil {
		m.emit(Event{Kind: EventSwitched, Surface: m.info(next)})
	}
	slog.Info("surface closed", "surface_id", id, "active_id", m.activeID)
	return nil
}

// Navigate loads location into id, or into the active surface when id is
// zero. With no active surface it opens a new one instead.
func (m *Manager) Navigate(ctx context.Context, id int, location string) (Info, error) {
	if id == 0 {
		if m.activeID == 0 {
			return m.Open(ctx, location)
		}
		id = m.activeID
	}
	e, ok := m.entries[id]
	if !ok {
		return Info{}, errcode.NotFound("surface %d not found", id)
	}
	target := NormalizeLocation(location)
	if target == "" {
		return Info{}, errcode.Validation("location is required")
	}
	if err := e.page.Navigate(ctx, target); err != nil {
		return Info{}, errcode.New(errcode.CodeUnavailable, "navigate", err)
	}
	slog.Debug("surface navigating", "surface_id", id, "url", target)
	return m.info(e), nil
}

// List returns every surface ordered by id.
func (m *Manager) List() []Info {
	out := make([]Info, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, m.info(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Active returns the active surface and its page.
func (m *Manager) Active() (engine.Page, Info, bool) {
	e, ok := m.entries[m.activeID]
	if !ok {
		return nil, Info{}, false
	}
	return e.page, m.info(e), true
}

// Len reports how many surfaces are open.
func (m *Manager) Len() int { return len(m.entries) }

// HandlePageEvent applies a navigation or title notification. Events for
// surfaces that are already gone are ignored.
func (m *Manager) HandlePageEvent(id int, ev engine.PageEvent) {
	e, ok := m.entries[id]
	if !ok {
		return
	}
	switch ev.Kind {
	case engine.PageNavigated:
		e.surface.URL = ev.URL
		m.emit(Event{Kind: EventUpdated, Surface: m.info(e), Changed: FieldURL})
	case engine.PageTitleChanged:
		if ev.Title == "" || ev.Title == e.surface.Title {
			return
		}
		e.surface.Title = ev.Title
		m.emit(Event{Kind: EventUpdated, Surface: m.info(e), Changed: FieldTitle})
	}
}

// Resize records a new window size. Only the active surface is placed
// now; others pick up the region when they are next activated.
func (m *Manager) Resize(ctx context.Context, window engine.Size) {
	m.opts.Window = window
	e, ok := m.entries[m.activeID]
	if !ok {
		return
	}
	if err := e.page.SetBounds(ctx, m.Region()); err != nil {
		slog.Warn("surface resize failed", "surface_id", e.surface.ID, "error", err)
	}
}

// Region returns the current layout region.
func (m *Manager) Region() engine.Rect {
	return LayoutRegion(m.opts.Window, m.opts.HeaderHeight)
}

// CloseAll disposes every surface without fallback activation.
func (m *Manager) CloseAll(ctx context.Context) {
	ids := make([]int, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	m.activeID = 0
	for _, id := range ids {
		e := m.entries[id]
		m.dispose(ctx, e)
		m.emit(Event{Kind: EventClosed, Surface: Info{ID: id, URL: e.surface.URL, Title: e.surface.Title}})
	}
}

func (m *Manager) show(ctx context.Context, target *entry) {
	for id, e := range m.entries {
		if id == target.surface.ID {
			continue
		}
		if err := e.page.Hide(ctx); err != nil {
			slog.Debug("surface hide failed", "surface_id", id, "error", err)
		}
	}
	m.activeID = target.surface.ID
	if err := target.page.Show(ctx); err != nil {
		slog.Warn("surface show failed", "surface_id", target.surface.ID, "error", err)
	}
	if err := target.page.SetBounds(ctx, m.Region()); err != nil {
		slog.Warn("surface layout failed", "surface_id", target.surface.ID, "error", err)
	}
}

func (m *Manager) dispose(ctx context.Context, e *entry) {
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
	if err := e.page.Close(ctx); err != nil {
		slog.Debug("surface page close failed", "surface_id", e.surface.ID, "error", err)
	}
	delete(m.entries, e.surface.ID)
}

func (m *Manager) highest() *entry {
	var best *entry
	for _, e := range m.entries {
		if best == nil || e.surface.ID > best.surface.ID {
			best = e
		}
	}
	return best
}

func (m *Manager) info(e *entry) Info {
	return Info{
		ID:       e.surface.ID,
		URL:      e.surface.URL,
		Title:    e.surface.Title,
		IsActive: e.surface.ID == m.activeID,
	}
}

func (m *Manager) emit(ev Event) {
	ev.ActiveID = m.activeID
	if m.opts.OnEvent != nil {
		m.opts.OnEvent(ev)
	}
}
