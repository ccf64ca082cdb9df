// Package bridge is the control point between the operator surface, the
// browsing surfaces, and the agent channel. One session loop goroutine owns
// the surface manager; everything else hands work to it.
package bridge

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgnsrekt/pulse/internal/action"
	"github.com/dgnsrekt/pulse/internal/agentstate"
	"github.com/dgnsrekt/pulse/internal/audio"
	"github.com/dgnsrekt/pulse/internal/capture"
	"github.com/dgnsrekt/pulse/internal/clock"
	"github.com/dgnsrekt/pulse/internal/engine"
	"github.com/dgnsrekt/pulse/internal/errcode"
	"github.com/dgnsrekt/pulse/internal/history"
	"github.com/dgnsrekt/pulse/internal/metrics"
	"github.com/dgnsrekt/pulse/internal/notify"
	"github.com/dgnsrekt/pulse/internal/relay"
	"github.com/dgnsrekt/pulse/internal/snapshot"
	"github.com/dgnsrekt/pulse/internal/surface"
	"github.com/dgnsrekt/pulse/internal/transport"
)

const (
	opQueueSize     = 64
	actionQueueSize = 16
	closeTimeout    = 5 * time.Second
)

var errSessionClosed = errcode.New(errcode.CodeUnavailable, "session is closed", nil)

// Sender is the outbound half of the agent channel.
type Sender interface {
	IsConnected() bool
	SendAudio(pcm []byte) bool
	SendImage(jpeg []byte) bool
	SendControl(msg transport.Message) bool
}

// Options wires a Bridge to its collaborators. Engine and Sender are
// required; the rest may be nil.
type Options struct {
	Engine    engine.Engine
	Sender    Sender
	Capturer  audio.Capturer
	Player    audio.Player
	Broker    *relay.Broker
	Snapshots *snapshot.Store
	History   *history.Recorder
	Metrics   *metrics.Metrics
	Notifier  *notify.Notifier
	Clock     clock.Clock

	Window         engine.Size
	HeaderHeight   int
	ActionTimeout  time.Duration
	CaptureMaxDim  int
	CaptureQuality int

	// NotifyAfter sends an operator notification every N consecutive
	// failed connection attempts. Zero disables it.
	NotifyAfter int
}

// Bridge serves operator requests and agent messages against one session.
type Bridge struct {
	opts     Options
	manager  *surface.Manager
	executor *action.Executor
	state    *agentstate.Controller

	ops     chan func()
	actions chan actionJob
	stopped chan struct{}
	running atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc

	capturing  atomic.Bool
	disconnect atomic.Int64

	frameMu sync.RWMutex
	latest  *capture.Frame
}

// New builds a Bridge. Call Run to start its session loop.
func New(opts Options) *Bridge {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Broker == nil {
		opts.Broker = relay.NewBroker()
	}
	if opts.CaptureMaxDim <= 0 {
		opts.CaptureMaxDim = capture.DefaultMaxDim
	}
	if opts.CaptureQuality <= 0 {
		opts.CaptureQuality = capture.DefaultQuality
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		opts:    opts,
		state:   agentstate.NewController(),
		ops:     make(chan func(), opQueueSize),
		actions: make(chan actionJob, actionQueueSize),
		stopped: make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	b.manager = surface.NewManager(opts.Engine, surface.Options{
		Window:       opts.Window,
		HeaderHeight: opts.HeaderHeight,
		OnEvent:      b.onSurfaceEvent,
		Deliver:      b.deliverPageEvent,
	})
	b.executor = action.NewExecutor(b.activePage, opts.ActionTimeout)
	b.state.Observe(b.onStateChange)
	return b
}

// Run owns the session until ctx is cancelled, then closes every surface.
func (b *Bridge) Run(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return errors.New("bridge already running")
	}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.actionWorker()
	}()

	slog.Info("session loop started")
	for {
		select {
		case fn := <-b.ops:
			b.runOp(fn)
		case <-ctx.Done():
			b.shutdown()
			wg.Wait()
			slog.Info("session loop stopped")
			return nil
		}
	}
}

func (b *Bridge) shutdown() {
	b.cancel()
	close(b.stopped)
	if b.capturing.CompareAndSwap(true, false) && b.opts.Capturer != nil {
		b.opts.Capturer.Stop()
	}
	cctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	b.manager.CloseAll(cctx)
	b.opts.Metrics.SetSurfaces(0)
}

func (b *Bridge) runOp(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("session operation panicked", "panic", r)
			b.logf(LogError, "internal error: %v", r)
		}
	}()
	fn()
}

// do runs fn on the session loop and waits for it.
func (b *Bridge) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case b.ops <- func() { defer close(done); fn() }:
	case <-b.stopped:
		return errSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-b.stopped:
		return errSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post queues fn on the session loop without waiting for it to run.
func (b *Bridge) post(fn func()) {
	select {
	case b.ops <- fn:
	case <-b.stopped:
	}
}

func (b *Bridge) deliverPageEvent(id int, ev engine.PageEvent) {
	b.post(func() { b.manager.HandlePageEvent(id, ev) })
}

// activePage reads the active surface through the session loop.
func (b *Bridge) activePage(ctx context.Context) (engine.Page, bool) {
	var page engine.Page
	var ok bool
	if err := b.do(ctx, func() { page, _, ok = b.manager.Active() }); err != nil {
		return nil, false
	}
	return page, ok
}

// CaptureTarget is the capture loop's source.
func (b *Bridge) CaptureTarget(ctx context.Context) (capture.Target, bool) {
	var t capture.Target
	var ok bool
	err := b.do(ctx, func() {
		var page engine.Page
		var info surface.Info
		page, info, ok = b.manager.Active()
		t = capture.Target{Page: page, SurfaceID: info.ID, URL: info.URL}
	})
	if err != nil {
		return capture.Target{}, false
	}
	return t, ok
}

// Events returns the broker that carries outbound operator events.
func (b *Bridge) Events() *relay.Broker { return b.opts.Broker }

func (b *Bridge) onSurfaceEvent(ev surface.Event) {
	b.opts.Broker.Publish(string(ev.Kind), ev)
	if ev.Kind == surface.EventLoadFailed {
		b.logf(LogError, "surface %d could not load %s: %s", ev.Surface.ID, ev.Location, ev.Error)
	}
	b.opts.Metrics.SetSurfaces(b.manager.Len())
	if b.opts.History != nil {
		b.opts.History.Observe(ev)
	}
}

func (b *Bridge) onStateChange(tr agentstate.Transition) {
	slog.Info("agent state changed", "from", tr.From, "to", tr.To)
	b.opts.Metrics.AgentState(string(tr.To))
	b.opts.Broker.Publish(EventAgentState, tr)
}
