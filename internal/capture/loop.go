// Package capture samples the active surface on a fixed period and hands
// downscaled JPEG frames to a sink.
package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dgnsrekt/pulse/internal/clock"
	"github.com/dgnsrekt/pulse/internal/engine"
)

const (
	DefaultInterval = time.Second
	DefaultMaxDim   = 768
	DefaultQuality  = 60
)

var (
	ErrAlreadyStarted = errors.New("capture loop already started")
	ErrStopped        = errors.New("capture loop stopped")
)

// Frame is one encoded snapshot.
type Frame struct {
	Data      []byte    `json:"-"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	SurfaceID int       `json:"surface_id"`
	URL       string    `json:"url,omitempty"`
	At        time.Time `json:"at"`
}

// Target is the surface being sampled.
type Target struct {
	Page      engine.Page
	SurfaceID int
	URL       string
}

// Source returns the active surface at the moment of the call.
type Source func(ctx context.Context) (Target, bool)

// Options configures a Loop.
type Options struct {
	Interval time.Duration
	MaxDim   int
	Quality  int
	Clock    clock.Clock

	// OnSkip is called with the reason whenever a tick produces no frame.
	OnSkip func(reason string)
}

// Loop is a periodic sampler. It runs at most once per window lifetime.
type Loop struct {
	opts   Options
	source Source
	sink   func(Frame)

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewLoop returns an idle Loop.
func NewLoop(source Source, sink func(Frame), opts Options) *Loop {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxDim <= 0 {
		opts.MaxDim = DefaultMaxDim
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultQuality
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	return &Loop{opts: opts, source: source, sink: sink, done: make(chan struct{})}
}

// Start begins sampling. A second Start, or a Start after Stop, fails.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return ErrStopped
	}
	if l.started {
		return ErrAlreadyStarted
	}
	l.started = true

	ctx, l.cancel = context.WithCancel(ctx)
	ticker := l.opts.Clock.NewTicker(l.opts.Interval)
	go l.run(ctx, ticker)
	slog.Info("capture loop started", "interval", l.opts.Interval, "max_dim", l.opts.MaxDim)
	return nil
}

// Stop cancels the loop. It returns immediately; a sample in flight is
// discarded. Repeated calls are no-ops.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.stopped = true
	if l.cancel != nil {
		l.cancel()
		slog.Info("capture loop stopped")
	} else {
		close(l.done)
	}
}

// Done is closed once the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} { return l.done }

func (l *Loop) run(ctx context.Context, ticker *clock.Ticker) {
	defer close(l.done)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.sample(ctx)
		}
	}
}

func (l *Loop) sample(ctx context.Context) {
	target, ok := l.source(ctx)
	if !ok || target.Page == nil {
		l.skip("no active surface")
		return
	}

	sctx, cancel := context.WithTimeout(ctx, l.opts.Interval)
	defer cancel()
	raw, err := target.Page.Screenshot(sctx)
	if err != nil {
		slog.Debug("capture screenshot failed", "surface_id", target.SurfaceID, "error", err)
		l.skip("screenshot failed")
		return
	}
	frame, err := Encode(raw, l.opts.MaxDim, l.opts.Quality)
	if err != nil {
		slog.Debug("capture encode failed", "surface_id", target.SurfaceID, "error", err)
		l.skip("encode failed")
		return
	}
	if ctx.Err() != nil {
		return
	}
	frame.SurfaceID = target.SurfaceID
	frame.URL = target.URL
	frame.At = l.opts.Clock.Now()
	l.sink(frame)
}

func (l *Loop) skip(reason string) {
	if l.opts.OnSkip != nil {
		l.opts.OnSkip(reason)
	}
}

// Snapshot takes a single frame from target outside the periodic schedule.
func Snapshot(ctx context.Context, target Target, maxDim, quality int) (Frame, error) {
	raw, err := target.Page.Screenshot(ctx)
	if err != nil {
		return Frame{}, err
	}
	frame, err := Encode(raw, maxDim, quality)
	if err != nil {
		return Frame{}, err
	}
	frame.SurfaceID = target.SurfaceID
	frame.URL = target.URL
	frame.At = time.Now().UTC()
	return frame, nil
}
