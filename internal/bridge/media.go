package bridge

import (
	"context"
	"strings"

	"github.com/dgnsrekt/pulse/internal/capture"
	"github.com/dgnsrekt/pulse/internal/errcode"
	"github.com/dgnsrekt/pulse/internal/history"
	"github.com/dgnsrekt/pulse/internal/snapshot"
	"github.com/dgnsrekt/pulse/internal/transport"
)

// HandleFrame is the capture loop's sink.
func (b *Bridge) HandleFrame(frame capture.Frame) {
	b.opts.Sender.SendImage(frame.Data)
	b.frameMu.Lock()
	b.latest = &frame
	b.frameMu.Unlock()
	b.opts.Broker.Publish(EventSnapshot, frame)
}

// CaptureSkipped records a tick that produced no frame.
func (b *Bridge) CaptureSkipped(reason string) {
	b.opts.Metrics.CaptureSkipped(reason)
}

// LatestFrame returns the most recent periodic frame.
func (b *Bridge) LatestFrame() (capture.Frame, bool) {
	b.frameMu.RLock()
	defer b.frameMu.RUnlock()
	if b.latest == nil {
		return capture.Frame{}, false
	}
	return *b.latest, true
}

// Snapshot captures the active surface now and stores it.
func (b *Bridge) Snapshot(ctx context.Context, notes string) (snapshot.Meta, error) {
	if b.opts.Snapshots == nil {
		return snapshot.Meta{}, errcode.New(errcode.CodeUnavailable, "snapshot store is not configured", nil)
	}
	var target capture.Target
	var title string
	var ok bool
	if err := b.do(ctx, func() {
		page, info, active := b.manager.Active()
		ok = active
		target = capture.Target{Page: page, SurfaceID: info.ID, URL: info.URL}
		title = info.Title
	}); err != nil {
		return snapshot.Meta{}, err
	}
	if !ok {
		b.log(LogError, "snapshot: no active surface")
		return snapshot.Meta{}, errcode.New(errcode.CodePrecondition, "no active surface", nil)
	}

	frame, err := capture.Snapshot(ctx, target, b.opts.CaptureMaxDim, b.opts.CaptureQuality)
	if err != nil {
		b.logf(LogError, "snapshot: %v", err)
		return snapshot.Meta{}, errcode.New(errcode.CodeUnavailable, "capture failed", err)
	}
	meta, err := b.opts.Snapshots.Save(snapshot.Meta{
		SurfaceID: frame.SurfaceID,
		URL:       frame.URL,
		Title:     title,
		Width:     frame.Width,
		Height:    frame.Height,
		CreatedAt: frame.At,
		Notes:     notes,
	}, frame.Data)
	if err != nil {
		b.logf(LogError, "snapshot save: %v", err)
		return snapshot.Meta{}, errcode.New(errcode.CodeInternal, "save snapshot", err)
	}
	b.opts.Broker.Publish(EventSnapshotSaved, meta)
	return meta, nil
}

// StartCapture starts streaming operator audio to the agent. Frames are
// sent in capture order from the capturer's goroutine.
func (b *Bridge) StartCapture(context.Context) error {
	if b.opts.Capturer == nil {
		return errcode.New(errcode.CodeUnavailable, "no audio input configured", nil)
	}
	if !b.capturing.CompareAndSwap(false, true) {
		return nil
	}
	err := b.opts.Capturer.Start(b.ctx, func(pcm []byte) {
		b.opts.Sender.SendAudio(pcm)
	})
	if err != nil {
		b.capturing.Store(false)
		b.logf(LogError, "audio capture: %v", err)
		return errcode.New(errcode.CodeUnavailable, "start audio capture", err)
	}
	b.state.CaptureStarted()
	b.opts.Broker.Publish(EventCapture, map[string]bool{"active": true})
	return nil
}

// StopCapture stops audio streaming. Stopping while idle is a no-op.
func (b *Bridge) StopCapture(context.Context) error {
	if b.capturing.CompareAndSwap(true, false) {
		b.opts.Capturer.Stop()
		b.opts.Broker.Publish(EventCapture, map[string]bool{"active": false})
	}
	b.state.CaptureStopped()
	return nil
}

// SendTextCommand forwards an operator-typed instruction to the agent.
func (b *Bridge) SendTextCommand(_ context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errcode.Validation("text must not be empty")
	}
	b.log(LogUser, text)
	if !b.opts.Sender.SendControl(transport.TextCommand(text)) {
		b.log(LogError, "not connected to agent")
		return errcode.New(errcode.CodeUnavailable, "agent is not connected", nil)
	}
	return nil
}

// History returns recent visits, or keyword matches when query is set.
func (b *Bridge) History(query string, limit int) []history.Visit {
	if b.opts.History == nil {
		return nil
	}
	if strings.TrimSpace(query) != "" {
		return b.opts.History.Search(query, limit)
	}
	return b.opts.History.Recent(limit)
}
