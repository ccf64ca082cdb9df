package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/dgnsrekt/pulse/internal/action"
	"github.com/dgnsrekt/pulse/internal/agentstate"
	"github.com/dgnsrekt/pulse/internal/capture"
	"github.com/dgnsrekt/pulse/internal/engine"
	"github.com/dgnsrekt/pulse/internal/engine/enginetest"
	"github.com/dgnsrekt/pulse/internal/errcode"
	"github.com/dgnsrekt/pulse/internal/history"
	"github.com/dgnsrekt/pulse/internal/relay"
	"github.com/dgnsrekt/pulse/internal/snapshot"
	"github.com/dgnsrekt/pulse/internal/transport"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSender struct {
	mu        sync.Mutex
	connected bool
	audio     [][]byte
	images    [][]byte
	control   chan transport.Message
}

func newFakeSender(connected bool) *fakeSender {
	return &fakeSender{connected: connected, control: make(chan transport.Message, 32)}
}

func (s *fakeSender) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *fakeSender) SendAudio(pcm []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return false
	}
	s.audio = append(s.audio, pcm)
	return true
}

func (s *fakeSender) SendImage(jpeg []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return false
	}
	s.images = append(s.images, jpeg)
	return true
}

func (s *fakeSender) SendControl(msg transport.Message) bool {
	if !s.IsConnected() {
		return false
	}
	s.control <- msg
	return true
}

func (s *fakeSender) next(t *testing.T) transport.Message {
	t.Helper()
	select {
	case msg := <-s.control:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for control message")
		return transport.Message{}
	}
}

type fakeCapturer struct {
	mu       sync.Mutex
	sink     func([]byte)
	startErr error
	stops    int
}

func (c *fakeCapturer) Start(_ context.Context, sink func([]byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startErr != nil {
		return c.startErr
	}
	c.sink = sink
	return nil
}

func (c *fakeCapturer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stops++
	c.sink = nil
}

func (c *fakeCapturer) emit(pcm []byte) {
	c.mu.Lock()
	sink := c.sink
	c.mu.Unlock()
	if sink != nil {
		sink(pcm)
	}
}

type fakePlayer struct {
	mu     sync.Mutex
	played [][]byte
}

func (p *fakePlayer) Play(pcm []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.played = append(p.played, pcm)
}

type harness struct {
	bridge *Bridge
	engine *enginetest.FakeEngine
	sender *fakeSender
	events <-chan relay.Event
}

func start(t *testing.T, opts Options) *harness {
	t.Helper()
	eng := enginetest.NewFakeEngine()
	sender := newFakeSender(true)
	if opts.Engine == nil {
		opts.Engine = eng
	}
	if opts.Sender == nil {
		opts.Sender = sender
	}
	if opts.Window == (engine.Size{}) {
		opts.Window = engine.Size{Width: 1280, Height: 800}
		opts.HeaderHeight = 80
	}
	b := New(opts)
	_, events := b.Events().Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = b.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return &harness{bridge: b, engine: eng, sender: sender, events: events}
}

func (h *harness) waitEvent(t *testing.T, kind string) relay.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-h.events:
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", kind)
			return relay.Event{}
		}
	}
}

func (h *harness) waitLog(t *testing.T, kind LogKind) LogEntry {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-h.events:
			if ev.Kind != EventLog {
				continue
			}
			var entry LogEntry
			if err := json.Unmarshal(ev.Payload, &entry); err != nil {
				t.Fatalf("decode log entry: %v", err)
			}
			if entry.Kind == kind {
				return entry
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s log", kind)
			return LogEntry{}
		}
	}
}

func decodeAction(t *testing.T, raw string) transport.Message {
	t.Helper()
	msg, err := transport.DecodeMessage([]byte(raw))
	if err != nil {
		t.Fatalf("DecodeMessage(%s) error = %v", raw, err)
	}
	return msg
}

func TestBasicSession(t *testing.T) {
	h := start(t, Options{})
	ctx := context.Background()

	first, err := h.bridge.OpenSurface(ctx, "")
	if err != nil {
		t.Fatalf("OpenSurface() error = %v", err)
	}
	if first.ID != 1 || first.URL != "" || first.Title != "New Tab" || !first.IsActive {
		t.Fatalf("OpenSurface() = %+v; want {1 \"\" New Tab active}", first)
	}

	if _, err := h.bridge.NavigateSurface(ctx, 0, "example.com"); err != nil {
		t.Fatalf("NavigateSurface() error = %v", err)
	}
	page := h.engine.Page(0)
	page.Emit(engine.PageEvent{Kind: engine.PageNavigated, URL: "https://example.com"})

	second, err := h.bridge.OpenSurface(ctx, "")
	if err != nil {
		t.Fatalf("OpenSurface() error = %v", err)
	}
	if second.ID != 2 || !second.IsActive {
		t.Fatalf("second OpenSurface() = %+v; want id 2 active", second)
	}

	list, err := h.bridge.ListSurfaces(ctx)
	if err != nil {
		t.Fatalf("ListSurfaces() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("ListSurfaces() = %+v; want 2 surfaces", list)
	}
	if list[0].URL != "https://example.com" || list[0].IsActive {
		t.Fatalf("surface 1 = %+v; want inactive at https://example.com", list[0])
	}
	if !list[1].IsActive {
		t.Fatalf("surface 2 = %+v; want active", list[1])
	}
}

func TestUnknownSurfaceIsNotFound(t *testing.T) {
	h := start(t, Options{})
	err := h.bridge.ActivateSurface(context.Background(), 9)
	if got := errcode.Code(err); got != errcode.CodeNotFound {
		t.Fatalf("ActivateSurface(9) code = %q; want %q", got, errcode.CodeNotFound)
	}
	h.waitLog(t, LogError)
}

func TestAgentActionWithoutSurfaceFails(t *testing.T) {
	h := start(t, Options{})

	h.bridge.HandleControl(decodeAction(t, `{"type":"action","id":"a1","action":"click","x":10,"y":10}`))
	res := h.sender.next(t)
	if res.Type != transport.TypeActionResult || res.ID != "a1" || res.Action != "click" {
		t.Fatalf("reply = %+v; want action_result a1 click", res)
	}
	if res.Success == nil || *res.Success || res.Error != action.ErrNoActiveSurface {
		t.Fatalf("reply = %+v; want failure %q", res, action.ErrNoActiveSurface)
	}
}

func TestAgentActionsRunInOrder(t *testing.T) {
	h := start(t, Options{})
	if _, err := h.bridge.OpenSurface(context.Background(), ""); err != nil {
		t.Fatalf("OpenSurface() error = %v", err)
	}
	page := h.engine.Page(0)
	page.EvalFn = func(_ string, out any) error {
		if s, ok := out.(*string); ok {
			*s = strings.Repeat("x", 9000)
		}
		return nil
	}

	h.bridge.HandleControl(decodeAction(t, `{"type":"action","id":"1","action":"type","text":"hi"}`))
	h.bridge.HandleControl(decodeAction(t, `{"type":"action","id":"2","action":"extractText"}`))
	h.bridge.HandleControl(decodeAction(t, `{"type":"action","action":"jump"}`))

	first := h.sender.next(t)
	if first.ID != "1" || first.Success == nil || !*first.Success {
		t.Fatalf("first reply = %+v; want success for id 1", first)
	}
	second := h.sender.next(t)
	if second.ID != "2" || second.Action != string(action.KindExtractText) || len(second.Text) != action.MaxExtractChars {
		t.Fatalf("second reply id=%q action=%q len=%d; want id 2 extract-text %d chars", second.ID, second.Action, len(second.Text), action.MaxExtractChars)
	}
	third := h.sender.next(t)
	if third.ID != "" || third.Error != "unrecognized command: jump" {
		t.Fatalf("third reply = %+v; want unrecognized command without id", third)
	}
	if got := len(page.KeyEvents()); got != 6 {
		t.Fatalf("key events = %d; want 6", got)
	}
}

func TestMalformedActionIsRejected(t *testing.T) {
	h := start(t, Options{})
	h.bridge.HandleControl(decodeAction(t, `{"type":"action","id":"x"}`))
	res := h.sender.next(t)
	if res.ID != "x" || res.Success == nil || *res.Success {
		t.Fatalf("reply = %+v; want failure for id x", res)
	}
}

func TestSurfaceCommands(t *testing.T) {
	h := start(t, Options{})
	ctx := context.Background()

	res := h.bridge.ExecuteAction(ctx, action.Command{Kind: action.KindNewTab, URL: "go.dev"})
	if !res.Success || res.Text != "opened surface 1" {
		t.Fatalf("new_tab = %+v; want opened surface 1", res)
	}
	if got := h.engine.Page(0).Navigated; len(got) != 1 || got[0] != "https://go.dev" {
		t.Fatalf("navigated = %v; want [https://go.dev]", got)
	}
	h.bridge.ExecuteAction(ctx, action.Command{Kind: action.KindNewTab})

	res = h.bridge.ExecuteAction(ctx, action.Command{Kind: action.KindSwitchTab, TabID: 1})
	if !res.Success {
		t.Fatalf("switch_tab = %+v; want success", res)
	}
	res = h.bridge.ExecuteAction(ctx, action.Command{Kind: action.KindCloseTab})
	if !res.Success || res.Text != "closed surface 1" {
		t.Fatalf("close_tab = %+v; want closed surface 1", res)
	}
	list, _ := h.bridge.ListSurfaces(ctx)
	if len(list) != 1 || list[0].ID != 2 || !list[0].IsActive {
		t.Fatalf("ListSurfaces() = %+v; want only surface 2 active", list)
	}

	res = h.bridge.ExecuteAction(ctx, action.Command{Kind: action.KindSwitchTab, TabID: 7})
	if res.Success {
		t.Fatalf("switch_tab 7 = %+v; want failure", res)
	}
}

func TestStatusMessagesDriveState(t *testing.T) {
	h := start(t, Options{})

	h.bridge.HandleControl(transport.Message{Type: transport.TypeStatus, State: "thinking"})
	ev := h.waitEvent(t, EventAgentState)
	var tr agentstate.Transition
	if err := json.Unmarshal(ev.Payload, &tr); err != nil {
		t.Fatalf("decode transition: %v", err)
	}
	if tr.From != agentstate.Idle || tr.To != agentstate.Thinking {
		t.Fatalf("transition = %+v; want idle -> thinking", tr)
	}
	if got := h.bridge.AgentStatus().State; got != agentstate.Thinking {
		t.Fatalf("AgentStatus().State = %q; want thinking", got)
	}

	h.bridge.HandleControl(transport.Message{Type: transport.TypeStatus, State: "dancing"})
	h.waitLog(t, LogError)
	if got := h.bridge.AgentStatus().State; got != agentstate.Thinking {
		t.Fatalf("state after bad status = %q; want thinking", got)
	}
}

func TestTranscriptAndErrorAreLogged(t *testing.T) {
	h := start(t, Options{})
	h.bridge.HandleControl(transport.Message{Type: transport.TypeTranscript, Text: "Opening the docs."})
	if got := h.waitLog(t, LogAgent); got.Text != "Opening the docs." {
		t.Fatalf("agent log = %q; want transcript text", got.Text)
	}
	h.bridge.HandleControl(transport.Message{Type: transport.TypeError, Message: "model overloaded"})
	if got := h.waitLog(t, LogError); got.Text != "agent: model overloaded" {
		t.Fatalf("error log = %q; want agent: model overloaded", got.Text)
	}
}

func TestTextCommand(t *testing.T) {
	h := start(t, Options{})
	if err := h.bridge.SendTextCommand(context.Background(), "  find flights  "); err != nil {
		t.Fatalf("SendTextCommand() error = %v", err)
	}
	msg := h.sender.next(t)
	if msg.Type != transport.TypeTextCommand || msg.Text != "find flights" {
		t.Fatalf("sent = %+v; want text_command find flights", msg)
	}
	if got := h.waitLog(t, LogUser); got.Text != "find flights" {
		t.Fatalf("user log = %q; want find flights", got.Text)
	}

	if err := h.bridge.SendTextCommand(context.Background(), " "); errcode.Code(err) != errcode.CodeValidation {
		t.Fatalf("SendTextCommand(blank) error = %v; want validation", err)
	}
}

func TestTextCommandOffline(t *testing.T) {
	sender := newFakeSender(false)
	h := start(t, Options{Sender: sender})
	err := h.bridge.SendTextCommand(context.Background(), "hello")
	if errcode.Code(err) != errcode.CodeUnavailable {
		t.Fatalf("SendTextCommand() error = %v; want unavailable", err)
	}
	h.waitLog(t, LogUser)
	if got := h.waitLog(t, LogError); got.Text != "not connected to agent" {
		t.Fatalf("error log = %q; want not connected to agent", got.Text)
	}
}

func TestAudioCapture(t *testing.T) {
	capt := &fakeCapturer{}
	h := start(t, Options{Capturer: capt})
	ctx := context.Background()

	if err := h.bridge.StartCapture(ctx); err != nil {
		t.Fatalf("StartCapture() error = %v", err)
	}
	if got := h.bridge.AgentStatus().State; got != agentstate.Listening {
		t.Fatalf("state = %q; want listening", got)
	}
	for i := byte(1); i <= 3; i++ {
		capt.emit([]byte{i, i})
	}
	if err := h.bridge.StopCapture(ctx); err != nil {
		t.Fatalf("StopCapture() error = %v", err)
	}
	if got := h.bridge.AgentStatus().State; got != agentstate.Idle {
		t.Fatalf("state after stop = %q; want idle", got)
	}

	h.sender.mu.Lock()
	defer h.sender.mu.Unlock()
	if len(h.sender.audio) != 3 {
		t.Fatalf("audio frames = %d; want 3", len(h.sender.audio))
	}
	for i, frame := range h.sender.audio {
		if frame[0] != byte(i+1) {
			t.Fatalf("frame %d = %v; want capture order", i, frame)
		}
	}
	if capt.stops != 1 {
		t.Fatalf("capturer stops = %d; want 1", capt.stops)
	}
}

func TestAudioCaptureFailureStaysIdle(t *testing.T) {
	capt := &fakeCapturer{startErr: errors.New("no operator connected")}
	h := start(t, Options{Capturer: capt})
	if err := h.bridge.StartCapture(context.Background()); errcode.Code(err) != errcode.CodeUnavailable {
		t.Fatalf("StartCapture() error = %v; want unavailable", err)
	}
	if got := h.bridge.AgentStatus(); got.State != agentstate.Idle || got.Capturing {
		t.Fatalf("AgentStatus() = %+v; want idle, not capturing", got)
	}
	h.waitLog(t, LogError)
}

func TestPlaybackIsVerbatim(t *testing.T) {
	player := &fakePlayer{}
	h := start(t, Options{Player: player})
	h.bridge.HandleBinary([]byte{0x10, 0x20, 0x30})

	player.mu.Lock()
	defer player.mu.Unlock()
	if len(player.played) != 1 || !bytes.Equal(player.played[0], []byte{0x10, 0x20, 0x30}) {
		t.Fatalf("played = %v; want one verbatim frame", player.played)
	}
}

func TestDisconnectStreak(t *testing.T) {
	h := start(t, Options{NotifyAfter: 2})
	h.bridge.Disconnected()
	h.bridge.Disconnected()
	if got := h.waitLog(t, LogError); got.Text != "agent unreachable after 2 attempts" {
		t.Fatalf("error log = %q; want streak message", got.Text)
	}
	if got := h.bridge.AgentStatus().Failures; got != 2 {
		t.Fatalf("Failures = %d; want 2", got)
	}
	h.bridge.Connected()
	if got := h.bridge.AgentStatus().Failures; got != 0 {
		t.Fatalf("Failures after connect = %d; want 0", got)
	}
}

func TestHandleFrame(t *testing.T) {
	h := start(t, Options{})
	if _, ok := h.bridge.LatestFrame(); ok {
		t.Fatal("LatestFrame() ok = true before any frame")
	}
	h.bridge.HandleFrame(capture.Frame{Data: []byte{0xff, 0xd8}, Width: 4, Height: 2, SurfaceID: 1})
	frame, ok := h.bridge.LatestFrame()
	if !ok || frame.Width != 4 || frame.SurfaceID != 1 {
		t.Fatalf("LatestFrame() = %+v, %v; want the handled frame", frame, ok)
	}
	h.waitEvent(t, EventSnapshot)

	h.sender.mu.Lock()
	defer h.sender.mu.Unlock()
	if len(h.sender.images) != 1 {
		t.Fatalf("images sent = %d; want 1", len(h.sender.images))
	}
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		img.Set(x, 5, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func TestSnapshot(t *testing.T) {
	store, err := snapshot.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	h := start(t, Options{Snapshots: store})
	ctx := context.Background()

	if _, err := h.bridge.Snapshot(ctx, ""); errcode.Code(err) != errcode.CodePrecondition {
		t.Fatalf("Snapshot() without surface error = %v; want precondition", err)
	}
	if got := h.waitLog(t, LogError); got.Text != "snapshot: no active surface" {
		t.Fatalf("error log = %q; want snapshot: no active surface", got.Text)
	}

	h.engine.OnPage = func(p *enginetest.FakePage) { p.ScreenshotPNG = testPNG(t) }
	if _, err := h.bridge.OpenSurface(ctx, ""); err != nil {
		t.Fatalf("OpenSurface() error = %v", err)
	}
	meta, err := h.bridge.Snapshot(ctx, "pricing page")
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if meta.SurfaceID != 1 || meta.Width != 40 || meta.Height != 20 || meta.Notes != "pricing page" {
		t.Fatalf("Snapshot() = %+v; want surface 1 40x20 with notes", meta)
	}
	if _, err := store.Get(meta.ID); err != nil {
		t.Fatalf("store.Get(%s) error = %v", meta.ID, err)
	}
	h.waitEvent(t, EventSnapshotSaved)
}

func TestOpenLoadFailureIsLogged(t *testing.T) {
	h := start(t, Options{})
	h.engine.OnPage = func(p *enginetest.FakePage) { p.NavigateErr = errors.New("net::ERR_NAME_NOT_RESOLVED") }

	info, err := h.bridge.OpenSurface(context.Background(), "nowhere.invalid")
	if err != nil {
		t.Fatalf("OpenSurface() error = %v", err)
	}
	if !info.IsActive {
		t.Fatalf("OpenSurface() = %+v; want active surface", info)
	}
	want := "surface 1 could not load https://nowhere.invalid: net::ERR_NAME_NOT_RESOLVED"
	if got := h.waitLog(t, LogError); got.Text != want {
		t.Fatalf("error log = %q; want %q", got.Text, want)
	}
}

func TestHistoryRecordsNavigation(t *testing.T) {
	rec := history.NewRecorder("s1", nil, nil)
	h := start(t, Options{History: rec})
	ctx := context.Background()

	if _, err := h.bridge.OpenSurface(ctx, "go.dev"); err != nil {
		t.Fatalf("OpenSurface() error = %v", err)
	}
	h.engine.Page(0).Emit(engine.PageEvent{Kind: engine.PageNavigated, URL: "https://go.dev/"})
	if _, err := h.bridge.ListSurfaces(ctx); err != nil {
		t.Fatalf("ListSurfaces() error = %v", err)
	}

	got := h.bridge.History("go.dev", 0)
	if len(got) != 1 || got[0].URL != "https://go.dev/" || got[0].SurfaceID != 1 {
		t.Fatalf("History(go.dev) = %+v; want one visit on surface 1", got)
	}
}

func TestResize(t *testing.T) {
	h := start(t, Options{})
	ctx := context.Background()
	if _, err := h.bridge.Resize(ctx, engine.Size{}); errcode.Code(err) != errcode.CodeValidation {
		t.Fatalf("Resize(0x0) error = %v; want validation", err)
	}
	region, err := h.bridge.Resize(ctx, engine.Size{Width: 1000, Height: 700})
	if err != nil {
		t.Fatalf("Resize() error = %v", err)
	}
	want := engine.Rect{X: 0, Y: 80, Width: 1000, Height: 620}
	if region != want {
		t.Fatalf("Resize() = %+v; want %+v", region, want)
	}
}

func TestStoppedSessionIsUnavailable(t *testing.T) {
	b := New(Options{Engine: enginetest.NewFakeEngine(), Sender: newFakeSender(true)})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = b.Run(ctx)
		close(done)
	}()
	if _, err := b.OpenSurface(context.Background(), ""); err != nil {
		t.Fatalf("OpenSurface() error = %v", err)
	}
	cancel()
	<-done

	_, err := b.OpenSurface(context.Background(), "")
	if errcode.Code(err) != errcode.CodeUnavailable {
		t.Fatalf("OpenSurface() after stop error = %v; want unavailable", err)
	}
	if res := b.ExecuteAction(context.Background(), action.Command{Kind: action.KindClick}); res.Success {
		t.Fatalf("ExecuteAction() after stop = %+v; want failure", res)
	}
}
