// Package transport keeps one websocket session with the remote agent
// alive and multiplexes audio, imagery, and JSON control messages over it.
package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/pulse/internal/clock"
)

// DefaultReconnectDelay is the fixed wait between connection attempts.
const DefaultReconnectDelay = 3 * time.Second

// Handler receives inbound traffic and connection changes. Calls come
// from the reader goroutine in arrival order.
type Handler interface {
	HandleBinary(data []byte)
	HandleControl(msg Message)
	Connected()
	Disconnected()
}

// Metrics observes channel activity. Implementations must tolerate
// concurrent calls.
type Metrics interface {
	FrameSent(kind string)
	FrameDropped(kind string)
	DialAttempt(ok bool)
	SetConnected(up bool)
}

// Options configures a Channel.
type Options struct {
	URL            string
	ReconnectDelay time.Duration
	Clock          clock.Clock
	Dialer         Dialer
	Metrics        Metrics
}

// Channel is the duplex link to the agent. Sends made while disconnected
// are dropped; nothing is buffered.
type Channel struct {
	opts    Options
	handler Handler

	mu   sync.Mutex
	conn Conn
}

// NewChannel returns a disconnected Channel.
func NewChannel(opts Options) *Channel {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Dialer == nil {
		opts.Dialer = WSDialer{}
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	return &Channel{opts: opts, handler: nopHandler{}}
}

// SetHandler installs h. It must be called before Run.
func (c *Channel) SetHandler(h Handler) {
	if h == nil {
		h = nopHandler{}
	}
	c.handler = h
}

// Run connects and keeps reconnecting after a fixed delay until ctx is
// cancelled. Attempts are unbounded.
func (c *Channel) Run(ctx context.Context) error {
	for {
		conn, err := c.opts.Dialer.Dial(ctx, c.opts.URL)
		if ctx.Err() != nil {
			if conn != nil {
				_ = conn.Close()
			}
			return nil
		}
		c.opts.Metrics.DialAttempt(err == nil)
		if err != nil {
			slog.Debug("agent dial failed", "url", c.opts.URL, "error", err)
		} else {
			c.serve(ctx, conn)
			if ctx.Err() != nil {
				return nil
			}
		}

		c.handler.Disconnected()
		select {
		case <-ctx.Done():
			return nil
		case <-c.opts.Clock.After(c.opts.ReconnectDelay):
		}
	}
}

func (c *Channel) serve(ctx context.Context, conn Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.opts.Metrics.SetConnected(true)
	slog.Info("agent connected", "url", c.opts.URL)
	c.handler.Connected()

	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		data, binary, err := conn.Read()
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("agent connection lost", "error", err)
			}
			break
		}
		if binary {
			c.handler.HandleBinary(data)
			continue
		}
		msg, err := DecodeMessage(data)
		if err != nil {
			slog.Debug("discarding control message", "error", err)
			continue
		}
		c.handler.HandleControl(msg)
	}
	close(stop)

	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = conn.Close()
	c.opts.Metrics.SetConnected(false)
}

// IsConnected reports whether a session is currently open.
func (c *Channel) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// SendAudio sends one PCM chunk. It reports false when the chunk was
// dropped.
func (c *Channel) SendAudio(pcm []byte) bool {
	return c.sendBinary(FrameAudio, pcm)
}

// SendImage sends one JPEG frame.
func (c *Channel) SendImage(jpeg []byte) bool {
	return c.sendBinary(FrameImage, jpeg)
}

// SendControl sends a JSON control message.
func (c *Channel) SendControl(msg Message) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("encode control message", "type", msg.Type, "error", err)
		return false
	}
	return c.write(msg.Type, func(conn Conn) error { return conn.WriteText(data) })
}

func (c *Channel) sendBinary(kind FrameKind, payload []byte) bool {
	frame := EncodeFrame(kind, payload)
	return c.write(kind.String(), func(conn Conn) error { return conn.WriteBinary(frame) })
}

func (c *Channel) write(kind string, fn func(Conn) error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		c.opts.Metrics.FrameDropped(kind)
		return false
	}
	if err := fn(c.conn); err != nil {
		slog.Debug("agent write failed", "kind", kind, "error", err)
		c.opts.Metrics.FrameDropped(kind)
		// The reader notices the closed socket and schedules a reconnect.
		_ = c.conn.Close()
		return false
	}
	c.opts.Metrics.FrameSent(kind)
	return true
}

type nopHandler struct{}

func (nopHandler) HandleBinary([]byte)   {}
func (nopHandler) HandleControl(Message) {}
func (nopHandler) Connected()            {}
func (nopHandler) Disconnected()         {}

type nopMetrics struct{}

func (nopMetrics) FrameSent(string)    {}
func (nopMetrics) FrameDropped(string) {}
func (nopMetrics) DialAttempt(bool)    {}
func (nopMetrics) SetConnected(bool)   {}

// Endpoint joins the agent base url with the per-session path.
func Endpoint(base, userID, sessionID string) string {
	return strings.TrimRight(base, "/") + "/ws/" + url.PathEscape(userID) + "/" + url.PathEscape(sessionID)
}
