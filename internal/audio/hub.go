package audio

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	clientSendBuf = 64
	writeWait     = 5 * time.Second
)

type outbound struct {
	kind int
	data []byte
}

type hubClient struct {
	conn *websocket.Conn
	send chan outbound
}

// Hub is the operator audio socket. Widgets connect over websocket, push
// mic PCM as binary messages while capture is on, and receive agent
// speech as binary messages. A text message {"type":"capture","active":b}
// tells widgets when to open or close the microphone.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*hubClient]struct{}
	sink    func([]byte)
}

// NewHub returns a Hub with no clients.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*hubClient]struct{}),
	}
}

// ServeHTTP upgrades the request and serves one widget until it leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("audio socket upgrade failed", "error", err)
		return
	}
	c := &hubClient{conn: conn, send: make(chan outbound, clientSendBuf)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	capturing := h.sink != nil
	h.mu.Unlock()
	slog.Info("audio client connected", "remote", r.RemoteAddr)

	writerDone := make(chan struct{})
	go h.writeLoop(c, writerDone)
	if capturing {
		h.enqueue(c, captureNotice(true))
	}

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		h.mu.Lock()
		sink := h.sink
		h.mu.Unlock()
		if sink != nil && len(data) > 0 {
			sink(data)
		}
	}

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	close(c.send)
	<-writerDone
	_ = conn.Close()
	slog.Info("audio client disconnected", "remote", r.RemoteAddr)
}

func (h *Hub) writeLoop(c *hubClient, done chan struct{}) {
	defer close(done)
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(msg.kind, msg.data); err != nil {
			slog.Debug("audio client write failed", "error", err)
			_ = c.conn.Close()
			for range c.send {
			}
			return
		}
	}
}

func (h *Hub) enqueue(c *hubClient, msg outbound) {
	select {
	case c.send <- msg:
	default:
	}
}

func (h *Hub) broadcast(msg outbound) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.enqueue(c, msg)
	}
}

// Start routes widget mic frames to sink. It fails when no widget is
// connected.
func (h *Hub) Start(_ context.Context, sink func([]byte)) error {
	h.mu.Lock()
	if len(h.clients) == 0 {
		h.mu.Unlock()
		return ErrNoInput
	}
	h.sink = sink
	h.mu.Unlock()
	h.broadcast(captureNotice(true))
	return nil
}

// Stop detaches the sink and tells widgets to close the microphone.
func (h *Hub) Stop() {
	h.mu.Lock()
	was := h.sink != nil
	h.sink = nil
	h.mu.Unlock()
	if was {
		h.broadcast(captureNotice(false))
	}
}

// Play sends agent speech to every widget. Slow widgets drop chunks.
func (h *Hub) Play(pcm []byte) {
	h.broadcast(outbound{kind: websocket.BinaryMessage, data: pcm})
}

// Clients returns the number of connected widgets.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func captureNotice(active bool) outbound {
	data, _ := json.Marshal(map[string]any{"type": "capture", "active": active})
	return outbound{kind: websocket.TextMessage, data: data}
}
