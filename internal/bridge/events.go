package bridge

import (
	"fmt"
	"log/slog"
	"time"
)

// Operator event kinds published on the broker besides surface events.
const (
	EventLog                   = "log"
	EventSnapshot              = "snapshot"
	EventSnapshotSaved         = "snapshot.saved"
	EventAgentState            = "agent.state"
	EventTransportConnected    = "transport.connected"
	EventTransportDisconnected = "transport.disconnected"
	EventCapture               = "capture"
)

// LogKind classifies a log line for the operator.
type LogKind string

const (
	LogUser   LogKind = "user"
	LogAgent  LogKind = "agent"
	LogAction LogKind = "action"
	LogError  LogKind = "error"
)

// LogEntry is the payload of a log event.
type LogEntry struct {
	Kind LogKind   `json:"kind"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

func (b *Bridge) log(kind LogKind, text string) {
	if kind == LogError {
		slog.Warn("operator error", "text", text)
	} else {
		slog.Debug("operator log", "kind", kind, "text", text)
	}
	b.opts.Broker.Publish(EventLog, LogEntry{Kind: kind, Text: text, At: b.opts.Clock.Now().UTC()})
}

func (b *Bridge) logf(kind LogKind, format string, args ...any) {
	b.log(kind, fmt.Sprintf(format, args...))
}
