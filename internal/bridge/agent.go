package bridge

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dgnsrekt/pulse/internal/action"
	"github.com/dgnsrekt/pulse/internal/agentstate"
	"github.com/dgnsrekt/pulse/internal/transport"
)

type actionJob struct {
	id  string
	cmd action.Command
}

var _ transport.Handler = (*Bridge)(nil)

// ExecuteAction runs one command against the session and reports it to the
// operator. Surface commands go to the manager, the rest to the executor.
func (b *Bridge) ExecuteAction(ctx context.Context, cmd action.Command) action.Result {
	start := b.opts.Clock.Now()
	var res action.Result
	if cmd.Kind.IsSurfaceCommand() {
		res = b.surfaceCommand(ctx, cmd)
	} else {
		res = b.executor.Execute(ctx, cmd)
	}
	b.opts.Metrics.ActionDone(string(cmd.Kind), res.Success, b.opts.Clock.Now().Sub(start))

	b.log(LogAction, cmd.String())
	if !res.Success {
		b.logf(LogError, "%s: %s", cmd.Kind, res.Error)
	}
	return res
}

// actionWorker executes agent actions one at a time in arrival order.
func (b *Bridge) actionWorker() {
	for {
		select {
		case job := <-b.actions:
			res := b.ExecuteAction(b.ctx, job.cmd)
			b.reply(job.id, string(job.cmd.Kind), res)
		case <-b.ctx.Done():
			return
		}
	}
}

func (b *Bridge) reply(id, kind string, res action.Result) {
	msg := transport.ActionResult(id, kind, res.Success, res.Text, res.Error)
	if !b.opts.Sender.SendControl(msg) {
		slog.Debug("action result dropped, agent offline", "action", kind, "id", id)
	}
}

// HandleBinary forwards agent audio to the operator verbatim.
func (b *Bridge) HandleBinary(data []byte) {
	if b.opts.Player == nil || len(data) == 0 {
		return
	}
	b.opts.Player.Play(data)
}

// HandleControl routes one decoded control message. It runs on the channel's
// reader and never blocks on action execution.
func (b *Bridge) HandleControl(msg transport.Message) {
	switch msg.Type {
	case transport.TypeAction:
		b.enqueueAction(msg)
	case transport.TypeStatus:
		if err := b.state.Apply(msg.State); err != nil {
			b.logf(LogError, "agent status: %v", err)
		}
	case transport.TypeTranscript:
		if text := strings.TrimSpace(msg.Text); text != "" {
			b.log(LogAgent, text)
		}
	case transport.TypeError:
		text := msg.Message
		if text == "" {
			text = msg.Text
		}
		b.logf(LogError, "agent: %s", text)
	default:
		slog.Debug("ignoring control message", "type", msg.Type)
	}
}

func (b *Bridge) enqueueAction(msg transport.Message) {
	cmd, err := action.ParseCommand(msg.Raw)
	if err != nil {
		b.logf(LogError, "agent action: %v", err)
		b.reply(msg.ID, msg.Action, action.Fail(err.Error()))
		return
	}
	select {
	case b.actions <- actionJob{id: msg.ID, cmd: cmd}:
	default:
		b.logf(LogError, "action queue full, rejecting %s", cmd.Kind)
		b.reply(msg.ID, string(cmd.Kind), action.Fail("action queue full"))
	}
}

func (b *Bridge) Connected() {
	b.disconnect.Store(0)
	b.opts.Broker.Publish(EventTransportConnected, map[string]any{"connected": true})
}

// Disconnected counts consecutive failures and notifies the operator every
// NotifyAfter of them.
func (b *Bridge) Disconnected() {
	n := b.disconnect.Add(1)
	b.opts.Broker.Publish(EventTransportDisconnected, map[string]any{"connected": false, "attempts": n})
	if every := int64(b.opts.NotifyAfter); every > 0 && n%every == 0 {
		b.logf(LogError, "agent unreachable after %d attempts", n)
		if b.opts.Notifier != nil {
			go func() {
				if err := b.opts.Notifier.DisconnectStreak(b.ctx, int(n)); err != nil {
					slog.Debug("disconnect notification not sent", "error", err)
				}
			}()
		}
	}
}

// AgentStatus is the agent-facing state reported to the operator.
type AgentStatus struct {
	State     agentstate.State `json:"state"`
	Connected bool             `json:"connected"`
	Capturing bool             `json:"capturing"`
	Failures  int64            `json:"consecutive_failures"`
}

func (b *Bridge) AgentStatus() AgentStatus {
	return AgentStatus{
		State:     b.state.State(),
		Connected: b.opts.Sender.IsConnected(),
		Capturing: b.capturing.Load(),
		Failures:  b.disconnect.Load(),
	}
}
