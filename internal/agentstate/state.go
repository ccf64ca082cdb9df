// Package agentstate tracks the coarse agent status shown to the operator.
package agentstate

import (
	"fmt"
	"sync"
)

// State is the agent's coarse status.
type State string

const (
	Idle      State = "idle"
	Listening State = "listening"
	Thinking  State = "thinking"
	Speaking  State = "speaking"
)

// Parse validates a wire state string.
func Parse(s string) (State, error) {
	switch st := State(s); st {
	case Idle, Listening, Thinking, Speaking:
		return st, nil
	}
	return "", fmt.Errorf("unknown agent state %q", s)
}

// Transition is delivered to observers on every state change.
type Transition struct {
	From State `json:"from"`
	To   State `json:"to"`
}

// Controller holds the current state. Local capture start/stop and agent
// status reports both move it; agent reports always win.
type Controller struct {
	mu        sync.Mutex
	state     State
	observers []func(Transition)
}

// NewController starts idle.
func NewController() *Controller {
	return &Controller{state: Idle}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Observe registers fn for transitions. fn runs synchronously and must
// not call back into the Controller.
func (c *Controller) Observe(fn func(Transition)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// CaptureStarted records that microphone capture began.
func (c *Controller) CaptureStarted() {
	c.set(Listening)
}

// CaptureStopped records that microphone capture ended. It only leaves
// listening; any state reported by the agent is kept.
func (c *Controller) CaptureStopped() {
	c.mu.Lock()
	listening := c.state == Listening
	c.mu.Unlock()
	if listening {
		c.set(Idle)
	}
}

// Apply overwrites the state with one reported by the agent.
func (c *Controller) Apply(status string) error {
	st, err := Parse(status)
	if err != nil {
		return err
	}
	c.set(st)
	return nil
}

func (c *Controller) set(to State) {
	c.mu.Lock()
	from := c.state
	if from == to {
		c.mu.Unlock()
		return
	}
	c.state = to
	observers := make([]func(Transition), len(c.observers))
	copy(observers, c.observers)
	c.mu.Unlock()

	for _, fn := range observers {
		fn(Transition{From: from, To: to})
	}
}
