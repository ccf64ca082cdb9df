// Package action turns agent commands into synthesized input against the
// active surface.
package action

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/dgnsrekt/pulse/internal/errcode"
)

// Kind is the wire tag of a command.
type Kind string

const (
	KindClick       Kind = "click"
	KindType        Kind = "type"
	KindScroll      Kind = "scroll"
	KindSubmit      Kind = "enter"
	KindBack        Kind = "back"
	KindForward     Kind = "forward"
	KindExtractText Kind = "extract-text"

	// Surface-level commands are routed to the surface manager.
	KindNavigate  Kind = "navigate"
	KindNewTab    Kind = "new_tab"
	KindCloseTab  Kind = "close_tab"
	KindSwitchTab Kind = "switch_tab"
)

// DefaultScrollAmount is used when a scroll command carries no amount.
const DefaultScrollAmount = 500

// MaxExtractChars bounds the text returned by extract-text.
const MaxExtractChars = 5000

var aliases = map[string]Kind{
	"submit":       KindSubmit,
	"extractText":  KindExtractText,
	"extract_text": KindExtractText,
	"newTab":       KindNewTab,
	"closeTab":     KindCloseTab,
	"switchTab":    KindSwitchTab,
}

// Command is one instruction from the agent. Which fields matter depends
// on Kind.
type Command struct {
	Kind        Kind    `json:"action"`
	X           float64 `json:"x,omitempty"`
	Y           float64 `json:"y,omitempty"`
	Description string  `json:"description,omitempty"`
	Text        string  `json:"text,omitempty"`
	Direction   string  `json:"direction,omitempty"`
	Amount      int     `json:"amount,omitempty"`
	URL         string  `json:"url,omitempty"`
	TabID       int     `json:"tab_id,omitempty"`
}

// Result reports the outcome of a command.
type Result struct {
	Success bool   `json:"success"`
	Text    string `json:"text,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Ok returns a successful Result.
func Ok(text string) Result { return Result{Success: true, Text: text} }

// Fail returns a failed Result with reason.
func Fail(reason string) Result { return Result{Success: false, Error: reason} }

// ParseCommand decodes a command from its JSON form. Alias tags are
// canonicalized; unknown tags are kept so the executor can reject them.
func ParseCommand(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, errcode.Validation("decode command: %v", err)
	}
	cmd.Kind = Canonical(string(cmd.Kind))
	if cmd.Kind == "" {
		return Command{}, errcode.Validation("command has no action tag")
	}
	return cmd, nil
}

// Canonical maps accepted aliases onto their canonical Kind.
func Canonical(tag string) Kind {
	tag = strings.TrimSpace(tag)
	if k, ok := aliases[tag]; ok {
		return k
	}
	return Kind(tag)
}

// IsSurfaceCommand reports whether k changes the surface set rather than
// page content.
func (k Kind) IsSurfaceCommand() bool {
	switch k {
	case KindNavigate, KindNewTab, KindCloseTab, KindSwitchTab:
		return true
	}
	return false
}

// Validate checks the fields that k needs.
func (c Command) Validate() error {
	switch c.Kind {
	case KindClick:
		if !finite(c.X) || !finite(c.Y) {
			return errcode.Validation("click coordinates must be finite")
		}
	case KindScroll:
		if c.Amount < 0 {
			return errcode.Validation("scroll amount must not be negative")
		}
	case KindNavigate:
		if strings.TrimSpace(c.URL) == "" {
			return errcode.Validation("navigate requires url")
		}
	case KindSwitchTab:
		if c.TabID <= 0 {
			return errcode.Validation("switch_tab requires tab_id")
		}
	}
	return nil
}

// ScrollDelta returns the signed vertical offset for a scroll command.
func (c Command) ScrollDelta() int {
	amount := c.Amount
	if amount == 0 {
		amount = DefaultScrollAmount
	}
	if strings.EqualFold(c.Direction, "up") {
		return -amount
	}
	return amount
}

func (c Command) String() string {
	switch c.Kind {
	case KindClick:
		return fmt.Sprintf("click (%g, %g)", c.X, c.Y)
	case KindType:
		return fmt.Sprintf("type %q", c.Text)
	case KindScroll:
		return fmt.Sprintf("scroll %d", c.ScrollDelta())
	case KindNavigate, KindNewTab:
		return fmt.Sprintf("%s %s", c.Kind, c.URL)
	case KindSwitchTab:
		return fmt.Sprintf("switch_tab %d", c.TabID)
	}
	return string(c.Kind)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
