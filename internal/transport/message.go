package transport

import (
	"encoding/json"
	"fmt"
)

// Control message types.
const (
	TypeAction       = "action"
	TypeActionResult = "action_result"
	TypeTranscript   = "transcript"
	TypeStatus       = "status"
	TypeError        = "error"
	TypeTextCommand  = "text_command"
)

var knownTypes = map[string]bool{
	TypeAction:       true,
	TypeActionResult: true,
	TypeTranscript:   true,
	TypeStatus:       true,
	TypeError:        true,
	TypeTextCommand:  true,
}

// Message is a JSON control message. Raw holds the full inbound text so
// type-specific payloads (actions) can be decoded by their owner.
type Message struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Action  string `json:"action,omitempty"`
	Text    string `json:"text,omitempty"`
	State   string `json:"state,omitempty"`
	Message string `json:"message,omitempty"`
	Success *bool  `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
	Status  string `json:"status,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// DecodeMessage parses a text frame. Frames without a known type are
// rejected.
func DecodeMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode control message: %w", err)
	}
	if !knownTypes[msg.Type] {
		return Message{}, fmt.Errorf("unknown control message type %q", msg.Type)
	}
	msg.Raw = append(json.RawMessage(nil), data...)
	return msg, nil
}

// ActionResult builds the reply to an action. id is echoed when the
// action carried one.
func ActionResult(id, action string, success bool, text, errMsg string) Message {
	status := "ok"
	if !success {
		status = "error"
	}
	return Message{
		Type:    TypeActionResult,
		ID:      id,
		Action:  action,
		Success: &success,
		Text:    text,
		Error:   errMsg,
		Status:  status,
	}
}

// TextCommand builds an operator text instruction.
func TextCommand(text string) Message {
	return Message{Type: TypeTextCommand, Text: text}
}
