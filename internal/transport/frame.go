package transport

import (
	"errors"
	"fmt"
)

// FrameKind is the discriminator byte at the head of a binary frame.
type FrameKind byte

const (
	FrameAudio FrameKind = 0x01
	FrameImage FrameKind = 0x02
)

var ErrEmptyFrame = errors.New("empty binary frame")

func (k FrameKind) String() string {
	switch k {
	case FrameAudio:
		return "audio"
	case FrameImage:
		return "image"
	}
	return fmt.Sprintf("0x%02x", byte(k))
}

// EncodeFrame prefixes payload with its kind byte.
func EncodeFrame(kind FrameKind, payload []byte) []byte {
	out := make([]byte, 1+len(payload))
	out[0] = byte(kind)
	copy(out[1:], payload)
	return out
}

// DecodeFrame splits a binary frame into kind and payload. The payload
// aliases frame.
func DecodeFrame(frame []byte) (FrameKind, []byte, error) {
	if len(frame) == 0 {
		return 0, nil, ErrEmptyFrame
	}
	kind := FrameKind(frame[0])
	switch kind {
	case FrameAudio, FrameImage:
		return kind, frame[1:], nil
	}
	return 0, nil, fmt.Errorf("unknown frame kind %s", kind)
}
