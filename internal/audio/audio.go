// Package audio moves raw PCM between the operator and the session: mic
// input upstream to the agent, agent speech downstream for playback.
package audio

import (
	"context"
	"errors"
)

// PCM formats: 16-bit little-endian mono.
const (
	CaptureSampleRate  = 16000
	PlaybackSampleRate = 24000
	BytesPerSample     = 2
)

// ErrNoInput is returned by Start when no microphone source is available.
var ErrNoInput = errors.New("no audio input available")

// Capturer produces microphone PCM chunks in capture order.
type Capturer interface {
	Start(ctx context.Context, sink func(pcm []byte)) error
	Stop()
}

// Player accepts agent speech for playback.
type Player interface {
	Play(pcm []byte)
}

// FrameBytes is the size of a chunk holding ms milliseconds at rate.
func FrameBytes(rate, ms int) int {
	return rate * ms / 1000 * BytesPerSample
}
