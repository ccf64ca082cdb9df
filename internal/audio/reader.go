package audio

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
)

// ReaderCapturer streams fixed-size PCM chunks from a file or FIFO. It is
// the microphone source for headless hosts.
type ReaderCapturer struct {
	open       func() (io.ReadCloser, error)
	frameBytes int

	mu     sync.Mutex
	rc     io.ReadCloser
	cancel context.CancelFunc
	done   chan struct{}
}

// NewReaderCapturer reads chunks of frameBytes from whatever open returns.
func NewReaderCapturer(open func() (io.ReadCloser, error), frameBytes int) *ReaderCapturer {
	if frameBytes <= 0 {
		frameBytes = FrameBytes(CaptureSampleRate, 100)
	}
	frameBytes -= frameBytes % BytesPerSample
	return &ReaderCapturer{open: open, frameBytes: frameBytes}
}

// NewFileCapturer reads PCM from path.
func NewFileCapturer(path string) *ReaderCapturer {
	return NewReaderCapturer(func() (io.ReadCloser, error) { return os.Open(path) }, 0)
}

// Start opens the source and streams chunks to sink until Stop, ctx
// cancellation, or end of input.
func (c *ReaderCapturer) Start(ctx context.Context, sink func([]byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rc != nil {
		return nil
	}
	rc, err := c.open()
	if err != nil {
		return errors.Join(ErrNoInput, err)
	}
	ctx, cancel := context.WithCancel(ctx)
	c.rc, c.cancel, c.done = rc, cancel, make(chan struct{})
	go c.pump(ctx, rc, sink, c.done)
	return nil
}

func (c *ReaderCapturer) pump(ctx context.Context, rc io.ReadCloser, sink func([]byte), done chan struct{}) {
	defer close(done)
	go func() {
		<-ctx.Done()
		_ = rc.Close()
	}()
	for {
		buf := make([]byte, c.frameBytes)
		n, err := io.ReadFull(rc, buf)
		n -= n % BytesPerSample
		if n > 0 && ctx.Err() == nil {
			sink(buf[:n])
		}
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				slog.Warn("audio input read failed", "error", err)
			}
			return
		}
	}
}

// Stop ends streaming and waits for the reader to exit.
func (c *ReaderCapturer) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.rc, c.cancel, c.done = nil, nil, nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
