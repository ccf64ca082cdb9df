package transport

import (
	"bytes"
	"context"
	"io"
	"net"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Conn is one established websocket connection.
type Conn interface {
	// Read blocks for the next data message and reports whether it was
	// binary.
	Read() (data []byte, binary bool, err error)
	WriteBinary(data []byte) error
	WriteText(data []byte) error
	Close() error
}

// Dialer opens connections to the agent endpoint.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WSDialer dials with gobwas/ws as a websocket client.
type WSDialer struct {
	Dialer ws.Dialer
}

func (d WSDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, _, _, err := d.Dialer.Dial(ctx, url)
	if err != nil {
		return nil, err
	}
	return &wsConn{conn: conn}, nil
}

// wsConn writes every frame, control replies included, with one Write under
// mu so frames from the reader and writer goroutines never interleave.
type wsConn struct {
	conn net.Conn
	mu   sync.Mutex
}

func (c *wsConn) Read() ([]byte, bool, error) {
	rd := wsutil.Reader{
		Source:         c.conn,
		State:          ws.StateClientSide,
		CheckUTF8:      true,
		OnIntermediate: c.control,
	}
	for {
		hdr, err := rd.NextFrame()
		if err != nil {
			return nil, false, err
		}
		if hdr.OpCode.IsControl() {
			if err := c.control(hdr, &rd); err != nil {
				return nil, false, err
			}
			continue
		}
		if hdr.OpCode != ws.OpBinary && hdr.OpCode != ws.OpText {
			if err := rd.Discard(); err != nil {
				return nil, false, err
			}
			continue
		}
		data, err := io.ReadAll(&rd)
		if err != nil {
			return nil, false, err
		}
		return data, hdr.OpCode == ws.OpBinary, nil
	}
}

// control answers pings and closes from the read loop.
func (c *wsConn) control(h ws.Header, r io.Reader) error {
	var reply bytes.Buffer
	err := wsutil.ControlHandler{
		Src:                 r,
		Dst:                 &reply,
		State:               ws.StateClientSide,
		DisableSrcCiphering: true,
	}.Handle(h)
	if reply.Len() > 0 {
		if werr := c.send(reply.Bytes()); err == nil {
			err = werr
		}
	}
	return err
}

func (c *wsConn) WriteBinary(data []byte) error {
	return c.writeMessage(ws.OpBinary, data)
}

func (c *wsConn) WriteText(data []byte) error {
	return c.writeMessage(ws.OpText, data)
}

func (c *wsConn) writeMessage(op ws.OpCode, data []byte) error {
	var frame bytes.Buffer
	frame.Grow(len(data) + ws.MaxHeaderSize)
	if err := wsutil.WriteMessage(&frame, ws.StateClientSide, op, data); err != nil {
		return err
	}
	return c.send(frame.Bytes())
}

func (c *wsConn) send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.conn.Write(frame)
	return err
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
