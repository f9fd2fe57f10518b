// File: protocol/conn.go
// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Conn is the higher-level per-connection driver spec.md §4.4 leaves
// implicit ("the caller's layer may synthesise a PONG"): it owns a
// bound Transport and a Context, auto-replies to PING with PONG,
// shuts itself down on CLOSE, and tracks byte/frame counters the way
// the teacher's protocol/connection.go WSConnection does with
// sync/atomic.

package protocol

import (
	"io"
	"sync/atomic"

	"github.com/momentics/wscore/api"
)

// Conn drives a single upgraded WebSocket connection: repeated Recv
// calls decode application payload while transparently handling
// control frames. Not safe for concurrent use from multiple goroutines
// (spec.md §5: single-threaded per connection).
type Conn struct {
	tr   api.Transport
	ctx  *Context
	path string

	closed int32

	bytesReceived  int64
	bytesSent      int64
	framesReceived int64
	framesSent     int64
}

// NewConn binds tr and ctx into a driver. ctx must already be
// initialised via NewContext/NewPooledContext.
func NewConn(tr api.Transport, ctx *Context, path string) *Conn {
	return &Conn{tr: tr, ctx: ctx, path: path}
}

// Transport returns the bound transport, e.g. so a caller can query
// api.Deadliner or api.RawTransport capabilities.
func (c *Conn) Transport() api.Transport { return c.tr }

// Path returns the request path captured during the handshake.
func (c *Conn) Path() string { return c.path }

// Rebind swaps the underlying transport, per spec.md §4.4's "bind the
// transport callbacks ... between calls" — e.g. after completing a TLS
// handshake initiated mid-connection.
func (c *Conn) Rebind(tr api.Transport) { c.tr = tr }

// Recv decodes the next chunk of application payload into dst. When a
// PING or PONG frame completes it replies to a PING with a PONG and
// returns (0, ErrAgain), so the caller calls Recv again for the data
// that follows. A fully-received CLOSE frame becomes io.EOF after a
// best-effort CLOSE is echoed back and the transport is closed.
func (c *Conn) Recv(dst []byte) (int, error) {
	for {
		n, err := c.ctx.Decoder.Decode(c.tr, dst)

		if op, ok := c.ctx.Decoder.TakeControlFrame(); ok {
			atomic.AddInt64(&c.framesReceived, 1)
			switch op {
			case OpcodePing:
				if perr := c.sendControl(OpcodePong, nil); perr != nil {
					return 0, perr
				}
			case OpcodeClose:
				c.shutdown()
				return 0, io.EOF
			}
		}
		if c.ctx.Decoder.TakeDataFrameCompleted() {
			atomic.AddInt64(&c.framesReceived, 1)
		}

		if n > 0 {
			atomic.AddInt64(&c.bytesReceived, int64(n))
			return n, nil
		}
		if err == nil {
			continue
		}
		if err == ErrAgain {
			// A control frame was fully handled above with no user
			// payload; the caller should retry once more data is
			// available on the transport. Surface ErrAgain rather
			// than looping forever on a blocking transport.
			return 0, err
		}
		if err == ErrConnReset {
			c.shutdown()
			return 0, io.EOF
		}
		return 0, err
	}
}

// Send encodes and writes buf using the connection's negotiated
// encoding mode, as one FIN=1 frame per Encoder chunk (see
// Encoder.Encode).
func (c *Conn) Send(buf []byte) error {
	if err := c.ctx.Encoder.Encode(buf); err != nil {
		return err
	}
	if err := c.ctx.Encoder.Flush(c.tr); err != nil {
		return err
	}
	atomic.AddInt64(&c.bytesSent, int64(len(buf)))
	atomic.AddInt64(&c.framesSent, 1)
	return nil
}

func (c *Conn) sendControl(opcode Opcode, payload []byte) error {
	if err := c.ctx.Encoder.EncodeControl(opcode, payload); err != nil {
		return err
	}
	return c.ctx.Encoder.Flush(c.tr)
}

// HasBufferedData reports whether a Recv call would return data
// without blocking on the transport, mirroring
// webSocketsHasDataInBuffer in the original C: true whenever a
// previously-decoded frame still has undelivered payload bytes.
func (c *Conn) HasBufferedData() bool {
	return c.ctx.Decoder.readlen > 0
}

// Close shuts the connection down, sending a best-effort CLOSE frame
// first.
func (c *Conn) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	_ = c.sendControl(OpcodeClose, nil)
	return c.tr.Close()
}

func (c *Conn) shutdown() {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return
	}
	_ = c.sendControl(OpcodeClose, nil)
	_ = c.tr.Close()
}

// Stats is a point-in-time snapshot of a Conn's traffic counters.
type Stats struct {
	BytesReceived  int64
	BytesSent      int64
	FramesReceived int64
	FramesSent     int64
}

// Stats reports the connection's cumulative traffic counters.
func (c *Conn) Stats() Stats {
	return Stats{
		BytesReceived:  atomic.LoadInt64(&c.bytesReceived),
		BytesSent:      atomic.LoadInt64(&c.bytesSent),
		FramesReceived: atomic.LoadInt64(&c.framesReceived),
		FramesSent:     atomic.LoadInt64(&c.framesSent),
	}
}
