// File: protocol/context.go
// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Per-connection encode/decode lifecycle (spec.md §4.4). Grounded on
// the teacher's protocol/connection.go: a plain struct holding the
// codec pair plus the negotiated mode, allocated once at handshake
// success and released at teardown.

package protocol

import "github.com/momentics/wscore/api"

// Context bundles the decoder/encoder pair and negotiated encoding
// mode for one connection's lifetime. Allocate one with NewContext
// immediately after a successful Handshake.
type Context struct {
	Mode    EncodingMode
	Decoder *Decoder
	Encoder *Encoder
}

// NewContext allocates a fresh Context with both codecs in their
// initial state (HEADER_PENDING, continuation_opcode = INVALID).
func NewContext(mode EncodingMode, scratchCapacity int) *Context {
	return &Context{
		Mode:    mode,
		Decoder: NewDecoder(scratchCapacity),
		Encoder: NewEncoder(mode, scratchCapacity),
	}
}

// NewPooledContext draws both codecs' scratch buffers from pool p.
func NewPooledContext(p api.BufferPool, mode EncodingMode, scratchCapacity int) *Context {
	return &Context{
		Mode:    mode,
		Decoder: NewPooledDecoder(p, scratchCapacity),
		Encoder: NewPooledEncoder(p, mode, scratchCapacity),
	}
}

// Release returns any pooled scratch buffers held by the codecs. Call
// on connection teardown.
func (c *Context) Release() {
	c.Decoder.Close()
	c.Encoder.Close()
}
