// File: protocol/encoder.go
// Package protocol
// Author: momentics <momentics@gmail.com>
//
// The frame encoder (spec.md §4.3). Server frames are never masked.
// Outbound chunks are staged on a FIFO (github.com/eapache/queue,
// declared but unused in the teacher's own go.mod) and drained by
// Flush, which retries partial writes the way rfbWriteExact does in
// _examples/original_source/libvncserver/websockets.c.

package protocol

import (
	"encoding/base64"
	"encoding/binary"

	"github.com/eapache/queue"
	"github.com/momentics/wscore/api"
	"github.com/momentics/wscore/pool"
)

// EncodingMode selects the wire representation Encode produces.
type EncodingMode int

const (
	// EncodingBinary emits BINARY frames with the payload copied
	// verbatim.
	EncodingBinary EncodingMode = iota

	// EncodingBase64 emits TEXT frames whose payload is the Base64
	// encoding of the input, for legacy browsers lacking binary frame
	// support (spec.md §3).
	EncodingBase64
)

// Encoder turns caller byte runs into one or more unmasked frames and
// writes them to a bound Transport. Not safe for concurrent use.
type Encoder struct {
	mode EncodingMode

	chunkSize int
	scratch   []byte
	scratchBuf api.Buffer

	chunkPool *pool.BytePool // recycles the staged wire-chunk allocations below
	pending   *queue.Queue   // of []byte chunks awaiting Flush
}

// NewEncoder creates an Encoder whose outgoing frames carry at most
// chunkSize bytes of payload each.
func NewEncoder(mode EncodingMode, chunkSize int) *Encoder {
	if chunkSize <= 0 {
		chunkSize = DefaultScratchCapacity
	}
	return &Encoder{
		mode:      mode,
		chunkSize: chunkSize,
		scratch:   make([]byte, chunkSize+HeaderLenMax),
		chunkPool: pool.NewBytePool(chunkSize + HeaderLenMax),
		pending:   queue.New(),
	}
}

// NewPooledEncoder draws its scratch buffer from pool p.
func NewPooledEncoder(p api.BufferPool, mode EncodingMode, chunkSize int) *Encoder {
	if chunkSize <= 0 {
		chunkSize = DefaultScratchCapacity
	}
	buf := p.Get(chunkSize + HeaderLenMax)
	return &Encoder{
		mode:       mode,
		chunkSize:  chunkSize,
		scratch:    buf.Bytes(),
		scratchBuf: buf,
		chunkPool:  pool.NewBytePool(chunkSize + HeaderLenMax),
		pending:    queue.New(),
	}
}

// Close releases the pooled scratch buffer, if any.
func (e *Encoder) Close() {
	if e.scratchBuf != nil {
		e.scratchBuf.Release()
		e.scratchBuf = nil
	}
}

// Encode frames src — TEXT/Base64-encoded or BINARY/verbatim depending
// on e.mode — as one or more frames of at most e.chunkSize payload
// bytes each, and stages the wire bytes on the pending queue. Call
// Flush to actually write them to tr. Encode never emits continuation
// fragments: every frame has FIN=1, so a payload longer than chunkSize
// goes out as several independent messages.
func (e *Encoder) Encode(src []byte) error {
	var payload []byte
	opcode := OpcodeBinary
	if e.mode == EncodingBase64 {
		opcode = OpcodeText
		encLen := base64.StdEncoding.EncodedLen(len(src))
		encoded := make([]byte, encLen)
		base64.StdEncoding.Encode(encoded, src)
		payload = encoded
	} else {
		payload = src
	}

	if len(payload) == 0 {
		return e.encodeFrame(opcode, nil)
	}
	for off := 0; off < len(payload); off += e.chunkSize {
		end := off + e.chunkSize
		if end > len(payload) {
			end = len(payload)
		}
		if err := e.encodeFrame(opcode, payload[off:end]); err != nil {
			return err
		}
	}
	return nil
}

// EncodeControl frames a PING/PONG/CLOSE control message. payload must
// be at most MaxControlPayloadLen bytes (RFC 6455 §5.5).
func (e *Encoder) EncodeControl(opcode Opcode, payload []byte) error {
	if len(payload) > MaxControlPayloadLen {
		return ErrProto
	}
	return e.encodeFrame(opcode, payload)
}

func (e *Encoder) encodeFrame(opcode Opcode, payload []byte) error {
	headerLen := headerLenFor(len(payload))
	total := headerLen + len(payload)
	if total > len(e.scratch) {
		e.scratch = make([]byte, total)
	}
	buf := e.scratch[:total]

	buf[0] = finBit | byte(opcode)
	switch {
	case len(payload) < 126:
		buf[1] = byte(len(payload))
	case len(payload) <= 65535:
		buf[1] = 126
		binary.BigEndian.PutUint16(buf[2:4], uint16(len(payload)))
	default:
		buf[1] = 127
		binary.BigEndian.PutUint64(buf[2:10], uint64(len(payload)))
	}
	// MASK bit (0x80 of byte 1) stays clear: server frames are never masked.

	copy(buf[headerLen:], payload)

	full := e.chunkPool.Get()
	n := copy(full, buf)
	e.pending.Add(full[:n])
	return nil
}

func headerLenFor(payloadLen int) int {
	switch {
	case payloadLen < 126:
		return 2
	case payloadLen <= 65535:
		return 4
	default:
		return 10
	}
}

// HasPending reports whether Flush has outstanding chunks to write.
func (e *Encoder) HasPending() bool {
	return e.pending.Length() > 0
}

// Flush writes all staged chunks to tr, retrying partial writes until
// each chunk is fully written (mirroring rfbWriteExact) or the
// transport errors, in which case the undrained remainder of that
// chunk is pushed back to the front of the queue so a later Flush call
// can resume.
func (e *Encoder) Flush(tr api.Transport) error {
	for e.pending.Length() > 0 {
		chunk := e.pending.Peek().([]byte)
		written := 0
		for written < len(chunk) {
			n, err := tr.Write(chunk[written:])
			written += n
			if err != nil {
				if written > 0 {
					// The partially-written chunk must be drained next,
					// ahead of anything already queued behind it.
					// queue.Queue has no push-front, so rebuild order.
					e.pending.Remove()
					e.pending = requeueFront(e.pending, chunk[written:])
				}
				return err
			}
		}
		e.pending.Remove()
		e.chunkPool.Put(chunk)
	}
	return nil
}

// requeueFront returns a new queue with front prepended ahead of the
// remaining contents of q (q itself is drained in the process).
func requeueFront(q *queue.Queue, front []byte) *queue.Queue {
	nq := queue.New()
	nq.Add(front)
	for q.Length() > 0 {
		nq.Add(q.Remove())
	}
	return nq
}
