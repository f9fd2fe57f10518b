// File: protocol/decoder.go
// Package protocol
// Author: momentics <momentics@gmail.com>
//
// The incremental frame decoder (spec.md §3, §4.2). Ported line-for-line
// off _examples/original_source/libvncserver/ws_decode.c
// (readHeader/readAndDecode/returnData/_webSocketsDecode), with the C
// union-based header aliasing replaced by fixed-offset reads and the
// errno-based error signalling replaced by Go's (int, error) idiom —
// see errors.go for exactly how that translation works.

package protocol

import (
	"encoding/base64"
	"encoding/binary"
	"io"

	"github.com/momentics/wscore/api"
)

// DefaultScratchCapacity is the default codeBufDecode size (spec.md §3:
// "A reasonable minimum is 8 KiB"). It must be at least HeaderLenMax
// plus one payload chunk plus 1 (for the Base64 NUL terminator slot).
const DefaultScratchCapacity = 8192

type decodeState int

const (
	stateHeaderPending decodeState = iota
	stateDataNeeded
	stateDataAvailable
	stateCloseReasonPending
	stateFrameComplete
	stateErr
)

// Decoder is the per-connection frame-decoding state machine. It is not
// safe for concurrent use; spec.md §5 assumes single-threaded-per-
// connection access, matching the rest of this package.
type Decoder struct {
	state decodeState

	header             frameHeader
	continuationOpcode Opcode

	buf      []byte
	scratch  api.Buffer // non-nil when buf was drawn from a pool
	writePos int
	readPos  int
	readlen  int

	nReadPayload uint64

	carryBuf [3]byte
	carrylen int

	pendingControl     Opcode
	dataFrameCompleted bool
}

// NewDecoder allocates a Decoder with its own scratch buffer of
// capacity bytes (capacity must be >= HeaderLenMax+1).
func NewDecoder(capacity int) *Decoder {
	if capacity < HeaderLenMax+1 {
		capacity = DefaultScratchCapacity
	}
	d := &Decoder{buf: make([]byte, capacity), pendingControl: OpcodeInvalid}
	d.resetComplete()
	return d
}

// NewPooledDecoder draws its scratch buffer from pool p and releases it
// back on Close.
func NewPooledDecoder(p api.BufferPool, capacity int) *Decoder {
	buf := p.Get(capacity)
	d := &Decoder{buf: buf.Bytes(), scratch: buf, pendingControl: OpcodeInvalid}
	d.resetComplete()
	return d
}

// Close releases the pooled scratch buffer, if any.
func (d *Decoder) Close() {
	if d.scratch != nil {
		d.scratch.Release()
		d.scratch = nil
	}
}

func (d *Decoder) remaining() uint64 {
	return d.header.payloadLen - d.nReadPayload
}

func (d *Decoder) resetBasics() {
	d.header.reset()
	d.nReadPayload = 0
	d.carrylen = 0
	d.readPos = 0
	d.readlen = 0
	d.writePos = 0
	d.state = stateHeaderPending
}

func (d *Decoder) resetForContinuation() {
	d.resetBasics()
}

func (d *Decoder) resetComplete() {
	d.resetBasics()
	d.continuationOpcode = OpcodeInvalid
}

// Decode emulates a blocking recv() on top of tr: it returns the
// number of decoded payload bytes written to dst (1..len(dst)),
// (0, io.EOF) if the transport closed in an orderly fashion, or
// (0, err) with err one of ErrAgain/ErrProto/ErrConnReset/ErrIO or a
// transport-forwarded error. See errors.go for the full mapping from
// spec.md §4.2's C-style return convention to this one.
//
// tr is rebound on every call (spec.md §4.4/§6): a caller may swap
// transports between calls, e.g. after completing a TLS handshake.
func (d *Decoder) Decode(tr api.Transport, dst []byte) (int, error) {
	var n int
	var err error

	switch d.state {
	case stateHeaderPending:
		var nInBuf int
		var next decodeState
		next, nInBuf, err = d.readHeader(tr)
		d.state = next
		if d.state == stateHeaderPending || d.state == stateErr {
			break
		}
		d.state, n, err = d.readAndDecode(tr, dst, nInBuf)
	case stateDataAvailable:
		d.state, n, err = d.returnData(dst)
	case stateDataNeeded, stateCloseReasonPending:
		d.state, n, err = d.readAndDecode(tr, dst, 0)
	default:
		d.state, n, err = stateErr, 0, ErrIO
	}

	switch d.state {
	case stateFrameComplete:
		if d.header.opcode.IsControl() {
			d.pendingControl = d.header.opcode
		}
		if d.header.fin && !d.header.opcode.IsControl() {
			d.dataFrameCompleted = true
			d.resetComplete()
		} else {
			d.resetForContinuation()
		}
	case stateErr:
		d.resetComplete()
	}

	return n, err
}

// TakeControlFrame reports the most recently fully-received control
// frame's opcode (PING/PONG/CLOSE) and clears it, so a caller such as
// Conn can react exactly once per completed control frame — e.g.
// auto-replying to a PING with a PONG, per spec.md §4.2's note that
// "the caller's layer may synthesise a PONG". Returns (OpcodeInvalid,
// false) if no control frame has completed since the last call.
func (d *Decoder) TakeControlFrame() (Opcode, bool) {
	if d.pendingControl == OpcodeInvalid {
		return OpcodeInvalid, false
	}
	op := d.pendingControl
	d.pendingControl = OpcodeInvalid
	return op, true
}

// TakeDataFrameCompleted reports and clears whether a complete
// (FIN=1) data message finished decoding since the last call, so a
// caller can count delivered messages separately from delivered bytes.
func (d *Decoder) TakeDataFrameCompleted() bool {
	v := d.dataFrameCompleted
	d.dataFrameCompleted = false
	return v
}

// readHeader reads and, once enough bytes have arrived, parses the
// frame header. It returns the number of already-buffered payload
// bytes (nInBuf) that arrived together with the header in the same
// read, so readAndDecode knows to unmask them too.
func (d *Decoder) readHeader(tr api.Transport) (decodeState, int, error) {
	n, rerr := tr.Read(d.buf[d.header.nDone:HeaderLenMax])
	if n <= 0 {
		if rerr == io.EOF {
			return stateErr, 0, io.EOF
		}
		return stateErr, 0, rerr
	}

	d.header.nDone += n
	if d.header.nDone < 2 {
		return stateHeaderPending, 0, ErrAgain
	}

	b0, b1 := d.buf[0], d.buf[1]
	opcode := Opcode(b0 & opcodeMask)
	fin := b0&finBit != 0

	if opcode.IsControl() {
		if !fin {
			// RFC 6455 §5.5: control frames must not be fragmented.
			return stateErr, 0, ErrProto
		}
		// continuationOpcode is left untouched: control frames may
		// interleave with an open fragmentation series.
	} else if opcode == OpcodeContinuation {
		if d.continuationOpcode == OpcodeInvalid {
			return stateErr, 0, ErrProto
		}
		opcode = d.continuationOpcode
	} else if fin {
		d.continuationOpcode = OpcodeInvalid
	} else {
		// A new non-FIN data frame while a series is already open
		// overwrites continuationOpcode rather than being rejected;
		// see SPEC_FULL.md §9 for why this matches the original C.
		d.continuationOpcode = opcode
	}
	d.header.opcode = opcode
	d.header.fin = fin

	if b1&maskBit == 0 {
		return stateErr, 0, ErrProto
	}

	lenByte := b1 & lenMask
	payloadLen := uint64(lenByte)

	switch {
	case lenByte < 126 && d.header.nDone >= HeaderLenShortMasked:
		d.header.headerLen = HeaderLenShortMasked
		copy(d.header.mask[:], d.buf[2:6])
	case lenByte == 126 && d.header.nDone >= HeaderLenExtended16:
		d.header.headerLen = HeaderLenExtended16
		payloadLen = uint64(binary.BigEndian.Uint16(d.buf[2:4]))
		copy(d.header.mask[:], d.buf[4:8])
	case lenByte == 127 && d.header.nDone >= HeaderLenExtended64:
		d.header.headerLen = HeaderLenExtended64
		payloadLen = binary.BigEndian.Uint64(d.buf[2:10])
		copy(d.header.mask[:], d.buf[10:14])
	default:
		// Not enough bytes yet to know the extended length.
		return stateHeaderPending, 0, ErrAgain
	}
	d.header.payloadLen = payloadLen

	// RFC 6455 mandates minimal-length encoding; reject anything else.
	if (d.header.headerLen > HeaderLenShortMasked && payloadLen < 126) ||
		(d.header.headerLen > HeaderLenExtended16 && payloadLen < 65536) {
		return stateErr, 0, ErrProto
	}

	d.writePos = d.header.nDone
	d.readPos = d.header.headerLen
	nInBuf := d.header.nDone - d.header.headerLen
	d.nReadPayload = uint64(nInBuf)

	return stateDataNeeded, nInBuf, nil
}

// readAndDecode reads more payload bytes (if any remain to be read),
// unmasks whatever is newly available (carried-over bytes + bytes
// already sitting in the buffer from the header read + freshly read
// bytes), Base64-decodes TEXT payloads in place, and hands off to
// returnData to copy decoded bytes out to dst.
func (d *Decoder) readAndDecode(tr api.Transport, dst []byte, nInBuf int) (decodeState, int, error) {
	copy(d.buf[d.writePos:], d.carryBuf[:d.carrylen])
	d.writePos += d.carrylen

	// -1 reserves room for the Base64 NUL terminator.
	bufsize := len(d.buf) - d.writePos - 1
	remaining := d.remaining()
	nextRead := int(remaining)
	if remaining > uint64(bufsize) {
		nextRead = bufsize
	}

	var n int
	if nextRead > 0 {
		var rerr error
		n, rerr = tr.Read(d.buf[d.writePos : d.writePos+nextRead])
		if n <= 0 {
			if rerr == io.EOF {
				return stateErr, 0, io.EOF
			}
			return stateErr, 0, rerr
		}
	}

	d.nReadPayload += uint64(n)
	d.writePos += n

	frameComplete := d.remaining() == 0

	toDecode := n + d.carrylen + nInBuf
	if toDecode < 0 {
		return stateErr, 0, ErrIO
	}

	dataStart := d.writePos - toDecode
	data := d.buf[dataStart : dataStart+toDecode]

	full := unmaskFullWords(data, d.header.mask)
	if frameComplete {
		unmaskTail(data[full:], d.header.mask, full)
		d.carrylen = 0
	} else {
		d.carrylen = toDecode - full
		if d.carrylen < 0 || d.carrylen > len(d.carryBuf) {
			return stateErr, 0, ErrIO
		}
		copy(d.carryBuf[:], data[full:toDecode])
		d.writePos -= d.carrylen
	}

	toReturn := toDecode - d.carrylen

	switch d.header.opcode {
	case OpcodeClose:
		if frameComplete {
			return stateFrameComplete, 0, ErrConnReset
		}
		return stateCloseReasonPending, 0, ErrAgain
	case OpcodeText:
		decoded, decErr := decodeBase64InPlace(data[:toReturn], bufsize)
		if decErr != nil {
			d.readlen = 0
		} else {
			d.readlen = decoded
		}
		d.writePos = d.header.headerLen
	case OpcodeBinary:
		d.readlen = toReturn
		d.writePos = d.header.headerLen
	default:
		// PING/PONG (and any other opcode reaching here): the payload
		// is unmasked above but not delivered upstream, per spec.md
		// §4.2. readlen stays 0; returnData below transitions state
		// purely from d.remaining().
	}
	d.readPos = dataStart

	return d.returnData(dst)
}

// returnData copies already-decoded bytes (d.readPos/d.readlen) into
// dst. If nothing has been decoded yet (readlen == 0, e.g. a
// zero-length or not-yet-fully-arrived data frame), it reports
// ErrAgain and transitions based on d.remaining() rather than any
// state the caller happened to be in before this call, since callers
// invoke returnData both directly (DATA_AVAILABLE) and from within
// readAndDecode (whose own d.state field is not yet updated for the
// call in progress).
func (d *Decoder) returnData(dst []byte) (decodeState, int, error) {
	if d.readlen <= 0 {
		if d.remaining() == 0 {
			return stateFrameComplete, 0, ErrAgain
		}
		return stateDataNeeded, 0, ErrAgain
	}
	n := copy(dst, d.buf[d.readPos:d.readPos+d.readlen])
	d.readlen -= n
	d.readPos += n
	if d.readlen > 0 {
		return stateDataAvailable, n, nil
	}
	if d.remaining() == 0 {
		return stateFrameComplete, n, nil
	}
	return stateDataNeeded, n, nil
}

// decodeBase64InPlace decodes the Base64 text in buf into the same
// backing array (safe because the decoded form is always shorter than
// or equal to the encoded form) and returns the decoded length. bufsize
// bounds how much room is available past buf for callers that pass a
// sub-slice of a larger buffer; base64 decoding never needs it since it
// only shrinks, but it is accepted for symmetry with the C signature
// (b64_pton takes a destination capacity).
func decodeBase64InPlace(buf []byte, bufsize int) (int, error) {
	dst := buf
	n, err := base64.StdEncoding.Decode(dst, buf)
	if err != nil {
		return 0, err
	}
	return n, nil
}
