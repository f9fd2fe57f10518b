// File: protocol/errors.go
// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Sentinel errors returned by Decoder.Decode / Encoder.Encode, mirroring
// the errno values ws_decode.c sets (spec.md §7). Go idiom translation:
// the C entry point returns an int plus errno; here Decode returns
// (int, error). A positive n is payload bytes delivered; (0, io.EOF)
// means the transport closed in an orderly fashion (the C "sockRet=0"
// case); (0, one-of-these-sentinels) is the C "-1 plus errno" case.
// Transport-forwarded errors (other than io.EOF) are returned as-is, so
// callers can still errors.Is against them.

package protocol

import "github.com/momentics/wscore/api"

var (
	// ErrAgain means not enough bytes have arrived to make progress;
	// the caller should wait for the transport to become readable and
	// call Decode again. State is preserved verbatim.
	ErrAgain = api.NewError(api.ErrCodeTimeout, "protocol: insufficient data, retry")

	// ErrProto means a malformed frame was received: missing mask bit,
	// a fragmented control frame, a continuation with no opener, or a
	// non-minimal length encoding.
	ErrProto = api.NewError(api.ErrCodeProtocol, "protocol: malformed frame")

	// ErrConnReset means a CLOSE frame was fully received; the caller
	// should close the connection.
	ErrConnReset = api.NewError(api.ErrCodeProtocol, "protocol: close frame received")

	// ErrIO means an internal invariant was violated (a negative
	// decode count, carry-buffer overflow). Treat as fatal.
	ErrIO = api.NewError(api.ErrCodeInternal, "protocol: internal invariant violation")
)
