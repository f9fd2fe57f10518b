// File: api/transport.go
// Package api
// Author: momentics <momentics@gmail.com>
//
// Transport abstraction consumed by the handshake and framing core.
// The core never talks to a socket directly: every byte in or out goes
// through these two methods, so the same decoder/encoder can sit on top
// of a plain TCP connection, a TLS connection, or a test double.

package api

import "time"

// Transport is the narrow read/write contract the framing core depends
// on. It deliberately does not expose anything socket-specific: no
// deadlines, no file descriptors. Read and Write may return fewer bytes
// than requested; this is the normal case, not an error.
type Transport interface {
	// Read reads into p, returning the number of bytes read. Returning
	// (0, nil) is not a valid result; io.EOF or another error must be
	// returned instead once the peer has closed its side.
	Read(p []byte) (int, error)

	// Write writes p, returning the number of bytes actually written.
	Write(p []byte) (int, error)

	// Close releases the underlying connection. Close must be safe to
	// call more than once.
	Close() error
}

// Deadliner is an optional capability a Transport may implement so a
// caller can bound how long reads wait, e.g. for the first bytes of a
// connection during the handshake's peek (spec §4.1). Nothing in the
// framing core calls it: protocol.PeekScheme sets no deadline itself.
type Deadliner interface {
	SetReadDeadline(t time.Time) error
}

// RawTransport is an optional capability exposing the OS-level file
// descriptor, for an embedder that drives the fd directly. Nothing in
// this module calls RawFD; the CPU-affinity pinning in
// transport/affinity_*.go pins the calling thread, not a connection.
type RawTransport interface {
	Transport
	RawFD() uintptr
}
