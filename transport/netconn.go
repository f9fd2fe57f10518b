// File: transport/netconn.go
// Package transport
// Author: momentics <momentics@gmail.com>
//
// TCPTransport adapts a net.Conn to the api.Transport contract the
// framing core consumes. Grounded on the teacher's transport/netconn.go
// NetConn; the pool-backed byte buffer wrapper was dropped since the
// core owns its own scratch buffers (protocol.Decoder/Encoder) and
// would otherwise double-buffer every read.

package transport

import (
	"net"
	"syscall"
	"time"
)

// TCPTransport wraps a net.Conn, implementing api.Transport and the
// optional api.Deadliner capability.
type TCPTransport struct {
	conn net.Conn
}

// NewTCPTransport wraps conn.
func NewTCPTransport(conn net.Conn) *TCPTransport {
	return &TCPTransport{conn: conn}
}

func (t *TCPTransport) Read(p []byte) (int, error) {
	return t.conn.Read(p)
}

func (t *TCPTransport) Write(p []byte) (int, error) {
	return t.conn.Write(p)
}

func (t *TCPTransport) Close() error {
	return t.conn.Close()
}

// SetReadDeadline implements api.Deadliner.
func (t *TCPTransport) SetReadDeadline(tm time.Time) error {
	return t.conn.SetReadDeadline(tm)
}

// RawFD implements api.RawTransport for conns exposing syscall.Conn
// (notably *net.TCPConn). Returns 0 if the underlying conn does not
// support it.
func (t *TCPTransport) RawFD() uintptr {
	sc, ok := t.conn.(syscall.Conn)
	if !ok {
		return 0
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return 0
	}
	var fd uintptr
	raw.Control(func(f uintptr) { fd = f })
	return fd
}
