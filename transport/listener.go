// File: transport/listener.go
// Package transport
// Author: momentics <momentics@gmail.com>
//
// Listener is a minimal TCP accept loop that performs the handshake
// and hands the upgraded connection to a caller-supplied handler.
// Grounded on the teacher's transport/tcp/listener.go StartTCPListener;
// the ad-hoc handshake inlined there is replaced with a call into
// protocol.PeekScheme/protocol.Handshake, and optional CPU affinity
// pinning (transport/affinity_*.go) is preserved as the same
// best-effort knob. This is example glue, not part of the core's
// public contract (spec.md §1 lists connection acceptance as an
// out-of-scope external collaborator).

package transport

import (
	"bufio"
	"log"
	"net"
	"time"

	"github.com/momentics/wscore/control"
	"github.com/momentics/wscore/protocol"
)

// ListenerConfig configures StartListener.
type ListenerConfig struct {
	Addr string

	// WorkerCPUs optionally pins the accept goroutine's OS thread to a
	// CPU (best-effort; see affinity_linux.go/_windows.go/_stub.go).
	WorkerCPUs []int

	Config *control.ConfigStore

	// Handler receives each successfully-upgraded connection. It owns
	// the connection's lifecycle from this point on.
	Handler func(*protocol.Conn)
}

// StartListener opens the TCP listening socket and runs the accept
// loop, performing the WebSocket handshake on each new connection
// before handing off to cfg.Handler.
func StartListener(cfg ListenerConfig) error {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	defer ln.Close()

	if len(cfg.WorkerCPUs) > 0 {
		setCPUAffinity(cfg.WorkerCPUs[0])
	}

	cfgStore := cfg.Config
	if cfgStore == nil {
		cfgStore = control.NewConfigStore()
	}

	for {
		conn, aerr := ln.Accept()
		if aerr != nil {
			log.Printf("transport: accept error: %v", aerr)
			continue
		}
		go acceptConn(conn, cfgStore, cfg.Handler)
	}
}

func acceptConn(conn net.Conn, cfgStore *control.ConfigStore, handler func(*protocol.Conn)) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("transport: panic handling connection: %v", r)
		}
	}()

	tr := NewTCPTransport(conn)
	waitMs := cfgStore.Int(control.KeyClientConnectWaitMs, 100)
	_ = conn.SetReadDeadline(time.Now().Add(time.Duration(waitMs) * time.Millisecond))

	br := bufio.NewReader(tr)
	peek, err := protocol.PeekScheme(tr, br)
	if err != nil || peek.Scheme == protocol.SchemeNone || peek.Scheme == protocol.SchemeFlash {
		conn.Close()
		return
	}
	if peek.Scheme == protocol.SchemeWSS {
		// TLS termination is this listener's caller's responsibility
		// (spec.md §1 lists transport, including TLS, as an
		// out-of-scope external collaborator); this example glue has
		// no certificate configured, so it declines wss connections
		// rather than silently downgrading them to plaintext.
		log.Printf("transport: wss connection requires a TLS-terminating transport, none configured")
		conn.Close()
		return
	}

	sendWaitMs := cfgStore.Int(control.KeyClientSendWaitMs, 100)
	_ = conn.SetReadDeadline(time.Now().Add(time.Duration(sendWaitMs) * time.Millisecond))

	result, herr := protocol.Handshake(tr, br)
	if herr != nil {
		log.Printf("transport: handshake failed: %v", herr)
		conn.Close()
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	ctx := protocol.NewContext(result.Protocol.EncodingMode(), protocol.DefaultScratchCapacity)
	wsConn := protocol.NewConn(tr, ctx, result.Path)

	if handler != nil {
		handler(wsConn)
	}
}
