// File: cmd/wsecho/main.go
// Author: momentics <momentics@gmail.com>
//
// Echo WebSocket server example built on the framing core, exercising
// transport.Listener, protocol.Conn and control.MetricsRegistry.
// Grounded on the teacher's examples/lowlevel/echo/main.go: flag-driven
// configuration, a debug-probe registry, and periodic stats output.

package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/momentics/wscore/control"
	"github.com/momentics/wscore/protocol"
	"github.com/momentics/wscore/transport"
)

func main() {
	addr := flag.String("addr", ":9001", "WebSocket listen address")
	cpu := flag.Int("cpu", -1, "CPU to pin the accept goroutine to (-1 = no pinning)")
	flag.Parse()

	cfgStore := control.NewConfigStore()
	metrics := control.NewMetricsRegistry()
	debug := control.NewDebugProbes()

	var activeConns int64
	var totalMsgs int64

	debug.RegisterProbe("active_connections", func() any {
		return atomic.LoadInt64(&activeConns)
	})
	debug.RegisterProbe("messages_processed", func() any {
		return atomic.LoadInt64(&totalMsgs)
	})

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			state := debug.DumpState()
			fmt.Printf("[%s] active=%v msgs=%v\n",
				time.Now().Format(time.Stamp),
				state["active_connections"], state["messages_processed"])
		}
	}()

	var workerCPUs []int
	if *cpu >= 0 {
		workerCPUs = []int{*cpu}
	}

	log.Printf("wsecho: listening on %s", *addr)
	err := transport.StartListener(transport.ListenerConfig{
		Addr:       *addr,
		WorkerCPUs: workerCPUs,
		Config:     cfgStore,
		Handler: func(conn *protocol.Conn) {
			atomic.AddInt64(&activeConns, 1)
			defer atomic.AddInt64(&activeConns, -1)
			defer conn.Close()

			buf := make([]byte, 65536)
			for {
				n, rerr := conn.Recv(buf)
				if n > 0 {
					atomic.AddInt64(&totalMsgs, 1)
					if serr := conn.Send(buf[:n]); serr != nil {
						log.Printf("wsecho: send error on %s: %v", conn.Path(), serr)
						return
					}
				}
				if rerr != nil {
					if rerr != io.EOF && rerr != protocol.ErrAgain {
						log.Printf("wsecho: recv error on %s: %v", conn.Path(), rerr)
					}
					if rerr == io.EOF {
						return
					}
				}
				stats := conn.Stats()
				control.RecordConnStats(metrics, conn.Path(), stats.BytesReceived,
					stats.BytesSent, stats.FramesReceived, stats.FramesSent)
			}
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "wsecho: %v\n", err)
		os.Exit(1)
	}
}
