//go:build linux

// File: transport/affinity_linux.go
// Package transport
// Author: momentics <momentics@gmail.com>
//
// Linux CPU affinity pinning for the accept goroutine, via
// golang.org/x/sys/unix (same package the teacher's reactor_linux.go
// uses for epoll) rather than raw syscall numbers.

package transport

import (
	"log"
	"runtime"

	"golang.org/x/sys/unix"
)

func setCPUAffinity(cpu int) {
	runtime.LockOSThread()
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		log.Printf("transport: setCPUAffinity(%d) failed: %v", cpu, err)
	}
}
