//go:build windows

// File: transport/affinity_windows.go
// Package transport
// Author: momentics <momentics@gmail.com>
//
// Windows CPU affinity pinning via kernel32's SetThreadAffinityMask,
// grounded on the teacher's internal/concurrency/affinity_windows.go
// (golang.org/x/sys/windows.NewLazySystemDLL, since x/sys/windows does
// not wrap this API directly).

package transport

import (
	"log"
	"runtime"

	"golang.org/x/sys/windows"
)

var (
	modkernel32               = windows.NewLazySystemDLL("kernel32.dll")
	procSetThreadAffinityMask = modkernel32.NewProc("SetThreadAffinityMask")
	procGetCurrentThread      = modkernel32.NewProc("GetCurrentThread")
)

func setCPUAffinity(cpu int) {
	runtime.LockOSThread()
	handle, _, _ := procGetCurrentThread.Call()
	mask := uintptr(1) << uint(cpu)
	if old, _, err := procSetThreadAffinityMask.Call(handle, mask); old == 0 {
		log.Printf("transport: setCPUAffinity(%d) failed: %v", cpu, err)
	}
}
