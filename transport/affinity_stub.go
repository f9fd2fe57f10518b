//go:build !linux && !windows

// File: transport/affinity_stub.go
// Package transport
// Author: momentics <momentics@gmail.com>
//
// Fallback for platforms without a CPU affinity implementation,
// grounded on the teacher's affinity/affinity_stub.go.

package transport

func setCPUAffinity(cpu int) {}
