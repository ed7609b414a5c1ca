// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package altfork forks the process without running any runtime or libc
// machinery in the child.
//
// A regular fork runs pthread_atfork handlers and malloc lock fixups, none
// of which can be trusted while the process is crashing: another thread may
// hold the very lock a handler wants to take. Fork therefore issues the raw
// kernel syscall directly. The child it produces runs with the entire Go
// runtime in an undefined state and must restrict itself to raw syscalls
// (write, read, open, close, exit) until it calls exec or exits.
package altfork // import "go.opentelemetry.io/crashtracker/altfork"

// Fork creates a child process via a raw syscall.
//
// It returns 0 in the child, the child's pid in the parent, and a negative
// errno value if the kernel refused the fork. No error type is allocated on
// failure; the caller is typically a crash path that cannot allocate.
func Fork() int {
	return rawFork()
}
