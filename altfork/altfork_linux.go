// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package altfork

import (
	"golang.org/x/sys/unix"
)

// rawFork forks via clone(2). The flags reproduce what fork(2) would pass:
// SIGCHLD so the parent can wait4 the child, no shared address space.
//
// When the process is being ptraced, CLONE_PTRACE is added so the tracer
// automatically attaches to the child as well. Debuggers that set
// PTRACE_O_TRACEFORK expect this; omitting it makes the collector child
// invisible to them.
func rawFork() int {
	flags := uintptr(unix.SIGCHLD)
	if traced() {
		flags |= unix.CLONE_PTRACE
	}
	pid, _, errno := unix.RawSyscall6(unix.SYS_CLONE, flags, 0, 0, 0, 0, 0)
	if errno != 0 {
		return -int(errno)
	}
	return int(pid)
}

// traced reports whether a tracer is attached, by scanning /proc/self/status
// for a nonzero TracerPid. Only raw syscalls and a stack buffer are used so
// this stays callable from the crash path. Any read failure is treated as
// not traced.
func traced() bool {
	fd, err := unix.Open("/proc/self/status", unix.O_RDONLY, 0)
	if err != nil {
		return false
	}
	defer unix.Close(fd)

	var buf [4096]byte
	n, err := unix.Read(fd, buf[:])
	if err != nil || n <= 0 {
		return false
	}
	return tracerPidNonzero(buf[:n])
}

// tracerPidNonzero scans status-file content for a "TracerPid:" line with a
// nonzero value.
func tracerPidNonzero(data []byte) bool {
	const key = "TracerPid:"
	for start := 0; start < len(data); {
		end := start
		for end < len(data) && data[end] != '\n' {
			end++
		}
		line := data[start:end]
		if len(line) > len(key) && string(line[:len(key)]) == key {
			for _, c := range line[len(key):] {
				if c >= '1' && c <= '9' {
					return true
				}
				if c != ' ' && c != '\t' && c != '0' {
					break
				}
			}
			return false
		}
		start = end + 1
	}
	return false
}
