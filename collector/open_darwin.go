// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// rawOpen opens a NUL-terminated path read-only via the raw open syscall,
// avoiding the path conversion allocation of unix.Open.
func rawOpen(path []byte) (int, unix.Errno) {
	fd, _, errno := unix.RawSyscall(unix.SYS_OPEN,
		uintptr(unsafe.Pointer(&path[0])), uintptr(unix.O_RDONLY), 0)
	if errno != 0 {
		return -1, errno
	}
	return int(fd), 0
}
