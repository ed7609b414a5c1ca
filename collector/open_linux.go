// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// rawOpen opens a NUL-terminated path read-only via the raw openat syscall.
// unix.Open would allocate for the path conversion, which the post-fork
// child cannot do; the session pre-terminates paths at Prepare time instead.
func rawOpen(path []byte) (int, unix.Errno) {
	// AT_FDCWD is negative; the sign conversion must happen on a value,
	// not on the untyped constant.
	dirfd := unix.AT_FDCWD
	fd, _, errno := unix.RawSyscall6(unix.SYS_OPENAT,
		uintptr(dirfd), uintptr(unsafe.Pointer(&path[0])),
		uintptr(unix.O_RDONLY), 0, 0, 0)
	if errno != 0 {
		return -1, errno
	}
	return int(fd), 0
}
