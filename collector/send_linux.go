// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// rawSend writes to the stream socket with MSG_NOSIGNAL so a vanished
// receiver surfaces as EPIPE instead of a SIGPIPE delivered under whatever
// disposition the crashing process happens to have.
func rawSend(fd int, buf []byte) (int, unix.Errno) {
	n, _, errno := unix.RawSyscall6(unix.SYS_SENDTO, uintptr(fd),
		uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)),
		unix.MSG_NOSIGNAL, 0, 0)
	if errno != 0 {
		return 0, errno
	}
	return int(n), 0
}
