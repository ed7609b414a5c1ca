// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"golang.org/x/sys/unix"
)

// rawSend writes to the stream socket. There is no MSG_NOSIGNAL here;
// SIGPIPE suppression comes from the SO_NOSIGPIPE option the parent set on
// the socket before forking.
func rawSend(fd int, buf []byte) (int, unix.Errno) {
	n, err := unix.Write(fd, buf)
	if err != nil {
		if errno, ok := err.(unix.Errno); ok {
			return 0, errno
		}
		return 0, unix.EIO
	}
	return n, 0
}
