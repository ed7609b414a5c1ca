// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package sighandler

import (
	"golang.org/x/sys/unix"
)

// setNoSigpipe marks the stream socket so writes to a vanished receiver
// fail with EPIPE instead of raising SIGPIPE. The option lives on the file
// description and is inherited by the forked collector, which keeps the
// process's own SIGPIPE disposition untouched.
func setNoSigpipe(fd int) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_NOSIGPIPE, 1)
}
