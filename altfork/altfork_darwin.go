// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package altfork

import "golang.org/x/sys/unix"

// rawFork forks via the fork syscall. Darwin reports the parent/child split
// through r2: both processes return from the syscall with the child pid in
// r1, and r2 set to 1 in the child and 0 in the parent.
func rawFork() int {
	pid, r2, errno := unix.RawSyscall(unix.SYS_FORK, 0, 0, 0)
	if errno != 0 {
		return -int(errno)
	}
	if r2 == 1 {
		return 0
	}
	return int(pid)
}
