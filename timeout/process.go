// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package timeout

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

const (
	// reapPollInterval is how often ReapChild re-checks a child that has
	// not exited yet.
	reapPollInterval = 10 * time.Millisecond

	// MinimumReapTime is granted to KillAndReap even when the session
	// budget is already exhausted. A SIGKILLed child exits promptly; giving
	// up before the kernel delivers the signal would leak a zombie.
	MinimumReapTime = 100 * time.Millisecond
)

// WaitForPollHup blocks until the peer of fd hangs up, meaning the reader has
// consumed everything and closed, or the manager's budget runs out. It
// returns true on hangup, false on timeout.
func WaitForPollHup(fd int, m *Manager) (bool, error) {
	for {
		remaining := m.Remaining()
		if remaining == 0 {
			return false, nil
		}
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLHUP}}
		n, err := unix.Poll(fds, int(remaining.Milliseconds())+1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("poll on fd %d: %v", fd, err)
		}
		if n == 0 {
			return false, nil
		}
		if fds[0].Revents&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 {
			return true, nil
		}
	}
}

// ReapChild waits for pid to exit within the manager's remaining budget,
// polling with WNOHANG so a stuck child cannot block the session. It returns
// true once the child has been reaped, false if the budget ran out first.
//
// A blocking wait4 is deliberately avoided: the child runs arbitrary
// collection code against a corrupted process image and may never exit.
func ReapChild(pid int, m *Manager) (bool, error) {
	return reapUntil(pid, m.Deadline())
}

// KillAndReap sends SIGKILL to pid and reaps it. It is the teardown path for
// receiver processes that outlive their session. Even with an exhausted
// budget it waits MinimumReapTime so the kill can take effect.
func KillAndReap(pid int, m *Manager) (bool, error) {
	if err := unix.Kill(pid, unix.SIGKILL); err != nil && err != unix.ESRCH {
		return false, fmt.Errorf("kill pid %d: %v", pid, err)
	}
	deadline := m.Deadline()
	if min := time.Now().Add(MinimumReapTime); deadline.Before(min) {
		deadline = min
	}
	return reapUntil(pid, deadline)
}

func reapUntil(pid int, deadline time.Time) (bool, error) {
	for {
		var status unix.WaitStatus
		got, err := unix.Wait4(pid, &status, unix.WNOHANG, nil)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.ECHILD:
			// Already reaped elsewhere, or never our child.
			return true, nil
		case err != nil:
			return false, fmt.Errorf("wait4 pid %d: %v", pid, err)
		case got == pid:
			return true, nil
		}
		if !time.Now().Before(deadline) {
			return false, nil
		}
		time.Sleep(reapPollInterval)
	}
}
