// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package sighandler

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"go.opentelemetry.io/crashtracker/config"
	"go.opentelemetry.io/crashtracker/receiver"
	"go.opentelemetry.io/crashtracker/timeout"
)

// receiverHandle is the crash handler's connection to a receiver: either a
// process it spawned for this crash (oneshot), or a long-lived receiver
// reached over a unix socket.
type receiverHandle struct {
	// fd is the write end of the report stream, inherited by the forked
	// collector.
	fd      int
	pid     int
	oneshot bool
}

// spawnReceiver starts a oneshot receiver process with the read end of a
// socketpair as its stdin.
func spawnReceiver(rcfg *config.ReceiverConfig, sessionTimeoutMillis int64) (*receiverHandle, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("socketpair for receiver: %v", err)
	}
	parentEnd, childEnd := fds[0], fds[1]
	if err := setNoSigpipe(parentEnd); err != nil {
		log.WithError(err).Warn("Failed to suppress SIGPIPE on report stream")
	}
	childFile := os.NewFile(uintptr(childEnd), "crashtracker-stream")
	defer childFile.Close()

	cmd := exec.Command(rcfg.PathToReceiverBinary, rcfg.Args...)
	cmd.Stdin = childFile
	cmd.Env = append(append([]string{}, rcfg.Env...),
		fmt.Sprintf("%s=%s", receiver.TimeoutEnvVar,
			strconv.FormatInt(sessionTimeoutMillis, 10)))
	cmd.Stdout = redirectOrNull(rcfg.StdoutFilename)
	cmd.Stderr = redirectOrNull(rcfg.StderrFilename)

	if err := cmd.Start(); err != nil {
		unix.Close(parentEnd)
		return nil, fmt.Errorf("spawn receiver %s: %v",
			rcfg.PathToReceiverBinary, err)
	}
	return &receiverHandle{
		fd:      parentEnd,
		pid:     cmd.Process.Pid,
		oneshot: true,
	}, nil
}

// connectReceiver dials a long-lived receiver over its unix socket. The raw
// socket syscalls are used directly so the resulting fd has no net.Conn
// wrapper whose finalizer could close it behind the collector's back.
func connectReceiver(socketPath string) (*receiverHandle, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("socket for receiver: %v", err)
	}
	addr := &unix.SockaddrUnix{Name: socketPath}
	if err := unix.Connect(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("connect to receiver at %s: %v", socketPath, err)
	}
	if err := setNoSigpipe(fd); err != nil {
		log.WithError(err).Warn("Failed to suppress SIGPIPE on report stream")
	}
	return &receiverHandle{fd: fd}, nil
}

// finish wraps up the interaction after the collector has exited: wait for
// the receiver to drain the stream and hang up, then, for oneshot
// receivers, make sure the process is gone. SIGKILL is unconditional since
// there is no bound on how long a receiver stuck in an upload might take.
func (r *receiverHandle) finish(mgr *timeout.Manager) {
	// The collector's copy of the fd closed when it exited; closing ours
	// gives the receiver its EOF. Poll first so a receiver that already
	// hung up is observed, then close.
	hup, err := timeout.WaitForPollHup(r.fd, mgr)
	if err != nil {
		log.WithError(err).Warn("Failed to wait for receiver hangup")
	} else if !hup {
		log.Warn("Receiver did not hang up within the session budget")
	}
	unix.Close(r.fd)

	if r.oneshot && r.pid > 1 {
		if _, err := timeout.KillAndReap(r.pid, mgr); err != nil {
			log.WithError(err).Warn("Failed to reap receiver")
		}
	}
}

// redirectOrNull opens path append-only for a receiver's stdio redirect, or
// returns nil (inherit /dev/null via exec.Cmd) when no path is configured
// or the file cannot be opened. Crash handling proceeds without redirects.
func redirectOrNull(path string) *os.File {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.WithError(err).Warnf("Failed to open receiver redirect %s", path)
		return nil
	}
	return f
}
