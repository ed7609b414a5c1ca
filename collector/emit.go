// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"golang.org/x/sys/unix"

	"go.opentelemetry.io/crashtracker/wire"
)

// fileBufSize is the fixed stack buffer used to stream files. Small on
// purpose: the child must not allocate, and report files (/proc/self/maps
// and friends) are not latency sensitive.
const fileBufSize = 512

// Emit writes the prepared session to fd. It is the child's whole job after
// the fork and restricts itself to write/open/read/close; every byte except
// streamed file content was serialized by the parent beforehand.
//
// It returns the first errno encountered, or 0. EPIPE means the receiver
// went away; there is nobody left to report to, so the caller just exits.
func Emit(fd int, s *Session) unix.Errno {
	s.Prepare()
	for _, seg := range s.segments {
		if errno := sendAll(fd, seg); errno != 0 {
			return errno
		}
	}

	if len(s.fileJobs) > 0 {
		if errno := sendAll(fd, s.filesBegin); errno != 0 {
			return errno
		}
		for i := range s.fileJobs {
			if errno := streamFile(fd, &s.fileJobs[i]); errno != 0 {
				return errno
			}
		}
		if errno := sendAll(fd, s.filesEnd); errno != 0 {
			return errno
		}
	}

	return sendAll(fd, s.doneLine)
}

// Run is the child entry point: it closes the stdio the child inherited but
// must not touch, emits the session, and exits without returning. Stderr
// stays open so a failed emit can leave a one-line trace in the crashed
// process's error stream.
func Run(fd int, s *Session) {
	unix.Close(0)
	unix.Close(1)

	errno := Emit(fd, s)
	unix.Close(fd)
	if errno != 0 && errno != unix.EPIPE {
		writeAll(2, []byte("crashtracker: collector emit failed\n"))
		unix.Exit(1)
	}
	unix.Exit(0)
}

// sendAll retries short writes and EINTR until buf reaches the stream
// socket. SIGPIPE never fires here; a dead receiver is a plain EPIPE.
func sendAll(fd int, buf []byte) unix.Errno {
	for len(buf) > 0 {
		n, errno := rawSend(fd, buf)
		if errno == unix.EINTR {
			continue
		}
		if errno != 0 {
			return errno
		}
		buf = buf[n:]
	}
	return 0
}

// writeAll is sendAll for ordinary fds; only the stderr diagnostic in Run
// still needs it.
func writeAll(fd int, buf []byte) unix.Errno {
	for len(buf) > 0 {
		n, err := unix.Write(fd, buf)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			if errno, ok := err.(unix.Errno); ok {
				return errno
			}
			return unix.EIO
		}
		buf = buf[n:]
	}
	return 0
}

// streamFile copies one file into the stream bracketed by its markers. An
// unreadable file is skipped silently: the path was chosen by configuration
// in the parent and may legitimately be absent at crash time.
func streamFile(fd int, job *fileJob) unix.Errno {
	src, errno := rawOpen(job.path)
	if errno != 0 {
		return 0
	}

	if errno := sendAll(fd, job.beginLine); errno != 0 {
		unix.Close(src)
		return errno
	}

	var buf [fileBufSize]byte
	lastByte := byte('\n')
	for {
		n, err := unix.Read(src, buf[:])
		if err == unix.EINTR {
			continue
		}
		if err != nil || n == 0 {
			break
		}
		if errno := sendAll(fd, buf[:n]); errno != 0 {
			unix.Close(src)
			return errno
		}
		lastByte = buf[n-1]
	}
	unix.Close(src)

	// Keep the protocol line-oriented even for files without a trailing
	// newline.
	if lastByte != '\n' {
		if errno := sendAll(fd, newline); errno != 0 {
			return errno
		}
	}
	return sendAll(fd, endFileLine)
}

var endFileLine = []byte(wire.EndFile + "\n")
