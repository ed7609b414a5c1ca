// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"go.opentelemetry.io/crashtracker/wire"
)

// streamPair builds the same transport production uses: a unix stream
// socketpair with the read end wrapped for scanning.
func streamPair(t *testing.T) (*os.File, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	return os.NewFile(uintptr(fds[0]), "stream-read"), fds[1]
}

// emitToLines runs Emit against a stream socket and returns it as lines.
func emitToLines(t *testing.T, s *Session) []string {
	t.Helper()
	r, w := streamPair(t)

	done := make(chan []string)
	go func() {
		var lines []string
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		done <- lines
	}()

	errno := Emit(w, s)
	require.Zero(t, errno)
	unix.Close(w)
	lines := <-done
	r.Close()
	return lines
}

func TestEmitFullSession(t *testing.T) {
	dir := t.TempDir()
	mapsFile := filepath.Join(dir, "maps")
	require.NoError(t, os.WriteFile(mapsFile,
		[]byte("00400000-00452000 r-xp 00000000 08:02 1 /bin/x\n"), 0o644))

	s := &Session{
		SigInfoJSON:  []byte(`{"si_signo":11}`),
		ProcInfoJSON: []byte(`{"pid":1234}`),
		ConfigJSON:   []byte(`{"timeout_ms":3000}`),
		MetadataJSON: []byte(`{"library_name":"lib"}`),
		CountersJSON: []byte(`{"unwinding":1}`),
		FrameJSON:    [][]byte{[]byte(`{"ip":"0x1"}`), []byte(`{"ip":"0x2"}`)},
		Files:        []string{mapsFile},
	}

	lines := emitToLines(t, s)
	want := []string{
		wire.BeginSigInfo, `{"si_signo":11}`, wire.EndSigInfo,
		wire.BeginProcInfo, `{"pid":1234}`, wire.EndProcInfo,
		wire.BeginConfig, `{"timeout_ms":3000}`, wire.EndConfig,
		wire.BeginMetadata, `{"library_name":"lib"}`, wire.EndMetadata,
		wire.BeginCounters, `{"unwinding":1}`, wire.EndCounters,
		wire.BeginStacktrace, `{"ip":"0x1"}`, `{"ip":"0x2"}`, wire.EndStacktrace,
		wire.BeginFiles,
		wire.BeginFile + " " + mapsFile,
		"00400000-00452000 r-xp 00000000 08:02 1 /bin/x",
		wire.EndFile,
		wire.EndFiles,
		wire.Done,
	}
	assert.Equal(t, want, lines)
}

func TestEmitThreadsSection(t *testing.T) {
	s := &Session{
		SigInfoJSON: []byte(`{"si_signo":6}`),
		ThreadJSON: [][]byte{
			[]byte(`{"name":"worker-1"}`),
			[]byte(`{"name":"worker-2"}`),
		},
	}
	lines := emitToLines(t, s)
	assert.Equal(t, []string{
		wire.BeginSigInfo, `{"si_signo":6}`, wire.EndSigInfo,
		wire.BeginThreads, `{"name":"worker-1"}`, `{"name":"worker-2"}`, wire.EndThreads,
		wire.Done,
	}, lines)
}

func TestEmitSkipsEmptySections(t *testing.T) {
	s := &Session{SigInfoJSON: []byte(`{"si_signo":6}`)}
	lines := emitToLines(t, s)
	assert.Equal(t, []string{
		wire.BeginSigInfo, `{"si_signo":6}`, wire.EndSigInfo,
		wire.Done,
	}, lines)
}

func TestEmitSkipsMissingFile(t *testing.T) {
	s := &Session{
		SigInfoJSON: []byte(`{}`),
		Files:       []string{"/definitely/not/there"},
	}
	lines := emitToLines(t, s)
	assert.Equal(t, []string{
		wire.BeginSigInfo, `{}`, wire.EndSigInfo,
		wire.BeginFiles,
		wire.EndFiles,
		wire.Done,
	}, lines)
}

// A file without a trailing newline must not glue its last line to the
// END_FILE marker.
func TestEmitFileWithoutTrailingNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial")
	require.NoError(t, os.WriteFile(path, []byte("no newline"), 0o644))

	s := &Session{SigInfoJSON: []byte(`{}`), Files: []string{path}}
	lines := emitToLines(t, s)
	assert.Contains(t, lines, "no newline")
	assert.Contains(t, lines, wire.EndFile)
}

// A file larger than the streaming buffer arrives intact.
func TestEmitLargeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "large")
	content := make([]byte, 0, fileBufSize*4)
	for i := 0; i < 100; i++ {
		content = append(content, []byte("line with some padding to cross buffer boundaries\n")...)
	}
	require.NoError(t, os.WriteFile(path, content, 0o644))

	s := &Session{SigInfoJSON: []byte(`{}`), Files: []string{path}}
	lines := emitToLines(t, s)
	count := 0
	for _, l := range lines {
		if l == "line with some padding to cross buffer boundaries" {
			count++
		}
	}
	assert.Equal(t, 100, count)
}

// A receiver that hung up must surface as EPIPE, never as a SIGPIPE
// delivered to the process.
func TestEmitClosedStreamReportsEPIPE(t *testing.T) {
	r, w := streamPair(t)
	require.NoError(t, r.Close())
	defer unix.Close(w)

	errno := sendAll(w, []byte("x"))
	assert.Equal(t, unix.EPIPE, errno)
}

func TestPrepareIdempotent(t *testing.T) {
	s := &Session{SigInfoJSON: []byte(`{}`)}
	s.Prepare()
	n := len(s.segments)
	s.Prepare()
	assert.Equal(t, n, len(s.segments))
}
