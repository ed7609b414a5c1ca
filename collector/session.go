// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package collector emits the crash report stream from the forked child.
//
// Everything the child writes is serialized BEFORE the fork, while the
// parent can still safely allocate. The child itself runs against a
// corrupted process image and is restricted to raw syscalls: it only walks
// prebuilt byte slices and a fixed-size read buffer.
package collector // import "go.opentelemetry.io/crashtracker/collector"

import (
	"go.opentelemetry.io/crashtracker/wire"
)

// Session is the fully serialized content of one crash report stream.
type Session struct {
	// The JSON payloads, one line each, without trailing newline. Empty
	// slices skip their section.
	SigInfoJSON  []byte
	ProcInfoJSON []byte
	ConfigJSON   []byte
	MetadataJSON []byte
	CountersJSON []byte
	// FrameJSON holds one serialized frame per element.
	FrameJSON [][]byte
	// ThreadJSON holds one serialized non-crashing thread per element.
	// Embedders whose runtime can enumerate thread stacks fill it in.
	ThreadJSON [][]byte
	// Files lists paths the child streams verbatim into the report.
	Files []string

	segments   [][]byte
	fileJobs   []fileJob
	filesBegin []byte
	filesEnd   []byte
	doneLine   []byte
	prepared   bool
}

type fileJob struct {
	// path is NUL-terminated for the raw open syscall in the child.
	path      []byte
	beginLine []byte
}

var newline = []byte("\n")

// Prepare assembles the exact byte sequences the child will write. It must
// run before the fork; Emit performs no allocation afterwards.
func (s *Session) Prepare() {
	if s.prepared {
		return
	}
	add := func(segs ...[]byte) {
		s.segments = append(s.segments, segs...)
	}
	section := func(begin string, payload []byte, end string) {
		if len(payload) == 0 {
			return
		}
		add([]byte(begin), newline, payload, newline, []byte(end), newline)
	}
	section(wire.BeginSigInfo, s.SigInfoJSON, wire.EndSigInfo)
	section(wire.BeginProcInfo, s.ProcInfoJSON, wire.EndProcInfo)
	section(wire.BeginConfig, s.ConfigJSON, wire.EndConfig)
	section(wire.BeginMetadata, s.MetadataJSON, wire.EndMetadata)
	section(wire.BeginCounters, s.CountersJSON, wire.EndCounters)

	if len(s.FrameJSON) > 0 {
		add([]byte(wire.BeginStacktrace), newline)
		for _, frame := range s.FrameJSON {
			add(frame, newline)
		}
		add([]byte(wire.EndStacktrace), newline)
	}

	if len(s.ThreadJSON) > 0 {
		add([]byte(wire.BeginThreads), newline)
		for _, thread := range s.ThreadJSON {
			add(thread, newline)
		}
		add([]byte(wire.EndThreads), newline)
	}

	for _, path := range s.Files {
		s.fileJobs = append(s.fileJobs, fileJob{
			path:      append([]byte(path), 0),
			beginLine: []byte(wire.BeginFile + " " + path + "\n"),
		})
	}
	s.filesBegin = []byte(wire.BeginFiles + "\n")
	s.filesEnd = []byte(wire.EndFiles + "\n")
	s.doneLine = []byte(wire.Done + "\n")
	s.prepared = true
}
