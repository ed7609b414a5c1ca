// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire defines the line-oriented protocol spoken between the
// collector forked off a crashing process and the receiver.
//
// The protocol is deliberately primitive: every message is one line of
// text, sections are bracketed by BEGIN/END markers, and the stream ends
// with a bare DONE. A crashing process cannot afford framing layers, and a
// line-based stream stays debuggable with cat.
package wire // import "go.opentelemetry.io/crashtracker/wire"

// Section markers, in the order the collector emits them. All sections
// except SIGINFO are optional on the wire; the receiver accepts any subset
// but requires each BEGIN to be closed by its END.
const (
	BeginSigInfo    = "BEGIN_SIGINFO"
	EndSigInfo      = "END_SIGINFO"
	BeginProcInfo   = "BEGIN_PROCINFO"
	EndProcInfo     = "END_PROCINFO"
	BeginConfig     = "BEGIN_CONFIG"
	EndConfig       = "END_CONFIG"
	BeginMetadata   = "BEGIN_METADATA"
	EndMetadata     = "END_METADATA"
	BeginCounters   = "BEGIN_COUNTERS"
	EndCounters     = "END_COUNTERS"
	BeginStacktrace = "BEGIN_STACKTRACE"
	EndStacktrace   = "END_STACKTRACE"
	BeginThreads    = "BEGIN_THREADS"
	EndThreads      = "END_THREADS"
	BeginFiles      = "BEGIN_FILES"
	EndFiles        = "END_FILES"

	// BeginFile opens one file inside the FILES section; the file path
	// follows the marker on the same line, separated by one space.
	BeginFile = "BEGIN_FILE"
	EndFile   = "END_FILE"

	// Done terminates a complete session. Anything missing after Done is
	// missing on purpose.
	Done = "DONE"
)
