// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package counters tracks which profiler operations were in flight when a
// crash occurred.
//
// Profiling code brackets its phases with Begin/End pairs. When the crash
// handler fires, the current counter values are serialized into the report,
// so a crash inside, say, the unwinder shows up as unwinding > 0. Counters
// are plain atomics: bracketing an operation is two atomic adds and never
// blocks the instrumented code path.
package counters // import "go.opentelemetry.io/crashtracker/counters"

import (
	"fmt"
	"strconv"
	"sync/atomic"
)

// Op identifies a profiler operation phase.
type Op int

const (
	// OpNotProfiling brackets sections where the profiler is deliberately
	// idle, to distinguish "idle" from "never instrumented".
	OpNotProfiling Op = iota
	// OpCollectingSample brackets sample collection.
	OpCollectingSample
	// OpUnwinding brackets stack unwinding.
	OpUnwinding
	// OpSerializing brackets profile serialization.
	OpSerializing

	opCount
)

var opNames = [opCount]string{
	OpNotProfiling:     "not_profiling",
	OpCollectingSample: "collecting_sample",
	OpUnwinding:        "unwinding",
	OpSerializing:      "serializing",
}

func (o Op) String() string {
	if o < 0 || o >= opCount {
		return fmt.Sprintf("Op(%d)", int(o))
	}
	return opNames[o]
}

// Set is an instance-scoped group of operation counters. The zero value is
// ready for use with all counters at zero.
type Set struct {
	vals [opCount]atomic.Int64
}

// Begin marks entry into op. Out-of-range ops are ignored rather than
// panicking, since callers may bracket hot paths.
func (s *Set) Begin(op Op) {
	if op >= 0 && op < opCount {
		s.vals[op].Add(1)
	}
}

// End marks exit from op.
func (s *Set) End(op Op) {
	if op >= 0 && op < opCount {
		s.vals[op].Add(-1)
	}
}

// Reset zeroes every counter. Called in the child after a fork of the host
// process: inherited counter values describe the parent's activity, not the
// child's.
func (s *Set) Reset() {
	for i := range s.vals {
		s.vals[i].Store(0)
	}
}

// Snapshot returns the current value of every counter keyed by name.
func (s *Set) Snapshot() map[string]int64 {
	out := make(map[string]int64, opCount)
	for op := Op(0); op < opCount; op++ {
		out[op.String()] = s.vals[op].Load()
	}
	return out
}

// AppendJSON appends the counters as a JSON object to buf and returns the
// extended slice. It performs no allocation beyond growing buf, so the crash
// handler can serialize into a preallocated buffer.
func (s *Set) AppendJSON(buf []byte) []byte {
	buf = append(buf, '{')
	for op := Op(0); op < opCount; op++ {
		if op > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, '"')
		buf = append(buf, opNames[op]...)
		buf = append(buf, '"', ':')
		buf = strconv.AppendInt(buf, s.vals[op].Load(), 10)
	}
	return append(buf, '}')
}

// defaultSet backs the package-level convenience functions used by
// instrumented code that does not carry a Set of its own.
var defaultSet Set

// BeginOp marks entry into op on the default set.
func BeginOp(op Op) { defaultSet.Begin(op) }

// EndOp marks exit from op on the default set.
func EndOp(op Op) { defaultSet.End(op) }

// ResetCounters zeroes the default set.
func ResetCounters() { defaultSet.Reset() }

// Default returns the package-level set for serialization at crash time.
func Default() *Set { return &defaultSet }
