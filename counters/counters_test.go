// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package counters

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeginEnd(t *testing.T) {
	var s Set
	s.Begin(OpUnwinding)
	s.Begin(OpUnwinding)
	s.End(OpUnwinding)

	snap := s.Snapshot()
	assert.Equal(t, int64(1), snap["unwinding"])
	assert.Equal(t, int64(0), snap["serializing"])
}

func TestOutOfRangeOpIgnored(t *testing.T) {
	var s Set
	s.Begin(Op(99))
	s.End(Op(-1))
	for _, v := range s.Snapshot() {
		assert.Zero(t, v)
	}
}

// A reset set must not report activity inherited from before the reset. This
// is what keeps a forked child from attributing the parent's in-flight
// operations to itself.
func TestResetIsolation(t *testing.T) {
	var s Set
	s.Begin(OpCollectingSample)
	s.Begin(OpSerializing)

	s.Reset()
	for _, v := range s.Snapshot() {
		assert.Zero(t, v)
	}

	s.Begin(OpUnwinding)
	assert.Equal(t, int64(1), s.Snapshot()["unwinding"])
}

func TestAppendJSON(t *testing.T) {
	var s Set
	s.Begin(OpCollectingSample)
	s.Begin(OpUnwinding)
	s.End(OpUnwinding)
	s.Begin(OpUnwinding)

	buf := s.AppendJSON(make([]byte, 0, 128))
	var decoded map[string]int64
	require.NoError(t, json.Unmarshal(buf, &decoded))
	assert.Equal(t, map[string]int64{
		"not_profiling":     0,
		"collecting_sample": 1,
		"unwinding":         1,
		"serializing":       0,
	}, decoded)
}

func TestDefaultSet(t *testing.T) {
	ResetCounters()
	BeginOp(OpSerializing)
	assert.Equal(t, int64(1), Default().Snapshot()["serializing"])
	EndOp(OpSerializing)
	assert.Equal(t, int64(0), Default().Snapshot()["serializing"])
}
