// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package sighandler

import (
	"encoding/json"
	"runtime"

	"go.opentelemetry.io/crashtracker/config"
	"go.opentelemetry.io/crashtracker/crashinfo"
)

// maxFrames bounds the captured stack depth.
const maxFrames = 128

// captureFrames serializes the current stack, one JSON frame per line,
// according to the configured collection mode. It runs in the handler
// before the fork, so the forked collector only copies the bytes out.
//
// With in-process symbols the runtime's own symbol tables resolve names
// immediately. The other enabled modes record raw program counters and
// leave resolution to the receiver.
func captureFrames(mode config.StacktraceCollection) [][]byte {
	if mode == config.Disabled {
		return nil
	}
	var pcs [maxFrames]uintptr
	// Skip runtime.Callers and this function; the crash handling frames
	// above remain visible, marking where the report was taken.
	n := runtime.Callers(2, pcs[:])
	if n == 0 {
		return nil
	}

	out := make([][]byte, 0, n)
	appendFrame := func(f crashinfo.StackFrame) {
		if line, err := json.Marshal(f); err == nil {
			out = append(out, line)
		}
	}

	if mode == config.EnabledWithInprocessSymbols {
		frames := runtime.CallersFrames(pcs[:n])
		for {
			frame, more := frames.Next()
			appendFrame(crashinfo.StackFrame{
				IP:       crashinfo.HexAddr(uint64(frame.PC)),
				Function: frame.Function,
				File:     frame.File,
				Line:     uint32(frame.Line),
			})
			if !more {
				break
			}
		}
		return out
	}
	for _, pc := range pcs[:n] {
		appendFrame(crashinfo.StackFrame{IP: crashinfo.HexAddr(uint64(pc))})
	}
	return out
}
