// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package crashinfo

import "fmt"

// StackTraceFormat versions the frame schema inside reports.
const StackTraceFormat = "crashtracker/1.0"

// StackFrame is one resolved or unresolved frame of a crash stack. Absolute
// addresses are serialized as hex strings so 64-bit values survive JSON
// consumers that parse numbers as float64.
type StackFrame struct {
	IP            string `json:"ip,omitempty"`
	SP            string `json:"sp,omitempty"`
	ModuleBase    string `json:"module_base_address,omitempty"`
	SymbolAddress string `json:"symbol_address,omitempty"`

	// Path and RelativeAddress locate the frame inside its mapped binary,
	// for offline symbolization.
	BuildID         string `json:"build_id,omitempty"`
	Path            string `json:"path,omitempty"`
	RelativeAddress string `json:"relative_address,omitempty"`

	Function    string `json:"function,omitempty"`
	MangledName string `json:"mangled_name,omitempty"`
	File        string `json:"file,omitempty"`
	Line        uint32 `json:"line,omitempty"`

	// Comments records per-frame anomalies, such as symbolization errors,
	// without failing the whole trace.
	Comments []string `json:"comments,omitempty"`
}

// HexAddr formats an address the way frames carry them.
func HexAddr(addr uint64) string {
	return fmt.Sprintf("0x%x", addr)
}

// StackTrace is an ordered list of frames, innermost first.
type StackTrace struct {
	Format string       `json:"format"`
	Frames []StackFrame `json:"frames"`
	// Incomplete marks traces whose collection was cut short, for example
	// by the session timeout or a corrupted stack.
	Incomplete bool `json:"incomplete"`
}

// NewStackTrace builds a trace in the current format.
func NewStackTrace(frames []StackFrame, incomplete bool) StackTrace {
	if frames == nil {
		frames = []StackFrame{}
	}
	return StackTrace{Format: StackTraceFormat, Frames: frames, Incomplete: incomplete}
}

// MissingStackTrace is the placeholder for reports where no trace was
// received. It is distinct from an empty complete trace.
func MissingStackTrace() StackTrace {
	return StackTrace{Format: StackTraceFormat, Frames: []StackFrame{}, Incomplete: true}
}

// ThreadData is the stack of one non-crashing thread.
type ThreadData struct {
	Crashed bool       `json:"crashed"`
	Name    string     `json:"name"`
	Stack   StackTrace `json:"stack"`
}
