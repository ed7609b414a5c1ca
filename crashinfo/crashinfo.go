// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package crashinfo defines the crash report document and its assembly.
//
// A report is assembled incrementally by the receiver as protocol sections
// arrive. Single-valued fields reject a second assignment: a duplicated
// section in the stream signals collector confusion and must surface as an
// error rather than silently overwrite data.
package crashinfo // import "go.opentelemetry.io/crashtracker/crashinfo"

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DataSchemaVersion versions the report document itself.
const DataSchemaVersion = "1.0"

// ErrorKind classifies what produced the report.
const (
	ErrorKindUnixSignal     = "UnixSignal"
	SourceTypeCrashtracking = "Crashtracking"
)

// ErrorData describes the error at the heart of the report.
type ErrorData struct {
	IsCrash    bool         `json:"is_crash"`
	Kind       string       `json:"kind"`
	Message    string       `json:"message,omitempty"`
	SourceType string       `json:"source_type"`
	Stack      StackTrace   `json:"stack"`
	Threads    []ThreadData `json:"threads,omitempty"`
}

// OSInfo describes the host the crash happened on.
type OSInfo struct {
	Architecture string `json:"architecture"`
	Bitness      string `json:"bitness"`
	OSType       string `json:"os_type"`
	Version      string `json:"version"`
}

// ProcInfo identifies the crashed process.
type ProcInfo struct {
	PID int `json:"pid"`
}

// CrashInfo is the complete crash report.
type CrashInfo struct {
	Counters          map[string]int64    `json:"counters,omitempty"`
	DataSchemaVersion string              `json:"data_schema_version"`
	Error             ErrorData           `json:"error"`
	Files             map[string][]string `json:"files,omitempty"`
	// Incomplete marks reports whose session ended before DONE arrived.
	Incomplete  bool      `json:"incomplete"`
	LogMessages []string  `json:"log_messages,omitempty"`
	Metadata    Metadata  `json:"metadata"`
	OSInfo      OSInfo    `json:"os_info"`
	ProcInfo    *ProcInfo `json:"proc_info,omitempty"`
	SigInfo     *SigInfo  `json:"sig_info,omitempty"`
	Timestamp   string    `json:"timestamp"`
	UUID        string    `json:"uuid"`

	metadataSet bool
}

// New creates an empty report with a fresh identity. The stack starts out
// marked incomplete until a trace is set or the report is finalized.
func New() *CrashInfo {
	return &CrashInfo{
		DataSchemaVersion: DataSchemaVersion,
		Error: ErrorData{
			IsCrash:    true,
			Kind:       ErrorKindUnixSignal,
			SourceType: SourceTypeCrashtracking,
			Stack:      MissingStackTrace(),
		},
		Incomplete: true,
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		UUID:       uuid.New().String(),
	}
}

// SetSigInfo records the fatal signal. When no message has been recorded
// yet, the signal also provides the report message.
func (ci *CrashInfo) SetSigInfo(si SigInfo) error {
	if ci.SigInfo != nil {
		return fmt.Errorf("sig_info already set")
	}
	ci.SigInfo = &si
	if ci.Error.Message == "" {
		ci.Error.Message = si.CrashMessage()
	}
	return nil
}

// SetProcInfo records the crashed process identity.
func (ci *CrashInfo) SetProcInfo(pi ProcInfo) error {
	if ci.ProcInfo != nil {
		return fmt.Errorf("proc_info already set")
	}
	ci.ProcInfo = &pi
	return nil
}

// SetMetadata records the library metadata. Metadata is not required to
// carry any particular field, so set-ness is tracked explicitly.
func (ci *CrashInfo) SetMetadata(md Metadata) error {
	if ci.metadataSet {
		return fmt.Errorf("metadata already set")
	}
	ci.Metadata = md
	ci.metadataSet = true
	return nil
}

// SetCounters records the operation counters.
func (ci *CrashInfo) SetCounters(counters map[string]int64) error {
	if ci.Counters != nil {
		return fmt.Errorf("counters already set")
	}
	ci.Counters = counters
	return nil
}

// SetStack records the crashing thread's trace.
func (ci *CrashInfo) SetStack(stack StackTrace) error {
	if len(ci.Error.Stack.Frames) != 0 || !ci.Error.Stack.Incomplete {
		return fmt.Errorf("stack already set")
	}
	ci.Error.Stack = stack
	return nil
}

// AddThread appends another thread's trace.
func (ci *CrashInfo) AddThread(td ThreadData) {
	ci.Error.Threads = append(ci.Error.Threads, td)
}

// AddFile records the captured content of one file, split into lines.
func (ci *CrashInfo) AddFile(path string, lines []string) {
	if ci.Files == nil {
		ci.Files = make(map[string][]string)
	}
	ci.Files[path] = lines
}

// Log appends a free-form diagnostic message to the report. Protocol
// anomalies end up here so a damaged stream still tells its story.
func (ci *CrashInfo) Log(msg string) {
	ci.LogMessages = append(ci.LogMessages, msg)
}

// Finalize marks the report complete. Reports that never see Finalize keep
// Incomplete set, which is how truncated sessions are distinguished.
func (ci *CrashInfo) Finalize() {
	ci.Incomplete = false
}
