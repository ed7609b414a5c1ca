// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package crashinfo // import "go.opentelemetry.io/crashtracker/crashinfo"

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// SigInfo captures the identity of the fatal signal.
type SigInfo struct {
	// Address is the faulting address as a hex string, when the signal
	// carries one (SIGSEGV, SIGBUS).
	Address string `json:"si_addr,omitempty"`
	Code    int    `json:"si_code"`
	Signo   int    `json:"si_signo"`
	SigName string `json:"si_signo_human_readable"`
}

// NewSigInfo builds a SigInfo for sig. addr is the faulting address, or zero
// for signals that do not fault on an address.
func NewSigInfo(sig unix.Signal, code int, addr uintptr) SigInfo {
	si := SigInfo{
		Code:    code,
		Signo:   int(sig),
		SigName: SignalName(sig),
	}
	if addr != 0 {
		si.Address = fmt.Sprintf("0x%x", addr)
	}
	return si
}

// SignalName returns the symbolic name for sig, or "UNKNOWN" for signals the
// platform does not name.
func SignalName(sig unix.Signal) string {
	if name := unix.SignalName(sig); name != "" {
		return name
	}
	return "UNKNOWN"
}

// CrashMessage is the human-readable one-liner derived from the signal,
// used when no explicit message was recorded.
func (si SigInfo) CrashMessage() string {
	return fmt.Sprintf("Process terminated with %s", si.SigName)
}
