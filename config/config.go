// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package config holds the crash tracker configuration types shared between
// the in-process handler, the forked collector and the receiver process.
//
// Both Configuration and ReceiverConfig are validated once at construction
// and treated as immutable afterwards: replacing either happens wholesale via
// the state slot, never by mutating a published value.
package config // import "go.opentelemetry.io/crashtracker/config"

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// StacktraceCollection controls whether and where stack frames are resolved
// to symbols. Collection happens in the context of a crashing process: if the
// stack is sufficiently corrupted it is possible (but unlikely) for collection
// itself to crash, so the mode can be downgraded per deployment.
type StacktraceCollection int

const (
	// Disabled skips stack collection entirely.
	Disabled StacktraceCollection = iota
	// WithoutSymbols collects raw frame addresses only.
	WithoutSymbols
	// EnabledWithInprocessSymbols resolves names in the crashing process,
	// before the collector is forked.
	EnabledWithInprocessSymbols
	// EnabledWithSymbolsInReceiver collects raw addresses and defers symbol
	// resolution to the receiver process.
	EnabledWithSymbolsInReceiver
)

var stacktraceCollectionNames = map[StacktraceCollection]string{
	Disabled:                     "disabled",
	WithoutSymbols:               "without_symbols",
	EnabledWithInprocessSymbols:  "inprocess_symbols",
	EnabledWithSymbolsInReceiver: "receiver_symbols",
}

func (s StacktraceCollection) String() string {
	if name, ok := stacktraceCollectionNames[s]; ok {
		return name
	}
	return fmt.Sprintf("StacktraceCollection(%d)", int(s))
}

const (
	// DefaultTimeout bounds a whole crash-handling session when the caller
	// passes a zero timeout.
	DefaultTimeout = 3 * time.Second

	// maxTimeout keeps the millisecond budget representable as a poll(2)
	// timeout argument.
	maxTimeout = time.Duration(1<<31-1) * time.Millisecond
)

// DefaultSignals returns the signal set tracked when the caller does not
// provide one.
func DefaultSignals() []unix.Signal {
	return []unix.Signal{unix.SIGBUS, unix.SIGABRT, unix.SIGSEGV, unix.SIGILL}
}

// Configuration is the immutable policy for crash detection and collection.
type Configuration struct {
	// AdditionalFiles are paths streamed into the crash report by the
	// collector, next to the defaults such as /proc/self/maps.
	AdditionalFiles []string `json:"additional_files,omitempty"`
	CreateAltStack  bool     `json:"create_alt_stack"`
	UseAltStack     bool     `json:"use_alt_stack"`
	// Endpoint is the upload sink, or nil to skip uploading.
	Endpoint      *Endpoint            `json:"endpoint,omitempty"`
	ResolveFrames StacktraceCollection `json:"resolve_frames"`
	Signals       []unix.Signal        `json:"signals"`
	Timeout       time.Duration        `json:"timeout_ms"`
	// UnixSocketPath, when set, makes the collector connect to a long-lived
	// receiver listening on this socket instead of spawning one per crash.
	UnixSocketPath string `json:"unix_socket_path,omitempty"`
	DemangleNames  bool   `json:"demangle_names"`
}

// configurationJSON is the wire form of Configuration. The timeout travels
// as integral milliseconds rather than Duration nanoseconds.
type configurationJSON struct {
	AdditionalFiles []string             `json:"additional_files,omitempty"`
	CreateAltStack  bool                 `json:"create_alt_stack"`
	UseAltStack     bool                 `json:"use_alt_stack"`
	Endpoint        *Endpoint            `json:"endpoint,omitempty"`
	ResolveFrames   StacktraceCollection `json:"resolve_frames"`
	Signals         []unix.Signal        `json:"signals"`
	TimeoutMillis   int64                `json:"timeout_ms"`
	UnixSocketPath  string               `json:"unix_socket_path,omitempty"`
	DemangleNames   bool                 `json:"demangle_names"`
}

func (c Configuration) MarshalJSON() ([]byte, error) {
	return json.Marshal(configurationJSON{
		AdditionalFiles: c.AdditionalFiles,
		CreateAltStack:  c.CreateAltStack,
		UseAltStack:     c.UseAltStack,
		Endpoint:        c.Endpoint,
		ResolveFrames:   c.ResolveFrames,
		Signals:         c.Signals,
		TimeoutMillis:   c.Timeout.Milliseconds(),
		UnixSocketPath:  c.UnixSocketPath,
		DemangleNames:   c.DemangleNames,
	})
}

func (c *Configuration) UnmarshalJSON(data []byte) error {
	var wire configurationJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*c = Configuration{
		AdditionalFiles: wire.AdditionalFiles,
		CreateAltStack:  wire.CreateAltStack,
		UseAltStack:     wire.UseAltStack,
		Endpoint:        wire.Endpoint,
		ResolveFrames:   wire.ResolveFrames,
		Signals:         wire.Signals,
		Timeout:         time.Duration(wire.TimeoutMillis) * time.Millisecond,
		UnixSocketPath:  wire.UnixSocketPath,
		DemangleNames:   wire.DemangleNames,
	}
	return nil
}

// New validates and builds a Configuration.
//
// Requesting to create, but not use, the alternate stack is paradoxical and
// rejected: the created stack would never see a signal delivered on it.
func New(additionalFiles []string, createAltStack, useAltStack bool,
	endpoint *Endpoint, resolveFrames StacktraceCollection,
	signals []unix.Signal, timeout time.Duration, unixSocketPath string,
	demangleNames bool) (*Configuration, error) {
	if createAltStack && !useAltStack {
		return nil, errors.New("cannot create an altstack without using it")
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	} else if timeout < 0 || timeout > maxTimeout {
		return nil, fmt.Errorf("timeout %v out of range", timeout)
	}
	if len(signals) == 0 {
		signals = DefaultSignals()
	}
	return &Configuration{
		AdditionalFiles: additionalFiles,
		CreateAltStack:  createAltStack,
		UseAltStack:     useAltStack,
		Endpoint:        endpoint,
		ResolveFrames:   resolveFrames,
		Signals:         signals,
		Timeout:         timeout,
		UnixSocketPath:  unixSocketPath,
		DemangleNames:   demangleNames,
	}, nil
}

// ReceiverConfig describes how the receiver process is spawned.
type ReceiverConfig struct {
	Args []string `json:"args"`
	Env  []string `json:"env"`
	// PathToReceiverBinary is the executable spawned per crash session when
	// Configuration.UnixSocketPath is unset.
	PathToReceiverBinary string `json:"path_to_receiver_binary"`
	StderrFilename       string `json:"stderr_filename,omitempty"`
	StdoutFilename       string `json:"stdout_filename,omitempty"`
}

// NewReceiverConfig validates and builds a ReceiverConfig. It fails if the
// binary path is empty, or if stdout and stderr would be redirected into the
// same file: the two writers would interleave and corrupt each other.
func NewReceiverConfig(args, env []string, pathToReceiverBinary,
	stderrFilename, stdoutFilename string) (*ReceiverConfig, error) {
	if pathToReceiverBinary == "" {
		return nil, errors.New("receiver binary path must not be empty")
	}
	if stderrFilename != "" && stderrFilename == stdoutFilename {
		return nil, fmt.Errorf(
			"stderr and stdout redirect into the same file %q", stderrFilename)
	}
	return &ReceiverConfig{
		Args:                 args,
		Env:                  env,
		PathToReceiverBinary: pathToReceiverBinary,
		StderrFilename:       stderrFilename,
		StdoutFilename:       stdoutFilename,
	}, nil
}
