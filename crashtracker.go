// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package crashtracker reports fatal signals in instrumented processes.
//
// Init arms a signal handler for a configured set of fatal signals. When
// one fires, a collector process is forked from the crashing process and
// streams everything known about the crash (signal identity, configuration,
// metadata, operation counters, stack frames, captured files) to a receiver
// process, which assembles a structured crash report, optionally resolves
// symbols, and uploads it. The crashing process then dies exactly as it
// would have without crash tracking.
//
// The handler path is deliberately paranoid: all serialization happens
// before the fork, the forked child restricts itself to raw syscalls, and
// every wait is bounded by a single session deadline so a wedged collector
// or receiver cannot keep a dying process alive.
package crashtracker // import "go.opentelemetry.io/crashtracker"

import (
	"golang.org/x/sys/unix"

	"go.opentelemetry.io/crashtracker/config"
	"go.opentelemetry.io/crashtracker/crashinfo"
	"go.opentelemetry.io/crashtracker/sighandler"
)

// Metadata identifies the instrumented library in crash reports.
type Metadata = crashinfo.Metadata

// DefaultSignals returns the signals tracked when the configuration does
// not name any.
func DefaultSignals() []unix.Signal {
	return config.DefaultSignals()
}

// Init starts crash tracking. The receiver configuration may be nil when
// cfg routes reports to a long-lived receiver via its unix socket path.
// Initializing twice without Shutdown is an error.
func Init(cfg *config.Configuration, rcfg *config.ReceiverConfig,
	md Metadata) error {
	return sighandler.Install(cfg, rcfg, md)
}

// Reconfigure atomically replaces the configuration and metadata used for
// subsequent crashes.
func Reconfigure(cfg *config.Configuration, rcfg *config.ReceiverConfig,
	md Metadata) error {
	return sighandler.Reconfigure(cfg, rcfg, md)
}

// Shutdown stops crash tracking and restores default signal dispositions.
// Idempotent.
func Shutdown() {
	sighandler.Uninstall()
}

// Enable re-arms crash tracking after a Disable.
func Enable() { sighandler.Enable() }

// Disable makes crash tracking a no-op without uninstalling it. Fatal
// signals keep their current behavior.
func Disable() { sighandler.Disable() }

// OnFork must be called in the child after forking an instrumented
// process; it clears inherited state that describes the parent. It does
// not take a configuration: the parent's signal-watching goroutine does
// not survive a fork without exec, so the child publishes its own
// configuration and metadata by calling Init itself.
func OnFork() {
	sighandler.OnFork()
}
