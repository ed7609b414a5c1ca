// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package sighandler owns the crash signal path: it watches the configured
// fatal signals and, when one arrives, forks a collector to stream the
// crash report to a receiver before letting the process die.
//
// Signal delivery uses os/signal rather than raw sigaction: the Go runtime
// owns the process's signal handlers and an alternate C-style handler would
// fight it. The handling goroutine does all allocation and serialization up
// front, forks the collector with a raw clone, and re-raises the signal with
// the default disposition restored so the process still dies (and dumps
// core) exactly as it would have without crash tracking.
package sighandler // import "go.opentelemetry.io/crashtracker/sighandler"

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"go.opentelemetry.io/crashtracker/altfork"
	"go.opentelemetry.io/crashtracker/collector"
	"go.opentelemetry.io/crashtracker/config"
	"go.opentelemetry.io/crashtracker/counters"
	"go.opentelemetry.io/crashtracker/crashinfo"
	"go.opentelemetry.io/crashtracker/timeout"
)

var (
	// enabled gates the handler without uninstalling it: a disabled
	// tracker observes signals, does nothing, and chains.
	enabled atomic.Bool

	// crashCount enforces at most one report per process. A second fatal
	// signal, including one caused by the handler itself, goes straight
	// to the chain.
	crashCount atomic.Uint64

	installMu sync.Mutex
	installed bool
	sigCh     chan os.Signal
	handlerWG sync.WaitGroup
	sigList   []unix.Signal
)

// ErrAlreadyInstalled is returned by Install when crash tracking is active.
var ErrAlreadyInstalled = errors.New("crash tracker already installed")

// Install publishes the configuration and starts watching the configured
// signals. Installing twice without an Uninstall in between is an error;
// use Reconfigure to replace the published state.
func Install(cfg *config.Configuration, rcfg *config.ReceiverConfig,
	md crashinfo.Metadata) error {
	installMu.Lock()
	defer installMu.Unlock()
	if installed {
		return ErrAlreadyInstalled
	}
	if cfg.UnixSocketPath == "" && rcfg == nil {
		return errors.New("either a receiver binary or a receiver socket is required")
	}

	snap, err := newSnapshot(cfg, rcfg, md)
	if err != nil {
		return err
	}
	activeState.Publish(snap)

	// The alternate-stack flags are validated in config but need no work
	// here: the Go runtime already services signals on dedicated stacks.
	sigList = append([]unix.Signal(nil), cfg.Signals...)
	sigCh = make(chan os.Signal, len(sigList))
	for _, sig := range sigList {
		signal.Notify(sigCh, syscall.Signal(sig))
	}

	handlerWG.Add(1)
	go func() {
		defer handlerWG.Done()
		for sig := range sigCh {
			handleSignal(sig.(syscall.Signal))
		}
	}()

	enabled.Store(true)
	installed = true
	log.Infof("Crash tracker installed for %d signals", len(sigList))
	return nil
}

// Uninstall stops watching signals and drops the published state. It is
// idempotent; uninstalling a non-installed tracker is a no-op.
func Uninstall() {
	installMu.Lock()
	defer installMu.Unlock()
	if !installed {
		return
	}
	enabled.Store(false)
	signal.Stop(sigCh)
	close(sigCh)
	handlerWG.Wait()
	for _, sig := range sigList {
		signal.Reset(syscall.Signal(sig))
	}
	sigList = nil
	sigCh = nil
	activeState.Clear()
	installed = false
	log.Info("Crash tracker uninstalled")
}

// Reconfigure atomically replaces the published configuration and metadata.
// The crash path observes either the old snapshot or the new one, never a
// mix.
func Reconfigure(cfg *config.Configuration, rcfg *config.ReceiverConfig,
	md crashinfo.Metadata) error {
	installMu.Lock()
	defer installMu.Unlock()
	if !installed {
		return errors.New("crash tracker not installed")
	}
	snap, err := newSnapshot(cfg, rcfg, md)
	if err != nil {
		return err
	}
	activeState.Publish(snap)
	return nil
}

// Enable re-arms a disabled tracker. No-op when not installed.
func Enable() { enabled.Store(true) }

// Disable turns crash handling into a no-op without uninstalling. Signals
// still chain to previously registered handlers.
func Disable() { enabled.Store(false) }

// OnFork restores crash tracking invariants in a child process after a
// fork of the host application: counters describing the parent's activity
// are zeroed so the child does not report operations it never ran. The
// parent's handler goroutine and signal registrations do not survive the
// fork; a child that wants crash tracking of its own calls Install with
// its own configuration.
func OnFork() {
	counters.ResetCounters()
}

// handleSignal is the crash path. It must not return to normal execution:
// after the report is handed off (or given up on), the signal is re-raised
// with default disposition so the process dies as it would have.
func handleSignal(sig syscall.Signal) {
	if !enabled.Load() || crashCount.Add(1) > 1 {
		reraise(sig)
		return
	}

	if err := handleCrash(unix.Signal(sig)); err != nil {
		log.WithError(err).Error("Crash report failed")
	}
	reraise(sig)
}

func handleCrash(sig unix.Signal) error {
	// Consume the snapshot. Leaving the slot empty means a racing second
	// crash finds nothing to do.
	snap := activeState.Clear()
	if snap == nil {
		return errors.New("no published crash tracking state")
	}
	cfg := snap.cfg
	mgr := timeout.New(cfg.Timeout)

	var recv *receiverHandle
	var err error
	if cfg.UnixSocketPath != "" {
		recv, err = connectReceiver(cfg.UnixSocketPath)
	} else {
		recv, err = spawnReceiver(snap.receiverCfg, cfg.Timeout.Milliseconds())
	}
	if err != nil {
		return err
	}

	session := buildSession(sig, snap)
	session.Prepare()

	pid := altfork.Fork()
	switch {
	case pid == 0:
		// Collector child: emit and exit, never return.
		collector.Run(recv.fd, session)
		unix.Exit(1)
	case pid < 0:
		recv.finish(mgr)
		return fmt.Errorf("collector fork failed: errno %d", -pid)
	}

	if reaped, err := timeout.ReapChild(pid, mgr); err != nil {
		log.WithError(err).Warn("Failed to reap collector")
	} else if !reaped {
		log.Warn("Collector did not exit within the session budget")
		_, _ = timeout.KillAndReap(pid, mgr)
	}

	recv.finish(mgr)
	return nil
}

// buildSession assembles and serializes everything the collector child will
// write. All allocation happens here, before the fork.
func buildSession(sig unix.Signal, snap *snapshot) *collector.Session {
	si := crashinfo.NewSigInfo(sig, 0, 0)
	siJSON, _ := json.Marshal(si)
	piJSON, _ := json.Marshal(crashinfo.ProcInfo{PID: os.Getpid()})

	files := []string{"/proc/self/maps"}
	files = append(files, snap.cfg.AdditionalFiles...)

	return &collector.Session{
		SigInfoJSON:  siJSON,
		ProcInfoJSON: piJSON,
		ConfigJSON:   snap.configJSON,
		MetadataJSON: snap.metadataJSON,
		CountersJSON: counters.Default().AppendJSON(make([]byte, 0, 256)),
		FrameJSON:    captureFrames(snap.cfg.ResolveFrames),
		Files:        files,
	}
}

// reraise restores the default disposition for sig and sends it to the
// process, chaining to whatever would have happened without crash tracking.
func reraise(sig syscall.Signal) {
	signal.Reset(sig)
	_ = unix.Kill(os.Getpid(), unix.Signal(sig))
}
