// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package receiver consumes the collector's report stream, assembles the
// crash report, and delivers it.
//
// The receiver runs in its own process so that report assembly, symbol
// resolution and uploading never execute inside the crashing process. It is
// spawned per crash with the stream on stdin, or long-lived behind a unix
// socket shared by many instrumented processes.
package receiver // import "go.opentelemetry.io/crashtracker/receiver"

import (
	"bufio"
	"io"
	"time"

	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/crashtracker/config"
	"go.opentelemetry.io/crashtracker/crashinfo"
	"go.opentelemetry.io/crashtracker/timeout"
)

// Outcome classifies what a session produced.
type Outcome int

const (
	// OutcomeNoCrash means the stream closed cleanly before any protocol
	// line: the instrumented process shut down without crashing.
	OutcomeNoCrash Outcome = iota
	// OutcomeCrashReport means a complete report terminated by DONE.
	OutcomeCrashReport
	// OutcomePartial means the stream ended, or the session timed out,
	// with a report underway. Whatever arrived is still delivered.
	OutcomePartial
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoCrash:
		return "no-crash"
	case OutcomeCrashReport:
		return "crash-report"
	case OutcomePartial:
		return "partial"
	}
	return "unknown"
}

// Result is the product of one receiver session.
type Result struct {
	Outcome Outcome
	// Report is nil exactly when Outcome is OutcomeNoCrash.
	Report *crashinfo.CrashInfo
	// Config is the crashed process's configuration, when the stream
	// carried one. It directs symbolization and upload.
	Config *config.Configuration
	// TimedOut is set when the session deadline expired before the stream
	// ended.
	TimedOut bool
}

// maxLineLen bounds a single protocol line. File captures are line-split by
// the collector, so legitimate lines stay far below this.
const maxLineLen = 1 << 20

// Receive consumes one report stream from r, bounded by sessionTimeout
// measured from now. The deadline is absolute: slow arrival of early
// sections eats into the time available for later ones.
func Receive(r io.Reader, sessionTimeout time.Duration) Result {
	mgr := timeout.New(sessionTimeout)
	proc := newProcessor()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), maxLineLen)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		readErr <- scanner.Err()
	}()

	deadline := time.NewTimer(mgr.Remaining())
	defer deadline.Stop()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					proc.anomaly("stream error: %v", err)
				}
				return finish(proc, false)
			}
			if err := proc.processLine(line); err != nil {
				log.WithError(err).Warn("Aborting report stream")
				proc.anomaly("fatal: %v", err)
				return finish(proc, false)
			}
			if proc.done() {
				go drain(lines, readErr)
				return finish(proc, false)
			}
		case <-deadline.C:
			log.Warnf("Report stream timed out after %v", sessionTimeout)
			go drain(lines, readErr)
			return finish(proc, true)
		}
	}
}

// drain unblocks the scanner goroutine once the session outcome is decided,
// so an abandoned stream cannot pin it forever.
func drain(lines <-chan string, readErr <-chan error) {
	for range lines {
	}
	<-readErr
}

func finish(proc *processor, timedOut bool) Result {
	// A clean close before the first protocol line is an orderly shutdown.
	// Going silent until the deadline is not: the peer is presumed wedged
	// mid-crash, and an (empty, incomplete) report is still delivered.
	if !proc.sawAnything() && !timedOut {
		return Result{Outcome: OutcomeNoCrash}
	}
	res := Result{
		Report:   proc.report,
		Config:   proc.config,
		TimedOut: timedOut,
	}
	if proc.done() {
		res.Outcome = OutcomeCrashReport
	} else {
		res.Outcome = OutcomePartial
		proc.finishInterrupted()
		if timedOut {
			proc.report.Log("report truncated: session timed out")
		} else {
			proc.report.Log("report truncated: stream ended early")
		}
	}
	return res
}
