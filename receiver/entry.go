// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package receiver

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"go.opentelemetry.io/crashtracker/config"
	"go.opentelemetry.io/crashtracker/crashinfo"
	"go.opentelemetry.io/crashtracker/symbolizer"
)

const (
	// DefaultSessionTimeout bounds one report stream when no override is
	// configured.
	DefaultSessionTimeout = 4000 * time.Millisecond

	// TimeoutEnvVar overrides the session timeout, in milliseconds. The
	// variable reaches the receiver through the spawning parent's
	// environment.
	TimeoutEnvVar = "CRASHTRACKER_RECEIVER_TIMEOUT_MS"
)

// SessionTimeout returns the configured session timeout. An unset or
// unparsable override falls back to the default.
func SessionTimeout() time.Duration {
	raw := os.Getenv(TimeoutEnvVar)
	if raw == "" {
		return DefaultSessionTimeout
	}
	ms, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || ms <= 0 {
		log.Warnf("Ignoring invalid %s=%q", TimeoutEnvVar, raw)
		return DefaultSessionTimeout
	}
	return time.Duration(ms) * time.Millisecond
}

// RunStdin consumes one report stream from stdin and delivers the result.
// This is the entry point of the per-crash receiver process spawned by the
// crash handler.
func RunStdin() error {
	res := Receive(os.Stdin, SessionTimeout())
	return deliver(res)
}

// RunUnixSocket serves report streams on a unix socket, one session per
// connection, until ctx is canceled. A long-lived receiver shared by many
// instrumented processes uses this instead of per-crash spawning.
func RunUnixSocket(ctx context.Context, socketPath string) error {
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale socket %s: %v", socketPath, err)
	}
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %v", socketPath, err)
	}
	log.Infof("Receiver listening on %s", socketPath)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return listener.Close()
	})
	g.Go(func() error {
		for {
			conn, err := listener.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("accept on %s: %v", socketPath, err)
			}
			g.Go(func() error {
				defer conn.Close()
				res := Receive(conn, SessionTimeout())
				if err := deliver(res); err != nil {
					log.WithError(err).Error("Failed to deliver crash report")
				}
				return nil
			})
		}
	})
	return g.Wait()
}

// deliver finalizes and ships one session result: attach host info,
// symbolize when the crashed process asked for receiver-side symbols, then
// upload to the configured endpoint.
func deliver(res Result) error {
	switch res.Outcome {
	case OutcomeNoCrash:
		log.Debug("Stream closed without a crash")
		return nil
	case OutcomePartial:
		log.Warn("Delivering partial crash report")
	case OutcomeCrashReport:
		log.Info("Delivering crash report")
	}

	report := res.Report
	report.OSInfo = gatherOSInfo()

	var endpoint *config.Endpoint
	if cfg := res.Config; cfg != nil {
		endpoint = cfg.Endpoint
		attachLocalFiles(report, cfg.AdditionalFiles)
		if cfg.ResolveFrames == config.EnabledWithSymbolsInReceiver ||
			cfg.DemangleNames {
			symbolize(res)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), SessionTimeout())
	defer cancel()
	if err := report.Upload(ctx, endpoint); err != nil {
		return err
	}
	log.WithField("uuid", report.UUID).Info("Crash report delivered")
	return nil
}

// attachLocalFiles reads configured capture files from the receiver's side
// of the boundary. The stream already carries the collector's copies; this
// fills in files the crashing process could not stream, assuming receiver
// and crashed process share a filesystem.
func attachLocalFiles(report *crashinfo.CrashInfo, paths []string) {
	for _, path := range paths {
		if _, ok := report.Files[path]; ok {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			report.Log(fmt.Sprintf("could not attach %s: %v", path, err))
			continue
		}
		report.AddFile(path, strings.Split(
			strings.TrimRight(string(data), "\n"), "\n"))
	}
}

// symbolize resolves raw frame addresses against the maps captured from the
// crashed process. Failures degrade to unsymbolized frames, never to a lost
// report.
func symbolize(res Result) {
	resolver, err := symbolizer.NewResolver(res.Config.DemangleNames)
	if err != nil {
		res.Report.Log(fmt.Sprintf("symbolization unavailable: %v", err))
		return
	}
	var mappings []symbolizer.Mapping
	if lines, ok := res.Report.Files["/proc/self/maps"]; ok {
		mappings = symbolizer.ParseMaps(lines)
	}
	resolver.Symbolize(&res.Report.Error.Stack, mappings)
	resolver.SymbolizeThreads(res.Report.Error.Threads, mappings)
}
