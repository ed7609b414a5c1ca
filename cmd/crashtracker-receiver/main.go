// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// crashtracker-receiver consumes a crash report stream and delivers the
// assembled report. It is normally spawned by the crash handler with the
// stream on stdin; with -socket it serves many instrumented processes as a
// long-lived daemon instead.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/peterbourgon/ff/v3"
	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/crashtracker/receiver"
)

type arguments struct {
	socketPath string
	verbose    bool
}

func parseArgs() (*arguments, error) {
	var args arguments
	fs := flag.NewFlagSet("crashtracker-receiver", flag.ExitOnError)
	fs.StringVar(&args.socketPath, "socket", "",
		"Serve report streams on this unix socket instead of stdin.")
	fs.BoolVar(&args.verbose, "verbose", false,
		"Enable debug logging.")
	return &args, ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("CRASHTRACKER_RECEIVER"),
		ff.WithIgnoreUndefined(true),
	)
}

func mainWithExitCode() int {
	args, err := parseArgs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse arguments: %v\n", err)
		return 1
	}
	if args.verbose {
		log.SetLevel(log.DebugLevel)
	}
	// The report, not the receiver's own chatter, belongs on stdout.
	log.SetOutput(os.Stderr)

	if args.socketPath == "" {
		if err := receiver.RunStdin(); err != nil {
			log.Errorf("Failed to process report stream: %v", err)
			return 1
		}
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := receiver.RunUnixSocket(ctx, args.socketPath); err != nil {
		log.Errorf("Receiver failed: %v", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(mainWithExitCode())
}
