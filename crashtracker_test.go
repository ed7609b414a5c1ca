// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package crashtracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"go.opentelemetry.io/crashtracker/config"
)

func TestInitShutdownLifecycle(t *testing.T) {
	cfg, err := config.New(nil, false, false, nil, config.WithoutSymbols,
		[]unix.Signal{unix.SIGUSR2}, time.Second, "", false)
	require.NoError(t, err)
	rcfg, err := config.NewReceiverConfig(nil, nil, "/bin/true", "", "")
	require.NoError(t, err)
	md := Metadata{LibraryName: "demo", LibraryVersion: "1.0", Family: "go"}

	require.NoError(t, Init(cfg, rcfg, md))
	assert.Error(t, Init(cfg, rcfg, md), "double init must fail")

	require.NoError(t, Reconfigure(cfg, rcfg, md))
	Disable()
	Enable()
	OnFork()

	Shutdown()
	Shutdown()

	// Re-init after shutdown works.
	require.NoError(t, Init(cfg, rcfg, md))
	Shutdown()
}

func TestDefaultSignals(t *testing.T) {
	sigs := DefaultSignals()
	assert.Contains(t, sigs, unix.SIGSEGV)
	assert.Contains(t, sigs, unix.SIGABRT)
	assert.Contains(t, sigs, unix.SIGBUS)
	assert.Contains(t, sigs, unix.SIGILL)
}
