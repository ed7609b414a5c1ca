// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package timeout

import (
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerBudget(t *testing.T) {
	m := New(time.Hour)
	assert.False(t, m.HasElapsed())
	assert.Greater(t, m.Remaining(), 59*time.Minute)
}

func TestManagerDefaultBudget(t *testing.T) {
	m := New(0)
	got := m.Deadline().Sub(m.start)
	assert.Equal(t, DefaultBudget, got)
}

func TestManagerElapses(t *testing.T) {
	m := New(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	assert.True(t, m.HasElapsed())
	assert.Equal(t, time.Duration(0), m.Remaining())
}

// The remaining budget is shared: consuming part of it in one step leaves
// strictly less for the next.
func TestManagerSharedBudget(t *testing.T) {
	m := New(time.Second)
	first := m.Remaining()
	time.Sleep(20 * time.Millisecond)
	assert.Less(t, m.Remaining(), first)
	assert.Equal(t, m.Deadline(), m.Deadline())
}

func TestWaitForPollHup(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()

	done := make(chan struct{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		w.Close()
		close(done)
	}()

	hup, err := WaitForPollHup(int(r.Fd()), New(time.Second))
	require.NoError(t, err)
	assert.True(t, hup)
	<-done
}

func TestWaitForPollHupTimesOut(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	m := New(50 * time.Millisecond)
	hup, err := WaitForPollHup(int(r.Fd()), m)
	require.NoError(t, err)
	assert.False(t, hup)
	assert.True(t, m.HasElapsed())
}

func TestReapChild(t *testing.T) {
	cmd := exec.Command("true")
	require.NoError(t, cmd.Start())

	reaped, err := ReapChild(cmd.Process.Pid, New(time.Second))
	require.NoError(t, err)
	assert.True(t, reaped)
	// Release the exec.Cmd bookkeeping; the process is already gone.
	_ = cmd.Wait()
}

func TestKillAndReapStuckChild(t *testing.T) {
	cmd := exec.Command("sleep", "60")
	require.NoError(t, cmd.Start())

	m := New(200 * time.Millisecond)
	reaped, err := ReapChild(cmd.Process.Pid, m)
	require.NoError(t, err)
	assert.False(t, reaped, "a sleeping child must not be reaped in time")

	reaped, err = KillAndReap(cmd.Process.Pid, m)
	require.NoError(t, err)
	assert.True(t, reaped)
	_ = cmd.Wait()
}
