// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package stateslot

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotEmpty(t *testing.T) {
	var s Slot[int]
	assert.Nil(t, s.Read())
	assert.Nil(t, s.Clear())
}

func TestSlotPublishReturnsPrevious(t *testing.T) {
	var s Slot[string]

	first := "first"
	assert.Nil(t, s.Publish(&first))
	require.NotNil(t, s.Read())
	assert.Equal(t, "first", *s.Read())

	second := "second"
	prev := s.Publish(&second)
	require.NotNil(t, prev)
	assert.Equal(t, "first", *prev)
	assert.Equal(t, "second", *s.Read())
}

func TestSlotClear(t *testing.T) {
	var s Slot[int]
	v := 42
	s.Publish(&v)

	evicted := s.Clear()
	require.NotNil(t, evicted)
	assert.Equal(t, 42, *evicted)
	assert.Nil(t, s.Read())
}

// Readers racing a stream of publishes must always observe either nil or a
// fully formed snapshot, never a torn one.
func TestSlotConcurrentReaders(t *testing.T) {
	type snapshot struct {
		a, b int
	}
	var s Slot[snapshot]

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if snap := s.Read(); snap != nil {
					assert.Equal(t, snap.a, snap.b)
				}
			}
		}()
	}

	for i := 0; i < 1000; i++ {
		s.Publish(&snapshot{a: i, b: i})
	}
	close(stop)
	wg.Wait()
}
