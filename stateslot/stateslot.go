// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package stateslot provides a single-pointer publication cell for data that
// must be readable from a signal handler.
//
// A crash can happen at any instruction, including halfway through a
// configuration update. The slot therefore never mutates published state:
// writers build a complete new snapshot and swap it in with one atomic
// pointer store, readers take one atomic load and hold an immutable value.
// Neither side allocates or locks on the read path.
package stateslot // import "go.opentelemetry.io/crashtracker/stateslot"

import "sync/atomic"

// Slot holds at most one published *T.
//
// The zero value is an empty slot, ready for use.
type Slot[T any] struct {
	ptr atomic.Pointer[T]
}

// Publish swaps val into the slot and returns the previous snapshot, or nil
// if the slot was empty. The caller owns the returned snapshot; once no
// concurrent reader can still hold it, the garbage collector reclaims it.
func (s *Slot[T]) Publish(val *T) *T {
	return s.ptr.Swap(val)
}

// Read returns the current snapshot, or nil if nothing has been published.
// The returned value must be treated as immutable.
func (s *Slot[T]) Read() *T {
	return s.ptr.Load()
}

// Clear empties the slot and returns the evicted snapshot, if any.
func (s *Slot[T]) Clear() *T {
	return s.ptr.Swap(nil)
}
