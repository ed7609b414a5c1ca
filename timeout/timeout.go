// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package timeout bounds a crash-handling session with a single shared
// deadline.
//
// Every blocking step of a session, waiting for the collector to exit,
// waiting for the receiver to drain its input, reaping child processes,
// draws from one budget measured from session start. The budget never
// resets between steps: a slow collector leaves less time for the receiver.
package timeout // import "go.opentelemetry.io/crashtracker/timeout"

import "time"

// DefaultBudget applies when a Manager is created with a zero budget.
const DefaultBudget = 3 * time.Second

// Manager tracks the remaining time of one session.
type Manager struct {
	start  time.Time
	budget time.Duration
}

// New starts a session clock with the given budget. A zero budget selects
// DefaultBudget.
func New(budget time.Duration) *Manager {
	if budget == 0 {
		budget = DefaultBudget
	}
	return &Manager{start: time.Now(), budget: budget}
}

// Remaining returns how much of the budget is left, or zero once elapsed.
// It never goes negative so callers can pass it directly as a wait bound.
func (m *Manager) Remaining() time.Duration {
	left := m.budget - time.Since(m.start)
	if left < 0 {
		return 0
	}
	return left
}

// HasElapsed reports whether the budget is exhausted.
func (m *Manager) HasElapsed() bool {
	return m.Remaining() == 0
}

// Deadline returns the absolute point at which the session times out.
func (m *Manager) Deadline() time.Time {
	return m.start.Add(m.budget)
}
