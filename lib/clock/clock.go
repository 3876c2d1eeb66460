// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock abstracts time operations for testability. Production code
// injects Real(); tests inject Fake() with deterministic time control.
//
// Every production function that sleeps or waits on a deadline should
// accept a Clock parameter (or be a method on a struct with a Clock
// field) instead of calling the time package directly. The channel
// establisher's retry delay and the contact listing's per-item timeout
// both go through this interface, which is how tests run them with
// zero wall-clock delay.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time after
	// duration d elapses. Equivalent to time.After. If d <= 0, the
	// channel receives immediately.
	After(d time.Duration) <-chan time.Time

	// Sleep pauses the current goroutine for at least duration d.
	// Equivalent to time.Sleep.
	Sleep(d time.Duration)
}
