// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time for testability. [Real] wraps the time
// package for production use; [Fake] provides deterministic control
// for tests: time stands still until Advance fires pending waiters in
// deadline order, and WaitForTimers synchronizes the test with
// goroutines that are about to sleep.
//
// Retry and timeout code throughout Parley takes a Clock so that tests
// exercise multi-second policies without wall-clock delay.
package clock
