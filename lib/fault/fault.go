// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package fault

import (
	"errors"
	"fmt"
)

// Code classifies a failure into the fixed taxonomy used across the
// contact and channel packages. Codes are stable protocol-ish strings:
// they appear in logs and in structured results returned to platform
// shells, so changing them is a breaking change.
type Code string

const (
	// Validation marks malformed input (e.g., a credential missing
	// required fields). Never retried; surfaced immediately.
	Validation Code = "validation"

	// NotFound marks an operation referencing an unknown pending ID,
	// channel, or contact. Never retried; surfaced.
	NotFound Code = "not_found"

	// Conflict marks a concurrent creation that raced with this
	// process. Recovered locally by the join-or-retry loop in the
	// channel establisher; surfaced only when retries exhaust.
	Conflict Code = "conflict"

	// Timeout marks a bounded per-item operation that exceeded its
	// budget. Recovered by skipping the item; aggregate operations
	// report a partial result.
	Timeout Code = "timeout"

	// Transport marks a failed peer notification. Non-fatal for
	// acceptance and rejection flows: the local state change has
	// already committed.
	Transport Code = "transport"

	// StoreUnavailable marks an unreachable object store. Fatal;
	// propagated without retry (retries belong to a lower layer).
	StoreUnavailable Code = "store_unavailable"
)

// Fault is a classified error. Callers use errors.As to extract the
// structured information, or the [Is] helper for a single-code check:
//
//	if fault.Is(err, fault.NotFound) { ... }
type Fault struct {
	// Code is the taxonomy code.
	Code Code

	// Message is the human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Code, f.Message, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Code, f.Message)
}

// Unwrap returns the underlying cause for errors.Is/errors.As chains.
func (f *Fault) Unwrap() error {
	return f.Err
}

// New creates a Fault with the given code and formatted message.
func New(code Code, format string, args ...any) *Fault {
	return &Fault{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a Fault with the given code and message, preserving err
// as the underlying cause. Returns nil if err is nil — safe to use on
// the direct return path of a fallible call.
func Wrap(err error, code Code, format string, args ...any) *Fault {
	if err == nil {
		return nil
	}
	return &Fault{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// Is reports whether err is (or wraps) a Fault with the given code.
func Is(err error, code Code) bool {
	var f *Fault
	if errors.As(err, &f) {
		return f.Code == code
	}
	return false
}
