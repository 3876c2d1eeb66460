// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"time"

	"github.com/parley-foundation/parley/lib/ref"
)

// Root is the stored root object of a channel. It contains only the
// channel key, so both peers of a shared channel encode byte-identical
// roots and compute the same content hash — the store-level half of
// the establishment protocol's order independence.
type Root struct {
	Key ref.ChannelKey `json:"key"`
}

// Entry is a message stored in a channel. Entries are immutable and
// content-addressed; the directory holds the append order.
type Entry struct {
	// Channel is the key of the channel this entry belongs to.
	Channel ref.ChannelKey `json:"channel"`

	// Author is the sending person.
	Author ref.PersonID `json:"author"`

	// Body is the message text.
	Body string `json:"body"`

	// SentAt is the author-local send time.
	SentAt time.Time `json:"sentAt"`
}

// State tracks the establishment protocol per canonical channel key.
// Purely process-local coordination state; never persisted.
type State int

const (
	// StateAbsent means no local establishment attempt has run.
	StateAbsent State = iota

	// StateCreating means a creation attempt is in flight.
	StateCreating

	// StateConflicted means creation lost a race with the remote
	// peer and a re-join is pending.
	StateConflicted

	// StateReady means the channel exists and grants are issued.
	StateReady
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateCreating:
		return "creating"
	case StateConflicted:
		return "conflicted"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}
