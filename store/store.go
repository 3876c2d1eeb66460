// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
	"time"

	"github.com/parley-foundation/parley/lib/ref"
)

// Sentinel errors returned by port implementations. Callers match with
// errors.Is; the coordinators translate them into the fault taxonomy
// at the operation boundary.
var (
	// ErrGrantExists reports that an equivalent grant is already
	// recorded. Grants are cumulative, so callers treat this as
	// success.
	ErrGrantExists = errors.New("store: equivalent grant already exists")

	// ErrChannelExists reports that a channel with the same key is
	// already in the directory — the signature of a creation race
	// with the remote peer.
	ErrChannelExists = errors.New("store: channel already exists")

	// ErrChannelNotFound reports a lookup of an unknown channel key.
	ErrChannelNotFound = errors.New("store: channel not found")

	// ErrObjectNotFound reports a lookup of an unknown object hash.
	ErrObjectNotFound = errors.New("store: object not found")

	// ErrUnavailable reports that the backing store is unreachable.
	// Fatal for the calling operation; never retried at this layer.
	ErrUnavailable = errors.New("store: unavailable")
)

// Versioned is implemented by objects that have a stable identity
// across versions. Identity returns the subset of fields that define
// the object's identity; the store hashes their encoded form into the
// ID hash, while the version hash covers the full object.
type Versioned interface {
	Identity() any
}

// Store is the content-addressed object store port. All writes are
// additive; there is no delete or overwrite. Implementations must be
// safe for concurrent use.
type Store interface {
	// StoreVersioned stores a versioned object and returns its
	// version hash plus stable identity hash. Storing a new version
	// of an existing identity updates the identity's latest-version
	// mapping.
	StoreVersioned(ctx context.Context, obj Versioned) (ref.VersionedRef, error)

	// StoreUnversioned stores an immutable object and returns its
	// content hash. Storing the same bytes twice returns the same
	// ref without error.
	StoreUnversioned(ctx context.Context, obj any) (ref.ObjectRef, error)

	// GetByIDHash loads the latest version of a versioned object
	// into out. Returns ErrObjectNotFound for unknown identities.
	GetByIDHash(ctx context.Context, idHash ref.IDHash, out any) error

	// GetByHash loads the object with the given content hash into
	// out. Returns ErrObjectNotFound for unknown hashes.
	GetByHash(ctx context.Context, hash ref.ObjectRef, out any) error
}

// AccessController records read-capability grants over stored objects.
// Grants are ADD-mode only: once a person or group can read an object,
// nothing in this core revokes it.
type AccessController interface {
	// GrantAccess appends an ADD grant for the target object. At
	// least one person or group must be named. Returns
	// ErrGrantExists when an equivalent grant is already recorded.
	GrantAccess(ctx context.Context, target ref.ObjectRef, persons []ref.PersonID, groups []ref.GroupID) error

	// CanRead reports whether the person has a direct or
	// group-mediated grant for the target object.
	CanRead(ctx context.Context, person ref.PersonID, target ref.ObjectRef) (bool, error)
}

// ChannelInfo describes a channel known to the directory.
type ChannelInfo struct {
	// Key is the channel identity (shared pair key or single-owner).
	Key ref.ChannelKey `json:"key"`

	// Root is the content hash of the channel root object.
	Root ref.ObjectRef `json:"root"`

	// Entries lists the channel's entry refs in append order.
	Entries []ref.ObjectRef `json:"entries,omitempty"`

	// CreatedAt is the directory-local creation time.
	CreatedAt time.Time `json:"createdAt"`
}

// ChannelFilter selects channels in Directory.FindChannels. Zero-value
// fields are ignored.
type ChannelFilter struct {
	// Participant selects shared channels that include this person.
	Participant ref.PersonID

	// SharedOnly restricts results to shared (P2P) channels.
	SharedOnly bool
}

// UpdateKind classifies a directory update.
type UpdateKind int

const (
	// UpdateChannelCreated signals a new channel in the directory.
	UpdateChannelCreated UpdateKind = iota

	// UpdateEntryAppended signals a new entry in an existing channel.
	UpdateEntryAppended
)

// Update is delivered to directory subscribers.
type Update struct {
	Kind  UpdateKind
	Key   ref.ChannelKey
	Entry ref.ObjectRef // set for UpdateEntryAppended
}

// Directory tracks channels and their entry lists, and notifies
// subscribers of changes. Creation is first-writer-wins: concurrent
// creates for the same key resolve with ErrChannelExists for the
// loser, which the establisher recovers by joining.
type Directory interface {
	// CreateChannel registers a channel under key with the given
	// root object. Returns ErrChannelExists if the key is taken.
	CreateChannel(ctx context.Context, key ref.ChannelKey, root ref.ObjectRef) (ChannelInfo, error)

	// GetChannel returns the channel for key, or ErrChannelNotFound.
	GetChannel(ctx context.Context, key ref.ChannelKey) (ChannelInfo, error)

	// FindChannels returns channels matching the filter.
	FindChannels(ctx context.Context, filter ChannelFilter) ([]ChannelInfo, error)

	// AppendEntry appends an entry ref to the channel's entry list.
	// The caller must have issued read grants for the entry before
	// or atomically with this call — the directory does not enforce
	// that sequencing contract.
	AppendEntry(ctx context.Context, key ref.ChannelKey, entry ref.ObjectRef) error

	// SubscribeToUpdates registers a callback for directory updates
	// and returns an unsubscribe handle. Dispatch is decoupled from
	// writers: a slow subscriber delays only its own delivery.
	SubscribeToUpdates(fn func(Update)) (unsubscribe func())
}
