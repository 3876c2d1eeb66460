// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/parley-foundation/parley/lib/codec"
	"github.com/parley-foundation/parley/lib/ref"
)

// subscriberBuffer is the per-subscriber update queue depth. A
// subscriber that falls further behind than this blocks only its own
// delivery goroutine, never the directory writer.
const subscriberBuffer = 64

// MemoryStore implements Store, AccessController, and Directory in
// process memory. It is the reference implementation of the port
// semantics and the backend for tests and single-process deployments.
//
// All state is volatile: objects, grants, channels, and subscriptions
// are lost on restart.
type MemoryStore struct {
	mu sync.Mutex

	objects map[ref.ObjectRef][]byte
	latest  map[ref.IDHash]ref.ObjectRef

	// grants maps a target object to the persons and groups that can
	// read it. Sets, not lists: re-granting is detected here.
	grantPersons map[ref.ObjectRef]map[ref.PersonID]struct{}
	grantGroups  map[ref.ObjectRef]map[ref.GroupID]struct{}

	channels map[ref.ChannelKey]*ChannelInfo

	subscribers map[int]chan Update
	nextSubID   int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects:      make(map[ref.ObjectRef][]byte),
		latest:       make(map[ref.IDHash]ref.ObjectRef),
		grantPersons: make(map[ref.ObjectRef]map[ref.PersonID]struct{}),
		grantGroups:  make(map[ref.ObjectRef]map[ref.GroupID]struct{}),
		channels:     make(map[ref.ChannelKey]*ChannelInfo),
		subscribers:  make(map[int]chan Update),
	}
}

// Compile-time port checks.
var (
	_ Store            = (*MemoryStore)(nil)
	_ AccessController = (*MemoryStore)(nil)
	_ Directory        = (*MemoryStore)(nil)
)

// StoreVersioned stores a versioned object, updating the identity's
// latest-version mapping.
func (m *MemoryStore) StoreVersioned(ctx context.Context, obj Versioned) (ref.VersionedRef, error) {
	encoded, hash, err := encodeAndHash(obj)
	if err != nil {
		return ref.VersionedRef{}, fmt.Errorf("encoding versioned object: %w", err)
	}
	idHash, err := identityHash(obj.Identity())
	if err != nil {
		return ref.VersionedRef{}, fmt.Errorf("encoding object identity: %w", err)
	}

	m.mu.Lock()
	m.objects[hash] = encoded
	m.latest[idHash] = hash
	m.mu.Unlock()

	return ref.VersionedRef{Hash: hash, IDHash: idHash}, nil
}

// StoreUnversioned stores an immutable object. Idempotent: identical
// bytes land on the same ref.
func (m *MemoryStore) StoreUnversioned(ctx context.Context, obj any) (ref.ObjectRef, error) {
	encoded, hash, err := encodeAndHash(obj)
	if err != nil {
		return ref.ObjectRef{}, fmt.Errorf("encoding object: %w", err)
	}

	m.mu.Lock()
	m.objects[hash] = encoded
	m.mu.Unlock()

	return hash, nil
}

// GetByIDHash loads the latest version of a versioned object.
func (m *MemoryStore) GetByIDHash(ctx context.Context, idHash ref.IDHash, out any) error {
	m.mu.Lock()
	hash, ok := m.latest[idHash]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("identity %s: %w", idHash, ErrObjectNotFound)
	}
	return m.GetByHash(ctx, hash, out)
}

// GetByHash loads an object by content hash.
func (m *MemoryStore) GetByHash(ctx context.Context, hash ref.ObjectRef, out any) error {
	m.mu.Lock()
	encoded, ok := m.objects[hash]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("object %s: %w", hash.Short(), ErrObjectNotFound)
	}
	if err := codec.Unmarshal(encoded, out); err != nil {
		return fmt.Errorf("decoding object %s: %w", hash.Short(), err)
	}
	return nil
}

// GrantAccess appends an ADD grant. Returns ErrGrantExists when every
// named person and group already holds an equivalent grant.
func (m *MemoryStore) GrantAccess(ctx context.Context, target ref.ObjectRef, persons []ref.PersonID, groups []ref.GroupID) error {
	if target.IsZero() {
		return fmt.Errorf("grant access: zero-value target")
	}
	if len(persons) == 0 && len(groups) == 0 {
		return fmt.Errorf("grant access to %s: no persons or groups named", target.Short())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	personSet := m.grantPersons[target]
	if personSet == nil {
		personSet = make(map[ref.PersonID]struct{})
		m.grantPersons[target] = personSet
	}
	groupSet := m.grantGroups[target]
	if groupSet == nil {
		groupSet = make(map[ref.GroupID]struct{})
		m.grantGroups[target] = groupSet
	}

	added := false
	for _, person := range persons {
		if _, ok := personSet[person]; !ok {
			personSet[person] = struct{}{}
			added = true
		}
	}
	for _, group := range groups {
		if _, ok := groupSet[group]; !ok {
			groupSet[group] = struct{}{}
			added = true
		}
	}
	if !added {
		return fmt.Errorf("grant on %s: %w", target.Short(), ErrGrantExists)
	}
	return nil
}

// CanRead reports whether person holds a direct grant on target. The
// memory store does not resolve group membership (that belongs to the
// external identity layer), so group grants count only for direct
// group queries via GrantedGroups.
func (m *MemoryStore) CanRead(ctx context.Context, person ref.PersonID, target ref.ObjectRef) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.grantPersons[target][person]
	return ok, nil
}

// GrantedGroups returns the groups granted on target. Test hook for
// asserting the bilateral no-group invariant.
func (m *MemoryStore) GrantedGroups(target ref.ObjectRef) []ref.GroupID {
	m.mu.Lock()
	defer m.mu.Unlock()
	groups := make([]ref.GroupID, 0, len(m.grantGroups[target]))
	for group := range m.grantGroups[target] {
		groups = append(groups, group)
	}
	return groups
}

// CreateChannel registers a channel. First writer wins; the loser of
// a creation race receives ErrChannelExists.
func (m *MemoryStore) CreateChannel(ctx context.Context, key ref.ChannelKey, root ref.ObjectRef) (ChannelInfo, error) {
	if key.IsZero() {
		return ChannelInfo{}, fmt.Errorf("create channel: zero-value key")
	}
	if root.IsZero() {
		return ChannelInfo{}, fmt.Errorf("create channel %s: zero-value root", key)
	}

	m.mu.Lock()
	if existing, ok := m.channels[key]; ok {
		info := existing.clone()
		m.mu.Unlock()
		return info, fmt.Errorf("channel %s: %w", key, ErrChannelExists)
	}
	info := &ChannelInfo{Key: key, Root: root, CreatedAt: time.Now().UTC()}
	m.channels[key] = info
	snapshot := info.clone()
	m.notifyLocked(Update{Kind: UpdateChannelCreated, Key: key})
	m.mu.Unlock()

	return snapshot, nil
}

// GetChannel returns the channel for key.
func (m *MemoryStore) GetChannel(ctx context.Context, key ref.ChannelKey) (ChannelInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.channels[key]
	if !ok {
		return ChannelInfo{}, fmt.Errorf("channel %s: %w", key, ErrChannelNotFound)
	}
	return info.clone(), nil
}

// FindChannels returns channels matching the filter, ordered by
// creation time.
func (m *MemoryStore) FindChannels(ctx context.Context, filter ChannelFilter) ([]ChannelInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var results []ChannelInfo
	for _, info := range m.channels {
		if filter.SharedOnly && !info.Key.IsShared() {
			continue
		}
		if !filter.Participant.IsZero() {
			first, second := info.Key.Participants()
			if first != filter.Participant && second != filter.Participant {
				continue
			}
		}
		results = append(results, info.clone())
	}
	slices.SortFunc(results, func(a, b ChannelInfo) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return results, nil
}

// AppendEntry appends an entry ref to the channel.
func (m *MemoryStore) AppendEntry(ctx context.Context, key ref.ChannelKey, entry ref.ObjectRef) error {
	if entry.IsZero() {
		return fmt.Errorf("append to %s: zero-value entry", key)
	}

	m.mu.Lock()
	info, ok := m.channels[key]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("channel %s: %w", key, ErrChannelNotFound)
	}
	info.Entries = append(info.Entries, entry)
	m.notifyLocked(Update{Kind: UpdateEntryAppended, Key: key, Entry: entry})
	m.mu.Unlock()
	return nil
}

// SubscribeToUpdates registers an update callback. Each subscriber
// gets its own buffered queue and delivery goroutine, so a slow
// callback delays only its own deliveries. The returned unsubscribe
// handle stops delivery; it is idempotent.
func (m *MemoryStore) SubscribeToUpdates(fn func(Update)) (unsubscribe func()) {
	queue := make(chan Update, subscriberBuffer)

	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = queue
	m.mu.Unlock()

	go func() {
		for update := range queue {
			fn(update)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subscribers, id)
			m.mu.Unlock()
			close(queue)
		})
	}
}

// notifyLocked fans an update out to all subscriber queues. Must be
// called with m.mu held. A full queue drops the update for that
// subscriber rather than blocking the writer.
func (m *MemoryStore) notifyLocked(update Update) {
	for _, queue := range m.subscribers {
		select {
		case queue <- update:
		default:
		}
	}
}

// clone returns a deep copy safe to hand to callers.
func (c *ChannelInfo) clone() ChannelInfo {
	copied := *c
	copied.Entries = slices.Clone(c.Entries)
	return copied
}
