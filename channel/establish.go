// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/parley-foundation/parley/lib/clock"
	"github.com/parley-foundation/parley/lib/fault"
	"github.com/parley-foundation/parley/lib/ref"
	"github.com/parley-foundation/parley/store"
)

// RetryPolicy bounds the establish protocol's conflict recovery. The
// values are tunables, not correctness requirements — correctness
// comes from the idempotent join-or-create loop, the delay only
// paces re-joins against a directory that has not yet converged.
type RetryPolicy struct {
	// MaxAttempts is the total number of join-or-create rounds.
	MaxAttempts int

	// Delay is the pause before re-joining after a creation
	// conflict.
	Delay time.Duration
}

// DefaultRetryPolicy is one initial round plus two conflict retries
// at a multi-second delay.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, Delay: 3 * time.Second}

// attempt is the ephemeral per-key coordination record. It tracks the
// protocol state and whether this process initiated the pairing (and
// so owes the one-time welcome). Never persisted, never shared across
// processes.
type attempt struct {
	state     State
	initiator bool
	welcomed  bool
}

// EstablishResult reports the outcome of an establish run.
type EstablishResult struct {
	// Channel is the ready channel.
	Channel store.ChannelInfo

	// Created is true when this process created the channel, false
	// when it joined one the remote peer created first.
	Created bool

	// Attempts is the number of join-or-create rounds used.
	Attempts int
}

// Establisher runs the idempotent create-or-join protocol that gives
// two peers a shared channel without coordination. Both sides compute
// the same canonical pair key; the store's first-writer-wins channel
// creation resolves the race, and the loser recovers by joining.
//
// State per canonical key: absent → creating → (created | conflicted)
// → ready. The per-key state is process-local bookkeeping for backoff
// and welcome deduplication only — the store is the source of truth.
type Establisher struct {
	store     store.Store
	directory store.Directory
	access    *AccessCoordinator
	clock     clock.Clock
	policy    RetryPolicy
	logger    *slog.Logger

	mu       sync.Mutex
	attempts map[ref.ChannelKey]*attempt
}

// NewEstablisher creates an Establisher. A zero-value policy falls
// back to DefaultRetryPolicy.
func NewEstablisher(objectStore store.Store, directory store.Directory, access *AccessCoordinator, clk clock.Clock, policy RetryPolicy, logger *slog.Logger) *Establisher {
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy
	}
	return &Establisher{
		store:     objectStore,
		directory: directory,
		access:    access,
		clock:     clk,
		policy:    policy,
		logger:    logger,
		attempts:  make(map[ref.ChannelKey]*attempt),
	}
}

// EstablishOptions modifies a single establish run.
type EstablishOptions struct {
	// Initiator marks this process as the pairing initiator. Only
	// the initiator sends the one-time welcome entry after the
	// channel is ready, so the two peers' independent establish runs
	// do not produce duplicate greetings.
	Initiator bool

	// Welcome is the greeting body the initiator sends. Empty means
	// no welcome even for the initiator.
	Welcome string
}

// Establish ensures a ready P2P channel between local and remote and
// returns it. The common case is a single join round: the remote peer
// created the channel first and it is simply found. Otherwise this
// process creates the channel and issues the bilateral grant before
// anything is written to it. A creation conflict (the remote peer
// created concurrently) transitions to conflicted and re-joins after
// the policy delay; conflict is surfaced only when every round
// exhausts, which is the sole fatal outcome of this operation.
func (e *Establisher) Establish(ctx context.Context, local, remote ref.PersonID, options EstablishOptions) (EstablishResult, error) {
	key, err := ref.PairKey(local, remote)
	if err != nil {
		return EstablishResult{}, fault.Wrap(err, fault.Validation, "computing pair key")
	}

	record := e.attemptFor(key, options.Initiator)

	var lastErr error
	for round := 1; round <= e.policy.MaxAttempts; round++ {
		// Join an already-ready channel at the canonical key.
		info, err := e.directory.GetChannel(ctx, key)
		if err == nil {
			e.setState(key, StateReady)
			e.logger.Debug("joined existing channel", "key", key, "round", round)
			result := EstablishResult{Channel: info, Attempts: round}
			return result, e.maybeWelcome(ctx, record, key, local, options)
		}
		if !errors.Is(err, store.ErrChannelNotFound) {
			return EstablishResult{}, fault.Wrap(err, fault.StoreUnavailable, "looking up channel %s", key)
		}

		// Absent: attempt creation. The root object contains only
		// the key, so both peers would store identical bytes.
		e.setState(key, StateCreating)
		rootRef, err := e.store.StoreUnversioned(ctx, Root{Key: key})
		if err != nil {
			return EstablishResult{}, fault.Wrap(err, fault.StoreUnavailable, "storing root for %s", key)
		}

		info, err = e.directory.CreateChannel(ctx, key, rootRef)
		if err == nil {
			// The bilateral grant happens before returning, so no
			// entry can be written to a channel either participant
			// cannot read.
			if err := e.access.GrantBilateral(ctx, rootRef, local, remote); err != nil {
				return EstablishResult{}, fmt.Errorf("granting bilateral access for %s: %w", key, err)
			}
			e.setState(key, StateReady)
			e.logger.Info("created channel", "key", key, "root", rootRef.Short(), "round", round)
			result := EstablishResult{Channel: info, Created: true, Attempts: round}
			return result, e.maybeWelcome(ctx, record, key, local, options)
		}
		if !errors.Is(err, store.ErrChannelExists) {
			return EstablishResult{}, fault.Wrap(err, fault.StoreUnavailable, "creating channel %s", key)
		}

		// The remote peer created concurrently. Back off, then
		// re-join.
		e.setState(key, StateConflicted)
		lastErr = err
		e.logger.Debug("channel creation conflicted, will re-join",
			"key", key,
			"round", round,
			"max_rounds", e.policy.MaxAttempts,
		)
		if round < e.policy.MaxAttempts {
			select {
			case <-e.clock.After(e.policy.Delay):
			case <-ctx.Done():
				return EstablishResult{}, fmt.Errorf("establish %s cancelled: %w", key, ctx.Err())
			}
		}
	}

	return EstablishResult{}, fault.Wrap(lastErr, fault.Conflict,
		"channel %s not joinable after %d attempts", key, e.policy.MaxAttempts)
}

// EnsureForIncoming handles an entry arriving for a channel that may
// not be ready locally: the remote peer created the channel and sent
// data before this process's own establishment landed. It derives the
// pair from the canonical key, runs the same establish protocol, then
// delivers the payload into the channel.
func (e *Establisher) EnsureForIncoming(ctx context.Context, key ref.ChannelKey, payload Entry) error {
	if !key.IsShared() {
		return fault.New(fault.Validation, "incoming delivery for non-shared key %q", key)
	}
	first, second := key.Participants()

	if _, err := e.Establish(ctx, first, second, EstablishOptions{}); err != nil {
		return fmt.Errorf("establishing channel for incoming entry: %w", err)
	}

	entryRef, err := e.store.StoreUnversioned(ctx, payload)
	if err != nil {
		return fault.Wrap(err, fault.StoreUnavailable, "storing incoming entry for %s", key)
	}
	if err := e.access.GrantBilateral(ctx, entryRef, first, second); err != nil {
		return fmt.Errorf("granting incoming entry for %s: %w", key, err)
	}
	if err := e.directory.AppendEntry(ctx, key, entryRef); err != nil {
		return fault.Wrap(err, fault.StoreUnavailable, "appending incoming entry to %s", key)
	}
	return nil
}

// SendEntry stores an entry, grants both participants, and appends it
// to the channel. Grants are issued before the append so the entry is
// readable by both sides from the moment it is visible.
func (e *Establisher) SendEntry(ctx context.Context, key ref.ChannelKey, entry Entry) (ref.ObjectRef, error) {
	if !key.IsShared() {
		return ref.ObjectRef{}, fault.New(fault.Validation, "send to non-shared key %q", key)
	}
	first, second := key.Participants()

	entryRef, err := e.store.StoreUnversioned(ctx, entry)
	if err != nil {
		return ref.ObjectRef{}, fault.Wrap(err, fault.StoreUnavailable, "storing entry for %s", key)
	}
	if err := e.access.GrantBilateral(ctx, entryRef, first, second); err != nil {
		return ref.ObjectRef{}, fmt.Errorf("granting entry for %s: %w", key, err)
	}
	if err := e.directory.AppendEntry(ctx, key, entryRef); err != nil {
		return ref.ObjectRef{}, fault.Wrap(err, fault.StoreUnavailable, "appending entry to %s", key)
	}
	return entryRef, nil
}

// StateOf returns the process-local protocol state for a key. Test
// and introspection hook; the store remains the source of truth.
func (e *Establisher) StateOf(key ref.ChannelKey) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if record, ok := e.attempts[key]; ok {
		return record.state
	}
	return StateAbsent
}

// maybeWelcome sends the one-time welcome entry if this process is
// the pairing initiator and has not welcomed yet. Welcome failure
// does not undo establishment — the channel is ready either way.
func (e *Establisher) maybeWelcome(ctx context.Context, record *attempt, key ref.ChannelKey, local ref.PersonID, options EstablishOptions) error {
	if !options.Initiator || options.Welcome == "" {
		return nil
	}

	e.mu.Lock()
	if record.welcomed {
		e.mu.Unlock()
		return nil
	}
	record.welcomed = true
	e.mu.Unlock()

	_, err := e.SendEntry(ctx, key, Entry{
		Channel: key,
		Author:  local,
		Body:    options.Welcome,
		SentAt:  e.clock.Now().UTC(),
	})
	if err != nil {
		e.logger.Warn("welcome entry failed", "key", key, "error", err)
		return nil
	}
	return nil
}

// attemptFor returns (creating if needed) the per-key record.
func (e *Establisher) attemptFor(key ref.ChannelKey, initiator bool) *attempt {
	e.mu.Lock()
	defer e.mu.Unlock()
	record, ok := e.attempts[key]
	if !ok {
		record = &attempt{state: StateAbsent}
		e.attempts[key] = record
	}
	if initiator {
		record.initiator = true
	}
	return record
}

// setState updates the per-key protocol state.
func (e *Establisher) setState(key ref.ChannelKey, state State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if record, ok := e.attempts[key]; ok {
		record.state = state
	}
}
