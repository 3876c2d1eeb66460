// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/parley-foundation/parley/lib/clock"
	"github.com/parley-foundation/parley/lib/fault"
	"github.com/parley-foundation/parley/lib/ref"
	"github.com/parley-foundation/parley/lib/testutil"
	"github.com/parley-foundation/parley/store"
)

var (
	alice = ref.MustPersonID("alice")
	bob   = ref.MustPersonID("bob")
)

func newTestEstablisher(t *testing.T, backing *store.MemoryStore, directory store.Directory, clk clock.Clock, policy RetryPolicy) *Establisher {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	access := NewAccessCoordinator(NewGrantPort(backing, logger), logger)
	return NewEstablisher(backing, directory, access, clk, policy, logger)
}

func TestEstablishCreatesChannel(t *testing.T) {
	backing := store.NewMemoryStore()
	establisher := newTestEstablisher(t, backing, backing, clock.Fake(time.Unix(0, 0)), RetryPolicy{MaxAttempts: 1})

	result, err := establisher.Establish(context.Background(), alice, bob, EstablishOptions{})
	if err != nil {
		t.Fatalf("Establish: %v", err)
	}
	if !result.Created {
		t.Error("expected Created=true for first establisher")
	}
	if result.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", result.Attempts)
	}

	key, err := ref.PairKey(alice, bob)
	if err != nil {
		t.Fatalf("PairKey: %v", err)
	}
	if result.Channel.Key != key {
		t.Errorf("channel key = %s, want %s", result.Channel.Key, key)
	}
	if establisher.StateOf(key) != StateReady {
		t.Errorf("state = %s, want ready", establisher.StateOf(key))
	}

	for _, person := range []ref.PersonID{alice, bob} {
		ok, err := backing.CanRead(context.Background(), person, result.Channel.Root)
		if err != nil {
			t.Fatalf("CanRead(%s): %v", person, err)
		}
		if !ok {
			t.Errorf("%s cannot read channel root", person)
		}
	}
	if groups := backing.GrantedGroups(result.Channel.Root); len(groups) != 0 {
		t.Errorf("bilateral channel root granted to groups %v, want none", groups)
	}
}

func TestEstablishIsOrderIndependent(t *testing.T) {
	backing := store.NewMemoryStore()
	establisher := newTestEstablisher(t, backing, backing, clock.Fake(time.Unix(0, 0)), RetryPolicy{MaxAttempts: 1})

	forward, err := establisher.Establish(context.Background(), alice, bob, EstablishOptions{})
	if err != nil {
		t.Fatalf("Establish(alice, bob): %v", err)
	}
	reverse, err := establisher.Establish(context.Background(), bob, alice, EstablishOptions{})
	if err != nil {
		t.Fatalf("Establish(bob, alice): %v", err)
	}

	if reverse.Created {
		t.Error("second establish should join, not create")
	}
	if forward.Channel.Key != reverse.Channel.Key {
		t.Errorf("keys differ: %s vs %s", forward.Channel.Key, reverse.Channel.Key)
	}
	if forward.Channel.Root != reverse.Channel.Root {
		t.Errorf("roots differ: %s vs %s", forward.Channel.Root.Short(), reverse.Channel.Root.Short())
	}
}

func TestEstablishConcurrentPeers(t *testing.T) {
	backing := store.NewMemoryStore()
	// Zero delay so a conflicted peer re-joins immediately. The fake
	// clock fires After(0) without registering a waiter.
	policy := RetryPolicy{MaxAttempts: 3, Delay: 0}
	establisherA := newTestEstablisher(t, backing, backing, clock.Fake(time.Unix(0, 0)), policy)
	establisherB := newTestEstablisher(t, backing, backing, clock.Fake(time.Unix(0, 0)), policy)

	var wg sync.WaitGroup
	results := make([]EstablishResult, 2)
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		results[0], errs[0] = establisherA.Establish(context.Background(), alice, bob, EstablishOptions{})
	}()
	go func() {
		defer wg.Done()
		results[1], errs[1] = establisherB.Establish(context.Background(), bob, alice, EstablishOptions{})
	}()
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("establisher %d: %v", i, err)
		}
	}
	created := 0
	for _, result := range results {
		if result.Created {
			created++
		}
	}
	if created != 1 {
		t.Errorf("created count = %d, want exactly 1", created)
	}
	if results[0].Channel.Key != results[1].Channel.Key {
		t.Errorf("peers ended on different channels: %s vs %s", results[0].Channel.Key, results[1].Channel.Key)
	}
	if results[0].Channel.Root != results[1].Channel.Root {
		t.Errorf("peers ended on different roots")
	}

	channels, err := backing.FindChannels(context.Background(), store.ChannelFilter{SharedOnly: true})
	if err != nil {
		t.Fatalf("FindChannels: %v", err)
	}
	if len(channels) != 1 {
		t.Fatalf("directory has %d channels, want 1", len(channels))
	}
	if groups := backing.GrantedGroups(channels[0].Root); len(groups) != 0 {
		t.Errorf("root granted to groups %v, want none", groups)
	}
}

// racingDirectory injects a remote creation between the local peer's
// not-found lookup and its own create, forcing the conflicted path.
type racingDirectory struct {
	store.Directory
	once sync.Once
}

func (d *racingDirectory) CreateChannel(ctx context.Context, key ref.ChannelKey, root ref.ObjectRef) (store.ChannelInfo, error) {
	d.once.Do(func() {
		if _, err := d.Directory.CreateChannel(ctx, key, root); err != nil {
			panic("injected remote create failed: " + err.Error())
		}
	})
	return d.Directory.CreateChannel(ctx, key, root)
}

func TestEstablishRecoversFromCreationConflict(t *testing.T) {
	backing := store.NewMemoryStore()
	directory := &racingDirectory{Directory: backing}
	fakeClock := clock.Fake(time.Unix(0, 0))
	policy := RetryPolicy{MaxAttempts: 3, Delay: 2 * time.Second}
	establisher := newTestEstablisher(t, backing, directory, fakeClock, policy)

	type outcome struct {
		result EstablishResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := establisher.Establish(context.Background(), alice, bob, EstablishOptions{})
		done <- outcome{result, err}
	}()

	// The first round conflicts and parks on the retry delay.
	fakeClock.WaitForTimers(1)
	key, _ := ref.PairKey(alice, bob)
	if state := establisher.StateOf(key); state != StateConflicted {
		t.Errorf("state while waiting = %s, want conflicted", state)
	}
	fakeClock.Advance(policy.Delay)

	got := testutil.RequireReceive(t, done, 5*time.Second, "waiting for establish to recover")
	if got.err != nil {
		t.Fatalf("Establish after conflict: %v", got.err)
	}
	if got.result.Created {
		t.Error("conflicted peer should join, not create")
	}
	if got.result.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", got.result.Attempts)
	}
	if establisher.StateOf(key) != StateReady {
		t.Errorf("final state = %s, want ready", establisher.StateOf(key))
	}
}

// vanishingDirectory never admits the channel: lookups miss and
// creates conflict, forever.
type vanishingDirectory struct {
	store.Directory
}

func (d *vanishingDirectory) GetChannel(ctx context.Context, key ref.ChannelKey) (store.ChannelInfo, error) {
	return store.ChannelInfo{}, store.ErrChannelNotFound
}

func (d *vanishingDirectory) CreateChannel(ctx context.Context, key ref.ChannelKey, root ref.ObjectRef) (store.ChannelInfo, error) {
	return store.ChannelInfo{}, store.ErrChannelExists
}

func TestEstablishExhaustsRetries(t *testing.T) {
	backing := store.NewMemoryStore()
	fakeClock := clock.Fake(time.Unix(0, 0))
	policy := RetryPolicy{MaxAttempts: 2, Delay: time.Second}
	establisher := newTestEstablisher(t, backing, &vanishingDirectory{Directory: backing}, fakeClock, policy)

	done := make(chan error, 1)
	go func() {
		_, err := establisher.Establish(context.Background(), alice, bob, EstablishOptions{})
		done <- err
	}()

	fakeClock.WaitForTimers(1)
	fakeClock.Advance(policy.Delay)

	err := testutil.RequireReceive(t, done, 5*time.Second, "waiting for establish to give up")
	if !fault.Is(err, fault.Conflict) {
		t.Errorf("error = %v, want conflict fault", err)
	}
}

func TestEstablishRejectsSelfPair(t *testing.T) {
	backing := store.NewMemoryStore()
	establisher := newTestEstablisher(t, backing, backing, clock.Fake(time.Unix(0, 0)), RetryPolicy{MaxAttempts: 1})

	_, err := establisher.Establish(context.Background(), alice, alice, EstablishOptions{})
	if !fault.Is(err, fault.Validation) {
		t.Errorf("error = %v, want validation fault", err)
	}
}

func TestEstablishWelcomeSentOnce(t *testing.T) {
	backing := store.NewMemoryStore()
	establisher := newTestEstablisher(t, backing, backing, clock.Fake(time.Unix(0, 0)), RetryPolicy{MaxAttempts: 1})

	options := EstablishOptions{Initiator: true, Welcome: "hello from alice"}
	if _, err := establisher.Establish(context.Background(), alice, bob, options); err != nil {
		t.Fatalf("first Establish: %v", err)
	}
	if _, err := establisher.Establish(context.Background(), alice, bob, options); err != nil {
		t.Fatalf("second Establish: %v", err)
	}

	key, _ := ref.PairKey(alice, bob)
	info, err := backing.GetChannel(context.Background(), key)
	if err != nil {
		t.Fatalf("GetChannel: %v", err)
	}
	if len(info.Entries) != 1 {
		t.Fatalf("entry count = %d, want exactly 1 welcome", len(info.Entries))
	}

	var entry Entry
	if err := backing.GetByHash(context.Background(), info.Entries[0], &entry); err != nil {
		t.Fatalf("loading welcome entry: %v", err)
	}
	if entry.Author != alice || entry.Body != options.Welcome {
		t.Errorf("welcome entry = %+v", entry)
	}
}

func TestEnsureForIncomingEstablishesAndDelivers(t *testing.T) {
	backing := store.NewMemoryStore()
	fakeClock := clock.Fake(time.Unix(1_700_000_000, 0))
	establisher := newTestEstablisher(t, backing, backing, fakeClock, RetryPolicy{MaxAttempts: 1})

	key, err := ref.PairKey(alice, bob)
	if err != nil {
		t.Fatalf("PairKey: %v", err)
	}
	payload := Entry{Channel: key, Author: bob, Body: "first contact", SentAt: fakeClock.Now()}
	if err := establisher.EnsureForIncoming(context.Background(), key, payload); err != nil {
		t.Fatalf("EnsureForIncoming: %v", err)
	}

	info, err := backing.GetChannel(context.Background(), key)
	if err != nil {
		t.Fatalf("channel should exist after incoming delivery: %v", err)
	}
	if len(info.Entries) != 1 {
		t.Fatalf("entry count = %d, want 1", len(info.Entries))
	}
	for _, person := range []ref.PersonID{alice, bob} {
		ok, err := backing.CanRead(context.Background(), person, info.Entries[0])
		if err != nil {
			t.Fatalf("CanRead(%s): %v", person, err)
		}
		if !ok {
			t.Errorf("%s cannot read delivered entry", person)
		}
	}
}

func TestSendEntryGrantsBeforeAppend(t *testing.T) {
	backing := store.NewMemoryStore()
	fakeClock := clock.Fake(time.Unix(1_700_000_000, 0))
	establisher := newTestEstablisher(t, backing, backing, fakeClock, RetryPolicy{MaxAttempts: 1})

	result, err := establisher.Establish(context.Background(), alice, bob, EstablishOptions{})
	if err != nil {
		t.Fatalf("Establish: %v", err)
	}
	key := result.Channel.Key

	watcher := NewWatcher(backing, key)
	defer watcher.Close()

	entryRef, err := establisher.SendEntry(context.Background(), key, Entry{
		Channel: key, Author: alice, Body: "hi", SentAt: fakeClock.Now(),
	})
	if err != nil {
		t.Fatalf("SendEntry: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	observed, err := watcher.WaitForEntry(ctx)
	if err != nil {
		t.Fatalf("WaitForEntry: %v", err)
	}
	if observed != entryRef {
		t.Errorf("observed entry %s, sent %s", observed.Short(), entryRef.Short())
	}

	// By the time the append is visible, both peers hold grants.
	for _, person := range []ref.PersonID{alice, bob} {
		ok, err := backing.CanRead(context.Background(), person, entryRef)
		if err != nil {
			t.Fatalf("CanRead(%s): %v", person, err)
		}
		if !ok {
			t.Errorf("%s cannot read entry visible in directory", person)
		}
	}
}
