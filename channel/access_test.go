// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/parley-foundation/parley/lib/fault"
	"github.com/parley-foundation/parley/lib/ref"
	"github.com/parley-foundation/parley/store"
)

func storeObject(t *testing.T, backing *store.MemoryStore, obj any) ref.ObjectRef {
	t.Helper()
	objectRef, err := backing.StoreUnversioned(context.Background(), obj)
	if err != nil {
		t.Fatalf("StoreUnversioned: %v", err)
	}
	return objectRef
}

func TestGrantPortAbsorbsDuplicates(t *testing.T) {
	backing := store.NewMemoryStore()
	port := NewGrantPort(backing, slog.New(slog.NewTextHandler(io.Discard, nil)))
	target := storeObject(t, backing, Root{Key: ref.MustPairKey(alice, bob)})

	persons := []ref.PersonID{alice, bob}
	if err := port.Grant(context.Background(), target, persons, nil); err != nil {
		t.Fatalf("first grant: %v", err)
	}
	if err := port.Grant(context.Background(), target, persons, nil); err != nil {
		t.Fatalf("duplicate grant should succeed, got: %v", err)
	}

	// A partially new grant also succeeds: grants are additive.
	carol := ref.MustPersonID("carol")
	if err := port.Grant(context.Background(), target, []ref.PersonID{alice, carol}, nil); err != nil {
		t.Fatalf("partially new grant: %v", err)
	}
	ok, err := backing.CanRead(context.Background(), carol, target)
	if err != nil {
		t.Fatalf("CanRead: %v", err)
	}
	if !ok {
		t.Error("carol should hold a grant after the additive call")
	}
}

func TestGrantPortValidation(t *testing.T) {
	backing := store.NewMemoryStore()
	port := NewGrantPort(backing, slog.New(slog.NewTextHandler(io.Discard, nil)))
	target := storeObject(t, backing, Root{Key: ref.MustPairKey(alice, bob)})

	t.Run("zero target", func(t *testing.T) {
		err := port.Grant(context.Background(), ref.ObjectRef{}, []ref.PersonID{alice}, nil)
		if !fault.Is(err, fault.Validation) {
			t.Errorf("error = %v, want validation fault", err)
		}
	})
	t.Run("empty principals", func(t *testing.T) {
		err := port.Grant(context.Background(), target, nil, nil)
		if !fault.Is(err, fault.Validation) {
			t.Errorf("error = %v, want validation fault", err)
		}
	})
}

// failingAccess fails grants for a chosen set of targets.
type failingAccess struct {
	store.AccessController
	failOn map[ref.ObjectRef]bool
}

func (f *failingAccess) GrantAccess(ctx context.Context, target ref.ObjectRef, persons []ref.PersonID, groups []ref.GroupID) error {
	if f.failOn[target] {
		return fmt.Errorf("grant on %s: %w", target.Short(), store.ErrUnavailable)
	}
	return f.AccessController.GrantAccess(ctx, target, persons, groups)
}

func TestGrantBilateralNeverNamesGroups(t *testing.T) {
	backing := store.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	access := NewAccessCoordinator(NewGrantPort(backing, logger), logger)
	target := storeObject(t, backing, Root{Key: ref.MustPairKey(alice, bob)})

	if err := access.GrantBilateral(context.Background(), target, alice, bob); err != nil {
		t.Fatalf("GrantBilateral: %v", err)
	}
	if groups := backing.GrantedGroups(target); len(groups) != 0 {
		t.Errorf("bilateral grant recorded groups %v, want none", groups)
	}
	for _, person := range []ref.PersonID{alice, bob} {
		ok, err := backing.CanRead(context.Background(), person, target)
		if err != nil {
			t.Fatalf("CanRead(%s): %v", person, err)
		}
		if !ok {
			t.Errorf("%s missing bilateral grant", person)
		}
	}
}

func TestGrantBilateralValidation(t *testing.T) {
	backing := store.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	access := NewAccessCoordinator(NewGrantPort(backing, logger), logger)
	target := storeObject(t, backing, Root{Key: ref.MustPairKey(alice, bob)})

	if err := access.GrantBilateral(context.Background(), target, alice, alice); !fault.Is(err, fault.Validation) {
		t.Errorf("self-pair error = %v, want validation fault", err)
	}
	if err := access.GrantBilateral(context.Background(), target, alice, ref.PersonID{}); !fault.Is(err, fault.Validation) {
		t.Errorf("zero-person error = %v, want validation fault", err)
	}
}

func TestGrantGroupMemberBackfillsAllHistory(t *testing.T) {
	backing := store.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	access := NewAccessCoordinator(NewGrantPort(backing, logger), logger)

	key := ref.MustOwnedKey("team-standup", alice)
	root := storeObject(t, backing, Root{Key: key})
	var history []ref.ObjectRef
	for i := 0; i < 5; i++ {
		history = append(history, storeObject(t, backing, Entry{
			Channel: key, Author: alice, Body: fmt.Sprintf("message %d", i),
		}))
	}

	dave := ref.MustPersonID("dave")
	summary, err := access.GrantGroupMember(context.Background(), root, dave, history)
	if err != nil {
		t.Fatalf("GrantGroupMember: %v", err)
	}
	if !summary.Complete() {
		t.Fatalf("summary incomplete: %d failures", len(summary.Failed))
	}
	if len(summary.Granted) != len(history)+1 {
		t.Errorf("granted %d targets, want %d", len(summary.Granted), len(history)+1)
	}

	for _, target := range append([]ref.ObjectRef{root}, history...) {
		ok, err := backing.CanRead(context.Background(), dave, target)
		if err != nil {
			t.Fatalf("CanRead: %v", err)
		}
		if !ok {
			t.Errorf("new member cannot read %s", target.Short())
		}
	}
}

func TestGrantGroupMemberPartialFailure(t *testing.T) {
	backing := store.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	key := ref.MustOwnedKey("team-standup", alice)
	root := storeObject(t, backing, Root{Key: key})
	good := storeObject(t, backing, Entry{Channel: key, Author: alice, Body: "reachable"})
	bad := storeObject(t, backing, Entry{Channel: key, Author: alice, Body: "unreachable"})

	flaky := &failingAccess{
		AccessController: backing,
		failOn:           map[ref.ObjectRef]bool{bad: true},
	}
	access := NewAccessCoordinator(NewGrantPort(flaky, logger), logger)

	dave := ref.MustPersonID("dave")
	summary, err := access.GrantGroupMember(context.Background(), root, dave, []ref.ObjectRef{good, bad})
	if err == nil {
		t.Fatal("expected error on partial failure")
	}
	if !errors.Is(err, store.ErrUnavailable) {
		t.Errorf("error should carry the first cause, got: %v", err)
	}
	if summary.Complete() {
		t.Error("summary should report failures")
	}
	if len(summary.Granted) != 2 {
		t.Errorf("granted %d targets, want 2 (root + good entry)", len(summary.Granted))
	}
	if len(summary.Failed) != 1 || summary.Failed[0].Target != bad {
		t.Errorf("failed set = %+v, want exactly the bad entry", summary.Failed)
	}

	// Landed grants stay: the batch is retryable, not rolled back.
	ok, err := backing.CanRead(context.Background(), dave, good)
	if err != nil {
		t.Fatalf("CanRead: %v", err)
	}
	if !ok {
		t.Error("successful grant from a partial batch should persist")
	}
}

func TestGrantMutual(t *testing.T) {
	backing := store.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	access := NewAccessCoordinator(NewGrantPort(backing, logger), logger)

	rootA := storeObject(t, backing, Root{Key: ref.MustOwnedKey("contacts", alice)})
	rootB := storeObject(t, backing, Root{Key: ref.MustOwnedKey("contacts", bob)})

	if err := access.GrantMutual(context.Background(), rootA, rootB, alice, bob); err != nil {
		t.Fatalf("GrantMutual: %v", err)
	}
	checks := []struct {
		person ref.PersonID
		target ref.ObjectRef
	}{
		{bob, rootA},
		{alice, rootB},
	}
	for _, check := range checks {
		ok, err := backing.CanRead(context.Background(), check.person, check.target)
		if err != nil {
			t.Fatalf("CanRead: %v", err)
		}
		if !ok {
			t.Errorf("%s missing reciprocal grant on %s", check.person, check.target.Short())
		}
	}
}
