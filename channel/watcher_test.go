// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"context"
	"testing"
	"time"

	"github.com/parley-foundation/parley/lib/ref"
	"github.com/parley-foundation/parley/store"
)

func TestWatcherDeliversUpdatesInOrder(t *testing.T) {
	backing := store.NewMemoryStore()
	key := ref.MustPairKey(alice, bob)

	watcher := NewWatcher(backing, key)
	defer watcher.Close()

	root, err := backing.StoreUnversioned(context.Background(), Root{Key: key})
	if err != nil {
		t.Fatalf("StoreUnversioned: %v", err)
	}
	if _, err := backing.CreateChannel(context.Background(), key, root); err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}

	var entries []ref.ObjectRef
	for i := 0; i < 3; i++ {
		// Distinct SentAt keeps the content-addressed refs distinct.
		entry, err := backing.StoreUnversioned(context.Background(), Entry{
			Channel: key, Author: alice, Body: "m",
			SentAt: time.Unix(int64(i), 0).UTC(),
		})
		if err != nil {
			t.Fatalf("StoreUnversioned: %v", err)
		}
		entries = append(entries, entry)
		if err := backing.AppendEntry(context.Background(), key, entry); err != nil {
			t.Fatalf("AppendEntry: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	update, err := watcher.WaitForUpdate(ctx)
	if err != nil {
		t.Fatalf("WaitForUpdate: %v", err)
	}
	if update.Kind != store.UpdateChannelCreated {
		t.Errorf("first update kind = %v, want channel created", update.Kind)
	}
	for i, want := range entries {
		got, err := watcher.WaitForEntry(ctx)
		if err != nil {
			t.Fatalf("WaitForEntry %d: %v", i, err)
		}
		if got != want {
			t.Errorf("entry %d = %s, want %s", i, got.Short(), want.Short())
		}
	}
}

func TestWatcherIgnoresOtherChannels(t *testing.T) {
	backing := store.NewMemoryStore()
	carol := ref.MustPersonID("carol")
	watched := ref.MustPairKey(alice, bob)
	other := ref.MustPairKey(alice, carol)

	watcher := NewWatcher(backing, watched)
	defer watcher.Close()

	for _, key := range []ref.ChannelKey{other, watched} {
		root, err := backing.StoreUnversioned(context.Background(), Root{Key: key})
		if err != nil {
			t.Fatalf("StoreUnversioned: %v", err)
		}
		if _, err := backing.CreateChannel(context.Background(), key, root); err != nil {
			t.Fatalf("CreateChannel: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	update, err := watcher.WaitForUpdate(ctx)
	if err != nil {
		t.Fatalf("WaitForUpdate: %v", err)
	}
	if update.Key != watched {
		t.Errorf("update for %s leaked into watcher for %s", update.Key, watched)
	}
}
