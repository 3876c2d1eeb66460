// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"context"
	"sync"

	"github.com/parley-foundation/parley/lib/ref"
	"github.com/parley-foundation/parley/store"
)

// Watcher subscribes to directory updates and exposes blocking waits
// scoped to one channel key. The subscription is established in
// NewWatcher, so any entry appended after that point is observed even
// if the wait starts later — the watcher buffers, the caller does not
// have to race the directory.
type Watcher struct {
	key         ref.ChannelKey
	unsubscribe func()

	mu      sync.Mutex
	pending []store.Update
	signal  chan struct{}
	closed  bool
}

// NewWatcher starts watching directory updates for key. Close must be
// called to release the subscription.
func NewWatcher(directory store.Directory, key ref.ChannelKey) *Watcher {
	w := &Watcher{
		key:    key,
		signal: make(chan struct{}, 1),
	}
	w.unsubscribe = directory.SubscribeToUpdates(func(update store.Update) {
		if update.Key != key {
			return
		}
		w.mu.Lock()
		if w.closed {
			w.mu.Unlock()
			return
		}
		w.pending = append(w.pending, update)
		w.mu.Unlock()
		select {
		case w.signal <- struct{}{}:
		default:
		}
	})
	return w
}

// WaitForUpdate blocks until an update for the watched key is
// available or the context is done. Updates are delivered in arrival
// order.
func (w *Watcher) WaitForUpdate(ctx context.Context) (store.Update, error) {
	for {
		w.mu.Lock()
		if len(w.pending) > 0 {
			update := w.pending[0]
			w.pending = w.pending[1:]
			remaining := len(w.pending)
			w.mu.Unlock()
			if remaining > 0 {
				select {
				case w.signal <- struct{}{}:
				default:
				}
			}
			return update, nil
		}
		w.mu.Unlock()

		select {
		case <-w.signal:
		case <-ctx.Done():
			return store.Update{}, ctx.Err()
		}
	}
}

// WaitForEntry blocks until an entry-append update arrives for the
// watched key and returns the entry ref. Channel-created updates are
// consumed and skipped.
func (w *Watcher) WaitForEntry(ctx context.Context) (ref.ObjectRef, error) {
	for {
		update, err := w.WaitForUpdate(ctx)
		if err != nil {
			return ref.ObjectRef{}, err
		}
		if update.Kind == store.UpdateEntryAppended {
			return update.Entry, nil
		}
	}
}

// Close releases the directory subscription. Pending updates remain
// readable; new updates are dropped.
func (w *Watcher) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.unsubscribe()
}
