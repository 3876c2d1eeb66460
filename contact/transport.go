// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package contact

import (
	"context"
	"fmt"
	"sync"

	"github.com/parley-foundation/parley/lib/ref"
)

// PayloadKind classifies a peer delivery so the receiving side can
// route it without inspecting the payload.
type PayloadKind string

const (
	// KindCredential carries a sealed or plain DedicatedCredential.
	KindCredential PayloadKind = "credential"

	// KindRejection carries a rejection notice with a reason string.
	KindRejection PayloadKind = "rejection"
)

// Delivery is one payload handed to a peer's inbox.
type Delivery struct {
	From    ref.PersonID
	Kind    PayloadKind
	Payload []byte
}

// PeerTransport delivers payloads to remote peers. Implementations own
// addressing and retry; this core treats a send failure as a non-fatal
// warning for acceptance flows.
type PeerTransport interface {
	SendToPeer(ctx context.Context, peer ref.PersonID, payload []byte, kind PayloadKind) error
}

// LoopbackTransport is an in-process PeerTransport delivering payloads
// to registered inboxes. Used by tests and single-process deployments
// where both peers share the process.
type LoopbackTransport struct {
	local ref.PersonID

	mu      sync.Mutex
	inboxes map[ref.PersonID]chan Delivery
}

// NewLoopbackTransport creates a loopback transport sending on behalf
// of local.
func NewLoopbackTransport(local ref.PersonID) *LoopbackTransport {
	return &LoopbackTransport{
		local:   local,
		inboxes: make(map[ref.PersonID]chan Delivery),
	}
}

// inboxBuffer bounds each registered inbox. Loopback peers that stop
// draining fail sends instead of blocking the accept flow.
const inboxBuffer = 16

// Register creates (or returns) the inbox channel for a peer.
func (t *LoopbackTransport) Register(peer ref.PersonID) <-chan Delivery {
	t.mu.Lock()
	defer t.mu.Unlock()
	inbox, ok := t.inboxes[peer]
	if !ok {
		inbox = make(chan Delivery, inboxBuffer)
		t.inboxes[peer] = inbox
	}
	return inbox
}

// SendToPeer delivers to the peer's registered inbox. An unregistered
// peer or a full inbox is a transport failure.
func (t *LoopbackTransport) SendToPeer(ctx context.Context, peer ref.PersonID, payload []byte, kind PayloadKind) error {
	t.mu.Lock()
	inbox, ok := t.inboxes[peer]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("loopback send to %s: peer not registered", peer)
	}

	delivery := Delivery{From: t.local, Kind: kind, Payload: payload}
	select {
	case inbox <- delivery:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("loopback send to %s: %w", peer, ctx.Err())
	default:
		return fmt.Errorf("loopback send to %s: inbox full", peer)
	}
}
