// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package contact

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/parley-foundation/parley/lib/ref"
)

// PendingID identifies a pending contact request within one
// coordinator instance. Generated, never derived from peer input.
type PendingID string

// newPendingID returns a random pending ID.
func newPendingID() PendingID {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand never fails on supported platforms.
		panic("reading random bytes: " + err.Error())
	}
	return PendingID("pending-" + hex.EncodeToString(buf[:]))
}

// PeerCredential is the credential a peer presents when requesting
// contact. The token and URL are the structural minimum; anything less
// is rejected before it reaches the pending table.
type PeerCredential struct {
	// Token is the peer's pairing token or handle.
	Token string `json:"token"`

	// URL is the peer's reachable endpoint.
	URL string `json:"url"`
}

// ConnectionInfo carries how to reach the peer once accepted.
type ConnectionInfo struct {
	// Endpoint is the transport address used for credential delivery.
	Endpoint string `json:"endpoint,omitempty"`

	// PublicKey is the peer's age recipient for sealing the dedicated
	// credential. Empty means the credential is delivered unsealed
	// (loopback and test transports).
	PublicKey string `json:"publicKey,omitempty"`
}

// Status is the lifecycle state of a contact record.
type Status string

const (
	// StatusPending means the request awaits a local decision.
	StatusPending Status = "pending"

	// StatusAccepted means a dedicated credential was issued.
	StatusAccepted Status = "accepted"

	// StatusRejected means the request was declined; no credential
	// exists.
	StatusRejected Status = "rejected"
)

// PendingContact is one entry in the pending table.
type PendingContact struct {
	ID         PendingID      `json:"id"`
	Peer       ref.PersonID   `json:"peer"`
	Credential PeerCredential `json:"credential"`
	Connection ConnectionInfo `json:"connection"`
	Status     Status         `json:"status"`
	AddedAt    time.Time      `json:"addedAt"`
}

// Contact is an accepted contact: the peer, the credentials exchanged
// in each direction, and when acceptance happened. Revoking the local
// credential marks it revoked but keeps the record.
type Contact struct {
	Peer ref.PersonID `json:"peer"`

	// Local is the credential this process issued to the peer.
	Local *DedicatedCredential `json:"local,omitempty"`

	// Remote is the credential the peer issued to this process. Both
	// being present means the contact is mutually accepted.
	Remote *DedicatedCredential `json:"remote,omitempty"`

	AcceptedAt time.Time `json:"acceptedAt"`
}

// MutuallyAccepted reports whether credentials exist in both
// directions.
func (c Contact) MutuallyAccepted() bool {
	return c.Local != nil && c.Remote != nil
}

// ContactSummary is the per-contact view returned by listing. Channel
// is populated from the directory when reachable within the per-item
// budget; a zero Channel means the lookup was skipped.
type ContactSummary struct {
	Contact Contact
	Channel ref.ChannelKey
}
