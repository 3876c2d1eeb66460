// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package contact

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/parley-foundation/parley/channel"
	"github.com/parley-foundation/parley/lib/clock"
	"github.com/parley-foundation/parley/lib/fault"
	"github.com/parley-foundation/parley/lib/ref"
	"github.com/parley-foundation/parley/store"
)

// defaultItemTimeout bounds each per-contact directory lookup during
// listing. A contact whose lookup exceeds this is skipped, never
// allowed to abort the whole listing.
const defaultItemTimeout = 3 * time.Second

// Coordinator owns the per-process contact tables and drives the
// contact lifecycle. All tables are volatile: pending requests and
// issued credentials are lost on restart and must be re-exchanged.
//
// One mutex guards every table mutation, so a logical step such as
// "move this pending record to accepted and record its credential"
// completes without another flow observing a half-state. Transport
// sends and channel establishment happen outside the lock.
type Coordinator struct {
	local       ref.PersonID
	establisher *channel.Establisher
	directory   store.Directory
	transport   PeerTransport
	clock       clock.Clock
	logger      *slog.Logger

	// baseline seeds issued credentials when the caller passes no
	// options. Loaded from the policy file at process start.
	baseline Permissions

	// itemTimeout bounds per-contact work in Contacts.
	itemTimeout time.Duration

	mu       sync.Mutex
	pending  map[PendingID]*PendingContact
	contacts map[ref.PersonID]*Contact
}

// CoordinatorConfig carries the Coordinator's construction parameters.
type CoordinatorConfig struct {
	Local       ref.PersonID
	Establisher *channel.Establisher
	Directory   store.Directory
	Transport   PeerTransport
	Clock       clock.Clock
	Logger      *slog.Logger

	// Baseline seeds credentials issued without explicit options.
	Baseline Permissions

	// ItemTimeout bounds per-contact listing work. Zero means
	// defaultItemTimeout.
	ItemTimeout time.Duration
}

// NewCoordinator creates a Coordinator with empty tables.
func NewCoordinator(config CoordinatorConfig) *Coordinator {
	timeout := config.ItemTimeout
	if timeout <= 0 {
		timeout = defaultItemTimeout
	}
	return &Coordinator{
		local:       config.Local,
		establisher: config.Establisher,
		directory:   config.Directory,
		transport:   config.Transport,
		clock:       config.Clock,
		logger:      config.Logger,
		baseline:    config.Baseline,
		itemTimeout: timeout,
		pending:     make(map[PendingID]*PendingContact),
		contacts:    make(map[ref.PersonID]*Contact),
	}
}

// AddPendingContact validates the peer's credential and inserts a
// pending record. The structural minimum is a non-empty token and a
// parseable endpoint URL; anything less is a validation fault and
// leaves the table untouched.
func (c *Coordinator) AddPendingContact(credential PeerCredential, peer ref.PersonID, connection ConnectionInfo) (PendingID, error) {
	if peer.IsZero() {
		return "", fault.New(fault.Validation, "pending contact: zero-value peer")
	}
	if strings.TrimSpace(credential.Token) == "" {
		return "", fault.New(fault.Validation, "pending contact from %s: credential has no token", peer)
	}
	if err := validateEndpoint(credential.URL); err != nil {
		return "", fault.Wrap(err, fault.Validation, "pending contact from %s", peer)
	}

	record := &PendingContact{
		ID:         newPendingID(),
		Peer:       peer,
		Credential: credential,
		Connection: connection,
		Status:     StatusPending,
		AddedAt:    c.clock.Now().UTC(),
	}

	c.mu.Lock()
	c.pending[record.ID] = record
	c.mu.Unlock()

	c.logger.Info("pending contact added", "pending_id", record.ID, "peer", peer)
	return record.ID, nil
}

// validateEndpoint checks that the credential names a reachable-looking
// URL. Reachability itself is the transport's problem; this rejects
// only structural garbage.
func validateEndpoint(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("credential has no url")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("credential url %q: %w", raw, err)
	}
	if parsed.Scheme != "" && parsed.Host == "" {
		return fmt.Errorf("credential url %q has a scheme but no host", raw)
	}
	return nil
}

// AcceptResult reports an acceptance. Warning is non-empty when a
// non-fatal step failed (credential delivery, channel establishment);
// the local acceptance is committed either way and is not rolled back.
type AcceptResult struct {
	Credential DedicatedCredential
	Channel    ref.ChannelKey
	Warning    string
}

// AcceptContact accepts a pending contact: issues a dedicated
// credential, delivers it to the peer, moves the record from pending
// to accepted, and establishes the shared channel so messaging works
// immediately. There are no retries here — acceptance fails fast on
// fatal errors, and non-fatal delivery problems surface as the
// result's Warning.
func (c *Coordinator) AcceptContact(ctx context.Context, pendingID PendingID, options *AcceptOptions) (AcceptResult, error) {
	c.mu.Lock()
	record, ok := c.pending[pendingID]
	if !ok {
		c.mu.Unlock()
		return AcceptResult{}, fault.New(fault.NotFound, "pending contact %s not found", pendingID)
	}

	credential := DedicatedCredential{
		ID:          fmt.Sprintf("cred-%s-%s", c.local, record.Peer),
		Issuer:      c.local,
		Subject:     record.Peer,
		Permissions: resolvePermissions(c.baseline, options),
		IssuedAt:    c.clock.Now().UTC(),
	}

	// Commit the state transition in one step: pending removed,
	// contact recorded with its credential.
	delete(c.pending, pendingID)
	contact := c.contacts[record.Peer]
	if contact == nil {
		contact = &Contact{Peer: record.Peer}
		c.contacts[record.Peer] = contact
	}
	contact.Local = &credential
	contact.AcceptedAt = credential.IssuedAt
	peer := record.Peer
	connection := record.Connection
	c.mu.Unlock()

	result := AcceptResult{Credential: credential}
	var warnings []string

	payload, err := sealCredential(credential, connection.PublicKey)
	if err != nil {
		// Encoding failures are local bugs, not peer conditions.
		return result, fmt.Errorf("preparing credential for %s: %w", peer, err)
	}
	if err := c.transport.SendToPeer(ctx, peer, payload, KindCredential); err != nil {
		c.logger.Warn("credential delivery failed, acceptance committed locally",
			"peer", peer, "error", err)
		warnings = append(warnings, fmt.Sprintf("credential delivery to %s failed: %v", peer, err))
	}

	established, err := c.establisher.Establish(ctx, c.local, peer, channel.EstablishOptions{Initiator: true})
	if err != nil {
		c.logger.Warn("channel establishment failed after acceptance",
			"peer", peer, "error", err)
		warnings = append(warnings, fmt.Sprintf("channel establishment with %s failed: %v", peer, err))
	} else {
		result.Channel = established.Channel.Key
	}

	result.Warning = strings.Join(warnings, "; ")
	c.logger.Info("contact accepted",
		"peer", peer,
		"credential", credential.ID,
		"warnings", len(warnings),
	)
	return result, nil
}

// RejectContact removes a pending record and best-effort notifies the
// peer. Notification failure never fails the rejection, and no
// credential is ever created on this path.
func (c *Coordinator) RejectContact(ctx context.Context, pendingID PendingID, reason string) error {
	c.mu.Lock()
	record, ok := c.pending[pendingID]
	if !ok {
		c.mu.Unlock()
		return fault.New(fault.NotFound, "pending contact %s not found", pendingID)
	}
	delete(c.pending, pendingID)
	peer := record.Peer
	c.mu.Unlock()

	if err := c.transport.SendToPeer(ctx, peer, []byte(reason), KindRejection); err != nil {
		c.logger.Warn("rejection notice delivery failed", "peer", peer, "error", err)
	}
	c.logger.Info("contact rejected", "peer", peer, "reason", reason)
	return nil
}

// HandleReceivedDedicatedCredential records a credential the peer
// issued to this process. The contact becomes mutually accepted once
// credentials exist in both directions.
func (c *Coordinator) HandleReceivedDedicatedCredential(credential DedicatedCredential, peer ref.PersonID) error {
	if peer.IsZero() {
		return fault.New(fault.Validation, "received credential: zero-value peer")
	}
	if credential.Issuer != peer {
		return fault.New(fault.Validation,
			"received credential %s: issuer %s does not match peer %s",
			credential.ID, credential.Issuer, peer)
	}
	if credential.Subject != c.local {
		return fault.New(fault.Validation,
			"received credential %s: subject %s is not this process (%s)",
			credential.ID, credential.Subject, c.local)
	}

	c.mu.Lock()
	contact := c.contacts[peer]
	if contact == nil {
		contact = &Contact{Peer: peer}
		c.contacts[peer] = contact
	}
	contact.Remote = &credential
	mutual := contact.MutuallyAccepted()
	c.mu.Unlock()

	c.logger.Info("peer credential recorded", "peer", peer, "mutual", mutual)
	return nil
}

// RevokeContactCredential marks the locally issued credential for a
// person revoked. The contact record and any established channel
// survive; only the credential loses validity.
func (c *Coordinator) RevokeContactCredential(person ref.PersonID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	contact := c.contacts[person]
	if contact == nil || contact.Local == nil {
		return fault.New(fault.NotFound, "no issued credential for %s", person)
	}
	if contact.Local.Revoked {
		return nil
	}
	contact.Local.Revoked = true
	contact.Local.RevokedAt = c.clock.Now().UTC()
	c.logger.Info("credential revoked", "peer", person, "credential", contact.Local.ID)
	return nil
}

// PendingContacts returns the pending table as a snapshot, newest
// first by insertion time.
func (c *Coordinator) PendingContacts() []PendingContact {
	c.mu.Lock()
	defer c.mu.Unlock()

	records := make([]PendingContact, 0, len(c.pending))
	for _, record := range c.pending {
		records = append(records, *record)
	}
	slices.SortFunc(records, func(a, b PendingContact) int {
		return b.AddedAt.Compare(a.AddedAt)
	})
	return records
}

// PendingContact returns one pending record by ID.
func (c *Coordinator) PendingContact(pendingID PendingID) (PendingContact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	record, ok := c.pending[pendingID]
	if !ok {
		return PendingContact{}, fault.New(fault.NotFound, "pending contact %s not found", pendingID)
	}
	return *record, nil
}

// Contacts lists accepted contacts with their channel keys. Each
// per-contact directory lookup runs under the item timeout; a contact
// whose lookup fails or times out is returned without a channel and
// the listing continues — one bad item never aborts the whole result.
func (c *Coordinator) Contacts(ctx context.Context) []ContactSummary {
	c.mu.Lock()
	snapshot := make([]Contact, 0, len(c.contacts))
	for _, contact := range c.contacts {
		snapshot = append(snapshot, *contact)
	}
	c.mu.Unlock()

	slices.SortFunc(snapshot, func(a, b Contact) int {
		return a.AcceptedAt.Compare(b.AcceptedAt)
	})

	summaries := make([]ContactSummary, 0, len(snapshot))
	for _, contact := range snapshot {
		summary := ContactSummary{Contact: contact}
		key, err := c.channelFor(ctx, contact.Peer)
		if err != nil {
			c.logger.Warn("contact listing: channel lookup skipped",
				"peer", contact.Peer, "error", err)
		} else {
			summary.Channel = key
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

// channelFor looks up the shared channel for a peer under the item
// timeout.
func (c *Coordinator) channelFor(ctx context.Context, peer ref.PersonID) (ref.ChannelKey, error) {
	key, err := ref.PairKey(c.local, peer)
	if err != nil {
		return ref.ChannelKey{}, fault.Wrap(err, fault.Validation, "channel lookup for %s", peer)
	}

	itemCtx, cancel := context.WithTimeout(ctx, c.itemTimeout)
	defer cancel()

	if _, err := c.directory.GetChannel(itemCtx, key); err != nil {
		if itemCtx.Err() != nil {
			return ref.ChannelKey{}, fault.Wrap(err, fault.Timeout, "channel lookup for %s", peer)
		}
		return ref.ChannelKey{}, fmt.Errorf("channel lookup for %s: %w", peer, err)
	}
	return key, nil
}
