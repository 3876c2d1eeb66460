// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package contact implements the contact acceptance lifecycle and the
// trust-threshold gate.
//
// [Coordinator] owns the pending/accepted/credential tables and drives
// the per-contact state machine: pending moves to accepted or rejected,
// and accepted credentials can later be revoked without touching the
// contact record or its channel. Accepting a contact issues a
// [DedicatedCredential], delivers it to the peer through the
// [PeerTransport] port, and establishes the shared channel so messaging
// is available immediately.
//
// [TrustGate] derives communication permissions from the external trust
// evaluator's level for a person. When the evaluator is unavailable the
// gate reports an explicit unknown result instead of defaulting either
// way.
package contact
