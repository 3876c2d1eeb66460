// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package contact

import (
	"fmt"
	"time"

	"github.com/parley-foundation/parley/lib/codec"
	"github.com/parley-foundation/parley/lib/ref"
	"github.com/parley-foundation/parley/lib/sealed"
)

// Permissions is the capability set carried by a dedicated credential.
// The zero value denies everything; capabilities are opt-in.
type Permissions struct {
	CanMessage     bool `json:"canMessage"`
	CanCall        bool `json:"canCall"`
	CanShareFiles  bool `json:"canShareFiles"`
	CanSeePresence bool `json:"canSeePresence"`

	// Custom carries deployment-specific capability flags from the
	// baseline policy file.
	Custom map[string]bool `json:"custom,omitempty"`
}

// DedicatedCredential is the per-contact credential issued on
// acceptance. It names exactly one issuer/subject pair and is never
// shared across contacts.
type DedicatedCredential struct {
	ID          string       `json:"id"`
	Issuer      ref.PersonID `json:"issuer"`
	Subject     ref.PersonID `json:"subject"`
	Permissions Permissions  `json:"permissions"`
	IssuedAt    time.Time    `json:"issuedAt"`
	Revoked     bool         `json:"revoked,omitempty"`
	RevokedAt   time.Time    `json:"revokedAt,omitzero"`
}

// AcceptOptions selects the permissions for the credential issued by
// AcceptContact. A nil *AcceptOptions means the caller expressed no
// preference: the issued credential then gets the coordinator's
// baseline plus CanMessage, since an acceptance that cannot message is
// useless. A non-nil options value is taken literally, including
// all-false.
type AcceptOptions struct {
	Permissions Permissions
}

// resolvePermissions merges the baseline and the caller's options.
func resolvePermissions(baseline Permissions, options *AcceptOptions) Permissions {
	if options != nil {
		return options.Permissions
	}
	merged := baseline
	merged.CanMessage = true
	return merged
}

// sealCredential encodes the credential and seals it to the peer's age
// public key. An empty key returns the plain encoded form for
// transports that carry their own protection (loopback, tests).
func sealCredential(credential DedicatedCredential, publicKey string) ([]byte, error) {
	encoded, err := codec.Marshal(credential)
	if err != nil {
		return nil, fmt.Errorf("encoding credential %s: %w", credential.ID, err)
	}
	if publicKey == "" {
		return encoded, nil
	}
	ciphertext, err := sealed.Encrypt(encoded, publicKey)
	if err != nil {
		return nil, fmt.Errorf("sealing credential %s: %w", credential.ID, err)
	}
	return []byte(ciphertext), nil
}

// OpenCredential decodes a credential payload produced by the accept
// flow, unsealing it first when privateKey is non-empty.
func OpenCredential(payload []byte, privateKey string) (DedicatedCredential, error) {
	encoded := payload
	if privateKey != "" {
		plaintext, err := sealed.Decrypt(string(payload), privateKey)
		if err != nil {
			return DedicatedCredential{}, fmt.Errorf("unsealing credential: %w", err)
		}
		encoded = plaintext
	}
	var credential DedicatedCredential
	if err := codec.Unmarshal(encoded, &credential); err != nil {
		return DedicatedCredential{}, fmt.Errorf("decoding credential: %w", err)
	}
	return credential, nil
}
