// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"encoding/hex"
	"fmt"
)

// ObjectRef is the content address of a stored object: the lowercase
// hex form of its 32-byte BLAKE3 version hash. Two objects with the
// same bytes have the same ObjectRef.
type ObjectRef struct {
	hash string
}

// NewObjectRef validates and wraps a hex object hash.
func NewObjectRef(hash string) (ObjectRef, error) {
	if err := validateHash(hash, "object"); err != nil {
		return ObjectRef{}, err
	}
	return ObjectRef{hash: hash}, nil
}

// ObjectRefFromBytes builds an ObjectRef from a raw 32-byte digest.
func ObjectRefFromBytes(digest [32]byte) ObjectRef {
	return ObjectRef{hash: hex.EncodeToString(digest[:])}
}

// MustObjectRef is NewObjectRef that panics on invalid input.
func MustObjectRef(hash string) ObjectRef {
	objectRef, err := NewObjectRef(hash)
	if err != nil {
		panic(err)
	}
	return objectRef
}

// String returns the hex hash.
func (o ObjectRef) String() string { return o.hash }

// IsZero reports whether this is an uninitialized zero-value ref.
func (o ObjectRef) IsZero() bool { return o.hash == "" }

// Short returns the first 12 hex characters for logs and display.
func (o ObjectRef) Short() string {
	if len(o.hash) < 12 {
		return o.hash
	}
	return o.hash[:12]
}

// MarshalText implements encoding.TextMarshaler.
func (o ObjectRef) MarshalText() ([]byte, error) {
	return []byte(o.hash), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *ObjectRef) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*o = ObjectRef{}
		return nil
	}
	parsed, err := NewObjectRef(string(data))
	if err != nil {
		return fmt.Errorf("unmarshal ObjectRef: %w", err)
	}
	*o = parsed
	return nil
}

// IDHash is the stable identity hash of a versioned object: the hex
// BLAKE3 hash of the object's identity fields only. All versions of
// the same logical object share one IDHash while each version has its
// own ObjectRef.
type IDHash struct {
	hash string
}

// NewIDHash validates and wraps a hex identity hash.
func NewIDHash(hash string) (IDHash, error) {
	if err := validateHash(hash, "identity"); err != nil {
		return IDHash{}, err
	}
	return IDHash{hash: hash}, nil
}

// IDHashFromBytes builds an IDHash from a raw 32-byte digest.
func IDHashFromBytes(digest [32]byte) IDHash {
	return IDHash{hash: hex.EncodeToString(digest[:])}
}

// MustIDHash is NewIDHash that panics on invalid input.
func MustIDHash(hash string) IDHash {
	idHash, err := NewIDHash(hash)
	if err != nil {
		panic(err)
	}
	return idHash
}

// String returns the hex hash.
func (i IDHash) String() string { return i.hash }

// IsZero reports whether this is an uninitialized zero-value ref.
func (i IDHash) IsZero() bool { return i.hash == "" }

// MarshalText implements encoding.TextMarshaler.
func (i IDHash) MarshalText() ([]byte, error) {
	return []byte(i.hash), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *IDHash) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = IDHash{}
		return nil
	}
	parsed, err := NewIDHash(string(data))
	if err != nil {
		return fmt.Errorf("unmarshal IDHash: %w", err)
	}
	*i = parsed
	return nil
}

// VersionedRef addresses one version of a versioned object: the
// version hash plus the stable identity hash.
type VersionedRef struct {
	// Hash addresses this specific version's bytes.
	Hash ObjectRef `json:"hash"`

	// IDHash is the stable identity shared by all versions.
	IDHash IDHash `json:"idHash"`
}

// IsZero reports whether this is an uninitialized zero-value ref.
func (v VersionedRef) IsZero() bool { return v.Hash.IsZero() }

// validateHash checks that hash is exactly 64 lowercase hex characters
// (a 32-byte digest).
func validateHash(hash, kind string) error {
	if len(hash) != 64 {
		return fmt.Errorf("invalid %s hash: got %d characters, want 64", kind, len(hash))
	}
	for _, r := range hash {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return fmt.Errorf("invalid %s hash: non-hex character %q", kind, r)
		}
	}
	return nil
}
