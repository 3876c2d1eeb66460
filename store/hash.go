// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"github.com/zeebo/blake3"

	"github.com/parley-foundation/parley/lib/codec"
	"github.com/parley-foundation/parley/lib/ref"
)

// domainKey is a 32-byte key for BLAKE3 keyed hashing. Domain
// separation ensures the same encoded bytes produce different hashes
// in different contexts, so an identity hash can never collide with a
// version hash. The byte values are the ASCII domain name zero-padded
// to 32 bytes — readable in hex dumps, and BLAKE3 keyed mode treats
// the key as an opaque value either way.
type domainKey [32]byte

// Fixed domain keys. Changing them invalidates every existing object
// ref in that domain.
var (
	versionDomainKey = domainKey{
		'p', 'a', 'r', 'l', 'e', 'y', '.', 'o', 'b', 'j', 'e', 'c', 't', '.',
		'v', 'e', 'r', 's', 'i', 'o', 'n', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	identityDomainKey = domainKey{
		'p', 'a', 'r', 'l', 'e', 'y', '.', 'o', 'b', 'j', 'e', 'c', 't', '.',
		'i', 'd', 'e', 'n', 't', 'i', 't', 'y', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

// keyedHash computes the BLAKE3 keyed hash of data in the given domain.
func keyedHash(key domainKey, data []byte) [32]byte {
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("store: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var digest [32]byte
	copy(digest[:], hasher.Sum(nil))
	return digest
}

// encodeAndHash encodes obj with deterministic CBOR and returns the
// encoded bytes plus the version-domain content hash.
func encodeAndHash(obj any) ([]byte, ref.ObjectRef, error) {
	encoded, err := codec.Marshal(obj)
	if err != nil {
		return nil, ref.ObjectRef{}, err
	}
	return encoded, ref.ObjectRefFromBytes(keyedHash(versionDomainKey, encoded)), nil
}

// identityHash encodes the identity fields of a versioned object and
// returns the identity-domain hash.
func identityHash(identity any) (ref.IDHash, error) {
	encoded, err := codec.Marshal(identity)
	if err != nil {
		return ref.IDHash{}, err
	}
	return ref.IDHashFromBytes(keyedHash(identityDomainKey, encoded)), nil
}
