// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strings"
)

// pairSeparator joins the two sorted person IDs of a shared channel
// key. This is a protocol constant — both peers must produce identical
// keys, so changing it breaks every existing pairing.
const pairSeparator = "<->"

// ChannelKey identifies a communication channel. Two forms exist:
//
//   - Shared (P2P): the canonical commutative pair key
//     sorted(A,B) joined with "<->", owner none. Both peers compute
//     the same key independently, which is what makes the
//     create-or-join establishment protocol order-independent.
//   - Single-owner: an arbitrary channel ID plus an owner person
//     (topic channels, federation endpoints).
type ChannelKey struct {
	id    string
	owner PersonID
}

// PairKey computes the canonical shared channel key for two persons.
// Commutative: PairKey(a, b) == PairKey(b, a). Returns an error when
// either person is zero or both are the same person.
func PairKey(a, b PersonID) (ChannelKey, error) {
	if a.IsZero() || b.IsZero() {
		return ChannelKey{}, fmt.Errorf("invalid pair key: zero-value person")
	}
	if a == b {
		return ChannelKey{}, fmt.Errorf("invalid pair key: both sides are %q", a)
	}
	first, second := a, b
	if second.Less(first) {
		first, second = second, first
	}
	return ChannelKey{id: first.String() + pairSeparator + second.String()}, nil
}

// MustPairKey is PairKey that panics on invalid input. For tests.
func MustPairKey(a, b PersonID) ChannelKey {
	key, err := PairKey(a, b)
	if err != nil {
		panic(err)
	}
	return key
}

// OwnedKey builds a single-owner channel key.
func OwnedKey(id string, owner PersonID) (ChannelKey, error) {
	if err := validateID(id, "channel"); err != nil {
		return ChannelKey{}, err
	}
	if owner.IsZero() {
		return ChannelKey{}, fmt.Errorf("invalid channel key: zero-value owner")
	}
	return ChannelKey{id: id, owner: owner}, nil
}

// MustOwnedKey is OwnedKey that panics on invalid input. For tests.
func MustOwnedKey(id string, owner PersonID) ChannelKey {
	key, err := OwnedKey(id, owner)
	if err != nil {
		panic(err)
	}
	return key
}

// ParseChannelKey parses the canonical string form produced by String.
// A key containing the pair separator parses as a shared key; anything
// else is rejected (single-owner keys carry their owner out of band
// and do not round-trip through this function).
func ParseChannelKey(s string) (ChannelKey, error) {
	first, second, found := strings.Cut(s, pairSeparator)
	if !found {
		return ChannelKey{}, fmt.Errorf("invalid channel key %q: no pair separator", s)
	}
	personA, err := NewPersonID(first)
	if err != nil {
		return ChannelKey{}, fmt.Errorf("invalid channel key %q: %w", s, err)
	}
	personB, err := NewPersonID(second)
	if err != nil {
		return ChannelKey{}, fmt.Errorf("invalid channel key %q: %w", s, err)
	}
	return PairKey(personA, personB)
}

// String returns the canonical key string. For shared keys this is
// the commutative pair form; for single-owner keys it is the bare ID.
func (k ChannelKey) String() string { return k.id }

// IsZero reports whether this is an uninitialized zero-value key.
func (k ChannelKey) IsZero() bool { return k.id == "" }

// IsShared reports whether this is a shared (P2P) key.
func (k ChannelKey) IsShared() bool {
	return k.owner.IsZero() && strings.Contains(k.id, pairSeparator)
}

// Owner returns the owning person for single-owner keys, or the zero
// value for shared keys.
func (k ChannelKey) Owner() PersonID { return k.owner }

// Participants returns the two persons of a shared key in canonical
// order. Returns zero values for single-owner keys.
func (k ChannelKey) Participants() (PersonID, PersonID) {
	if !k.IsShared() {
		return PersonID{}, PersonID{}
	}
	first, second, _ := strings.Cut(k.id, pairSeparator)
	return PersonID{id: first}, PersonID{id: second}
}

// MarshalText implements encoding.TextMarshaler.
func (k ChannelKey) MarshalText() ([]byte, error) {
	return []byte(k.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Only shared keys
// round-trip; see ParseChannelKey.
func (k *ChannelKey) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*k = ChannelKey{}
		return nil
	}
	parsed, err := ParseChannelKey(string(data))
	if err != nil {
		return fmt.Errorf("unmarshal ChannelKey: %w", err)
	}
	*k = parsed
	return nil
}
