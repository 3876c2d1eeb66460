// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strings"
)

// maxIDLength bounds person and group identifiers. Identifiers are
// derived from content hashes by the identity layer, so legitimate
// values are short; the bound exists to reject garbage from the wire.
const maxIDLength = 128

// PersonID is a stable identity for a human or automated contact. The
// value is opaque to this package — it is produced by the external
// identity layer (typically the hex ID-hash of a person object) and
// only validated for shape here.
type PersonID struct {
	id string
}

// NewPersonID validates and wraps a person identifier.
func NewPersonID(id string) (PersonID, error) {
	if err := validateID(id, "person"); err != nil {
		return PersonID{}, err
	}
	return PersonID{id: id}, nil
}

// MustPersonID is NewPersonID that panics on invalid input. For use in
// tests and package-level constants only.
func MustPersonID(id string) PersonID {
	person, err := NewPersonID(id)
	if err != nil {
		panic(err)
	}
	return person
}

// String returns the identifier.
func (p PersonID) String() string { return p.id }

// IsZero reports whether this is an uninitialized zero-value ref.
func (p PersonID) IsZero() bool { return p.id == "" }

// Less reports whether p sorts before other in the canonical byte
// order used for commutative pair keys.
func (p PersonID) Less(other PersonID) bool { return p.id < other.id }

// MarshalText implements encoding.TextMarshaler.
func (p PersonID) MarshalText() ([]byte, error) {
	return []byte(p.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty input
// produces a zero value, the symmetric counterpart to marshaling.
func (p *PersonID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*p = PersonID{}
		return nil
	}
	parsed, err := NewPersonID(string(data))
	if err != nil {
		return fmt.Errorf("unmarshal PersonID: %w", err)
	}
	*p = parsed
	return nil
}

// GroupID identifies a principal group (a set of persons managed by
// the external identity layer). Bilateral channel grants must never
// reference groups — that invariant is enforced by the channel access
// coordinator, not here.
type GroupID struct {
	id string
}

// NewGroupID validates and wraps a group identifier.
func NewGroupID(id string) (GroupID, error) {
	if err := validateID(id, "group"); err != nil {
		return GroupID{}, err
	}
	return GroupID{id: id}, nil
}

// MustGroupID is NewGroupID that panics on invalid input.
func MustGroupID(id string) GroupID {
	group, err := NewGroupID(id)
	if err != nil {
		panic(err)
	}
	return group
}

// String returns the identifier.
func (g GroupID) String() string { return g.id }

// IsZero reports whether this is an uninitialized zero-value ref.
func (g GroupID) IsZero() bool { return g.id == "" }

// MarshalText implements encoding.TextMarshaler.
func (g GroupID) MarshalText() ([]byte, error) {
	return []byte(g.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *GroupID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*g = GroupID{}
		return nil
	}
	parsed, err := NewGroupID(string(data))
	if err != nil {
		return fmt.Errorf("unmarshal GroupID: %w", err)
	}
	*g = parsed
	return nil
}

// validateID checks the shared shape rules for person and group
// identifiers: non-empty, bounded length, printable ASCII with no
// whitespace, and no pair separator (which would make canonical pair
// keys ambiguous).
func validateID(id, kind string) error {
	if id == "" {
		return fmt.Errorf("invalid %s ref: empty identifier", kind)
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("invalid %s ref: identifier exceeds %d bytes", kind, maxIDLength)
	}
	if strings.Contains(id, pairSeparator) {
		return fmt.Errorf("invalid %s ref: identifier contains pair separator %q", kind, pairSeparator)
	}
	for _, r := range id {
		if r <= ' ' || r > '~' {
			return fmt.Errorf("invalid %s ref: identifier contains byte %q", kind, r)
		}
	}
	return nil
}
