// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides strongly typed, immutable identity references
// for Parley entities: persons, groups, content-addressed objects, and
// channels.
//
// All constructors validate their inputs and return errors for invalid
// values. Once constructed, a ref is immutable. JSON and CBOR
// marshaling use the canonical string form via encoding.TextMarshaler,
// so refs can be struct fields of stored objects without custom codecs.
//
// [ChannelKey] is the identity of a communication channel. A shared
// (P2P) key is the canonical commutative pair form: both peers compute
// the same key regardless of argument order, which is what makes the
// create-or-join establishment protocol order-independent. A
// single-owner key carries an owner person instead.
package ref
