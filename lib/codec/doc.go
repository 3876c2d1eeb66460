// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Parley's canonical object serialization:
// CBOR (RFC 8949) with Core Deterministic Encoding. Deterministic
// bytes are load-bearing here — object refs are BLAKE3 hashes over
// the encoded form, so the same logical object must always encode to
// identical bytes regardless of which peer encodes it.
//
// Struct types use json tags; fxamacker/cbor falls back to json tags,
// so the same types serve both encoders.
package codec
