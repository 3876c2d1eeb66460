// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package store defines Parley's object store, access control, and
// channel directory ports, plus two implementations of them.
//
// The ports are the process boundary of the core: the contact and
// channel coordinators consume [Store], [AccessController], and
// [Directory] and never reach a concrete backend directly. The store
// is append-only and content-addressed — objects are encoded with
// lib/codec's deterministic CBOR, hashed with domain-separated keyed
// BLAKE3, and addressed by the hex digest. Versioned objects carry a
// second, stable identity hash shared by all versions.
//
// [MemoryStore] implements all three ports in process memory. It backs
// tests and single-process deployments, and is the reference for the
// ports' semantics: duplicate grants return [ErrGrantExists] so callers
// can treat re-issuance as an idempotent no-op, channel creation races
// return [ErrChannelExists] for the establisher's join-or-retry loop,
// and update dispatch runs on per-subscriber buffered goroutines so a
// slow observer cannot block channel writes.
//
// [FileStore] layers persistent object storage over the same
// addressing: objects live on disk with per-object transparent
// compression (LZ4 by default, zstd for large objects). Grants and the
// channel directory remain in memory — that volatility is deliberate
// and documented on the type.
package store
