// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package channel implements channel establishment and capability
// grant issuance over the store ports.
//
// [GrantPort] is the thin grant-recording operation: it forwards ADD
// grants to the access controller and absorbs duplicate-grant
// responses, because grants are cumulative and re-issuing one is
// harmless. [AccessCoordinator] decides which persons should see
// which channel objects: exactly one two-person grant for bilateral
// channels (never through a group), per-entry backfill when a group
// channel gains a member, and reciprocal grants for federated
// single-owner channels.
//
// [Establisher] runs the idempotent create-or-join protocol for P2P
// channels. Both peers independently compute the same canonical pair
// key (ref.PairKey), so whichever side creates first wins and the
// other side joins; a creation conflict is recovered by re-joining
// after a policy delay, never surfaced unless retries exhaust. The
// retry policy and clock are injected so tests run the full protocol
// with zero wall-clock delay.
//
// [Watcher] adapts the directory's update subscription into a
// blocking wait-for-entry primitive scoped to one channel, for tests
// and delivery pumps.
package channel
