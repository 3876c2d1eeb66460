// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/parley-foundation/parley/lib/fault"
	"github.com/parley-foundation/parley/lib/ref"
)

// AccessCoordinator computes the correct grant set for channel events
// and issues the grants through a GrantPort.
//
// The bilateral path carries this core's central invariant: a P2P
// channel is readable through direct person grants only, never through
// a group. A group grant would make channel visibility depend on group
// membership changes made elsewhere, silently widening a two-person
// conversation. GrantBilateral therefore never accepts groups at all.
type AccessCoordinator struct {
	grants *GrantPort
	logger *slog.Logger
}

// NewAccessCoordinator creates an AccessCoordinator issuing through
// the given port.
func NewAccessCoordinator(grants *GrantPort, logger *slog.Logger) *AccessCoordinator {
	return &AccessCoordinator{grants: grants, logger: logger}
}

// GrantBilateral issues exactly one grant on the channel root naming
// both persons, with an empty group set. The caller must invoke this
// before (or atomically with) the first entry write to the channel, so
// neither participant can ever see an entry it cannot read.
func (a *AccessCoordinator) GrantBilateral(ctx context.Context, channelRef ref.ObjectRef, personA, personB ref.PersonID) error {
	if personA.IsZero() || personB.IsZero() {
		return fault.New(fault.Validation, "bilateral grant on %s: zero-value person", channelRef.Short())
	}
	if personA == personB {
		return fault.New(fault.Validation, "bilateral grant on %s: both persons are %s", channelRef.Short(), personA)
	}
	return a.grants.Grant(ctx, channelRef, []ref.PersonID{personA, personB}, nil)
}

// GrantFailure records one failed grant in a batch.
type GrantFailure struct {
	Target ref.ObjectRef
	Err    error
}

// GrantSummary reports the outcome of a grant batch. Each grant is
// independently idempotent, so a caller holding a partial summary can
// simply retry the whole batch.
type GrantSummary struct {
	// Granted lists targets whose grants succeeded.
	Granted []ref.ObjectRef

	// Failed lists targets whose grants failed, with causes.
	Failed []GrantFailure
}

// Complete reports whether every grant in the batch succeeded.
func (s GrantSummary) Complete() bool { return len(s.Failed) == 0 }

// GrantGroupMember grants a newly joined member access to the channel
// root and every historical entry that existed at join time. This is
// the backfill-completeness contract: a new member must be able to
// read all N pre-existing entries, not only future ones — the property
// that distinguishes a group join from bilateral creation, which has
// no history to backfill.
//
// On partial failure the batch is not rolled back. The summary lists
// which grants landed; the error is non-nil when any grant failed.
func (a *AccessCoordinator) GrantGroupMember(ctx context.Context, channelRef ref.ObjectRef, newPerson ref.PersonID, historicalEntries []ref.ObjectRef) (GrantSummary, error) {
	if newPerson.IsZero() {
		return GrantSummary{}, fault.New(fault.Validation, "group member grant on %s: zero-value person", channelRef.Short())
	}

	targets := make([]ref.ObjectRef, 0, len(historicalEntries)+1)
	targets = append(targets, channelRef)
	targets = append(targets, historicalEntries...)

	var summary GrantSummary
	persons := []ref.PersonID{newPerson}
	for _, target := range targets {
		if err := a.grants.Grant(ctx, target, persons, nil); err != nil {
			a.logger.Warn("group member backfill grant failed",
				"channel", channelRef.Short(),
				"target", target.Short(),
				"person", newPerson,
				"error", err,
			)
			summary.Failed = append(summary.Failed, GrantFailure{Target: target, Err: err})
			continue
		}
		summary.Granted = append(summary.Granted, target)
	}

	if !summary.Complete() {
		return summary, fmt.Errorf("backfill for %s incomplete: %d of %d grants failed (first: %w)",
			newPerson, len(summary.Failed), len(targets), summary.Failed[0].Err)
	}
	return summary, nil
}

// GrantMutual issues reciprocal grants for the federation case: two
// single-owner channels referencing each other, where each owner's
// channel must become readable by the other owner.
func (a *AccessCoordinator) GrantMutual(ctx context.Context, channelRefA, channelRefB ref.ObjectRef, personA, personB ref.PersonID) error {
	if personA.IsZero() || personB.IsZero() {
		return fault.New(fault.Validation, "mutual grant: zero-value person")
	}
	if err := a.grants.Grant(ctx, channelRefA, []ref.PersonID{personB}, nil); err != nil {
		return fmt.Errorf("mutual grant on %s for %s: %w", channelRefA.Short(), personB, err)
	}
	if err := a.grants.Grant(ctx, channelRefB, []ref.PersonID{personA}, nil); err != nil {
		return fmt.Errorf("mutual grant on %s for %s: %w", channelRefB.Short(), personA, err)
	}
	return nil
}
