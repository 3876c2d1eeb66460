// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/parley-foundation/parley/lib/fault"
	"github.com/parley-foundation/parley/lib/ref"
	"github.com/parley-foundation/parley/store"
)

// GrantPort records read-capability grants for stored objects. It is
// the single place grants cross into the access controller, and the
// single place duplicate-grant responses are absorbed: grants are
// additive and cumulative, so re-issuing an equivalent grant is a
// successful no-op, not an error. Any other store failure propagates
// to the caller.
type GrantPort struct {
	access store.AccessController
	logger *slog.Logger
}

// NewGrantPort creates a GrantPort over the given access controller.
func NewGrantPort(access store.AccessController, logger *slog.Logger) *GrantPort {
	return &GrantPort{access: access, logger: logger}
}

// Grant records an ADD grant for target naming the given persons and
// groups. At least one person or group is required.
func (g *GrantPort) Grant(ctx context.Context, target ref.ObjectRef, persons []ref.PersonID, groups []ref.GroupID) error {
	if target.IsZero() {
		return fault.New(fault.Validation, "grant target is zero-value")
	}
	if len(persons) == 0 && len(groups) == 0 {
		return fault.New(fault.Validation, "grant for %s names no persons or groups", target.Short())
	}

	err := g.access.GrantAccess(ctx, target, persons, groups)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrGrantExists):
		// Cumulative grants: an equivalent grant already on record
		// means the desired state holds.
		g.logger.Debug("grant already exists, treating as success",
			"target", target.Short(),
			"persons", len(persons),
			"groups", len(groups),
		)
		return nil
	case errors.Is(err, store.ErrUnavailable):
		return fault.Wrap(err, fault.StoreUnavailable, "granting access to %s", target.Short())
	default:
		return fmt.Errorf("granting access to %s: %w", target.Short(), err)
	}
}
