// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package contact

import (
	"context"
	"log/slog"

	"github.com/parley-foundation/parley/lib/ref"
)

// TrustAction is the action a trust evaluation is scoped to.
type TrustAction string

// ActionCommunication is the action the gate evaluates.
const ActionCommunication TrustAction = "communication"

// TrustStatus is the evaluator's categorical view of a principal.
type TrustStatus string

const (
	TrustUnknown   TrustStatus = "unknown"
	TrustTrusted   TrustStatus = "trusted"
	TrustUntrusted TrustStatus = "untrusted"
	TrustPending   TrustStatus = "pending"
	TrustRevoked   TrustStatus = "revoked"
)

// TrustEvaluator is the external trust layer consumed by the gate.
type TrustEvaluator interface {
	// EvaluateTrust returns the trust level in [0,1] for the given
	// person and action.
	EvaluateTrust(ctx context.Context, person ref.PersonID, action TrustAction) (float64, error)

	// Status returns the categorical trust status for the person.
	Status(ctx context.Context, person ref.PersonID) (TrustStatus, error)
}

// Thresholds are the trust levels a person must exceed (strictly) for
// each capability.
type Thresholds struct {
	Message float64
	Sync    float64
}

// DefaultThresholds is the fixed communication policy.
var DefaultThresholds = Thresholds{Message: 0.3, Sync: 0.7}

// CommunicationPermissions is the gate's verdict for one person.
// Unknown=true means the evaluator was unreachable and neither
// capability field carries meaning — callers must not treat the false
// values as a deny decision.
type CommunicationPermissions struct {
	CanMessage bool    `json:"canMessage"`
	CanSync    bool    `json:"canSync"`
	Unknown    bool    `json:"unknown,omitempty"`
	Level      float64 `json:"level"`
}

// TrustGate derives communication permissions from trust levels. Pure
// policy over the evaluator's output; it holds no state.
type TrustGate struct {
	evaluator  TrustEvaluator
	thresholds Thresholds
	logger     *slog.Logger
}

// NewTrustGate creates a TrustGate. Zero thresholds fall back to
// DefaultThresholds.
func NewTrustGate(evaluator TrustEvaluator, thresholds Thresholds, logger *slog.Logger) *TrustGate {
	if thresholds == (Thresholds{}) {
		thresholds = DefaultThresholds
	}
	return &TrustGate{evaluator: evaluator, thresholds: thresholds, logger: logger}
}

// CommunicationPermissions evaluates the person's trust level for
// communication and applies the thresholds. An evaluator failure
// returns an explicit Unknown result, never a silent deny or allow.
func (g *TrustGate) CommunicationPermissions(ctx context.Context, person ref.PersonID) CommunicationPermissions {
	level, err := g.evaluator.EvaluateTrust(ctx, person, ActionCommunication)
	if err != nil {
		g.logger.Warn("trust evaluator unavailable", "person", person, "error", err)
		return CommunicationPermissions{Unknown: true}
	}
	return CommunicationPermissions{
		CanMessage: level > g.thresholds.Message,
		CanSync:    level > g.thresholds.Sync,
		Level:      level,
	}
}
