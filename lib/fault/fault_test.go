// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesCode(t *testing.T) {
	err := New(NotFound, "pending contact %s not found", "p1")
	if !Is(err, NotFound) {
		t.Error("Is should match the fault's own code")
	}
	if Is(err, Validation) {
		t.Error("Is must not match a different code")
	}
	if Is(nil, NotFound) {
		t.Error("nil error matches nothing")
	}
}

func TestIsMatchesThroughWrapping(t *testing.T) {
	inner := New(Conflict, "channel taken")
	wrapped := fmt.Errorf("establishing: %w", inner)
	if !Is(wrapped, Conflict) {
		t.Error("Is should see through fmt.Errorf wrapping")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk gone")
	err := Wrap(cause, StoreUnavailable, "storing root")
	if !errors.Is(err, cause) {
		t.Error("Wrap must keep the cause reachable via errors.Is")
	}
	if !Is(err, StoreUnavailable) {
		t.Error("Wrap must carry the code")
	}
	if Wrap(nil, StoreUnavailable, "x") != nil {
		t.Error("Wrap(nil) must be nil")
	}
}
