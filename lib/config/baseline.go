// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// Baseline is the permission set seeded into credentials issued
// without explicit options. Stored as JSONC so operators can comment
// their policy decisions in place; the zero value denies everything.
type Baseline struct {
	CanMessage     bool            `json:"canMessage"`
	CanCall        bool            `json:"canCall"`
	CanShareFiles  bool            `json:"canShareFiles"`
	CanSeePresence bool            `json:"canSeePresence"`
	Custom         map[string]bool `json:"custom,omitempty"`
}

// ParseBaseline strips JSONC comments and trailing commas from data,
// then unmarshals the result. The input format is plain JSON extended
// with // line comments, /* block comments */, and trailing commas.
func ParseBaseline(data []byte) (Baseline, error) {
	stripped := jsonc.ToJSON(data)

	var baseline Baseline
	if err := json.Unmarshal(stripped, &baseline); err != nil {
		return Baseline{}, fmt.Errorf("parsing permission baseline: %w", err)
	}
	return baseline, nil
}

// ReadBaselineFile reads a JSONC baseline file from disk. An empty
// path returns the all-deny zero baseline.
func ReadBaselineFile(path string) (Baseline, error) {
	if path == "" {
		return Baseline{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Baseline{}, fmt.Errorf("reading %s: %w", path, err)
	}
	baseline, err := ParseBaseline(data)
	if err != nil {
		return Baseline{}, fmt.Errorf("%s: %w", path, err)
	}
	return baseline, nil
}
