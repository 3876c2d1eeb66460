// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for Parley processes.
//
// Configuration is loaded from a single YAML file specified by:
//   - PARLEY_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures
// deterministic, auditable configuration with no hidden overrides.
//
// The permission baseline — the capability set seeded into credentials
// issued without explicit options — lives in a separate human-editable
// JSONC file referenced from the main config, so operators can annotate
// policy decisions with comments.
package config
