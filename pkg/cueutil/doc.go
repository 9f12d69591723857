// SPDX-License-Identifier: MPL-2.0

// Package cueutil provides shared helpers for CUE-based configuration files:
// size limits before parsing and error formatting that surfaces the JSON path
// of the offending field.
//
// Error format: <file-path>: <json-path>: <message>
//
// Example:
//
//	config.cue: targets.github.enabled: expected bool, got string
package cueutil
