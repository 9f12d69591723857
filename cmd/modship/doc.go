// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for modship.
//
// This package implements the Cobra command hierarchy for the modship CLI:
// the root command, the release pipeline, version resolution helpers,
// release note rendering, modpack sync, and configuration management.
package cmd
