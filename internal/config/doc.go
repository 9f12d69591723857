// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/modship/config.cue (or XDG equivalent on Linux,
// ~/Library/Application Support/modship/config.cue on macOS, %APPDATA%\modship\config.cue
// on Windows), with a repo-local config.cue taking effect when no global file exists.
// The package covers the version bump rule table, the build command, the publish target
// set with their credential sources, and modpack sync settings.
//
// Configuration validation is performed against a CUE schema (config_schema.cue) to ensure
// type safety and provide clear error messages for invalid configurations.
package config
