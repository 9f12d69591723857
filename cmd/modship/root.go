// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/modship/modship/internal/config"
	"github.com/modship/modship/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables verbose output
	verbose bool
	// cfgFile allows specifying a custom config file
	cfgFile string
	// repoDir is the mod repository to operate on
	repoDir string

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "modship",
		Short: "Release automation for Minecraft mods",
		Long: TitleStyle.Render("modship") + SubtitleStyle.Render(" - Release automation for Minecraft mods") + `

modship resolves the next semantic version from your commit history,
tags it, builds the release artifacts, and publishes them to GitHub,
Modrinth, and CurseForge in one run. It can also keep a packwiz
modpack in step with the mod via a pull request.

Commit subjects drive the version bump through a configurable prefix
table ('feat:' bumps minor, 'fix:' bumps patch, 'feat!:' bumps major).

` + SubtitleStyle.Render("Quick Start:") + `
  1. Run 'modship init' to generate a starter config.cue
  2. Set owner, repo, and project ids for your targets
  3. Export the credential variables the targets name

` + SubtitleStyle.Render("Examples:") + `
  modship next              Show the version the next release would get
  modship check             Verify configuration and target readiness
  modship release           Tag, build, and publish a release
  modship release --dry-run Show the release plan without publishing
  modship sync              Update the modpack to the latest version`,
	}
)

func init() {
	cobra.OnInitialize(initLogging)

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/modship/config.cue)")
	rootCmd.PersistentFlags().StringVar(&repoDir, "repo", ".", "mod repository to operate on")

	// Add subcommands
	rootCmd.AddCommand(releaseCmd)
	rootCmd.AddCommand(nextCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(notesCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(configCmd)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// Use fang.Execute for enhanced Cobra styling
	// Pass version via fang.WithVersion() since fang overrides rootCmd.Version
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// initLogging configures the shared logger from the verbose flag.
func initLogging() {
	if verbose {
		log.SetLevel(log.DebugLevel)
	}
	log.SetReportTimestamp(false)
}

// loadConfig resolves configuration for command handlers, honoring --config.
func loadConfig(ctx context.Context) (*config.Config, error) {
	return config.NewProvider().Load(ctx, config.LoadOptions{ConfigFilePath: cfgFile})
}

// formatErrorForDisplay formats an error for user display.
// Remediation errors use their Format method; verbose mode shows the chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ie *issue.Error
	if errors.As(err, &ie) {
		return ie.Format(verboseMode)
	}
	return err.Error()
}
