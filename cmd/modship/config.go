// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/modship/modship/internal/config"
)

// configCmd is the `modship config` command tree.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage modship configuration",
	Long: `Manage modship configuration.

Configuration is stored in:
  - Linux: ~/.config/modship/config.cue
  - macOS: ~/Library/Application Support/modship/config.cue
  - Windows: %APPDATA%\modship\config.cue

A config.cue in the current directory takes effect when no global
file exists.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

func init() {
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return showConfig(cmd.Context())
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(_ *cobra.Command, _ []string) error {
			return showConfigPath()
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output raw configuration as CUE",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Print(config.GenerateCUE(cfg))
			return nil
		},
	})
}

func showConfig(ctx context.Context) error {
	cfg, path, err := config.LoadWithPath(ctx, config.LoadOptions{ConfigFilePath: cfgFile})
	if err != nil {
		return err
	}

	fmt.Println(TitleStyle.Render("Current Configuration"))
	if path != "" {
		fmt.Println(SubtitleStyle.Render("loaded from " + path))
	} else {
		fmt.Println(SubtitleStyle.Render("built-in defaults (no config file found)"))
	}
	fmt.Println()

	key := CmdStyle.Render
	val := SuccessStyle.Render

	fmt.Printf("%s %s\n", key("unknown_bump:"), val(cfg.UnknownBump))
	fmt.Printf("%s %s\n", key("target_timeout:"), val(cfg.TargetTimeout))
	fmt.Printf("%s %s\n", key("build.command:"), val(cfg.Build.Command))
	fmt.Printf("%s %s\n", key("build.artifact_glob:"), val(cfg.Build.ArtifactGlob))
	fmt.Println()

	fmt.Println(key("targets:"))
	printTarget("github", cfg.Targets.GitHub.Enabled, cfg.Targets.GitHub.Required, cfg.Targets.GitHub.Missing())
	printTarget("modrinth", cfg.Targets.Modrinth.Enabled, cfg.Targets.Modrinth.Required, cfg.Targets.Modrinth.Missing())
	printTarget("curseforge", cfg.Targets.CurseForge.Enabled, cfg.Targets.CurseForge.Required, cfg.Targets.CurseForge.Missing())
	printTarget("modpack_pr", cfg.Targets.ModpackPR.Enabled, false, cfg.Targets.ModpackPR.Missing())

	if len(cfg.Rules) > 0 {
		fmt.Println()
		fmt.Println(key("rules:"))
		for _, rule := range cfg.Rules {
			fmt.Printf("  %-14s -> %s\n", rule.Prefix, val(rule.Bump))
		}
	}

	return nil
}

func printTarget(name string, enabled, required bool, missing []string) {
	state := SuccessStyle.Render("enabled")
	switch {
	case !enabled:
		state = SubtitleStyle.Render("disabled")
	case len(missing) > 0:
		state = WarningStyle.Render(fmt.Sprintf("missing %v", missing))
	}
	suffix := ""
	if required {
		suffix = SubtitleStyle.Render(" (required)")
	}
	fmt.Printf("  %-12s %s%s\n", name, state, suffix)
}

func showConfigPath() error {
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	fmt.Println(filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt))
	return nil
}
