// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/modship/modship/internal/config"
)

var (
	initForce  bool
	initGlobal bool

	// initCmd creates a starter config.cue
	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Create a starter config.cue",
		Long: `Create a starter config.cue.

Writes a configuration file with the default bump rules, build command,
and target scaffolding. By default the file goes into the current
directory; --global writes it to the user configuration directory.`,
		RunE: runInit,
	}
)

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing config.cue")
	initCmd.Flags().BoolVarP(&initGlobal, "global", "g", false, "write to the user configuration directory")
}

func runInit(_ *cobra.Command, _ []string) error {
	if initGlobal {
		if err := config.CreateDefaultConfig(); err != nil {
			return err
		}
		cfgDir, err := config.ConfigDir()
		if err != nil {
			return err
		}
		fmt.Printf("%s Created %s\n", SuccessStyle.Render("✓"),
			filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt))
		return nil
	}

	filename := config.ConfigFileName + "." + config.ConfigFileExt
	if _, err := os.Stat(filename); err == nil && !initForce {
		return fmt.Errorf("file '%s' already exists. Use --force to overwrite", filename)
	}

	content := config.GenerateCUE(config.DefaultConfig())
	if err := os.WriteFile(filename, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	absPath, _ := filepath.Abs(filename)
	fmt.Printf("%s Created %s\n", SuccessStyle.Render("✓"), absPath)
	fmt.Println()
	fmt.Println(SubtitleStyle.Render("Next steps:"))
	fmt.Println("  1. Set targets.github.owner and targets.github.repo")
	fmt.Println("  2. Export the credential variables the targets name")
	fmt.Println("  3. Run 'modship check' to verify target readiness")

	return nil
}
