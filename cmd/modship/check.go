// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modship/modship/internal/gitrepo"
	"github.com/modship/modship/internal/modmeta"
)

// checkCmd verifies that a release run would have everything it needs.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify configuration and target readiness",
	Long: `Verify configuration and target readiness.

Checks that the configuration parses, the repository holds a valid
mods.toml, and every enabled target has its settings and credentials.
Exits non-zero when a required target is not ready.`,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, _ []string) error {
	failed := false
	pass := func(msg string) { fmt.Printf("  %s %s\n", SuccessStyle.Render("✓"), msg) }
	warn := func(msg string) { fmt.Printf("  %s %s\n", WarningStyle.Render("!"), msg) }
	fail := func(msg string) {
		failed = true
		fmt.Printf("  %s %s\n", ErrorStyle.Render("✗"), msg)
	}

	fmt.Println(TitleStyle.Render("modship check"))

	cfg, err := loadConfig(cmd.Context())
	if err != nil {
		fail("configuration: " + formatErrorForDisplay(err, verbose))
		return &ExitError{Code: 1, Err: err}
	}
	pass("configuration loads")

	if _, err := gitrepo.Open(repoDir); err != nil {
		fail("git repository: " + err.Error())
	} else {
		pass("git repository found")
	}

	meta, path, err := modmeta.Discover(repoDir)
	if err != nil {
		fail("mods.toml: " + formatErrorForDisplay(err, verbose))
	} else {
		pass("mods.toml valid (" + path + ")")
	}
	applyModMetadata(cfg, meta)

	type targetCheck struct {
		name     string
		enabled  bool
		required bool
		missing  []string
	}
	checks := []targetCheck{
		{"github", cfg.Targets.GitHub.Enabled, cfg.Targets.GitHub.Required, cfg.Targets.GitHub.Missing()},
		{"modrinth", cfg.Targets.Modrinth.Enabled, cfg.Targets.Modrinth.Required, cfg.Targets.Modrinth.Missing()},
		{"curseforge", cfg.Targets.CurseForge.Enabled, cfg.Targets.CurseForge.Required, cfg.Targets.CurseForge.Missing()},
		{"modpack_pr", cfg.Targets.ModpackPR.Enabled, false, cfg.Targets.ModpackPR.Missing()},
	}
	for _, c := range checks {
		switch {
		case !c.enabled:
			warn(c.name + " disabled")
		case len(c.missing) == 0:
			pass(c.name + " ready")
		case c.required:
			fail(fmt.Sprintf("%s missing: %v", c.name, c.missing))
		default:
			warn(fmt.Sprintf("%s will be skipped, missing: %v", c.name, c.missing))
		}
	}

	if failed {
		return &ExitError{Code: 1, Err: fmt.Errorf("check found problems")}
	}
	fmt.Println(SuccessStyle.Render("All checks passed"))
	return nil
}
