// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/modship/modship/internal/issue"
	"github.com/modship/modship/internal/modmeta"
	"github.com/modship/modship/internal/modpack"
	"github.com/modship/modship/internal/platform"
	"github.com/modship/modship/internal/semver"
)

var (
	syncPackDir string
	syncNoWait  bool

	// syncCmd brings the packwiz modpack up to the latest published version.
	syncCmd = &cobra.Command{
		Use:   "sync",
		Short: "Update the modpack to the latest published version",
		Long: `Update the modpack to the latest published version.

Waits for the mod host to index the version of the latest release tag,
then runs packwiz in the pack directory to pin it. Rerunning after a
completed sync is a no-op.`,
		RunE: runSync,
	}
)

func init() {
	syncCmd.Flags().StringVar(&syncPackDir, "pack-dir", "", "packwiz pack directory (overrides config)")
	syncCmd.Flags().BoolVar(&syncNoWait, "no-wait", false, "skip waiting for the mod host index")
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	meta, _, err := modmeta.Discover(repoDir)
	if err != nil {
		return err
	}
	applyModMetadata(cfg, meta)

	packDir := syncPackDir
	if packDir == "" {
		packDir = cfg.Modpack.PackDir
	}
	if packDir == "" {
		return issue.New("locate modpack").
			WithSuggestion("Set modpack.pack_dir in config.cue or pass --pack-dir")
	}

	plan, err := planRelease(cfg, "")
	if err != nil {
		return err
	}
	version := plan.res.Previous
	if version.Compare(semver.Version{}) == 0 {
		return issue.New("determine released version").
			WithResource(repoDir).
			WithSuggestion("Run 'modship release' before syncing the modpack")
	}

	interval, err := cfg.Modpack.PollIntervalDuration()
	if err != nil {
		return err
	}

	syncer := &modpack.Syncer{
		PackDir:      packDir,
		Checker:      platform.NewModrinthClient(cfg.Targets.Modrinth.ProjectID, platform.WithModrinthToken(cfg.Targets.Modrinth.Token())),
		PollInterval: interval,
		MaxPolls:     cfg.Modpack.MaxPolls,
	}

	versionNumber := strings.TrimPrefix(version.String(), "v")
	if !syncNoWait {
		loader := meta.Loader
		log.Info("waiting for mod host index", "version", versionNumber)
		if err := syncer.AwaitVersion(ctx, versionNumber, loader, meta.MCVersion); err != nil {
			return err
		}
	}

	changed, err := syncer.Sync(ctx, meta.ModrinthSlug)
	if err != nil {
		return err
	}
	if changed {
		fmt.Printf("%s Pack updated: %s pinned to %s\n", SuccessStyle.Render("✓"), meta.ModrinthSlug, version)
	} else {
		fmt.Printf("%s Pack already up to date with %s\n", SubtitleStyle.Render("•"), version)
	}
	return nil
}
