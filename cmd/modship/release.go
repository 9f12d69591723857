// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/modship/modship/internal/buildtool"
	"github.com/modship/modship/internal/config"
	"github.com/modship/modship/internal/gitrepo"
	"github.com/modship/modship/internal/modmeta"
	"github.com/modship/modship/internal/notes"
	"github.com/modship/modship/internal/publish"
	"github.com/modship/modship/internal/semver"
)

var (
	releaseBump    string
	releaseDryRun  bool
	releaseOutput  string
	releaseTimeout time.Duration

	// releaseCmd runs the full release pipeline: resolve, tag, build, publish.
	releaseCmd = &cobra.Command{
		Use:   "release",
		Short: "Tag, build, and publish the next release",
		Long: `Tag, build, and publish the next release.

The next version is resolved from the commit subjects since the last
release tag, the repository is tagged, the build command produces the
artifacts, and every enabled target publishes them. Required targets
failing fail the release; optional targets only warn.`,
		RunE: runRelease,
	}
)

func init() {
	releaseCmd.Flags().StringVar(&releaseBump, "bump", "", "override the resolved bump (patch, minor, major)")
	releaseCmd.Flags().BoolVar(&releaseDryRun, "dry-run", false, "show the release plan without tagging or publishing")
	releaseCmd.Flags().StringVarP(&releaseOutput, "output", "o", "text", "report format (text, json, yaml)")
	releaseCmd.Flags().DurationVar(&releaseTimeout, "timeout", 0, "per-target publish timeout (overrides config)")
}

// releasePlan carries the resolver outcome plus everything later stages need.
type releasePlan struct {
	repo    *gitrepo.Repository
	res     semver.Resolution
	commits []semver.Commit
	table   semver.RuleTable
	prevTag string
}

// planRelease resolves the next version for the repository at repoDir.
func planRelease(cfg *config.Config, bumpFlag string) (*releasePlan, error) {
	override, err := semver.ParseBump(bumpFlag)
	if err != nil {
		return nil, fmt.Errorf("--bump: %w", err)
	}

	table, err := cfg.RuleTable()
	if err != nil {
		return nil, err
	}

	repo, err := gitrepo.Open(repoDir)
	if err != nil {
		return nil, err
	}

	prev, prevTag, found, err := repo.LatestReleaseTag()
	if err != nil {
		return nil, err
	}
	if !found {
		log.Debug("no release tag found, starting from v0.0.0")
	}

	commits, err := repo.CommitsSince(prevTag)
	if err != nil {
		return nil, err
	}

	return &releasePlan{
		repo:    repo,
		res:     table.Resolve(prev, commits, override),
		commits: commits,
		table:   table,
		prevTag: prevTag,
	}, nil
}

func runRelease(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	plan, err := planRelease(cfg, releaseBump)
	if err != nil {
		return err
	}

	if !plan.res.ReleaseNeeded {
		fmt.Printf("%s No release needed: nothing since %s requires one\n",
			SubtitleStyle.Render("•"), plan.res.Previous)
		return nil
	}

	// mods.toml supplies project ids the config leaves blank.
	meta, _, err := modmeta.Discover(repoDir)
	if err != nil {
		log.Debug("no usable mods.toml", "err", err)
		meta = nil
	}
	applyModMetadata(cfg, meta)

	slug := "mod"
	if meta != nil {
		slug = meta.ModrinthSlug
	}
	targets := buildTargets(cfg, slug)
	body := notes.Generate(plan.res.Next, plan.commits, plan.table)

	if releaseDryRun {
		printReleasePlan(plan, targets)
		return nil
	}

	if err := plan.repo.CreateTag(plan.res.Next.String()); err != nil {
		return err
	}
	log.Info("tagged release", "tag", plan.res.Next)

	builder := &buildtool.Builder{
		Command:      cfg.Build.Command,
		Dir:          repoDir,
		ArtifactGlob: cfg.Build.ArtifactGlob,
		Stdout:       os.Stdout,
		Stderr:       os.Stderr,
	}
	artifacts, err := builder.Build(ctx, plan.res.Next)
	if err != nil {
		return err
	}
	log.Info("build finished", "artifacts", len(artifacts))

	timeout := releaseTimeout
	if timeout == 0 {
		timeout, err = cfg.TargetTimeoutDuration()
		if err != nil {
			return err
		}
	}

	coordinator := &publish.Coordinator{DefaultTimeout: timeout}
	report, err := coordinator.Run(ctx, publish.Request{
		Version:   plan.res.Next,
		Notes:     body,
		Artifacts: artifacts,
	}, targets)
	if err != nil {
		return err
	}

	if err := printReport(report, releaseOutput); err != nil {
		return err
	}

	if report.Failed() {
		return &ExitError{Code: 1, Err: fmt.Errorf("release %s failed on a required target", report.Version)}
	}
	return nil
}

// printReleasePlan shows what a release run would do, without side effects.
func printReleasePlan(plan *releasePlan, targets []publish.Target) {
	fmt.Println(TitleStyle.Render("Release plan"))
	fmt.Printf("  %s %s -> %s (%d commits, bump: %s)\n",
		CmdStyle.Render("version:"), plan.res.Previous, plan.res.Next, len(plan.commits), bumpName(plan.res.Bump))
	fmt.Printf("  %s\n", CmdStyle.Render("targets:"))
	for _, t := range targets {
		state := SuccessStyle.Render("ready")
		if len(t.Missing) > 0 {
			if t.Required {
				state = ErrorStyle.Render("missing config")
			} else {
				state = WarningStyle.Render("will skip")
			}
		}
		fmt.Printf("    %-12s %s\n", t.Kind, state)
	}
}

func bumpName(b semver.Bump) string {
	switch b {
	case semver.BumpMajor:
		return "major"
	case semver.BumpMinor:
		return "minor"
	case semver.BumpPatch:
		return "patch"
	default:
		return "none"
	}
}

// printReport writes the publish report in the requested format.
func printReport(report *publish.Report, format string) error {
	switch format {
	case "json":
		data, err := report.JSON()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	case "yaml":
		data, err := report.YAML()
		if err != nil {
			return err
		}
		fmt.Print(string(data))
	case "text", "":
		fmt.Println(report.Render())
	default:
		return fmt.Errorf("unknown output format %q (want text, json, or yaml)", format)
	}
	return nil
}
