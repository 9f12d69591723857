// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/modship/modship/internal/config"
	"github.com/modship/modship/internal/modmeta"
	"github.com/modship/modship/internal/platform"
	"github.com/modship/modship/internal/publish"
)

// githubPublisher creates the GitHub release carrying the artifacts.
type githubPublisher struct {
	client *platform.GitHubClient
}

func (p *githubPublisher) Publish(ctx context.Context, req publish.Request) (platform.PublishedRef, error) {
	tag := req.Version.String()
	return p.client.CreateRelease(ctx, tag, tag, req.Notes, req.Artifacts)
}

// modrinthPublisher uploads a Modrinth version.
type modrinthPublisher struct {
	client       *platform.ModrinthClient
	loaders      []string
	gameVersions []string
}

func (p *modrinthPublisher) Publish(ctx context.Context, req publish.Request) (platform.PublishedRef, error) {
	spec := platform.ModrinthVersionSpec{
		VersionNumber: strings.TrimPrefix(req.Version.String(), "v"),
		Name:          req.Version.String(),
		Changelog:     req.Notes,
		GameVersions:  p.gameVersions,
		Loaders:       p.loaders,
	}
	return p.client.CreateVersion(ctx, spec, req.Artifacts)
}

// curseforgePublisher uploads the CurseForge files.
type curseforgePublisher struct {
	client       *platform.CurseForgeClient
	gameVersions []int
}

func (p *curseforgePublisher) Publish(ctx context.Context, req publish.Request) (platform.PublishedRef, error) {
	spec := platform.CurseForgeFileSpec{
		DisplayName:  req.Version.String(),
		Changelog:    req.Notes,
		GameVersions: p.gameVersions,
	}
	return p.client.UploadFiles(ctx, spec, req.Artifacts)
}

// modpackPRPublisher opens (or refreshes) the modpack update pull request. It
// runs after the mod hosts so the PR body can link the published versions.
type modpackPRPublisher struct {
	client *platform.PRClient
	branch string
	base   string
	slug   string
}

func (p *modpackPRPublisher) Publish(ctx context.Context, req publish.Request) (platform.PublishedRef, error) {
	var body strings.Builder
	fmt.Fprintf(&body, "Updates %s to %s.\n", p.slug, req.Version)
	for _, kind := range []publish.Kind{publish.KindModrinth, publish.KindCurseForge, publish.KindGitHub} {
		if ref, ok := req.Published[kind]; ok && ref.URL != "" {
			fmt.Fprintf(&body, "\n- %s: %s", ref.Platform, ref.URL)
		}
	}

	// Head is the bare branch name; the client qualifies it with the owner
	// when filtering for an existing open PR.
	pr, err := p.client.OpenOrUpdate(ctx, platform.PRSpec{
		Title: fmt.Sprintf("Update %s to %s", p.slug, req.Version),
		Body:  body.String(),
		Head:  p.branch,
		Base:  p.base,
	})
	if err != nil {
		return platform.PublishedRef{}, err
	}
	return platform.PublishedRef{
		Platform: string(publish.KindModpackPR),
		ID:       fmt.Sprintf("%d", pr.Number),
		URL:      pr.URL,
	}, nil
}

// applyModMetadata fills target settings the repository's mods.toml already
// declares, without overriding explicit configuration.
func applyModMetadata(cfg *config.Config, meta *modmeta.Metadata) {
	if meta == nil {
		return
	}
	if cfg.Targets.Modrinth.ProjectID == "" {
		cfg.Targets.Modrinth.ProjectID = meta.ModrinthID
	}
	if cfg.Targets.CurseForge.ProjectID == "" {
		cfg.Targets.CurseForge.ProjectID = meta.CurseForgeID
	}
	if len(cfg.Targets.Modrinth.GameVersions) == 0 && meta.MCVersion != "" {
		cfg.Targets.Modrinth.GameVersions = []string{meta.MCVersion}
	}
	if len(cfg.Targets.Modrinth.Loaders) == 0 && meta.Loader != "" {
		cfg.Targets.Modrinth.Loaders = []string{meta.Loader}
	}
}

// buildTargets assembles the publish target set from configuration. Disabled
// targets are left out entirely; unconfigured ones keep their Missing list so
// the coordinator can fail fast or skip them.
func buildTargets(cfg *config.Config, slug string) []publish.Target {
	var targets []publish.Target

	if gh := cfg.Targets.GitHub; gh.Enabled {
		targets = append(targets, publish.Target{
			Kind:     publish.KindGitHub,
			Required: gh.Required,
			Missing:  gh.Missing(),
			Publisher: &githubPublisher{
				client: platform.NewGitHubClient(gh.Owner, gh.Repo, platform.WithGitHubToken(gh.Token())),
			},
		})
	}

	if mr := cfg.Targets.Modrinth; mr.Enabled {
		targets = append(targets, publish.Target{
			Kind:      publish.KindModrinth,
			Required:  mr.Required,
			DependsOn: []publish.Kind{publish.KindGitHub},
			Missing:   mr.Missing(),
			Publisher: &modrinthPublisher{
				client:       platform.NewModrinthClient(mr.ProjectID, platform.WithModrinthToken(mr.Token())),
				loaders:      mr.Loaders,
				gameVersions: mr.GameVersions,
			},
		})
	}

	if cf := cfg.Targets.CurseForge; cf.Enabled {
		targets = append(targets, publish.Target{
			Kind:      publish.KindCurseForge,
			Required:  cf.Required,
			DependsOn: []publish.Kind{publish.KindGitHub},
			Missing:   cf.Missing(),
			Publisher: &curseforgePublisher{
				client:       platform.NewCurseForgeClient(cf.ProjectID, platform.WithCurseForgeToken(cf.Token())),
				gameVersions: cf.GameVersions,
			},
		})
	}

	if pr := cfg.Targets.ModpackPR; pr.Enabled {
		targets = append(targets, publish.Target{
			Kind:      publish.KindModpackPR,
			Soft:      true,
			DependsOn: []publish.Kind{publish.KindGitHub, publish.KindModrinth, publish.KindCurseForge},
			Missing:   pr.Missing(),
			Publisher: &modpackPRPublisher{
				client: platform.NewPRClient(pr.Owner, pr.Repo, platform.WithPRToken(pr.Token())),
				branch: pr.Branch,
				base:   pr.Base,
				slug:   slug,
			},
		})
	}

	return targets
}
