// SPDX-License-Identifier: MPL-2.0

// Package publish coordinates the fan-out of a resolved release to every
// configured target. Targets are independent failure domains: one optional
// target failing never stops the others, and the aggregate verdict is
// computed from the per-target outcomes afterward.
package publish

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modship/modship/internal/platform"
	"github.com/modship/modship/internal/semver"
)

// Kind identifies a release target variant.
type Kind string

const (
	// KindGitHub is the source-host release that carries the artifacts.
	KindGitHub Kind = "github"
	// KindModrinth uploads the version to Modrinth.
	KindModrinth Kind = "modrinth"
	// KindCurseForge uploads the version to CurseForge.
	KindCurseForge Kind = "curseforge"
	// KindModpackPR opens the downstream modpack pull request.
	KindModpackPR Kind = "modpack-pr"
)

// Status is a target's position in its lifecycle. Targets move
// pending -> publishing -> one of the three terminal states.
type Status string

const (
	// StatusPending means the target has not started.
	StatusPending Status = "pending"
	// StatusPublishing means the target's publish call is in flight.
	StatusPublishing Status = "publishing"
	// StatusSucceeded is terminal success.
	StatusSucceeded Status = "succeeded"
	// StatusFailed is terminal failure.
	StatusFailed Status = "failed"
	// StatusSkipped means the target was never attempted, either because
	// its optional configuration is absent or because a dependency failed.
	StatusSkipped Status = "skipped"
)

type (
	// Request carries everything a publisher needs for one release attempt.
	// Published holds the refs of targets that finished in earlier stages,
	// keyed by kind, so derived targets can reference the source-host
	// artifact locations.
	Request struct {
		Version   semver.Version
		Notes     string
		Artifacts []platform.Artifact
		Published map[Kind]platform.PublishedRef
	}

	// Publisher is the uniform contract over all platform clients. The
	// coordinator does not know or care about platform payload shapes.
	Publisher interface {
		Publish(ctx context.Context, req Request) (platform.PublishedRef, error)
	}

	// Target is one configured release destination.
	Target struct {
		Kind Kind

		// Required targets fail the whole run when they fail;
		// optional targets only record their own failure.
		Required bool

		// Soft targets are informational: they run after everything else
		// and their failure never affects the aggregate verdict. The
		// modpack PR is the only soft target.
		Soft bool

		// DependsOn lists targets that must reach a terminal state first.
		// A hard target is additionally skipped when a dependency failed.
		DependsOn []Kind

		// Missing lists the names of absent configuration keys. A target
		// with a non-empty Missing list is either skipped (optional) or
		// fails the run up front (required).
		Missing []string

		// Timeout bounds the publish call; zero uses the coordinator default.
		Timeout time.Duration

		Publisher Publisher
	}

	// MissingConfigError aborts the run before any publish call when a
	// required target lacks configuration.
	MissingConfigError struct {
		Kind Kind
		Keys []string
	}
)

func (e *MissingConfigError) Error() string {
	return fmt.Sprintf("required target %s is missing configuration: %s",
		e.Kind, strings.Join(e.Keys, ", "))
}

// configured reports whether the target has everything it needs to publish.
func (t *Target) configured() bool {
	return len(t.Missing) == 0
}
