// SPDX-License-Identifier: MPL-2.0

// Package buildtool invokes the mod's build command and collects the
// resulting artifacts. The command runs through an embedded POSIX shell
// interpreter so the same script works identically on every platform the
// pipeline runs on, with no dependency on a system shell.
package buildtool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/modship/modship/internal/platform"
	"github.com/modship/modship/internal/semver"
)

type (
	// BuildError is a fatal build failure. Nothing downstream of the build
	// can proceed when it occurs.
	BuildError struct {
		Command  string
		ExitCode int
		Cause    error
	}

	// Builder runs the configured build command and gathers artifacts.
	Builder struct {
		// Command is the shell script to run, e.g. "./gradlew build".
		Command string
		// Dir is the working directory, normally the mod repository root.
		Dir string
		// ArtifactGlob selects the build outputs relative to Dir,
		// e.g. "build/libs/*.jar".
		ArtifactGlob string
		// Stdout and Stderr receive the build's output streams.
		Stdout io.Writer
		Stderr io.Writer
	}
)

func (e *BuildError) Error() string {
	if e.ExitCode != 0 {
		return fmt.Sprintf("build command %q exited with status %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("build command %q failed: %v", e.Command, e.Cause)
}

func (e *BuildError) Unwrap() error {
	return e.Cause
}

// Build runs the build command with MOD_VERSION exported, then resolves the
// artifact glob. It fails with BuildError when the command exits non-zero or
// when the glob matches nothing.
func (b *Builder) Build(ctx context.Context, version semver.Version) ([]platform.Artifact, error) {
	prog, err := syntax.NewParser().Parse(strings.NewReader(b.Command), "build-command")
	if err != nil {
		return nil, &BuildError{Command: b.Command, Cause: fmt.Errorf("parsing build command: %w", err)}
	}

	env := append(os.Environ(), "MOD_VERSION="+strings.TrimPrefix(version.String(), "v"))

	stdout := b.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := b.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	runner, err := interp.New(
		interp.Dir(b.Dir),
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(nil, stdout, stderr),
	)
	if err != nil {
		return nil, &BuildError{Command: b.Command, Cause: fmt.Errorf("creating interpreter: %w", err)}
	}

	if err := runner.Run(ctx, prog); err != nil {
		var exit interp.ExitStatus
		if errors.As(err, &exit) {
			return nil, &BuildError{Command: b.Command, ExitCode: int(exit), Cause: err}
		}
		return nil, &BuildError{Command: b.Command, Cause: err}
	}

	return b.collectArtifacts()
}

// collectArtifacts resolves the artifact glob into upload-ready artifacts.
func (b *Builder) collectArtifacts() ([]platform.Artifact, error) {
	pattern := b.ArtifactGlob
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(b.Dir, pattern)
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, &BuildError{Command: b.Command, Cause: fmt.Errorf("bad artifact glob %q: %w", b.ArtifactGlob, err)}
	}
	if len(matches) == 0 {
		return nil, &BuildError{
			Command: b.Command,
			Cause:   fmt.Errorf("no artifacts matched %q after build", b.ArtifactGlob),
		}
	}

	artifacts := make([]platform.Artifact, 0, len(matches))
	for _, path := range matches {
		info, statErr := os.Stat(path)
		if statErr != nil || info.IsDir() {
			continue
		}
		artifacts = append(artifacts, platform.Artifact{
			Name: filepath.Base(path),
			Path: path,
		})
	}
	if len(artifacts) == 0 {
		return nil, &BuildError{
			Command: b.Command,
			Cause:   fmt.Errorf("no artifact files matched %q after build", b.ArtifactGlob),
		}
	}

	return artifacts, nil
}
