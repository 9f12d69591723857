// SPDX-License-Identifier: MPL-2.0

// Package modpack keeps a packwiz modpack checkout in step with a freshly
// published mod version. Publication to Modrinth propagates through their
// search index with a delay, so the sync first waits for the version to be
// visible before asking packwiz to pin it.
package modpack

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"

	"github.com/modship/modship/internal/issue"
)

const (
	defaultPollInterval = time.Minute
	defaultMaxPolls     = 20
)

// VersionChecker reports whether a given version of a project is visible on
// the mod host.
type VersionChecker interface {
	HasVersion(ctx context.Context, versionNumber, loader, gameVersion string) (bool, error)
}

// Syncer updates a packwiz pack to the latest published version of one mod.
type Syncer struct {
	// PackDir is the directory holding pack.toml.
	PackDir string
	// PackwizPath overrides the packwiz binary; empty means $PATH lookup.
	PackwizPath string
	Checker     VersionChecker
	Logger      *log.Logger

	// PollInterval and MaxPolls bound the wait for index propagation.
	PollInterval time.Duration
	MaxPolls     uint64

	// run is swapped in tests.
	run func(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

func (s *Syncer) logger() *log.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return log.Default()
}

func (s *Syncer) packwiz() string {
	if s.PackwizPath != "" {
		return s.PackwizPath
	}
	return "packwiz"
}

func (s *Syncer) runner() func(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	if s.run != nil {
		return s.run
	}
	return func(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
		cmd := exec.CommandContext(ctx, name, args...)
		cmd.Dir = dir
		var out bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = &out
		err := cmd.Run()
		return out.Bytes(), err
	}
}

// AwaitVersion polls the mod host until versionNumber is visible for the
// given loader and game version, or the retry budget is spent.
func (s *Syncer) AwaitVersion(ctx context.Context, versionNumber, loader, gameVersion string) error {
	interval := s.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	maxPolls := s.MaxPolls
	if maxPolls == 0 {
		maxPolls = defaultMaxPolls
	}

	attempt := 0
	check := func() error {
		attempt++
		visible, err := s.Checker.HasVersion(ctx, versionNumber, loader, gameVersion)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !visible {
			s.logger().Debug("version not yet indexed", "version", versionNumber, "attempt", attempt)
			return fmt.Errorf("version %s not yet indexed", versionNumber)
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), maxPolls),
		ctx,
	)
	if err := backoff.Retry(check, policy); err != nil {
		return issue.Wrap(err, "wait for mod host to index version").
			WithResource(versionNumber).
			WithSuggestion("The host index can lag; retry the sync once the version page is visible")
	}
	return nil
}

// entryPattern matches the slug a packwiz index entry records.
func entryPattern(slug string) *regexp.Regexp {
	return regexp.MustCompile(`(?m)^\s*slug\s*=\s*"` + regexp.QuoteMeta(slug) + `"\s*$`)
}

// ModEntry returns the pack's index file for slug, if the mod is already in
// the pack.
func (s *Syncer) ModEntry(slug string) (string, bool, error) {
	matches, err := filepath.Glob(filepath.Join(s.PackDir, "mods", "*.pw.toml"))
	if err != nil {
		return "", false, fmt.Errorf("scanning pack index: %w", err)
	}
	pattern := entryPattern(slug)
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", false, fmt.Errorf("reading pack entry %s: %w", path, err)
		}
		if pattern.Match(data) {
			return path, true, nil
		}
	}
	return "", false, nil
}

// Sync adds or updates slug in the pack and reports whether the pack
// changed. A mod already present is updated in place; a new mod is
// installed. packwiz output is surfaced on failure.
func (s *Syncer) Sync(ctx context.Context, slug string) (bool, error) {
	entry, present, err := s.ModEntry(slug)
	if err != nil {
		return false, err
	}

	var before []byte
	if present {
		before, err = os.ReadFile(entry)
		if err != nil {
			return false, fmt.Errorf("reading pack entry %s: %w", entry, err)
		}
	}

	args := []string{"modrinth", "install", slug, "--yes"}
	if present {
		args = []string{"update", modName(entry), "--yes"}
	}
	s.logger().Info("running packwiz", "args", args)

	out, err := s.runner()(ctx, s.PackDir, s.packwiz(), args...)
	if err != nil {
		perr := issue.Wrap(err, "run packwiz").
			WithResource(s.PackDir).
			WithSuggestion("Check that packwiz is installed and the pack directory holds a pack.toml")
		if trimmed := bytes.TrimSpace(out); len(trimmed) > 0 {
			perr = perr.WithSuggestion("packwiz output: " + string(trimmed))
		}
		return false, perr
	}

	entry, present, err = s.ModEntry(slug)
	if err != nil {
		return false, err
	}
	if !present {
		return false, issue.New("verify pack entry after sync").
			WithResource(slug).
			WithSuggestion("packwiz reported success but wrote no index entry for the mod")
	}

	after, err := os.ReadFile(entry)
	if err != nil {
		return false, fmt.Errorf("reading pack entry %s: %w", entry, err)
	}
	return !bytes.Equal(before, after), nil
}

// modName derives the packwiz mod name from its index file path.
func modName(entry string) string {
	base := filepath.Base(entry)
	return base[:len(base)-len(".pw.toml")]
}
