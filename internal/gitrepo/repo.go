// SPDX-License-Identifier: MPL-2.0

// Package gitrepo is the version-control backend for the release pipeline.
// It wraps a go-git repository behind the two operations the pipeline needs:
// listing the commits since the last release tag and creating the new
// release tag. Everything is local; no network calls happen here.
package gitrepo

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/modship/modship/internal/semver"
)

type (
	// TagConflictError is returned when the requested tag name already exists
	// but points at a different commit. Creating the same tag at the same
	// commit is treated as idempotent success, not a conflict.
	TagConflictError struct {
		Tag      string
		Existing string // commit hash the tag currently points at
		Wanted   string // commit hash the caller asked for
	}

	// Repository exposes release-oriented operations over a git work tree.
	Repository struct {
		repo *git.Repository
	}
)

func (e *TagConflictError) Error() string {
	return fmt.Sprintf("tag %s already exists at %s (wanted %s)", e.Tag, e.Existing, e.Wanted)
}

// Open opens the repository containing dir, searching parent directories the
// way git itself does.
func Open(dir string) (*Repository, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("opening git repository at %s: %w", dir, err)
	}
	return &Repository{repo: repo}, nil
}

// Wrap builds a Repository around an already-open go-git repository.
// Used by tests that construct in-memory repositories.
func Wrap(repo *git.Repository) *Repository {
	return &Repository{repo: repo}
}

// Head returns the commit hash the repository currently points at.
func (r *Repository) Head() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolving HEAD: %w", err)
	}
	return head.Hash().String(), nil
}

// LatestReleaseTag scans all tags for canonical release versions and returns
// the highest one. found is false when the repository has never been released,
// in which case the returned version is the zero lineage origin.
func (r *Repository) LatestReleaseTag() (version semver.Version, tag string, found bool, err error) {
	iter, err := r.repo.Tags()
	if err != nil {
		return semver.Version{}, "", false, fmt.Errorf("listing tags: %w", err)
	}
	defer iter.Close()

	err = iter.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().Short()
		v, parseErr := semver.Parse(name)
		if parseErr != nil {
			// Not a release tag; ignore.
			return nil
		}
		if !found || v.Compare(version) > 0 {
			version, tag, found = v, name, true
		}
		return nil
	})
	if err != nil {
		return semver.Version{}, "", false, fmt.Errorf("scanning tags: %w", err)
	}

	return version, tag, found, nil
}

// CommitsSince returns the commits reachable from HEAD that are not reachable
// from sinceTag, newest first. An empty sinceTag returns the full history
// (the first-release case).
func (r *Repository) CommitsSince(sinceTag string) ([]semver.Commit, error) {
	head, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	}

	var boundary plumbing.Hash
	if sinceTag != "" {
		boundary, err = r.tagCommit(sinceTag)
		if err != nil {
			return nil, err
		}
	}

	logIter, err := r.repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("walking history: %w", err)
	}
	defer logIter.Close()

	var commits []semver.Commit
	err = logIter.ForEach(func(c *object.Commit) error {
		if sinceTag != "" && c.Hash == boundary {
			return storer.ErrStop
		}
		commits = append(commits, semver.Commit{
			SHA:     c.Hash.String(),
			Subject: firstLine(c.Message),
			When:    c.Committer.When,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking history since %s: %w", sinceTag, err)
	}

	return commits, nil
}

// CreateTag creates a lightweight tag at HEAD pointing at the new release.
// If the tag already exists at HEAD the call succeeds without doing anything,
// so re-running a resolved pipeline is safe. If it exists elsewhere the call
// fails with TagConflictError.
func (r *Repository) CreateTag(name string) error {
	head, err := r.repo.Head()
	if err != nil {
		return fmt.Errorf("resolving HEAD: %w", err)
	}

	if existing, lookupErr := r.tagCommit(name); lookupErr == nil {
		if existing == head.Hash() {
			return nil
		}
		return &TagConflictError{
			Tag:      name,
			Existing: existing.String(),
			Wanted:   head.Hash().String(),
		}
	}

	if _, err := r.repo.CreateTag(name, head.Hash(), nil); err != nil {
		if errors.Is(err, git.ErrTagExists) {
			// Lost a race with another run; report where the tag ended up.
			if existing, lookupErr := r.tagCommit(name); lookupErr == nil && existing != head.Hash() {
				return &TagConflictError{Tag: name, Existing: existing.String(), Wanted: head.Hash().String()}
			}
			return nil
		}
		return fmt.Errorf("creating tag %s: %w", name, err)
	}

	return nil
}

// tagCommit resolves a tag name to the commit it points at, following
// annotated tag objects to their target.
func (r *Repository) tagCommit(name string) (plumbing.Hash, error) {
	ref, err := r.repo.Tag(name)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("looking up tag %s: %w", name, err)
	}

	if tagObj, tagErr := r.repo.TagObject(ref.Hash()); tagErr == nil {
		return tagObj.Target, nil
	}
	return ref.Hash(), nil
}

// firstLine trims a full commit message down to its subject line.
func firstLine(message string) string {
	for i := 0; i < len(message); i++ {
		if message[i] == '\n' {
			return message[:i]
		}
	}
	return message
}
