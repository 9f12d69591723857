// SPDX-License-Identifier: MPL-2.0

package semver

import (
	"time"
)

type (
	// Commit is one version-control commit in the range under consideration.
	// Only the subject line participates in classification.
	Commit struct {
		SHA     string
		Subject string
		When    time.Time
	}

	// Rule maps a commit subject prefix to a bump magnitude. Prefixes are
	// matched case-sensitively against the start of the subject line.
	Rule struct {
		Prefix string
		Bump   Bump
	}

	// RuleTable is the classification policy for a repository: an ordered
	// list of prefix rules plus the default applied to commits that match
	// no rule. The unknown-prefix default is policy, not a constant; teams
	// that want unrecognized commits to be non-releasing set it to BumpNone.
	RuleTable struct {
		Rules   []Rule
		Unknown Bump
	}

	// Resolution is the outcome of resolving a commit range against a
	// previous version.
	Resolution struct {
		Previous Version
		Next     Version
		Bump     Bump
		// ReleaseNeeded is false when the range resolves to BumpNone,
		// in which case Next equals Previous and no tag must be created.
		ReleaseNeeded bool
	}
)

// DefaultRules returns the conventional-commit policy used when the config
// file does not override it.
func DefaultRules() RuleTable {
	return RuleTable{
		Rules: []Rule{
			{Prefix: "feat!:", Bump: BumpMajor},
			{Prefix: "fix!:", Bump: BumpMajor},
			{Prefix: "breaking:", Bump: BumpMajor},
			{Prefix: "overhaul:", Bump: BumpMinor},
			{Prefix: "feat:", Bump: BumpMinor},
			{Prefix: "fix:", Bump: BumpPatch},
			{Prefix: "refactor:", Bump: BumpPatch},
			{Prefix: "perf:", Bump: BumpPatch},
			{Prefix: "chore:", Bump: BumpPatch},
			{Prefix: "docs:", Bump: BumpPatch},
			{Prefix: "ci:", Bump: BumpNone},
		},
		Unknown: BumpPatch,
	}
}

// Classify returns the bump magnitude for a single commit subject. Rules are
// tried longest prefix first so "feat!:" wins over "feat:" regardless of the
// order they appear in the table; ties fall back to table order.
func (t RuleTable) Classify(subject string) Bump {
	bestLen := -1
	best := t.Unknown
	for _, rule := range t.Rules {
		if len(rule.Prefix) <= bestLen {
			continue
		}
		if len(subject) >= len(rule.Prefix) && subject[:len(rule.Prefix)] == rule.Prefix {
			bestLen = len(rule.Prefix)
			best = rule.Bump
		}
	}
	return best
}

// Aggregate returns the largest bump across the commit range. An empty range
// aggregates to BumpNone.
func (t RuleTable) Aggregate(commits []Commit) Bump {
	overall := BumpNone
	for _, c := range commits {
		if b := t.Classify(c.Subject); b > overall {
			overall = b
		}
	}
	return overall
}

// Resolve computes the next version for a commit range. A non-BumpNone
// override takes precedence over the classified bump entirely, including
// over an empty commit range. Resolve is pure: re-running it with the same
// inputs yields the same Resolution.
func (t RuleTable) Resolve(previous Version, commits []Commit, override Bump) Resolution {
	bump := t.Aggregate(commits)
	if override != BumpNone {
		bump = override
	}

	res := Resolution{
		Previous: previous,
		Next:     previous.Bumped(bump),
		Bump:     bump,
	}
	res.ReleaseNeeded = bump != BumpNone
	return res
}
