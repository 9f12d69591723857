// SPDX-License-Identifier: MPL-2.0

// Package notes turns a commit range into release notes. Commits are grouped
// by the severity their subject prefixes map to, most significant first.
package notes

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/modship/modship/internal/semver"
)

// sectionTitles maps each bump class to its changelog heading.
var sectionTitles = map[semver.Bump]string{
	semver.BumpMajor: "Breaking Changes",
	semver.BumpMinor: "Features",
	semver.BumpPatch: "Fixes & Maintenance",
	semver.BumpNone:  "Other",
}

// sectionOrder lists the headings most significant first.
var sectionOrder = []semver.Bump{
	semver.BumpMajor,
	semver.BumpMinor,
	semver.BumpPatch,
	semver.BumpNone,
}

// Generate renders Markdown release notes for version from the given commits,
// classified against rules. Commits keep their incoming order within each
// section. An empty range yields a short placeholder body.
func Generate(version semver.Version, commits []semver.Commit, rules semver.RuleTable) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n", version)

	if len(commits) == 0 {
		b.WriteString("\nNo changes recorded for this release.\n")
		return b.String()
	}

	grouped := make(map[semver.Bump][]semver.Commit)
	for _, c := range commits {
		bump := rules.Classify(c.Subject)
		grouped[bump] = append(grouped[bump], c)
	}

	for _, bump := range sectionOrder {
		section := grouped[bump]
		if len(section) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n### %s\n\n", sectionTitles[bump])
		for _, c := range section {
			b.WriteString("- ")
			b.WriteString(c.Subject)
			if c.SHA != "" {
				fmt.Fprintf(&b, " (%s)", shortSHA(c.SHA))
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

// RenderTerminal renders the Markdown body for terminal display. Rendering
// problems fall back to the raw Markdown rather than failing the command.
func RenderTerminal(markdown string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return markdown
	}
	out, err := r.Render(markdown)
	if err != nil {
		return markdown
	}
	return out
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
