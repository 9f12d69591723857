// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modship/modship/internal/notes"
)

var (
	notesRaw bool

	// notesCmd renders the release notes for the pending range.
	notesCmd = &cobra.Command{
		Use:   "notes",
		Short: "Show release notes for the pending release",
		Long: `Show release notes for the pending release.

Groups the commits since the last release tag by the severity their
subject prefixes map to and renders them as Markdown.`,
		RunE: runNotes,
	}
)

func init() {
	notesCmd.Flags().BoolVar(&notesRaw, "raw", false, "print raw Markdown instead of rendering for the terminal")
}

func runNotes(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd.Context())
	if err != nil {
		return err
	}

	plan, err := planRelease(cfg, "")
	if err != nil {
		return err
	}

	body := notes.Generate(plan.res.Next, plan.commits, plan.table)
	if notesRaw {
		fmt.Print(body)
		return nil
	}
	fmt.Print(notes.RenderTerminal(body))
	return nil
}
