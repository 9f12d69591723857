// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	nextBump   string
	nextOutput string

	// nextCmd resolves and prints the next version without side effects.
	nextCmd = &cobra.Command{
		Use:   "next",
		Short: "Show the version the next release would get",
		Long: `Show the version the next release would get.

Resolves the commit subjects since the last release tag against the
bump rule table and prints the resulting version. Nothing is tagged
or published.`,
		RunE: runNext,
	}
)

func init() {
	nextCmd.Flags().StringVar(&nextBump, "bump", "", "override the resolved bump (patch, minor, major)")
	nextCmd.Flags().StringVarP(&nextOutput, "output", "o", "text", "output format (text, json)")
}

func runNext(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd.Context())
	if err != nil {
		return err
	}

	plan, err := planRelease(cfg, nextBump)
	if err != nil {
		return err
	}

	switch nextOutput {
	case "json":
		doc := struct {
			Previous      string `json:"previous"`
			Next          string `json:"next"`
			Bump          string `json:"bump"`
			Commits       int    `json:"commits"`
			ReleaseNeeded bool   `json:"release_needed"`
		}{
			Previous:      plan.res.Previous.String(),
			Next:          plan.res.Next.String(),
			Bump:          bumpName(plan.res.Bump),
			Commits:       len(plan.commits),
			ReleaseNeeded: plan.res.ReleaseNeeded,
		}
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	case "text", "":
		if !plan.res.ReleaseNeeded {
			fmt.Printf("%s (no release needed, %d commits since %s)\n",
				plan.res.Previous, len(plan.commits), previousLabel(plan.prevTag))
			return nil
		}
		fmt.Printf("%s (%s bump from %s, %d commits)\n",
			SuccessStyle.Render(plan.res.Next.String()), bumpName(plan.res.Bump),
			plan.res.Previous, len(plan.commits))
	default:
		return fmt.Errorf("unknown output format %q (want text or json)", nextOutput)
	}
	return nil
}

func previousLabel(tag string) string {
	if tag == "" {
		return "the initial commit"
	}
	return tag
}
