// SPDX-License-Identifier: MPL-2.0

package publish

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/modship/modship/internal/platform"
	"github.com/modship/modship/internal/semver"
)

type (
	// Outcome is the terminal result of one target. Created during the
	// publish phase and never mutated afterward.
	Outcome struct {
		Kind   Kind
		Status Status
		// Reason is set when Status is failed.
		Reason platform.Reason
		// Detail is a human-readable explanation for failed and skipped
		// outcomes.
		Detail string
		// Ref points at the published release on success.
		Ref platform.PublishedRef
	}

	// Report aggregates the outcomes of one release run.
	Report struct {
		RunID    string
		Version  semver.Version
		Outcomes []Outcome
		Status   Status
	}

	// wire forms for the machine-readable encodings.
	reportDoc struct {
		RunID    string       `json:"run_id" yaml:"run_id"`
		Version  string       `json:"version" yaml:"version"`
		Status   string       `json:"status" yaml:"status"`
		Outcomes []outcomeDoc `json:"outcomes" yaml:"outcomes"`
	}

	outcomeDoc struct {
		Target string `json:"target" yaml:"target"`
		Status string `json:"status" yaml:"status"`
		Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
		Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
		URL    string `json:"url,omitempty" yaml:"url,omitempty"`
	}
)

// finalize computes the aggregate verdict: the run failed iff a required,
// non-soft target failed for a reason other than AlreadyPublished. Optional
// failures, skips, soft-target failures, and already-published rejections
// leave the run succeeded.
func (r *Report) finalize(targets map[Kind]*Target) {
	r.Status = StatusSucceeded
	for _, out := range r.Outcomes {
		if out.Status != StatusFailed {
			continue
		}
		t := targets[out.Kind]
		if t == nil || !t.Required || t.Soft {
			continue
		}
		if out.Reason == platform.ReasonAlreadyPublished {
			continue
		}
		r.Status = StatusFailed
	}
}

// Failed reports whether the run as a whole failed.
func (r *Report) Failed() bool {
	return r.Status == StatusFailed
}

func (r *Report) doc() reportDoc {
	doc := reportDoc{
		RunID:   r.RunID,
		Version: r.Version.String(),
		Status:  string(r.Status),
	}
	for _, out := range r.Outcomes {
		doc.Outcomes = append(doc.Outcomes, outcomeDoc{
			Target: string(out.Kind),
			Status: string(out.Status),
			Reason: string(out.Reason),
			Detail: out.Detail,
			URL:    out.Ref.URL,
		})
	}
	return doc
}

// JSON encodes the report for machine consumption.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r.doc(), "", "  ")
}

// YAML encodes the report for machine consumption.
func (r *Report) YAML() ([]byte, error) {
	return yaml.Marshal(r.doc())
}

var (
	reportHeaderStyle = lipgloss.NewStyle().Bold(true)

	statusStyles = map[Status]lipgloss.Style{
		StatusSucceeded: lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")),
		StatusFailed:    lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")),
		StatusSkipped:   lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")),
	}
)

// Render returns the terminal outcome table.
func (r *Report) Render() string {
	var sb strings.Builder

	sb.WriteString(reportHeaderStyle.Render(fmt.Sprintf("Release %s: %s", r.Version, r.Status)))
	sb.WriteString("\n\n")

	width := len("target")
	for _, out := range r.Outcomes {
		if len(out.Kind) > width {
			width = len(out.Kind)
		}
	}

	fmt.Fprintf(&sb, "  %-*s  %-10s  %s\n", width, "target", "status", "detail")
	for _, out := range r.Outcomes {
		status := string(out.Status)
		if style, ok := statusStyles[out.Status]; ok {
			status = style.Render(fmt.Sprintf("%-10s", status))
		} else {
			status = fmt.Sprintf("%-10s", status)
		}

		detail := out.Detail
		if out.Status == StatusSucceeded && out.Ref.URL != "" {
			detail = out.Ref.URL
		}
		if out.Status == StatusFailed && out.Reason != "" {
			detail = fmt.Sprintf("[%s] %s", out.Reason, detail)
		}

		fmt.Fprintf(&sb, "  %-*s  %s  %s\n", width, string(out.Kind), status, detail)
	}

	return sb.String()
}
