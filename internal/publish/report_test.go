// SPDX-License-Identifier: MPL-2.0

package publish

import (
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/modship/modship/internal/platform"
	"github.com/modship/modship/internal/semver"
)

func sampleReport() *Report {
	r := &Report{
		RunID:   "run-1",
		Version: semver.Version{Major: 1, Minor: 5},
		Outcomes: []Outcome{
			{Kind: KindGitHub, Status: StatusSucceeded, Ref: platform.PublishedRef{URL: "https://gh/rel"}},
			{Kind: KindModrinth, Status: StatusFailed, Reason: platform.ReasonTransient, Detail: "503"},
			{Kind: KindCurseForge, Status: StatusSkipped, Detail: "missing configuration: CURSEFORGE_TOKEN"},
		},
	}
	r.Status = StatusSucceeded
	return r
}

func TestReport_JSON(t *testing.T) {
	t.Parallel()

	data, err := sampleReport().JSON()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if doc["version"] != "v1.5.0" {
		t.Errorf("version = %v", doc["version"])
	}
	outcomes, ok := doc["outcomes"].([]any)
	if !ok || len(outcomes) != 3 {
		t.Errorf("outcomes = %v", doc["outcomes"])
	}
}

func TestReport_YAML(t *testing.T) {
	t.Parallel()

	data, err := sampleReport().YAML()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var doc struct {
		Version  string `yaml:"version"`
		Outcomes []struct {
			Target string `yaml:"target"`
			Status string `yaml:"status"`
		} `yaml:"outcomes"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if doc.Version != "v1.5.0" || len(doc.Outcomes) != 3 {
		t.Errorf("doc = %+v", doc)
	}
}

func TestReport_RenderContainsEveryTarget(t *testing.T) {
	t.Parallel()

	out := sampleReport().Render()
	for _, want := range []string{"github", "modrinth", "curseforge", "v1.5.0", "https://gh/rel"} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q:\n%s", want, out)
		}
	}
}

func TestFinalize_RequiredAlreadyPublishedStaysSucceeded(t *testing.T) {
	t.Parallel()

	targets := map[Kind]*Target{
		KindGitHub: {Kind: KindGitHub, Required: true},
	}
	r := &Report{Outcomes: []Outcome{
		{Kind: KindGitHub, Status: StatusFailed, Reason: platform.ReasonAlreadyPublished},
	}}
	r.finalize(targets)

	if r.Status != StatusSucceeded {
		t.Errorf("status = %s, want succeeded", r.Status)
	}
}
