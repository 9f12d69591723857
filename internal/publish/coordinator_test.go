// SPDX-License-Identifier: MPL-2.0

package publish

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/modship/modship/internal/platform"
	"github.com/modship/modship/internal/semver"
)

// fakePublisher counts calls and returns a canned result.
type fakePublisher struct {
	calls atomic.Int32
	ref   platform.PublishedRef
	err   error
	// sawPublished captures the refs visible from earlier stages.
	sawPublished map[Kind]platform.PublishedRef
	delay        time.Duration
}

func (f *fakePublisher) Publish(ctx context.Context, req Request) (platform.PublishedRef, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return platform.PublishedRef{}, ctx.Err()
		}
	}
	f.sawPublished = make(map[Kind]platform.PublishedRef, len(req.Published))
	for k, v := range req.Published {
		f.sawPublished[k] = v
	}
	return f.ref, f.err
}

func quietCoordinator() *Coordinator {
	return &Coordinator{Logger: log.New(io.Discard)}
}

func testRequest() Request {
	return Request{Version: semver.Version{Major: 1, Minor: 5}}
}

func TestRun_AllSucceed(t *testing.T) {
	t.Parallel()

	gh := &fakePublisher{ref: platform.PublishedRef{Platform: "github", URL: "https://gh/rel"}}
	mr := &fakePublisher{ref: platform.PublishedRef{Platform: "modrinth"}}

	report, err := quietCoordinator().Run(context.Background(), testRequest(), []Target{
		{Kind: KindGitHub, Required: true, Publisher: gh},
		{Kind: KindModrinth, DependsOn: []Kind{KindGitHub}, Publisher: mr},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Failed() {
		t.Errorf("report status = %s, want succeeded", report.Status)
	}
	if len(report.Outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(report.Outcomes))
	}
	for _, out := range report.Outcomes {
		if out.Status != StatusSucceeded {
			t.Errorf("outcome %s = %s", out.Kind, out.Status)
		}
	}
}

func TestRun_RequiredFailureFailsRun(t *testing.T) {
	t.Parallel()

	// One required target fails, two optional targets succeed: the run is
	// failed and the report holds exactly three outcomes.
	required := &fakePublisher{err: &platform.Error{Platform: "github", Reason: platform.ReasonTransient, Message: "boom"}}
	opt1 := &fakePublisher{ref: platform.PublishedRef{Platform: "modrinth"}}
	opt2 := &fakePublisher{ref: platform.PublishedRef{Platform: "curseforge"}}

	report, err := quietCoordinator().Run(context.Background(), testRequest(), []Target{
		{Kind: KindGitHub, Required: true, Publisher: required},
		{Kind: KindModrinth, Publisher: opt1},
		{Kind: KindCurseForge, Publisher: opt2},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !report.Failed() {
		t.Error("expected overall failure")
	}
	if len(report.Outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(report.Outcomes))
	}

	counts := map[Status]int{}
	for _, out := range report.Outcomes {
		counts[out.Status]++
	}
	if counts[StatusFailed] != 1 || counts[StatusSucceeded] != 2 {
		t.Errorf("outcome counts = %v", counts)
	}
}

func TestRun_OptionalFailureKeepsRunSucceeded(t *testing.T) {
	t.Parallel()

	gh := &fakePublisher{ref: platform.PublishedRef{Platform: "github"}}
	flaky := &fakePublisher{err: &platform.Error{Platform: "curseforge", Reason: platform.ReasonTransient, Message: "503"}}

	report, err := quietCoordinator().Run(context.Background(), testRequest(), []Target{
		{Kind: KindGitHub, Required: true, Publisher: gh},
		{Kind: KindCurseForge, Publisher: flaky},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Failed() {
		t.Error("optional failure must not fail the run")
	}
}

func TestRun_MissingRequiredConfigFailsBeforeAnyCall(t *testing.T) {
	t.Parallel()

	gh := &fakePublisher{}
	mr := &fakePublisher{}

	_, err := quietCoordinator().Run(context.Background(), testRequest(), []Target{
		{Kind: KindGitHub, Publisher: gh},
		{Kind: KindModrinth, Required: true, Missing: []string{"MODRINTH_TOKEN"}, Publisher: mr},
	})

	var missing *MissingConfigError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingConfigError, got %v", err)
	}
	if missing.Kind != KindModrinth {
		t.Errorf("missing.Kind = %s", missing.Kind)
	}

	if gh.calls.Load() != 0 || mr.calls.Load() != 0 {
		t.Errorf("no publish call may happen before the fail-fast check (gh=%d mr=%d)",
			gh.calls.Load(), mr.calls.Load())
	}
}

func TestRun_OptionalMissingConfigIsSkipped(t *testing.T) {
	t.Parallel()

	gh := &fakePublisher{ref: platform.PublishedRef{Platform: "github"}}
	cf := &fakePublisher{}

	report, err := quietCoordinator().Run(context.Background(), testRequest(), []Target{
		{Kind: KindGitHub, Required: true, Publisher: gh},
		{Kind: KindCurseForge, Missing: []string{"CURSEFORGE_TOKEN"}, Publisher: cf},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cf.calls.Load() != 0 {
		t.Error("skipped target must not be called")
	}

	var cfOutcome *Outcome
	for i := range report.Outcomes {
		if report.Outcomes[i].Kind == KindCurseForge {
			cfOutcome = &report.Outcomes[i]
		}
	}
	if cfOutcome == nil || cfOutcome.Status != StatusSkipped {
		t.Errorf("curseforge outcome = %+v, want skipped", cfOutcome)
	}
	if report.Failed() {
		t.Error("skipped optional target must not fail the run")
	}
}

func TestRun_DependentSkippedWhenSourceHostFails(t *testing.T) {
	t.Parallel()

	gh := &fakePublisher{err: &platform.Error{Platform: "github", Reason: platform.ReasonAuth, Message: "bad token"}}
	mr := &fakePublisher{}

	report, err := quietCoordinator().Run(context.Background(), testRequest(), []Target{
		{Kind: KindGitHub, Publisher: gh},
		{Kind: KindModrinth, DependsOn: []Kind{KindGitHub}, Publisher: mr},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if mr.calls.Load() != 0 {
		t.Error("derived target must not be attempted after its dependency failed")
	}

	for _, out := range report.Outcomes {
		if out.Kind == KindModrinth && out.Status != StatusSkipped {
			t.Errorf("modrinth outcome = %s, want skipped", out.Status)
		}
	}
}

func TestRun_DependentRunsWhenSourceHostSkipped(t *testing.T) {
	t.Parallel()

	// An explicitly skipped (optional, unconfigured) source host does not
	// block derived targets.
	gh := &fakePublisher{}
	mr := &fakePublisher{ref: platform.PublishedRef{Platform: "modrinth"}}

	report, err := quietCoordinator().Run(context.Background(), testRequest(), []Target{
		{Kind: KindGitHub, Missing: []string{"GH_TOKEN"}, Publisher: gh},
		{Kind: KindModrinth, DependsOn: []Kind{KindGitHub}, Publisher: mr},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if mr.calls.Load() != 1 {
		t.Errorf("modrinth calls = %d, want 1", mr.calls.Load())
	}
	if report.Failed() {
		t.Errorf("report status = %s", report.Status)
	}
}

func TestRun_DownstreamRefsVisibleToLaterStages(t *testing.T) {
	t.Parallel()

	ghRef := platform.PublishedRef{Platform: "github", URL: "https://gh/rel/v1.5.0"}
	gh := &fakePublisher{ref: ghRef}
	mr := &fakePublisher{ref: platform.PublishedRef{Platform: "modrinth"}}

	_, err := quietCoordinator().Run(context.Background(), testRequest(), []Target{
		{Kind: KindGitHub, Publisher: gh},
		{Kind: KindModrinth, DependsOn: []Kind{KindGitHub}, Publisher: mr},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := mr.sawPublished[KindGitHub]; got != ghRef {
		t.Errorf("modrinth saw %+v, want %+v", got, ghRef)
	}
}

func TestRun_SoftTargetFailureNeverFailsRun(t *testing.T) {
	t.Parallel()

	gh := &fakePublisher{ref: platform.PublishedRef{Platform: "github"}}
	pr := &fakePublisher{err: &platform.Error{Platform: "modpack-pr", Reason: platform.ReasonAuth, Message: "no access"}}

	report, err := quietCoordinator().Run(context.Background(), testRequest(), []Target{
		{Kind: KindGitHub, Required: true, Publisher: gh},
		{Kind: KindModpackPR, Required: true, Soft: true, DependsOn: []Kind{KindGitHub}, Publisher: pr},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Failed() {
		t.Error("soft target failure must never fail the run")
	}
	if pr.calls.Load() != 1 {
		t.Errorf("pr calls = %d, want 1", pr.calls.Load())
	}
}

func TestRun_SoftTargetRunsEvenAfterUpstreamFailure(t *testing.T) {
	t.Parallel()

	gh := &fakePublisher{err: &platform.Error{Platform: "github", Reason: platform.ReasonTransient, Message: "boom"}}
	pr := &fakePublisher{ref: platform.PublishedRef{Platform: "modpack-pr"}}

	_, err := quietCoordinator().Run(context.Background(), testRequest(), []Target{
		{Kind: KindGitHub, Publisher: gh},
		{Kind: KindModpackPR, Soft: true, DependsOn: []Kind{KindGitHub}, Publisher: pr},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pr.calls.Load() != 1 {
		t.Errorf("soft target calls = %d, want 1 (ordering only, no dependency skip)", pr.calls.Load())
	}
}

func TestRun_AlreadyPublishedIsDistinctAndNonFatal(t *testing.T) {
	t.Parallel()

	gh := &fakePublisher{err: &platform.Error{
		Platform: "github",
		Reason:   platform.ReasonAlreadyPublished,
		Message:  "release exists",
	}}

	report, err := quietCoordinator().Run(context.Background(), testRequest(), []Target{
		{Kind: KindGitHub, Required: true, Publisher: gh},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := report.Outcomes[0]
	if out.Status != StatusFailed {
		t.Errorf("status = %s, want failed", out.Status)
	}
	if out.Reason != platform.ReasonAlreadyPublished {
		t.Errorf("reason = %s, want already-published", out.Reason)
	}
	if report.Failed() {
		t.Error("already-published on a required target must not fail the run")
	}
}

func TestRun_TimeoutRecordedAsTimeout(t *testing.T) {
	t.Parallel()

	slow := &fakePublisher{delay: time.Second}

	report, err := quietCoordinator().Run(context.Background(), testRequest(), []Target{
		{Kind: KindModrinth, Timeout: 10 * time.Millisecond, Publisher: slow},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := report.Outcomes[0]
	if out.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", out.Status)
	}
	if out.Reason != platform.ReasonTimeout {
		t.Errorf("reason = %s, want timeout", out.Reason)
	}
}

func TestRun_IndependentTargetsAllAttempted(t *testing.T) {
	t.Parallel()

	// Failure of one target in a stage must not cancel its siblings.
	bad := &fakePublisher{err: &platform.Error{Platform: "modrinth", Reason: platform.ReasonTransient, Message: "boom"}}
	good := &fakePublisher{ref: platform.PublishedRef{Platform: "curseforge"}}

	report, err := quietCoordinator().Run(context.Background(), testRequest(), []Target{
		{Kind: KindModrinth, Publisher: bad},
		{Kind: KindCurseForge, Publisher: good},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if good.calls.Load() != 1 {
		t.Errorf("sibling target calls = %d, want 1", good.calls.Load())
	}
	if report.Failed() {
		t.Error("optional failures only")
	}
}
