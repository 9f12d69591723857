// SPDX-License-Identifier: MPL-2.0

package publish

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/modship/modship/internal/dag"
	"github.com/modship/modship/internal/platform"
)

// defaultTargetTimeout bounds a single publish call when the target does not
// set its own. A hung platform must not stall the whole run.
const defaultTargetTimeout = 5 * time.Minute

// Coordinator fans a release out to its targets stage by stage. Targets in
// the same stage publish concurrently; each goroutine writes only its own
// outcome slot.
type Coordinator struct {
	Logger         *log.Logger
	DefaultTimeout time.Duration
}

// Run publishes to every configured target and returns the aggregated
// report. It returns an error only for failures that abort the run up front
// (missing required configuration, malformed dependency declarations);
// per-target publish failures are recorded in the report instead.
func (c *Coordinator) Run(ctx context.Context, req Request, targets []Target) (*Report, error) {
	logger := c.Logger
	if logger == nil {
		logger = log.Default()
	}

	// Fail fast on missing required configuration, before any network call.
	for i := range targets {
		t := &targets[i]
		if t.Required && !t.configured() {
			return nil, &MissingConfigError{Kind: t.Kind, Keys: t.Missing}
		}
	}

	report := &Report{
		RunID:   uuid.NewString(),
		Version: req.Version,
	}

	outcomes := make(map[Kind]*Outcome, len(targets))
	byKind := make(map[Kind]*Target, len(targets))
	for i := range targets {
		t := &targets[i]
		byKind[t.Kind] = t
		outcomes[t.Kind] = &Outcome{Kind: t.Kind, Status: StatusPending}
	}

	// Optional targets without configuration are skipped up front.
	for i := range targets {
		t := &targets[i]
		if !t.configured() {
			out := outcomes[t.Kind]
			out.Status = StatusSkipped
			out.Detail = "missing configuration: " + strings.Join(t.Missing, ", ")
			logger.Info("skipping target", "target", t.Kind, "missing", strings.Join(t.Missing, ", "))
		}
	}

	stages, err := c.orderTargets(targets, outcomes)
	if err != nil {
		return nil, err
	}

	if req.Published == nil {
		req.Published = make(map[Kind]platform.PublishedRef)
	}

	for _, stage := range stages {
		var group errgroup.Group
		for _, kind := range stage {
			target := byKind[kind]
			outcome := outcomes[kind]

			if skip, reason := c.shouldSkipForDependency(target, outcomes); skip {
				outcome.Status = StatusSkipped
				outcome.Detail = reason
				logger.Warn("skipping target", "target", kind, "reason", reason)
				continue
			}

			group.Go(func() error {
				c.publishOne(ctx, logger, target, req, outcome)
				return nil
			})
		}
		// The group never carries an error; Wait is only a stage barrier.
		_ = group.Wait()

		// Expose refs from this stage to later stages.
		for _, kind := range stage {
			if out := outcomes[kind]; out.Status == StatusSucceeded {
				req.Published[kind] = out.Ref
			}
		}
	}

	// Preserve declaration order in the report.
	for i := range targets {
		report.Outcomes = append(report.Outcomes, *outcomes[targets[i].Kind])
	}
	report.finalize(byKind)

	logger.Info("release run finished", "run", report.RunID, "status", report.Status)
	return report, nil
}

// orderTargets layers the targets by dependency. Skipped targets still get
// graph nodes so edge declarations stay valid, but a dependency on a target
// that is not part of the run at all is simply dropped.
func (c *Coordinator) orderTargets(targets []Target, outcomes map[Kind]*Outcome) ([][]Kind, error) {
	g := dag.New()
	for i := range targets {
		t := &targets[i]
		var deps []string
		for _, dep := range t.DependsOn {
			if _, exists := outcomes[dep]; exists {
				deps = append(deps, string(dep))
			}
		}
		g.Add(string(t.Kind), deps...)
	}

	rawStages, err := g.Stages()
	if err != nil {
		return nil, fmt.Errorf("ordering targets: %w", err)
	}

	stages := make([][]Kind, 0, len(rawStages))
	for _, raw := range rawStages {
		stage := make([]Kind, 0, len(raw))
		for _, name := range raw {
			kind := Kind(name)
			if outcomes[kind].Status == StatusSkipped {
				continue
			}
			stage = append(stage, kind)
		}
		if len(stage) > 0 {
			stages = append(stages, stage)
		}
	}
	return stages, nil
}

// shouldSkipForDependency applies the source-host dependency rule: a hard
// target whose dependency failed is not attempted. A dependency that was
// explicitly skipped does not block. Soft targets run regardless; their
// dependencies only constrain ordering.
func (c *Coordinator) shouldSkipForDependency(t *Target, outcomes map[Kind]*Outcome) (bool, string) {
	if t.Soft {
		return false, ""
	}
	for _, dep := range t.DependsOn {
		out, exists := outcomes[dep]
		if !exists {
			continue
		}
		if out.Status == StatusFailed {
			return true, fmt.Sprintf("dependency %s failed", dep)
		}
	}
	return false, ""
}

// publishOne drives a single target through publishing to a terminal state.
func (c *Coordinator) publishOne(ctx context.Context, logger *log.Logger, t *Target, req Request, out *Outcome) {
	out.Status = StatusPublishing
	logger.Info("publishing", "target", t.Kind, "version", req.Version)

	timeout := t.Timeout
	if timeout == 0 {
		timeout = c.DefaultTimeout
	}
	if timeout == 0 {
		timeout = defaultTargetTimeout
	}

	// Independent deadline per target; cancelling one publish must not
	// cancel its siblings, so the parent ctx is shared but never cancelled
	// from inside a target.
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ref, err := t.Publisher.Publish(callCtx, req)
	if err != nil {
		out.Status = StatusFailed
		out.Detail = err.Error()

		var pErr *platform.Error
		if errors.As(err, &pErr) {
			out.Reason = pErr.Reason
		} else if errors.Is(err, context.DeadlineExceeded) {
			out.Reason = platform.ReasonTimeout
		} else {
			out.Reason = platform.ReasonTransient
		}

		if t.Soft {
			logger.Warn("soft target failed (non-fatal)", "target", t.Kind, "err", err)
		} else {
			logger.Error("target failed", "target", t.Kind, "reason", out.Reason, "err", err)
		}
		return
	}

	out.Status = StatusSucceeded
	out.Ref = ref
	logger.Info("published", "target", t.Kind, "url", ref.URL)
}
