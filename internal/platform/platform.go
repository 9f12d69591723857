// SPDX-License-Identifier: MPL-2.0

// Package platform contains the HTTP clients for the release hosts: GitHub
// Releases, Modrinth, CurseForge, and the downstream pull-request API. Each
// client speaks its platform's wire format but reports failures through the
// shared Error type so the publish coordinator can treat them uniformly.
package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"
)

// maxResponseBytes bounds API response reads (10 MB). Prevents unbounded
// memory consumption from malformed or hostile responses.
const maxResponseBytes = 10 << 20

// Reason classifies why a platform call failed. The coordinator surfaces it
// in the outcome table and applies different aggregation rules to some
// values (AlreadyPublished never fails a run).
type Reason string

const (
	// ReasonTransient covers network errors and 5xx responses.
	ReasonTransient Reason = "transient"
	// ReasonTimeout means the per-target deadline expired.
	ReasonTimeout Reason = "timeout"
	// ReasonAlreadyPublished means the platform already has an artifact at
	// this version and rejected the duplicate.
	ReasonAlreadyPublished Reason = "already-published"
	// ReasonAuth covers 401/403 responses.
	ReasonAuth Reason = "auth"
	// ReasonRateLimited means the platform's request quota is exhausted.
	ReasonRateLimited Reason = "rate-limited"
	// ReasonRejected covers other 4xx responses (bad payload, unknown project).
	ReasonRejected Reason = "rejected"
)

type (
	// Error is a failed platform call.
	Error struct {
		Platform   string
		Reason     Reason
		StatusCode int // zero when the failure happened before a response
		Message    string
		Cause      error
	}

	// Artifact is one build output to upload.
	Artifact struct {
		Name string // filename presented to the platform
		Path string // local path of the file content
	}

	// PublishedRef identifies a release that now exists on a platform.
	PublishedRef struct {
		Platform string
		ID       string
		URL      string
	}

	// PRRef identifies a downstream pull request.
	PRRef struct {
		Number int
		URL    string
	}
)

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", e.Platform, e.Reason, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Platform, e.Reason, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// classifyStatus maps an HTTP status code to a failure reason.
func classifyStatus(status int) Reason {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ReasonAuth
	case status == http.StatusTooManyRequests:
		return ReasonRateLimited
	case status >= 500:
		return ReasonTransient
	default:
		return ReasonRejected
	}
}

// wrapTransportError converts a transport-level failure (including context
// expiry) into an Error with the right reason.
func wrapTransportError(platformName string, err error) *Error {
	reason := ReasonTransient
	if errors.Is(err, context.DeadlineExceeded) {
		reason = ReasonTimeout
	}
	return &Error{
		Platform: platformName,
		Reason:   reason,
		Message:  err.Error(),
		Cause:    err,
	}
}

// readBody drains a bounded amount of a response body for error messages.
func readBody(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4<<10))
	if err != nil {
		return ""
	}
	return string(data)
}

// apiClient bundles what every platform client shares: an HTTP client, a
// request throttle, and a User-Agent. Platforms enforce request quotas, so
// all calls pass through the limiter.
type apiClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
}

func newAPIClient(perSecond float64) apiClient {
	return apiClient{
		httpClient: http.DefaultClient,
		limiter:    rate.NewLimiter(rate.Limit(perSecond), 1),
		userAgent:  "modship/dev",
	}
}

// do executes a request after waiting for the rate limiter. Headers common
// to all platforms are set here; callers add platform-specific ones.
func (c *apiClient) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		// Prefer the context's own error so timeout classification sees
		// context.DeadlineExceeded rather than the limiter's wrapper.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	return c.httpClient.Do(req.WithContext(ctx))
}
