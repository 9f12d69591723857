// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const prPlatform = "modpack-pr"

type (
	// PRClient opens or updates the downstream modpack pull request. It is
	// best-effort by contract: the coordinator never fails a run on its
	// errors, but the errors still carry full context for the log.
	PRClient struct {
		apiClient
		owner   string
		repo    string
		baseURL string
		token   string
	}

	// PROption configures a PRClient during construction.
	PROption func(*PRClient)

	// PRSpec describes the pull request to open or refresh.
	PRSpec struct {
		Title string
		Body  string
		Head  string // branch with the modpack change
		Base  string // branch the PR targets, e.g. "main"
	}

	prRequest struct {
		Title string `json:"title"`
		Body  string `json:"body,omitempty"`
		Head  string `json:"head,omitempty"`
		Base  string `json:"base,omitempty"`
	}

	prResponse struct {
		Number  int    `json:"number"`
		HTMLURL string `json:"html_url"`
	}
)

// WithPRHTTPClient sets a custom HTTP client, useful for tests.
func WithPRHTTPClient(c *http.Client) PROption {
	return func(p *PRClient) { p.httpClient = c }
}

// WithPRBaseURL overrides the API base URL, primarily for test servers.
func WithPRBaseURL(base string) PROption {
	return func(p *PRClient) { p.baseURL = strings.TrimRight(base, "/") }
}

// WithPRToken sets the bearer token used for all requests.
func WithPRToken(token string) PROption {
	return func(p *PRClient) { p.token = token }
}

// NewPRClient creates a client for the downstream repository.
func NewPRClient(owner, repo string, opts ...PROption) *PRClient {
	c := &PRClient{
		apiClient: newAPIClient(2),
		owner:     owner,
		repo:      repo,
		baseURL:   "https://api.github.com",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OpenOrUpdate creates a pull request for spec.Head, or refreshes the title
// and body of the open one if it already exists. Re-running a release
// therefore converges on a single PR per branch.
func (c *PRClient) OpenOrUpdate(ctx context.Context, spec PRSpec) (PRRef, error) {
	existing, err := c.findOpen(ctx, spec.Head)
	if err != nil {
		return PRRef{}, err
	}
	if existing != nil {
		return c.update(ctx, existing.Number, spec)
	}
	return c.create(ctx, spec)
}

// findOpen looks for an open PR whose head is the given branch.
func (c *PRClient) findOpen(ctx context.Context, head string) (*prResponse, error) {
	reqURL := fmt.Sprintf("%s/repos/%s/%s/pulls?state=open&head=%s",
		c.baseURL, c.owner, c.repo, url.QueryEscape(c.owner+":"+head))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, wrapTransportError(prPlatform, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.apiError(resp, "listing pull requests")
	}

	var prs []prResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&prs); err != nil {
		return nil, fmt.Errorf("decoding pull request list: %w", err)
	}
	if len(prs) == 0 {
		return nil, nil
	}
	return &prs[0], nil
}

func (c *PRClient) create(ctx context.Context, spec PRSpec) (PRRef, error) {
	return c.send(ctx, http.MethodPost,
		fmt.Sprintf("%s/repos/%s/%s/pulls", c.baseURL, c.owner, c.repo),
		prRequest{Title: spec.Title, Body: spec.Body, Head: spec.Head, Base: spec.Base},
		http.StatusCreated, "creating pull request")
}

func (c *PRClient) update(ctx context.Context, number int, spec PRSpec) (PRRef, error) {
	return c.send(ctx, http.MethodPatch,
		fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.baseURL, c.owner, c.repo, number),
		prRequest{Title: spec.Title, Body: spec.Body},
		http.StatusOK, "updating pull request")
}

func (c *PRClient) send(ctx context.Context, method, reqURL string, payload prRequest, wantStatus int, op string) (PRRef, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return PRRef{}, fmt.Errorf("encoding pull request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bytes.NewReader(body))
	if err != nil {
		return PRRef{}, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(ctx, req)
	if err != nil {
		return PRRef{}, wrapTransportError(prPlatform, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return PRRef{}, c.apiError(resp, op)
	}

	var pr prResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&pr); err != nil {
		return PRRef{}, fmt.Errorf("decoding pull request response: %w", err)
	}
	return PRRef{Number: pr.Number, URL: pr.HTMLURL}, nil
}

func (c *PRClient) apiError(resp *http.Response, op string) error {
	return &Error{
		Platform:   prPlatform,
		Reason:     classifyStatus(resp.StatusCode),
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("%s: %s", op, readBody(resp.Body)),
	}
}

func (c *PRClient) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
