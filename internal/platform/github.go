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
	"os"
	"strings"
)

const githubPlatform = "github"

type (
	// GitHubClient publishes releases to the GitHub Releases API and uploads
	// the build artifacts as release assets.
	GitHubClient struct {
		apiClient
		owner     string
		repo      string
		baseURL   string // API base (default https://api.github.com)
		uploadURL string // asset upload base (default https://uploads.github.com)
		token     string
	}

	// GitHubOption configures a GitHubClient during construction.
	GitHubOption func(*GitHubClient)

	githubReleaseRequest struct {
		TagName    string `json:"tag_name"`
		Name       string `json:"name"`
		Body       string `json:"body,omitempty"`
		Draft      bool   `json:"draft"`
		Prerelease bool   `json:"prerelease"`
	}

	githubReleaseResponse struct {
		ID      int64  `json:"id"`
		HTMLURL string `json:"html_url"`
	}

	githubErrorResponse struct {
		Message string `json:"message"`
		Errors  []struct {
			Code string `json:"code"`
		} `json:"errors"`
	}
)

// WithGitHubHTTPClient sets a custom HTTP client, useful for tests.
func WithGitHubHTTPClient(c *http.Client) GitHubOption {
	return func(g *GitHubClient) { g.httpClient = c }
}

// WithGitHubBaseURL overrides both API and upload base URLs, primarily for
// test servers.
func WithGitHubBaseURL(base string) GitHubOption {
	return func(g *GitHubClient) {
		g.baseURL = strings.TrimRight(base, "/")
		g.uploadURL = strings.TrimRight(base, "/")
	}
}

// WithGitHubToken sets the bearer token used for all requests.
func WithGitHubToken(token string) GitHubOption {
	return func(g *GitHubClient) { g.token = token }
}

// NewGitHubClient creates a client for the given repository.
func NewGitHubClient(owner, repo string, opts ...GitHubOption) *GitHubClient {
	c := &GitHubClient{
		apiClient: newAPIClient(2),
		owner:     owner,
		repo:      repo,
		baseURL:   "https://api.github.com",
		uploadURL: "https://uploads.github.com",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateRelease creates a release for tag and uploads every artifact as an
// asset. A 422 already_exists response maps to ReasonAlreadyPublished so the
// coordinator can report a re-run distinctly from a genuine failure.
func (c *GitHubClient) CreateRelease(ctx context.Context, tag, title, notes string, artifacts []Artifact) (PublishedRef, error) {
	payload, err := json.Marshal(githubReleaseRequest{
		TagName: tag,
		Name:    title,
		Body:    notes,
	})
	if err != nil {
		return PublishedRef{}, fmt.Errorf("encoding release request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/repos/%s/%s/releases", c.baseURL, c.owner, c.repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return PublishedRef{}, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(ctx, req)
	if err != nil {
		return PublishedRef{}, wrapTransportError(githubPlatform, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return PublishedRef{}, c.releaseError(resp)
	}

	var release githubReleaseResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&release); err != nil {
		return PublishedRef{}, fmt.Errorf("decoding release response: %w", err)
	}

	for _, artifact := range artifacts {
		if err := c.uploadAsset(ctx, release.ID, artifact); err != nil {
			return PublishedRef{}, err
		}
	}

	return PublishedRef{
		Platform: githubPlatform,
		ID:       fmt.Sprintf("%d", release.ID),
		URL:      release.HTMLURL,
	}, nil
}

// uploadAsset streams one artifact to the release's asset endpoint.
func (c *GitHubClient) uploadAsset(ctx context.Context, releaseID int64, artifact Artifact) error {
	f, err := os.Open(artifact.Path)
	if err != nil {
		return fmt.Errorf("opening artifact %s: %w", artifact.Path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat artifact %s: %w", artifact.Path, err)
	}

	reqURL := fmt.Sprintf("%s/repos/%s/%s/releases/%d/assets?name=%s",
		c.uploadURL, c.owner, c.repo, releaseID, url.QueryEscape(artifact.Name))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, f)
	if err != nil {
		return fmt.Errorf("creating upload request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/octet-stream")
	req.ContentLength = info.Size()

	resp, err := c.do(ctx, req)
	if err != nil {
		return wrapTransportError(githubPlatform, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return &Error{
			Platform:   githubPlatform,
			Reason:     classifyStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("uploading asset %s: %s", artifact.Name, readBody(resp.Body)),
		}
	}
	return nil
}

// releaseError interprets a non-201 create-release response. GitHub answers
// 422 with an "already_exists" error code when a release for the tag exists.
func (c *GitHubClient) releaseError(resp *http.Response) error {
	body := readBody(resp.Body)

	if resp.StatusCode == http.StatusUnprocessableEntity {
		var ghErr githubErrorResponse
		if err := json.Unmarshal([]byte(body), &ghErr); err == nil {
			for _, e := range ghErr.Errors {
				if e.Code == "already_exists" {
					return &Error{
						Platform:   githubPlatform,
						Reason:     ReasonAlreadyPublished,
						StatusCode: resp.StatusCode,
						Message:    "a release for this tag already exists",
					}
				}
			}
		}
	}

	return &Error{
		Platform:   githubPlatform,
		Reason:     classifyStatus(resp.StatusCode),
		StatusCode: resp.StatusCode,
		Message:    body,
	}
}

func (c *GitHubClient) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
