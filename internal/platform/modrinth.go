// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
)

const modrinthPlatform = "modrinth"

type (
	// ModrinthClient uploads mod versions through the Modrinth v2 API.
	ModrinthClient struct {
		apiClient
		projectID string
		baseURL   string
		token     string
	}

	// ModrinthOption configures a ModrinthClient during construction.
	ModrinthOption func(*ModrinthClient)

	// ModrinthVersionSpec carries the metadata Modrinth requires alongside
	// the uploaded files.
	ModrinthVersionSpec struct {
		VersionNumber string
		Name          string
		Changelog     string
		GameVersions  []string
		Loaders       []string
	}

	modrinthCreateVersion struct {
		ProjectID     string   `json:"project_id"`
		VersionNumber string   `json:"version_number"`
		Name          string   `json:"name"`
		Changelog     string   `json:"changelog,omitempty"`
		GameVersions  []string `json:"game_versions"`
		Loaders       []string `json:"loaders"`
		VersionType   string   `json:"version_type"`
		Featured      bool     `json:"featured"`
		FileParts     []string `json:"file_parts"`
		Dependencies  []any    `json:"dependencies"`
	}

	modrinthVersionResponse struct {
		ID            string `json:"id"`
		VersionNumber string `json:"version_number"`
	}
)

// WithModrinthHTTPClient sets a custom HTTP client, useful for tests.
func WithModrinthHTTPClient(c *http.Client) ModrinthOption {
	return func(m *ModrinthClient) { m.httpClient = c }
}

// WithModrinthBaseURL overrides the API base URL, primarily for test servers.
func WithModrinthBaseURL(base string) ModrinthOption {
	return func(m *ModrinthClient) { m.baseURL = strings.TrimRight(base, "/") }
}

// WithModrinthToken sets the API token sent in the Authorization header.
func WithModrinthToken(token string) ModrinthOption {
	return func(m *ModrinthClient) { m.token = token }
}

// NewModrinthClient creates a client for the given project.
func NewModrinthClient(projectID string, opts ...ModrinthOption) *ModrinthClient {
	c := &ModrinthClient{
		apiClient: newAPIClient(1),
		projectID: projectID,
		baseURL:   "https://api.modrinth.com",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateVersion uploads a new version with its files. Duplicate version
// numbers are reported as ReasonAlreadyPublished based on the platform's
// rejection, not a pre-flight query.
func (c *ModrinthClient) CreateVersion(ctx context.Context, spec ModrinthVersionSpec, artifacts []Artifact) (PublishedRef, error) {
	if len(artifacts) == 0 {
		return PublishedRef{}, &Error{
			Platform: modrinthPlatform,
			Reason:   ReasonRejected,
			Message:  "no artifacts to upload",
		}
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	parts := make([]string, len(artifacts))
	for i := range artifacts {
		parts[i] = fmt.Sprintf("file-%d", i)
	}

	meta := modrinthCreateVersion{
		ProjectID:     c.projectID,
		VersionNumber: spec.VersionNumber,
		Name:          spec.Name,
		Changelog:     spec.Changelog,
		GameVersions:  spec.GameVersions,
		Loaders:       spec.Loaders,
		VersionType:   "release",
		FileParts:     parts,
		Dependencies:  []any{},
	}

	metaField, err := writer.CreateFormField("data")
	if err != nil {
		return PublishedRef{}, fmt.Errorf("building multipart body: %w", err)
	}
	if err := json.NewEncoder(metaField).Encode(meta); err != nil {
		return PublishedRef{}, fmt.Errorf("encoding version metadata: %w", err)
	}

	for i, a := range artifacts {
		part, err := writer.CreateFormFile(parts[i], a.Name)
		if err != nil {
			return PublishedRef{}, fmt.Errorf("building multipart body: %w", err)
		}
		f, err := os.Open(a.Path)
		if err != nil {
			return PublishedRef{}, fmt.Errorf("opening artifact %s: %w", a.Path, err)
		}
		_, copyErr := io.Copy(part, f)
		f.Close()
		if copyErr != nil {
			return PublishedRef{}, fmt.Errorf("reading artifact %s: %w", a.Path, copyErr)
		}
	}

	if err := writer.Close(); err != nil {
		return PublishedRef{}, fmt.Errorf("finalizing multipart body: %w", err)
	}

	reqURL := c.baseURL + "/v2/version"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, &body)
	if err != nil {
		return PublishedRef{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		return PublishedRef{}, wrapTransportError(modrinthPlatform, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return PublishedRef{}, c.versionError(resp)
	}

	var created modrinthVersionResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&created); err != nil {
		return PublishedRef{}, fmt.Errorf("decoding version response: %w", err)
	}

	return PublishedRef{
		Platform: modrinthPlatform,
		ID:       created.ID,
		URL:      fmt.Sprintf("https://modrinth.com/mod/%s/version/%s", c.projectID, created.VersionNumber),
	}, nil
}

// HasVersion reports whether a version with the given number is already
// visible for the project, filtered by loader and game version. The modpack
// sync poller uses this to wait for platform-side indexing.
func (c *ModrinthClient) HasVersion(ctx context.Context, versionNumber, loader, gameVersion string) (bool, error) {
	reqURL := fmt.Sprintf(`%s/v2/project/%s/version?loaders=["%s"]&game_versions=["%s"]`,
		c.baseURL, c.projectID, loader, gameVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return false, fmt.Errorf("creating request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		return false, wrapTransportError(modrinthPlatform, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, &Error{
			Platform:   modrinthPlatform,
			Reason:     classifyStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Message:    readBody(resp.Body),
		}
	}

	var versions []modrinthVersionResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&versions); err != nil {
		return false, fmt.Errorf("decoding versions response: %w", err)
	}

	for _, v := range versions {
		if v.VersionNumber == versionNumber {
			return true, nil
		}
	}
	return false, nil
}

// versionError interprets a failed create-version response. Modrinth rejects
// duplicate version numbers with a 400 whose body mentions the collision.
func (c *ModrinthClient) versionError(resp *http.Response) error {
	body := readBody(resp.Body)

	reason := classifyStatus(resp.StatusCode)
	if resp.StatusCode == http.StatusBadRequest &&
		(strings.Contains(body, "already exists") || strings.Contains(body, "duplicate")) {
		reason = ReasonAlreadyPublished
	}

	return &Error{
		Platform:   modrinthPlatform,
		Reason:     reason,
		StatusCode: resp.StatusCode,
		Message:    body,
	}
}
