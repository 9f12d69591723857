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

const curseforgePlatform = "curseforge"

type (
	// CurseForgeClient uploads files through the CurseForge upload API.
	// CurseForge accepts one file per request, so multi-artifact releases
	// upload the primary jar first and the rest as additional files.
	CurseForgeClient struct {
		apiClient
		projectID string
		baseURL   string
		token     string
	}

	// CurseForgeOption configures a CurseForgeClient during construction.
	CurseForgeOption func(*CurseForgeClient)

	// CurseForgeFileSpec carries the metadata CurseForge requires with an
	// uploaded file.
	CurseForgeFileSpec struct {
		DisplayName  string
		Changelog    string
		GameVersions []int // CurseForge numeric game version ids
	}

	curseforgeMetadata struct {
		DisplayName   string `json:"displayName"`
		Changelog     string `json:"changelog"`
		ChangelogType string `json:"changelogType"`
		GameVersions  []int  `json:"gameVersions,omitempty"`
		ReleaseType   string `json:"releaseType"`
		ParentFileID  int64  `json:"parentFileID,omitempty"`
	}

	curseforgeUploadResponse struct {
		ID int64 `json:"id"`
	}
)

// WithCurseForgeHTTPClient sets a custom HTTP client, useful for tests.
func WithCurseForgeHTTPClient(c *http.Client) CurseForgeOption {
	return func(cf *CurseForgeClient) { cf.httpClient = c }
}

// WithCurseForgeBaseURL overrides the API base URL, primarily for test servers.
func WithCurseForgeBaseURL(base string) CurseForgeOption {
	return func(cf *CurseForgeClient) { cf.baseURL = strings.TrimRight(base, "/") }
}

// WithCurseForgeToken sets the API token sent in the X-Api-Token header.
func WithCurseForgeToken(token string) CurseForgeOption {
	return func(cf *CurseForgeClient) { cf.token = token }
}

// NewCurseForgeClient creates a client for the given numeric project id.
func NewCurseForgeClient(projectID string, opts ...CurseForgeOption) *CurseForgeClient {
	c := &CurseForgeClient{
		apiClient: newAPIClient(1),
		projectID: projectID,
		baseURL:   "https://minecraft.curseforge.com",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UploadFiles uploads the artifacts for a release. The first artifact is the
// parent file; any further artifacts are attached to it.
func (c *CurseForgeClient) UploadFiles(ctx context.Context, spec CurseForgeFileSpec, artifacts []Artifact) (PublishedRef, error) {
	if len(artifacts) == 0 {
		return PublishedRef{}, &Error{
			Platform: curseforgePlatform,
			Reason:   ReasonRejected,
			Message:  "no artifacts to upload",
		}
	}

	var parentID int64
	for i, artifact := range artifacts {
		meta := curseforgeMetadata{
			DisplayName:   spec.DisplayName,
			Changelog:     spec.Changelog,
			ChangelogType: "markdown",
			ReleaseType:   "release",
		}
		if i == 0 {
			meta.GameVersions = spec.GameVersions
		} else {
			meta.ParentFileID = parentID
		}

		fileID, err := c.uploadOne(ctx, meta, artifact)
		if err != nil {
			return PublishedRef{}, err
		}
		if i == 0 {
			parentID = fileID
		}
	}

	return PublishedRef{
		Platform: curseforgePlatform,
		ID:       fmt.Sprintf("%d", parentID),
		URL:      fmt.Sprintf("https://www.curseforge.com/minecraft/mc-mods/%s/files/%d", c.projectID, parentID),
	}, nil
}

func (c *CurseForgeClient) uploadOne(ctx context.Context, meta curseforgeMetadata, artifact Artifact) (int64, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	metaField, err := writer.CreateFormField("metadata")
	if err != nil {
		return 0, fmt.Errorf("building multipart body: %w", err)
	}
	if err := json.NewEncoder(metaField).Encode(meta); err != nil {
		return 0, fmt.Errorf("encoding metadata: %w", err)
	}

	part, err := writer.CreateFormFile("file", artifact.Name)
	if err != nil {
		return 0, fmt.Errorf("building multipart body: %w", err)
	}
	f, err := os.Open(artifact.Path)
	if err != nil {
		return 0, fmt.Errorf("opening artifact %s: %w", artifact.Path, err)
	}
	_, copyErr := io.Copy(part, f)
	f.Close()
	if copyErr != nil {
		return 0, fmt.Errorf("reading artifact %s: %w", artifact.Path, copyErr)
	}

	if err := writer.Close(); err != nil {
		return 0, fmt.Errorf("finalizing multipart body: %w", err)
	}

	reqURL := fmt.Sprintf("%s/api/projects/%s/upload-file", c.baseURL, c.projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, &body)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.token != "" {
		req.Header.Set("X-Api-Token", c.token)
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		return 0, wrapTransportError(curseforgePlatform, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, c.uploadError(resp, artifact.Name)
	}

	var uploaded curseforgeUploadResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&uploaded); err != nil {
		return 0, fmt.Errorf("decoding upload response: %w", err)
	}
	return uploaded.ID, nil
}

// uploadError interprets a failed upload. A conflict response means a file
// with this display name/version already exists on the project.
func (c *CurseForgeClient) uploadError(resp *http.Response, name string) error {
	body := readBody(resp.Body)

	reason := classifyStatus(resp.StatusCode)
	if resp.StatusCode == http.StatusConflict {
		reason = ReasonAlreadyPublished
	}

	return &Error{
		Platform:   curseforgePlatform,
		Reason:     reason,
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("uploading %s: %s", name, body),
	}
}
