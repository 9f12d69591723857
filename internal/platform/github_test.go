// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func writeArtifact(t *testing.T, name, content string) Artifact {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing artifact: %v", err)
	}
	return Artifact{Name: name, Path: path}
}

func TestGitHubCreateRelease_WithAssets(t *testing.T) {
	t.Parallel()

	var uploads []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/repos/acme/widgets/releases":
			var req githubReleaseRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decoding request: %v", err)
			}
			if req.TagName != "v1.5.0" {
				t.Errorf("tag_name = %q, want v1.5.0", req.TagName)
			}
			if auth := r.Header.Get("Authorization"); auth != "Bearer tok123" {
				t.Errorf("Authorization = %q", auth)
			}
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"id": 42, "html_url": "https://github.com/acme/widgets/releases/v1.5.0"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/repos/acme/widgets/releases/42/assets":
			body, _ := io.ReadAll(r.Body)
			uploads = append(uploads, r.URL.Query().Get("name")+":"+string(body))
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{}`)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewGitHubClient("acme", "widgets",
		WithGitHubBaseURL(srv.URL), WithGitHubToken("tok123"))

	ref, err := client.CreateRelease(context.Background(), "v1.5.0", "v1.5.0", "notes",
		[]Artifact{writeArtifact(t, "mod-1.5.0.jar", "jarbytes")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ref.ID != "42" {
		t.Errorf("ref.ID = %q, want 42", ref.ID)
	}
	if len(uploads) != 1 || uploads[0] != "mod-1.5.0.jar:jarbytes" {
		t.Errorf("uploads = %v", uploads)
	}
}

func TestGitHubCreateRelease_AlreadyExists(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"message": "Validation Failed", "errors": [{"code": "already_exists"}]}`)
	}))
	defer srv.Close()

	client := NewGitHubClient("acme", "widgets", WithGitHubBaseURL(srv.URL))
	_, err := client.CreateRelease(context.Background(), "v1.5.0", "v1.5.0", "", nil)

	var pErr *Error
	if !errors.As(err, &pErr) {
		t.Fatalf("expected platform Error, got %v", err)
	}
	if pErr.Reason != ReasonAlreadyPublished {
		t.Errorf("reason = %s, want %s", pErr.Reason, ReasonAlreadyPublished)
	}
}

func TestGitHubCreateRelease_AuthFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message": "Bad credentials"}`)
	}))
	defer srv.Close()

	client := NewGitHubClient("acme", "widgets", WithGitHubBaseURL(srv.URL))
	_, err := client.CreateRelease(context.Background(), "v1.0.0", "v1.0.0", "", nil)

	var pErr *Error
	if !errors.As(err, &pErr) {
		t.Fatalf("expected platform Error, got %v", err)
	}
	if pErr.Reason != ReasonAuth {
		t.Errorf("reason = %s, want %s", pErr.Reason, ReasonAuth)
	}
}

func TestGitHubCreateRelease_Timeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	client := NewGitHubClient("acme", "widgets", WithGitHubBaseURL(srv.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 1)
	defer cancel()

	_, err := client.CreateRelease(ctx, "v1.0.0", "v1.0.0", "", nil)

	var pErr *Error
	if !errors.As(err, &pErr) {
		t.Fatalf("expected platform Error, got %v", err)
	}
	if pErr.Reason != ReasonTimeout {
		t.Errorf("reason = %s, want %s", pErr.Reason, ReasonTimeout)
	}
}

func TestGitHubUploadAsset_EscapesName(t *testing.T) {
	t.Parallel()

	var gotName string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/repos/acme/widgets/releases":
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"id": 42, "html_url": "https://github.com/acme/widgets/releases/v1.5.0"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/repos/acme/widgets/releases/42/assets":
			gotName = r.URL.Query().Get("name")
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{}`)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewGitHubClient("acme", "widgets", WithGitHubBaseURL(srv.URL))

	const name = "mod 1.5.0 beta&rc.jar"
	_, err := client.CreateRelease(context.Background(), "v1.5.0", "v1.5.0", "",
		[]Artifact{writeArtifact(t, name, "jarbytes")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotName != name {
		t.Errorf("uploaded asset name = %q, want %q", gotName, name)
	}
}
