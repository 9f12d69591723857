// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestModrinthCreateVersion_Multipart(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/version" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "mr-token" {
			t.Errorf("Authorization = %q", auth)
		}

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parsing multipart: %v", err)
		}

		var meta modrinthCreateVersion
		if err := json.Unmarshal([]byte(r.FormValue("data")), &meta); err != nil {
			t.Fatalf("decoding data part: %v", err)
		}
		if meta.VersionNumber != "1.5.0" || meta.ProjectID != "abc123" {
			t.Errorf("meta = %+v", meta)
		}
		if len(meta.FileParts) != 1 {
			t.Errorf("file_parts = %v", meta.FileParts)
		}
		if _, ok := r.MultipartForm.File[meta.FileParts[0]]; !ok {
			t.Errorf("missing file part %q", meta.FileParts[0])
		}

		fmt.Fprint(w, `{"id": "ver1", "version_number": "1.5.0"}`)
	}))
	defer srv.Close()

	client := NewModrinthClient("abc123",
		WithModrinthBaseURL(srv.URL), WithModrinthToken("mr-token"))

	ref, err := client.CreateVersion(context.Background(),
		ModrinthVersionSpec{
			VersionNumber: "1.5.0",
			Name:          "v1.5.0",
			GameVersions:  []string{"1.20.1"},
			Loaders:       []string{"forge"},
		},
		[]Artifact{writeArtifact(t, "mod-1.5.0.jar", "jarbytes")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.ID != "ver1" {
		t.Errorf("ref.ID = %q", ref.ID)
	}
}

func TestModrinthCreateVersion_DuplicateIsAlreadyPublished(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": "invalid_input", "description": "version number already exists"}`)
	}))
	defer srv.Close()

	client := NewModrinthClient("abc123", WithModrinthBaseURL(srv.URL))
	_, err := client.CreateVersion(context.Background(),
		ModrinthVersionSpec{VersionNumber: "1.5.0"},
		[]Artifact{writeArtifact(t, "mod.jar", "x")})

	var pErr *Error
	if !errors.As(err, &pErr) {
		t.Fatalf("expected platform Error, got %v", err)
	}
	if pErr.Reason != ReasonAlreadyPublished {
		t.Errorf("reason = %s, want %s", pErr.Reason, ReasonAlreadyPublished)
	}
}

func TestModrinthCreateVersion_NoArtifacts(t *testing.T) {
	t.Parallel()

	client := NewModrinthClient("abc123")
	_, err := client.CreateVersion(context.Background(), ModrinthVersionSpec{VersionNumber: "1.0.0"}, nil)

	var pErr *Error
	if !errors.As(err, &pErr) || pErr.Reason != ReasonRejected {
		t.Errorf("expected rejected Error, got %v", err)
	}
}

func TestModrinthHasVersion(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/project/abc123/version" {
			t.Errorf("path = %s", r.URL.Path)
		}
		fmt.Fprint(w, `[{"id": "v1", "version_number": "1.4.0"}, {"id": "v2", "version_number": "1.5.0"}]`)
	}))
	defer srv.Close()

	client := NewModrinthClient("abc123", WithModrinthBaseURL(srv.URL))

	found, err := client.HasVersion(context.Background(), "1.5.0", "forge", "1.20.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Error("expected version 1.5.0 to be found")
	}

	found, err = client.HasVersion(context.Background(), "9.9.9", "forge", "1.20.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Error("did not expect version 9.9.9")
	}
}

func TestModrinthCreateVersion_ServerErrorIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewModrinthClient("abc123", WithModrinthBaseURL(srv.URL))
	_, err := client.CreateVersion(context.Background(),
		ModrinthVersionSpec{VersionNumber: "1.0.0"},
		[]Artifact{writeArtifact(t, "mod.jar", "x")})

	var pErr *Error
	if !errors.As(err, &pErr) || pErr.Reason != ReasonTransient {
		t.Errorf("expected transient Error, got %v", err)
	}
}
