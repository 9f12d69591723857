// SPDX-License-Identifier: MPL-2.0

// Package modmeta reads the publishing metadata a mod repository declares in
// its mods.toml. The [mc-publish] table carries the platform project ids and
// loader/game-version facts the publish targets need.
package modmeta

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/modship/modship/internal/issue"
)

// allowedLoaders is the closed set of loaders the pipeline supports.
var allowedLoaders = map[string]bool{"forge": true}

// requiredKeys are the [mc-publish] keys that must be present and non-empty.
var requiredKeys = []string{
	"modrinth",
	"curseforge",
	"loader",
	"mc_version",
	"modrinth_slug",
	"curseforge_slug",
}

// Metadata is the validated content of the [mc-publish] table.
type Metadata struct {
	ModrinthID     string
	CurseForgeID   string
	Loader         string
	MCVersion      string
	ModrinthSlug   string
	CurseForgeSlug string
}

// Find locates the repository's single mods.toml under root, ignoring build
// output. Zero or multiple candidates are configuration errors.
func Find(root string) (string, error) {
	var found []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "build" || d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == "mods.toml" {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("searching for mods.toml: %w", err)
	}

	switch len(found) {
	case 0:
		return "", issue.New("locate mods.toml").
			WithResource(root).
			WithSuggestion("Add a mods.toml with a [mc-publish] table containing the required keys")
	case 1:
		return found[0], nil
	default:
		return "", issue.New("locate mods.toml").
			WithResource(strings.Join(found, ", ")).
			WithSuggestion("Keep exactly one mods.toml outside build output")
	}
}

// Load reads and validates the [mc-publish] table of the given mods.toml.
func Load(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, issue.Wrap(err, "read mods.toml").WithResource(path)
	}

	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, issue.Wrap(err, "parse mods.toml").
			WithResource(path).
			WithSuggestion("Check the file for TOML syntax errors")
	}

	table, ok := doc["mc-publish"].(map[string]any)
	if !ok {
		return nil, issue.New("read [mc-publish] table").
			WithResource(path).
			WithSuggestion("Add a [mc-publish] table with: " + strings.Join(requiredKeys, ", "))
	}

	values := make(map[string]string, len(requiredKeys))
	var missing []string
	for _, key := range requiredKeys {
		v := normalize(table[key])
		if v == "" {
			missing = append(missing, key)
			continue
		}
		values[key] = v
	}
	if len(missing) > 0 {
		return nil, issue.Wrap(
			fmt.Errorf("missing required [mc-publish] keys: %s", strings.Join(missing, ", ")),
			"validate mods.toml").
			WithResource(path).
			WithSuggestion("Set [mc-publish]." + strings.Join(missing, ", [mc-publish]."))
	}

	if !allowedLoaders[values["loader"]] {
		return nil, issue.Wrap(
			fmt.Errorf("unsupported loader %q (allowed: %s)", values["loader"], loaderList()),
			"validate mods.toml").
			WithResource(path).
			WithSuggestion("Set [mc-publish].loader to one of: " + loaderList())
	}

	return &Metadata{
		ModrinthID:     values["modrinth"],
		CurseForgeID:   values["curseforge"],
		Loader:         values["loader"],
		MCVersion:      values["mc_version"],
		ModrinthSlug:   values["modrinth_slug"],
		CurseForgeSlug: values["curseforge_slug"],
	}, nil
}

// Discover combines Find and Load for the common case.
func Discover(root string) (*Metadata, string, error) {
	path, err := Find(root)
	if err != nil {
		return nil, "", err
	}
	meta, err := Load(path)
	if err != nil {
		return nil, "", err
	}
	return meta, path, nil
}

// normalize converts a TOML value to its trimmed string form. Numeric
// project ids are accepted and stringified.
func normalize(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func loaderList() string {
	names := make([]string, 0, len(allowedLoaders))
	for name := range allowedLoaders {
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}
