// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modship/modship/internal/semver"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	cfg, path, err := LoadWithPath(context.Background(), LoadOptions{
		ConfigDirPath: t.TempDir(),
		EnvFilePath:   filepath.Join(t.TempDir(), "absent.env"),
	})
	if err != nil {
		t.Fatalf("LoadWithPath() error = %v", err)
	}
	if path != "" {
		t.Errorf("resolved path = %q, want empty for defaults", path)
	}
	if cfg.UnknownBump != "patch" {
		t.Errorf("UnknownBump = %q, want patch", cfg.UnknownBump)
	}
	if !cfg.Targets.GitHub.Required {
		t.Error("github target should default to required")
	}
	if cfg.Targets.ModpackPR.Enabled {
		t.Error("modpack_pr target should default to disabled")
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
unknown_bump: "none"
target_timeout: "90s"

targets: {
	github: {
		owner: "example"
		repo:  "example-mod"
	}
	curseforge: {
		enabled: false
	}
}
`)

	cfg, path, err := LoadWithPath(context.Background(), LoadOptions{
		ConfigDirPath: dir,
		EnvFilePath:   filepath.Join(t.TempDir(), "absent.env"),
	})
	if err != nil {
		t.Fatalf("LoadWithPath() error = %v", err)
	}
	if path == "" {
		t.Error("resolved path empty, want config file path")
	}
	if cfg.UnknownBump != "none" {
		t.Errorf("UnknownBump = %q, want none", cfg.UnknownBump)
	}
	if cfg.Targets.GitHub.Owner != "example" || cfg.Targets.GitHub.Repo != "example-mod" {
		t.Errorf("github target = %+v", cfg.Targets.GitHub)
	}
	if cfg.Targets.CurseForge.Enabled {
		t.Error("curseforge.enabled = true, want file override false")
	}
	// Defaults survive partial files.
	if cfg.Build.Command != "./gradlew build" {
		t.Errorf("Build.Command = %q, want default", cfg.Build.Command)
	}
	d, err := cfg.TargetTimeoutDuration()
	if err != nil {
		t.Fatalf("TargetTimeoutDuration() error = %v", err)
	}
	if d.Seconds() != 90 {
		t.Errorf("target timeout = %v, want 90s", d)
	}
}

func TestLoadCustomRules(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
rules: [
	{prefix: "breaking:", bump: "major"},
	{prefix: "feature:", bump: "minor"},
	{prefix: "bugfix:", bump: "patch"},
]
unknown_bump: "none"
`)

	cfg, _, err := LoadWithPath(context.Background(), LoadOptions{
		ConfigDirPath: dir,
		EnvFilePath:   filepath.Join(t.TempDir(), "absent.env"),
	})
	if err != nil {
		t.Fatalf("LoadWithPath() error = %v", err)
	}

	table, err := cfg.RuleTable()
	if err != nil {
		t.Fatalf("RuleTable() error = %v", err)
	}
	if got := table.Classify("feature: add thing"); got != semver.BumpMinor {
		t.Errorf("Classify(feature:) = %v, want minor", got)
	}
	if got := table.Classify("feat: not in custom table"); got != semver.BumpNone {
		t.Errorf("Classify(unknown) = %v, want configured none default", got)
	}
}

func TestLoadRejectsSchemaViolations(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `unknown_bump: "gigantic"`)

	_, _, err := LoadWithPath(context.Background(), LoadOptions{
		ConfigDirPath: dir,
		EnvFilePath:   filepath.Join(t.TempDir(), "absent.env"),
	})
	if err == nil {
		t.Fatal("LoadWithPath() accepted an invalid bump name")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `target_timeout: "soon"`)

	_, _, err := LoadWithPath(context.Background(), LoadOptions{
		ConfigDirPath: dir,
		EnvFilePath:   filepath.Join(t.TempDir(), "absent.env"),
	})
	if err == nil {
		t.Fatal("LoadWithPath() accepted an unparseable duration")
	}
}

func TestLoadRejectsInvalidCUE(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `this is { not valid`)

	_, _, err := LoadWithPath(context.Background(), LoadOptions{
		ConfigDirPath: dir,
		EnvFilePath:   filepath.Join(t.TempDir(), "absent.env"),
	})
	if err == nil {
		t.Fatal("LoadWithPath() accepted invalid CUE")
	}
}

func TestLoadExplicitFileMissing(t *testing.T) {
	_, _, err := LoadWithPath(context.Background(), LoadOptions{
		ConfigFilePath: filepath.Join(t.TempDir(), "nope.cue"),
		EnvFilePath:    filepath.Join(t.TempDir(), "absent.env"),
	})
	if err == nil {
		t.Fatal("LoadWithPath() with a missing explicit file succeeded")
	}
}

func TestLoadEnvFileCredentials(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("MODSHIP_TEST_CRED=hunter2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("MODSHIP_TEST_CRED") })

	_, _, err := LoadWithPath(context.Background(), LoadOptions{
		ConfigDirPath: t.TempDir(),
		EnvFilePath:   envPath,
	})
	if err != nil {
		t.Fatalf("LoadWithPath() error = %v", err)
	}
	if os.Getenv("MODSHIP_TEST_CRED") != "hunter2" {
		t.Error(".env values were not loaded into the environment")
	}
}

func TestGenerateCUERoundTrips(t *testing.T) {
	dir := t.TempDir()
	defaults := DefaultConfig()
	defaults.Targets.GitHub.Owner = "example"
	defaults.Targets.GitHub.Repo = "example-mod"
	defaults.Rules = []RuleEntry{{Prefix: "feat:", Bump: "minor"}}

	writeConfig(t, dir, GenerateCUE(defaults))

	cfg, _, err := LoadWithPath(context.Background(), LoadOptions{
		ConfigDirPath: dir,
		EnvFilePath:   filepath.Join(t.TempDir(), "absent.env"),
	})
	if err != nil {
		t.Fatalf("LoadWithPath() on generated config error = %v", err)
	}
	if cfg.Targets.GitHub.Owner != "example" {
		t.Errorf("round-tripped owner = %q", cfg.Targets.GitHub.Owner)
	}
	if len(cfg.Rules) != 1 || cfg.Rules[0].Prefix != "feat:" {
		t.Errorf("round-tripped rules = %+v", cfg.Rules)
	}
}

func TestCreateDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	SetConfigDirOverride(dir)
	t.Cleanup(Reset)

	if err := CreateDefaultConfig(); err != nil {
		t.Fatalf("CreateDefaultConfig() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, ConfigFileName+"."+ConfigFileExt))
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if !strings.Contains(string(data), "unknown_bump") {
		t.Errorf("generated config missing expected keys:\n%s", data)
	}

	// A second call must not clobber an existing file.
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName+"."+ConfigFileExt), []byte("// custom\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CreateDefaultConfig(); err != nil {
		t.Fatalf("CreateDefaultConfig() second call error = %v", err)
	}
	data, _ = os.ReadFile(filepath.Join(dir, ConfigFileName+"."+ConfigFileExt))
	if string(data) != "// custom\n" {
		t.Error("CreateDefaultConfig() overwrote an existing file")
	}
}
