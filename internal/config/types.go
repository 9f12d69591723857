// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/modship/modship/internal/semver"
)

var (
	// ErrInvalidBump is returned when a bump name in the rule table is not recognized.
	ErrInvalidBump = errors.New("invalid bump")
	// ErrInvalidDuration is returned when a duration setting cannot be parsed.
	ErrInvalidDuration = errors.New("invalid duration")
)

// RuleEntry maps one commit subject prefix to a bump severity.
type RuleEntry struct {
	Prefix string `mapstructure:"prefix"`
	Bump   string `mapstructure:"bump"`
}

// BuildConfig describes how release artifacts are produced.
type BuildConfig struct {
	// Command is run through the embedded shell interpreter with
	// MOD_VERSION set to the version being released.
	Command string `mapstructure:"command"`
	// ArtifactGlob selects the files the build produced, relative to the
	// repository root.
	ArtifactGlob string `mapstructure:"artifact_glob"`
}

// GitHubTarget configures the GitHub release target.
type GitHubTarget struct {
	Enabled  bool   `mapstructure:"enabled"`
	Required bool   `mapstructure:"required"`
	Owner    string `mapstructure:"owner"`
	Repo     string `mapstructure:"repo"`
	TokenEnv string `mapstructure:"token_env"`
}

// Token resolves the target's credential from its environment variable.
func (t GitHubTarget) Token() string { return os.Getenv(t.TokenEnv) }

// Missing lists the settings the target still needs before it can publish.
func (t GitHubTarget) Missing() []string {
	var missing []string
	if t.Owner == "" {
		missing = append(missing, "targets.github.owner")
	}
	if t.Repo == "" {
		missing = append(missing, "targets.github.repo")
	}
	if t.Token() == "" {
		missing = append(missing, "$"+t.TokenEnv)
	}
	return missing
}

// ModrinthTarget configures the Modrinth version target.
type ModrinthTarget struct {
	Enabled      bool     `mapstructure:"enabled"`
	Required     bool     `mapstructure:"required"`
	ProjectID    string   `mapstructure:"project_id"`
	TokenEnv     string   `mapstructure:"token_env"`
	GameVersions []string `mapstructure:"game_versions"`
	Loaders      []string `mapstructure:"loaders"`
}

func (t ModrinthTarget) Token() string { return os.Getenv(t.TokenEnv) }

func (t ModrinthTarget) Missing() []string {
	var missing []string
	if t.ProjectID == "" {
		missing = append(missing, "targets.modrinth.project_id")
	}
	if t.Token() == "" {
		missing = append(missing, "$"+t.TokenEnv)
	}
	return missing
}

// CurseForgeTarget configures the CurseForge file upload target.
type CurseForgeTarget struct {
	Enabled      bool   `mapstructure:"enabled"`
	Required     bool   `mapstructure:"required"`
	ProjectID    string `mapstructure:"project_id"`
	TokenEnv     string `mapstructure:"token_env"`
	GameVersions []int  `mapstructure:"game_versions"`
}

func (t CurseForgeTarget) Token() string { return os.Getenv(t.TokenEnv) }

func (t CurseForgeTarget) Missing() []string {
	var missing []string
	if t.ProjectID == "" {
		missing = append(missing, "targets.curseforge.project_id")
	}
	if t.Token() == "" {
		missing = append(missing, "$"+t.TokenEnv)
	}
	return missing
}

// ModpackPRTarget configures the best-effort modpack pull request target.
type ModpackPRTarget struct {
	Enabled  bool   `mapstructure:"enabled"`
	Owner    string `mapstructure:"owner"`
	Repo     string `mapstructure:"repo"`
	Branch   string `mapstructure:"branch"`
	Base     string `mapstructure:"base"`
	TokenEnv string `mapstructure:"token_env"`
}

func (t ModpackPRTarget) Token() string { return os.Getenv(t.TokenEnv) }

func (t ModpackPRTarget) Missing() []string {
	var missing []string
	if t.Owner == "" {
		missing = append(missing, "targets.modpack_pr.owner")
	}
	if t.Repo == "" {
		missing = append(missing, "targets.modpack_pr.repo")
	}
	if t.Token() == "" {
		missing = append(missing, "$"+t.TokenEnv)
	}
	return missing
}

// TargetsConfig groups all publish target settings.
type TargetsConfig struct {
	GitHub     GitHubTarget     `mapstructure:"github"`
	Modrinth   ModrinthTarget   `mapstructure:"modrinth"`
	CurseForge CurseForgeTarget `mapstructure:"curseforge"`
	ModpackPR  ModpackPRTarget  `mapstructure:"modpack_pr"`
}

// ModpackConfig holds the packwiz sync settings.
type ModpackConfig struct {
	PackDir      string `mapstructure:"pack_dir"`
	PollInterval string `mapstructure:"poll_interval"`
	MaxPolls     uint64 `mapstructure:"max_polls"`
}

// PollIntervalDuration parses the configured poll interval.
func (m ModpackConfig) PollIntervalDuration() (time.Duration, error) {
	return parseDuration("modpack.poll_interval", m.PollInterval)
}

// UIConfig holds presentation settings.
type UIConfig struct {
	Verbose bool `mapstructure:"verbose"`
}

// Config is the application configuration.
type Config struct {
	// Rules is the ordered prefix table driving version resolution. An
	// empty table falls back to the built-in rules.
	Rules []RuleEntry `mapstructure:"rules"`
	// UnknownBump is the severity applied to commits matching no rule.
	UnknownBump string `mapstructure:"unknown_bump"`
	// TargetTimeout bounds each publish target attempt.
	TargetTimeout string `mapstructure:"target_timeout"`

	Build   BuildConfig   `mapstructure:"build"`
	Targets TargetsConfig `mapstructure:"targets"`
	Modpack ModpackConfig `mapstructure:"modpack"`
	UI      UIConfig      `mapstructure:"ui"`
}

// DefaultConfig returns the configuration used when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		UnknownBump:   "patch",
		TargetTimeout: "5m",
		Build: BuildConfig{
			Command:      "./gradlew build",
			ArtifactGlob: "build/libs/*.jar",
		},
		Targets: TargetsConfig{
			GitHub: GitHubTarget{
				Enabled:  true,
				Required: true,
				TokenEnv: "GITHUB_TOKEN",
			},
			Modrinth: ModrinthTarget{
				Enabled:  true,
				TokenEnv: "MODRINTH_TOKEN",
				Loaders:  []string{"forge"},
			},
			CurseForge: CurseForgeTarget{
				Enabled:  true,
				TokenEnv: "CURSEFORGE_TOKEN",
			},
			ModpackPR: ModpackPRTarget{
				Enabled:  false,
				Branch:   "modship/update",
				Base:     "main",
				TokenEnv: "GITHUB_TOKEN",
			},
		},
		Modpack: ModpackConfig{
			PollInterval: "1m",
			MaxPolls:     20,
		},
	}
}

// RuleTable converts the configured rules into the resolver's rule table.
// An empty rule list keeps the built-in table; unknown_bump always applies.
func (c *Config) RuleTable() (semver.RuleTable, error) {
	table := semver.DefaultRules()

	if len(c.Rules) > 0 {
		rules := make([]semver.Rule, 0, len(c.Rules))
		for i, entry := range c.Rules {
			bump, err := semver.ParseBump(entry.Bump)
			if err != nil {
				return semver.RuleTable{}, fmt.Errorf("rules[%d]: %w: %q", i, ErrInvalidBump, entry.Bump)
			}
			rules = append(rules, semver.Rule{Prefix: entry.Prefix, Bump: bump})
		}
		table.Rules = rules
	}

	if c.UnknownBump != "" {
		bump, err := semver.ParseBump(c.UnknownBump)
		if err != nil {
			return semver.RuleTable{}, fmt.Errorf("unknown_bump: %w: %q", ErrInvalidBump, c.UnknownBump)
		}
		table.Unknown = bump
	}

	return table, nil
}

// TargetTimeoutDuration parses the configured per-target timeout.
func (c *Config) TargetTimeoutDuration() (time.Duration, error) {
	return parseDuration("target_timeout", c.TargetTimeout)
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w: %q", field, ErrInvalidDuration, value)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: %w: must be positive", field, ErrInvalidDuration)
	}
	return d, nil
}
