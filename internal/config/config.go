// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/modship/modship/internal/issue"
	"github.com/modship/modship/pkg/cueutil"
)

const (
	// AppName is the application name.
	AppName = "modship"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the modship configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
func ConfigDir() (string, error) {
	// Allow tests to override the config directory
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// loadWithOptions performs option-driven config loading without mutating
// package-level cache state. Callers that want caching can wrap this function.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	// Credentials commonly live in a repo-local .env; absence is fine.
	if opts.EnvFilePath != "" {
		_ = godotenv.Load(opts.EnvFilePath)
	} else {
		_ = godotenv.Load()
	}

	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("unknown_bump", defaults.UnknownBump)
	v.SetDefault("target_timeout", defaults.TargetTimeout)
	v.SetDefault("build.command", defaults.Build.Command)
	v.SetDefault("build.artifact_glob", defaults.Build.ArtifactGlob)
	v.SetDefault("targets.github.enabled", defaults.Targets.GitHub.Enabled)
	v.SetDefault("targets.github.required", defaults.Targets.GitHub.Required)
	v.SetDefault("targets.github.token_env", defaults.Targets.GitHub.TokenEnv)
	v.SetDefault("targets.modrinth.enabled", defaults.Targets.Modrinth.Enabled)
	v.SetDefault("targets.modrinth.token_env", defaults.Targets.Modrinth.TokenEnv)
	v.SetDefault("targets.modrinth.loaders", defaults.Targets.Modrinth.Loaders)
	v.SetDefault("targets.curseforge.enabled", defaults.Targets.CurseForge.Enabled)
	v.SetDefault("targets.curseforge.token_env", defaults.Targets.CurseForge.TokenEnv)
	v.SetDefault("targets.modpack_pr.enabled", defaults.Targets.ModpackPR.Enabled)
	v.SetDefault("targets.modpack_pr.branch", defaults.Targets.ModpackPR.Branch)
	v.SetDefault("targets.modpack_pr.base", defaults.Targets.ModpackPR.Base)
	v.SetDefault("targets.modpack_pr.token_env", defaults.Targets.ModpackPR.TokenEnv)
	v.SetDefault("modpack.poll_interval", defaults.Modpack.PollInterval)
	v.SetDefault("modpack.max_polls", defaults.Modpack.MaxPolls)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)

	v.SetEnvPrefix(strings.ToUpper(AppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath := ""

	// If a custom config file path is set via --config flag, use it exclusively.
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.New("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'modship init' to generate a starter configuration")
		}
		if err := loadCUEIntoViper(v, opts.ConfigFilePath); err != nil {
			return nil, "", issue.Wrap(err, "load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema")
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
		if err != nil {
			return nil, "", err
		}

		cuePath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
		if fileExists(cuePath) {
			if err := loadCUEIntoViper(v, cuePath); err != nil {
				return nil, "", issue.Wrap(err, "load configuration").
					WithResource(cuePath).
					WithSuggestion("Check that the file contains valid CUE syntax").
					WithSuggestion("Verify the configuration values match the expected schema")
			}
			resolvedPath = cuePath
		} else {
			// Also check current directory
			localCuePath := ConfigFileName + "." + ConfigFileExt
			if fileExists(localCuePath) {
				if err := loadCUEIntoViper(v, localCuePath); err != nil {
					return nil, "", issue.Wrap(err, "load configuration").
						WithResource(localCuePath).
						WithSuggestion("Check that the file contains valid CUE syntax").
						WithSuggestion("Verify the configuration values match the expected schema")
				}
				resolvedPath = localCuePath
			}
			// If no config file found, use defaults (no error)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	// Validate settings CUE cannot check: bump names against the resolver's
	// vocabulary and duration syntax.
	if _, err := cfg.RuleTable(); err != nil {
		return nil, "", issue.Wrap(err, "validate configuration").
			WithSuggestion("Rule bumps must be one of: none, patch, minor, major")
	}
	if _, err := cfg.TargetTimeoutDuration(); err != nil {
		return nil, "", issue.Wrap(err, "validate configuration").
			WithSuggestion("Durations use Go syntax, e.g. \"90s\" or \"5m\"")
	}
	if _, err := cfg.Modpack.PollIntervalDuration(); err != nil {
		return nil, "", issue.Wrap(err, "validate configuration").
			WithSuggestion("Durations use Go syntax, e.g. \"90s\" or \"5m\"")
	}

	return &cfg, resolvedPath, nil
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
//
// The config decodes to map[string]any rather than a struct so it can merge
// into Viper's config map on top of defaults, and validates with
// Concrete(false) because every field is optional.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return cueutil.FormatError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return cueutil.FormatError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return cueutil.FormatError(err, path)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig creates a default config file if it doesn't exist
func CreateDefaultConfig() error {
	cfgDir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	cfgPath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)

	if _, err := os.Stat(cfgPath); err == nil {
		return nil // File exists
	}

	defaults := DefaultConfig()
	cueContent := GenerateCUE(defaults)

	if err := os.WriteFile(cfgPath, []byte(cueContent), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Save writes the current configuration to file
func Save(cfg *Config) error {
	cfgDir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	cfgPath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)

	cueContent := GenerateCUE(cfg)

	if err := os.WriteFile(cfgPath, []byte(cueContent), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// modship configuration file\n")
	sb.WriteString("// See https://github.com/modship/modship for documentation.\n\n")

	sb.WriteString(fmt.Sprintf("unknown_bump: %q\n", cfg.UnknownBump))
	sb.WriteString(fmt.Sprintf("target_timeout: %q\n", cfg.TargetTimeout))

	if len(cfg.Rules) > 0 {
		sb.WriteString("\nrules: [\n")
		for _, rule := range cfg.Rules {
			sb.WriteString(fmt.Sprintf("\t{prefix: %q, bump: %q},\n", rule.Prefix, rule.Bump))
		}
		sb.WriteString("]\n")
	}

	sb.WriteString("\nbuild: {\n")
	sb.WriteString(fmt.Sprintf("\tcommand: %q\n", cfg.Build.Command))
	sb.WriteString(fmt.Sprintf("\tartifact_glob: %q\n", cfg.Build.ArtifactGlob))
	sb.WriteString("}\n")

	sb.WriteString("\ntargets: {\n")

	sb.WriteString("\tgithub: {\n")
	sb.WriteString(fmt.Sprintf("\t\tenabled: %v\n", cfg.Targets.GitHub.Enabled))
	sb.WriteString(fmt.Sprintf("\t\trequired: %v\n", cfg.Targets.GitHub.Required))
	if cfg.Targets.GitHub.Owner != "" {
		sb.WriteString(fmt.Sprintf("\t\towner: %q\n", cfg.Targets.GitHub.Owner))
	}
	if cfg.Targets.GitHub.Repo != "" {
		sb.WriteString(fmt.Sprintf("\t\trepo: %q\n", cfg.Targets.GitHub.Repo))
	}
	sb.WriteString(fmt.Sprintf("\t\ttoken_env: %q\n", cfg.Targets.GitHub.TokenEnv))
	sb.WriteString("\t}\n")

	sb.WriteString("\tmodrinth: {\n")
	sb.WriteString(fmt.Sprintf("\t\tenabled: %v\n", cfg.Targets.Modrinth.Enabled))
	sb.WriteString(fmt.Sprintf("\t\trequired: %v\n", cfg.Targets.Modrinth.Required))
	if cfg.Targets.Modrinth.ProjectID != "" {
		sb.WriteString(fmt.Sprintf("\t\tproject_id: %q\n", cfg.Targets.Modrinth.ProjectID))
	}
	sb.WriteString(fmt.Sprintf("\t\ttoken_env: %q\n", cfg.Targets.Modrinth.TokenEnv))
	if len(cfg.Targets.Modrinth.Loaders) > 0 {
		sb.WriteString(fmt.Sprintf("\t\tloaders: [%s]\n", quoteList(cfg.Targets.Modrinth.Loaders)))
	}
	sb.WriteString("\t}\n")

	sb.WriteString("\tcurseforge: {\n")
	sb.WriteString(fmt.Sprintf("\t\tenabled: %v\n", cfg.Targets.CurseForge.Enabled))
	sb.WriteString(fmt.Sprintf("\t\trequired: %v\n", cfg.Targets.CurseForge.Required))
	if cfg.Targets.CurseForge.ProjectID != "" {
		sb.WriteString(fmt.Sprintf("\t\tproject_id: %q\n", cfg.Targets.CurseForge.ProjectID))
	}
	sb.WriteString(fmt.Sprintf("\t\ttoken_env: %q\n", cfg.Targets.CurseForge.TokenEnv))
	sb.WriteString("\t}\n")

	sb.WriteString("\tmodpack_pr: {\n")
	sb.WriteString(fmt.Sprintf("\t\tenabled: %v\n", cfg.Targets.ModpackPR.Enabled))
	if cfg.Targets.ModpackPR.Owner != "" {
		sb.WriteString(fmt.Sprintf("\t\towner: %q\n", cfg.Targets.ModpackPR.Owner))
	}
	if cfg.Targets.ModpackPR.Repo != "" {
		sb.WriteString(fmt.Sprintf("\t\trepo: %q\n", cfg.Targets.ModpackPR.Repo))
	}
	sb.WriteString(fmt.Sprintf("\t\tbranch: %q\n", cfg.Targets.ModpackPR.Branch))
	sb.WriteString(fmt.Sprintf("\t\tbase: %q\n", cfg.Targets.ModpackPR.Base))
	sb.WriteString(fmt.Sprintf("\t\ttoken_env: %q\n", cfg.Targets.ModpackPR.TokenEnv))
	sb.WriteString("\t}\n")

	sb.WriteString("}\n")

	sb.WriteString("\nmodpack: {\n")
	if cfg.Modpack.PackDir != "" {
		sb.WriteString(fmt.Sprintf("\tpack_dir: %q\n", cfg.Modpack.PackDir))
	}
	sb.WriteString(fmt.Sprintf("\tpoll_interval: %q\n", cfg.Modpack.PollInterval))
	sb.WriteString(fmt.Sprintf("\tmax_polls: %d\n", cfg.Modpack.MaxPolls))
	sb.WriteString("}\n")

	sb.WriteString("\nui: {\n")
	sb.WriteString(fmt.Sprintf("\tverbose: %v\n", cfg.UI.Verbose))
	sb.WriteString("}\n")

	return sb.String()
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = fmt.Sprintf("%q", item)
	}
	return strings.Join(quoted, ", ")
}
