// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/stagehand/lib/settings"
)

// EnvironmentVariable names the variable [Load] reads the config path from.
const EnvironmentVariable = "STAGEHAND_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for artist and developer workstations.
	Development Environment = "development"
	// Staging is for pipeline release testing.
	Staging Environment = "staging"
	// Production is for farm and studio-wide deployments.
	Production Environment = "production"
)

// InheritPolicy controls which variables of the launcher's environment
// reach the child before package directives are applied.
type InheritPolicy string

const (
	// InheritAll passes the launcher's whole environment through.
	InheritAll InheritPolicy = "all"
	// InheritListed passes only Process.InheritVariables.
	InheritListed InheritPolicy = "listed"
	// InheritNone starts the child from an empty environment.
	InheritNone InheritPolicy = "none"
)

// Config is the site configuration for stagehand.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Search configures where settings and package definitions are found.
	Search SearchConfig `yaml:"search"`

	// Introspection configures the variables that describe a launch to
	// the launched process.
	Introspection IntrospectionConfig `yaml:"introspection"`

	// Process configures the composition of the child process.
	Process ProcessConfig `yaml:"process"`

	// Log configures launcher logging.
	Log LogConfig `yaml:"log"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Search        *SearchConfig        `yaml:"search,omitempty"`
	Introspection *IntrospectionConfig `yaml:"introspection,omitempty"`
	Process       *ProcessConfig       `yaml:"process,omitempty"`
	Log           *LogConfig           `yaml:"log,omitempty"`
}

// SearchConfig configures settings discovery.
type SearchConfig struct {
	// Roots are the directories whose ancestors are searched for
	// settings directories, in addition to the directory of the
	// launched executable.
	Roots []string `yaml:"roots"`

	// Directory is the name of the per-level settings directory.
	// Default: etc
	Directory string `yaml:"directory"`

	// Platform overrides the platform tag used to select tagged
	// settings files (for example "lnx64"). Empty selects the
	// running platform.
	Platform string `yaml:"platform"`
}

// IntrospectionConfig configures the child introspection variables.
type IntrospectionConfig struct {
	// Prefix is prepended to every introspection variable name.
	// Default: STAGEHAND_
	Prefix string `yaml:"prefix"`

	// ChunkSize is the largest value written to one variable before
	// the payload is split into chunks.
	// Default: 30000
	ChunkSize int `yaml:"chunk_size"`
}

// ProcessConfig configures the launched process.
type ProcessConfig struct {
	// Inherit selects which launcher variables reach the child.
	// Values: "all", "listed", "none"
	// Default: all (development), listed (production)
	Inherit InheritPolicy `yaml:"inherit"`

	// InheritVariables lists the variables passed through under the
	// "listed" policy.
	InheritVariables []string `yaml:"inherit_variables"`

	// DefaultDelegate is the delegate used when the root package does
	// not name one.
	// Default: default
	DefaultDelegate string `yaml:"default_delegate"`

	// Identities are age identity files used by decrypt actions.
	Identities []string `yaml:"identities"`
}

// LogConfig configures launcher logging.
type LogConfig struct {
	// Level is one of trace, debug, info, warn, error.
	// Default: info
	Level string `yaml:"level"`
}

// Default returns the default configuration. A launcher run without a
// config file uses it unchanged.
func Default() *Config {
	return &Config{
		Environment: Development,
		Search: SearchConfig{
			Directory: "etc",
		},
		Introspection: IntrospectionConfig{
			Prefix:    "STAGEHAND_",
			ChunkSize: 30000,
		},
		Process: ProcessConfig{
			Inherit:         InheritAll,
			DefaultDelegate: "default",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the STAGEHAND_CONFIG environment
// variable. It fails when the variable is not set; callers that accept
// running without a site config check the variable themselves.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your stagehand.yaml config file, or use --config flag", EnvironmentVariable)
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables do not
// override config values. The only expansion performed is ${HOME} and
// similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables(filepath.Dir(path))

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: only pass through the basics.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Process: &ProcessConfig{
					Inherit:          InheritListed,
					InheritVariables: []string{"HOME", "USER", "LOGNAME", "LANG", "TERM", "TMPDIR", "DISPLAY"},
				},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Search != nil {
		if len(overrides.Search.Roots) > 0 {
			c.Search.Roots = overrides.Search.Roots
		}
		if overrides.Search.Directory != "" {
			c.Search.Directory = overrides.Search.Directory
		}
		if overrides.Search.Platform != "" {
			c.Search.Platform = overrides.Search.Platform
		}
	}

	if overrides.Introspection != nil {
		if overrides.Introspection.Prefix != "" {
			c.Introspection.Prefix = overrides.Introspection.Prefix
		}
		if overrides.Introspection.ChunkSize != 0 {
			c.Introspection.ChunkSize = overrides.Introspection.ChunkSize
		}
	}

	if overrides.Process != nil {
		if overrides.Process.Inherit != "" {
			c.Process.Inherit = overrides.Process.Inherit
		}
		if len(overrides.Process.InheritVariables) > 0 {
			c.Process.InheritVariables = overrides.Process.InheritVariables
		}
		if overrides.Process.DefaultDelegate != "" {
			c.Process.DefaultDelegate = overrides.Process.DefaultDelegate
		}
		if len(overrides.Process.Identities) > 0 {
			c.Process.Identities = overrides.Process.Identities
		}
	}

	if overrides.Log != nil && overrides.Log.Level != "" {
		c.Log.Level = overrides.Log.Level
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
// ${STAGEHAND_ROOT} is the directory holding the config file.
func (c *Config) expandVariables(root string) {
	vars := map[string]string{
		"STAGEHAND_ROOT": root,
		"HOME":           os.Getenv("HOME"),
	}

	for index, path := range c.Search.Roots {
		c.Search.Roots[index] = expandVars(path, vars)
	}
	for index, path := range c.Process.Identities {
		c.Process.Identities[index] = expandVars(path, vars)
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

var variableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Search.Directory == "" {
		errs = append(errs, fmt.Errorf("search.directory is required"))
	} else if strings.ContainsRune(c.Search.Directory, filepath.Separator) {
		errs = append(errs, fmt.Errorf("search.directory must be a single path element, got %q", c.Search.Directory))
	}

	if _, err := c.Platform(); err != nil {
		errs = append(errs, fmt.Errorf("search.platform: %w", err))
	}

	if !variableNamePattern.MatchString(c.Introspection.Prefix) {
		errs = append(errs, fmt.Errorf("introspection.prefix %q is not a valid variable name prefix", c.Introspection.Prefix))
	}

	// A chunk must hold at least the chunk reference header.
	if c.Introspection.ChunkSize < 64 {
		errs = append(errs, fmt.Errorf("introspection.chunk_size must be at least 64, got %d", c.Introspection.ChunkSize))
	}

	policies := []InheritPolicy{InheritAll, InheritListed, InheritNone}
	if !slices.Contains(policies, c.Process.Inherit) {
		errs = append(errs, fmt.Errorf("process.inherit must be one of: %v", policies))
	}

	for _, name := range c.Process.InheritVariables {
		if !variableNamePattern.MatchString(name) {
			errs = append(errs, fmt.Errorf("process.inherit_variables: invalid variable name %q", name))
		}
	}

	if c.Process.DefaultDelegate == "" {
		errs = append(errs, fmt.Errorf("process.default_delegate is required"))
	}

	levels := []string{"trace", "debug", "info", "warn", "error"}
	if !slices.Contains(levels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of: %v", levels))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Platform returns the platform whose settings file variants are
// loaded: search.platform when set, else the running platform.
func (c *Config) Platform() (settings.Platform, error) {
	if c.Search.Platform == "" {
		return settings.CurrentPlatform(), nil
	}
	return settings.ParsePlatform(c.Search.Platform)
}

// InheritedEnvironment filters environ ("KEY=value" entries, as from
// os.Environ) by the inherit policy and returns the surviving variables.
func (c *Config) InheritedEnvironment(environ []string) map[string]string {
	result := make(map[string]string)
	if c.Process.Inherit == InheritNone {
		return result
	}
	for _, entry := range environ {
		name, value, ok := strings.Cut(entry, "=")
		if !ok || name == "" {
			continue
		}
		if c.Process.Inherit == InheritListed && !slices.Contains(c.Process.InheritVariables, name) {
			continue
		}
		result[name] = value
	}
	return result
}
