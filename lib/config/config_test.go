// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stagehand.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("expected environment=development, got %s", cfg.Environment)
	}
	if cfg.Search.Directory != "etc" {
		t.Errorf("expected directory=etc, got %s", cfg.Search.Directory)
	}
	if cfg.Introspection.Prefix != "STAGEHAND_" {
		t.Errorf("expected prefix=STAGEHAND_, got %s", cfg.Introspection.Prefix)
	}
	if cfg.Introspection.ChunkSize != 30000 {
		t.Errorf("expected chunk_size=30000, got %d", cfg.Introspection.ChunkSize)
	}
	if cfg.Process.Inherit != InheritAll {
		t.Errorf("expected inherit=all, got %s", cfg.Process.Inherit)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoad_RequiresStagehandConfig(t *testing.T) {
	t.Setenv(EnvironmentVariable, "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when STAGEHAND_CONFIG not set, got nil")
	}

	expectedMsg := "STAGEHAND_CONFIG environment variable not set"
	if !strings.HasPrefix(err.Error(), expectedMsg) {
		t.Errorf("expected error message to start with %q, got %q", expectedMsg, err.Error())
	}
}

func TestLoad_WithStagehandConfig(t *testing.T) {
	configPath := writeConfig(t, `
environment: staging
search:
  directory: config
`)
	t.Setenv(EnvironmentVariable, configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Environment != Staging {
		t.Errorf("expected environment=staging, got %s", cfg.Environment)
	}
	if cfg.Search.Directory != "config" {
		t.Errorf("expected directory=config, got %s", cfg.Search.Directory)
	}
}

func TestLoadFile(t *testing.T) {
	configPath := writeConfig(t, `
environment: staging

search:
  roots: [/shows/abc, /shows/abc/seq010]
  platform: lnx64

introspection:
  prefix: PIPE_
  chunk_size: 1000

process:
  inherit: none
  default_delegate: maya

log:
  level: debug
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if !slices.Equal(cfg.Search.Roots, []string{"/shows/abc", "/shows/abc/seq010"}) {
		t.Errorf("unexpected roots %v", cfg.Search.Roots)
	}
	if cfg.Search.Directory != "etc" {
		t.Errorf("expected default directory to survive, got %s", cfg.Search.Directory)
	}
	if cfg.Search.Platform != "lnx64" {
		t.Errorf("expected platform=lnx64, got %s", cfg.Search.Platform)
	}
	if cfg.Introspection.Prefix != "PIPE_" || cfg.Introspection.ChunkSize != 1000 {
		t.Errorf("unexpected introspection %+v", cfg.Introspection)
	}
	if cfg.Process.Inherit != InheritNone {
		t.Errorf("expected inherit=none, got %s", cfg.Process.Inherit)
	}
	if cfg.Process.DefaultDelegate != "maya" {
		t.Errorf("expected default_delegate=maya, got %s", cfg.Process.DefaultDelegate)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected level=debug, got %s", cfg.Log.Level)
	}
}

func TestLoadFileMalformed(t *testing.T) {
	configPath := writeConfig(t, "search: [unclosed\n")
	if _, err := LoadFile(configPath); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	configPath := writeConfig(t, `
environment: production

process:
  inherit: all

production:
  search:
    directory: site
  process:
    inherit: listed
    inherit_variables: [HOME]
  log:
    level: warn
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Search.Directory != "site" {
		t.Errorf("expected directory=site, got %s", cfg.Search.Directory)
	}
	if cfg.Process.Inherit != InheritListed {
		t.Errorf("expected inherit=listed, got %s", cfg.Process.Inherit)
	}
	if !slices.Equal(cfg.Process.InheritVariables, []string{"HOME"}) {
		t.Errorf("unexpected inherit_variables %v", cfg.Process.InheritVariables)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("expected level=warn, got %s", cfg.Log.Level)
	}
}

func TestProductionDefaultsRestrictInheritance(t *testing.T) {
	configPath := writeConfig(t, "environment: production\n")

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Process.Inherit != InheritListed {
		t.Errorf("expected inherit=listed, got %s", cfg.Process.Inherit)
	}
	if !slices.Contains(cfg.Process.InheritVariables, "HOME") {
		t.Errorf("expected HOME in production allow-list, got %v", cfg.Process.InheritVariables)
	}
}

func TestPathsExpandRelativeToConfig(t *testing.T) {
	configPath := writeConfig(t, `
search:
  roots: ["${STAGEHAND_ROOT}/shows", "${UNSET_STAGEHAND_TEST_VAR:-/fallback}"]
process:
  identities: ["${HOME}/.config/stagehand/key.txt"]
`)
	t.Setenv("HOME", "/home/artist")

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	want := []string{filepath.Join(filepath.Dir(configPath), "shows"), "/fallback"}
	if !slices.Equal(cfg.Search.Roots, want) {
		t.Errorf("roots = %v, want %v", cfg.Search.Roots, want)
	}
	if cfg.Process.Identities[0] != "/home/artist/.config/stagehand/key.txt" {
		t.Errorf("unexpected identity path %s", cfg.Process.Identities[0])
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{
			input:    "${HOME}/stagehand",
			vars:     map[string]string{"HOME": "/home/user"},
			expected: "/home/user/stagehand",
		},
		{
			input:    "${MISSING_STAGEHAND_VAR:-default}",
			vars:     map[string]string{},
			expected: "default",
		},
		{
			input:    "${PRESENT:-default}",
			vars:     map[string]string{"PRESENT": "value"},
			expected: "value",
		},
		{
			input:    "${A}/${B}",
			vars:     map[string]string{"A": "first", "B": "second"},
			expected: "first/second",
		},
		{
			input:    "no variables here",
			vars:     map[string]string{},
			expected: "no variables here",
		},
	}

	for _, tt := range tests {
		result := expandVars(tt.input, tt.vars)
		if result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "invalid environment",
			modify: func(c *Config) {
				c.Environment = "invalid"
			},
			wantErr: true,
		},
		{
			name: "empty directory",
			modify: func(c *Config) {
				c.Search.Directory = ""
			},
			wantErr: true,
		},
		{
			name: "nested directory",
			modify: func(c *Config) {
				c.Search.Directory = "etc/stagehand"
			},
			wantErr: true,
		},
		{
			name: "valid platform",
			modify: func(c *Config) {
				c.Search.Platform = "win64"
			},
			wantErr: false,
		},
		{
			name: "invalid platform",
			modify: func(c *Config) {
				c.Search.Platform = "amiga"
			},
			wantErr: true,
		},
		{
			name: "invalid prefix",
			modify: func(c *Config) {
				c.Introspection.Prefix = "9BAD-"
			},
			wantErr: true,
		},
		{
			name: "tiny chunk size",
			modify: func(c *Config) {
				c.Introspection.ChunkSize = 10
			},
			wantErr: true,
		},
		{
			name: "invalid inherit policy",
			modify: func(c *Config) {
				c.Process.Inherit = "some"
			},
			wantErr: true,
		},
		{
			name: "invalid inherit variable",
			modify: func(c *Config) {
				c.Process.InheritVariables = []string{"NOT VALID"}
			},
			wantErr: true,
		},
		{
			name: "invalid log level",
			modify: func(c *Config) {
				c.Log.Level = "verbose"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Search.Directory = ""
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, fragment := range []string{"search.directory", "log.level"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Errorf("error %q does not mention %s", err, fragment)
		}
	}
}

func TestInheritedEnvironment(t *testing.T) {
	environ := []string{"HOME=/home/artist", "SHOW=abc", "EMPTY=", "malformed"}

	tests := []struct {
		name   string
		policy InheritPolicy
		listed []string
		want   map[string]string
	}{
		{
			name:   "all",
			policy: InheritAll,
			want:   map[string]string{"HOME": "/home/artist", "SHOW": "abc", "EMPTY": ""},
		},
		{
			name:   "listed",
			policy: InheritListed,
			listed: []string{"SHOW", "MISSING"},
			want:   map[string]string{"SHOW": "abc"},
		},
		{
			name:   "none",
			policy: InheritNone,
			want:   map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Process.Inherit = tt.policy
			cfg.Process.InheritVariables = tt.listed

			got := cfg.InheritedEnvironment(environ)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for key, value := range tt.want {
				if got[key] != value {
					t.Errorf("%s = %q, want %q", key, got[key], value)
				}
			}
		})
	}
}
