// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package procctl

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bureau-foundation/stagehand/lib/codec"
	"github.com/bureau-foundation/stagehand/lib/ctxstack"
	"github.com/bureau-foundation/stagehand/lib/envcodec"
	"github.com/bureau-foundation/stagehand/lib/filehash"
	"github.com/bureau-foundation/stagehand/lib/tree"
)

// Introspection variable suffixes, appended to the configured prefix.
const (
	SettingsSuffix   = "SETTINGS"
	ProcessSuffix    = "PROCESS"
	OverridesSuffix  = "OVERRIDES"
	FileHashesSuffix = "FILE_HASHES"
	chunkSuffix      = "C"
)

// BootstrapContextName names the context a child pushes when it
// restores its parent's settings.
const BootstrapContextName = "bootstrap"

// ErrNoIntrospection is returned by ReadIntrospection when the
// environment carries no launcher state.
var ErrNoIntrospection = errors.New("no launcher introspection in environment")

// ProcessInfo describes a launch to the launched program.
type ProcessInfo struct {
	Executable    string       `json:"executable"`
	PID           int          `json:"pid"`
	BootstrapDir  string       `json:"bootstrap_dir"`
	Package       string       `json:"package"`
	Arguments     []string     `json:"arguments"`
	Mode          string       `json:"mode,omitempty"`
	Packages      []PackageRef `json:"packages,omitempty"`
	ImportModules []string     `json:"import_modules,omitempty"`

	// LauncherVersion is the version of the launcher that wrote the
	// record.
	LauncherVersion string `json:"launcher_version,omitempty"`
}

// IntrospectionOptions controls the variable names and chunking.
type IntrospectionOptions struct {
	Prefix    string
	ChunkSize int

	// NewKey generates chunk key suffixes; nil uses random ones.
	NewKey func() string
}

func (o IntrospectionOptions) name(suffix string) string {
	return o.Prefix + suffix
}

// Introspection is the launcher state handed to a child process.
type Introspection struct {
	Settings  *tree.Tree
	Process   ProcessInfo
	Overrides *tree.Tree
	Files     filehash.Set
}

// EncodeIntrospection returns the variables carrying state. Chunk
// variable names never collide with names in existing.
func EncodeIntrospection(state *Introspection, options IntrospectionOptions, existing map[string]string) (map[string]string, error) {
	settingsTree := state.Settings
	if settingsTree == nil {
		settingsTree = tree.New()
	}
	encodedSettings, err := codec.Marshal(settingsTree)
	if err != nil {
		return nil, fmt.Errorf("encoding settings: %w", err)
	}

	processJSON, err := json.Marshal(state.Process)
	if err != nil {
		return nil, fmt.Errorf("encoding process info: %w", err)
	}

	overrides := map[string]any{}
	if state.Overrides != nil {
		overrides = state.Overrides.ToMap()
	}
	overridesJSON, err := json.Marshal(overrides)
	if err != nil {
		return nil, fmt.Errorf("encoding overrides: %w", err)
	}

	files := map[string]string{}
	if state.Files != nil {
		files = state.Files.Strings()
	}
	encodedFiles, err := codec.Marshal(files)
	if err != nil {
		return nil, fmt.Errorf("encoding file hashes: %w", err)
	}

	variables := map[string]string{
		options.name(ProcessSuffix):    string(processJSON),
		options.name(OverridesSuffix):  string(overridesJSON),
		options.name(FileHashesSuffix): base64.StdEncoding.EncodeToString(encodedFiles),
	}
	chunker := envcodec.Chunker{
		Capacity:  options.ChunkSize,
		KeyPrefix: options.name(chunkSuffix),
		NewKey:    options.NewKey,
	}
	taken := func(name string) bool {
		_, inExisting := existing[name]
		_, inOurs := variables[name]
		return inExisting || inOurs
	}
	settingsValue := envcodec.Encode(envcodec.Compress(encodedSettings))
	for name, value := range chunker.Split(options.name(SettingsSuffix), settingsValue, taken) {
		variables[name] = value
	}
	return variables, nil
}

// ReadIntrospection decodes the state written by EncodeIntrospection.
// It returns ErrNoIntrospection when the process variable is absent.
func ReadIntrospection(lookup func(string) (string, bool), prefix string) (*Introspection, error) {
	options := IntrospectionOptions{Prefix: prefix}
	processJSON, ok := lookup(options.name(ProcessSuffix))
	if !ok {
		return nil, ErrNoIntrospection
	}

	state := &Introspection{}
	if err := json.Unmarshal([]byte(processJSON), &state.Process); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", options.name(ProcessSuffix), err)
	}

	state.Settings = tree.New()
	if value, ok := lookup(options.name(SettingsSuffix)); ok {
		joined, err := envcodec.Join(value, lookup)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", options.name(SettingsSuffix), err)
		}
		framed, err := envcodec.Decode(joined)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", options.name(SettingsSuffix), err)
		}
		data, err := envcodec.Decompress(framed)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", options.name(SettingsSuffix), err)
		}
		if err := codec.Unmarshal(data, state.Settings); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", options.name(SettingsSuffix), err)
		}
	}

	state.Overrides = tree.New()
	if value, ok := lookup(options.name(OverridesSuffix)); ok && value != "" {
		decoder := json.NewDecoder(strings.NewReader(value))
		decoder.UseNumber()
		var overrides map[string]any
		if err := decoder.Decode(&overrides); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", options.name(OverridesSuffix), err)
		}
		state.Overrides = tree.FromMap(jsonNumbers(overrides).(map[string]any))
	}

	state.Files = filehash.Set{}
	if value, ok := lookup(options.name(FileHashesSuffix)); ok && value != "" {
		data, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", options.name(FileHashesSuffix), err)
		}
		var entries map[string]string
		if err := codec.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", options.name(FileHashesSuffix), err)
		}
		files, err := filehash.FromStrings(entries)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", options.name(FileHashesSuffix), err)
		}
		state.Files = files
	}
	return state, nil
}

// jsonNumbers replaces json.Number values with int64 where exact and
// float64 otherwise.
func jsonNumbers(value any) any {
	switch typed := value.(type) {
	case json.Number:
		if integer, err := typed.Int64(); err == nil {
			return integer
		}
		float, _ := typed.Float64()
		return float
	case map[string]any:
		for key, element := range typed {
			typed[key] = jsonNumbers(element)
		}
		return typed
	case []any:
		for index, element := range typed {
			typed[index] = jsonNumbers(element)
		}
		return typed
	default:
		return value
	}
}

// IsIntrospectionVariable reports whether name is one of the variables
// written under prefix, including chunk variables.
func IsIntrospectionVariable(name, prefix string) bool {
	if !strings.HasPrefix(name, prefix) {
		return false
	}
	switch strings.TrimPrefix(name, prefix) {
	case SettingsSuffix, ProcessSuffix, OverridesSuffix, FileHashesSuffix:
		return true
	}
	suffix := strings.TrimPrefix(name, prefix+chunkSuffix)
	return len(suffix) == 8 && strings.Trim(suffix, "0123456789ABCDEF") == ""
}

// RestoreStack pushes the inherited settings as a bootstrap context and
// records the inherited file hashes, so a child sees its parent's
// resolved configuration.
func RestoreStack(stack *ctxstack.Stack, state *Introspection) (*ctxstack.Context, error) {
	bootstrap := ctxstack.NewWithSettings(BootstrapContextName, state.Settings.Clone())
	if err := stack.Push(bootstrap); err != nil {
		return nil, err
	}
	stack.InheritFiles(state.Files)
	return bootstrap, nil
}
