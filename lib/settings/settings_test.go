// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/bureau-foundation/stagehand/lib/tree"
)

func parse(t *testing.T, source string) *tree.Tree {
	t.Helper()
	parsed, err := tree.ParseYAML([]byte(source))
	if err != nil {
		t.Fatalf("ParseYAML: %v", err)
	}
	return parsed
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

var launcherSchema = NewSchema("launcher", map[string]any{
	"prefix":     "STAGEHAND_",
	"chunk_size": 30000,
	"verbose":    false,
	"roots":      []string{},
	"site":       Required(KindString),
	"extra":      map[string]any{},
})

func TestValueAppliesDefaultsAndConversions(t *testing.T) {
	provider := NewProvider(parse(t, `
launcher:
  chunk_size: "4096"
  verbose: "true"
  site: studio
  roots: [/a, /b]
  extra: {free: form}
`))

	view, err := provider.Value(launcherSchema)
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	prefix, err := view.String("prefix")
	if err != nil || prefix != "STAGEHAND_" {
		t.Errorf("prefix = %q, %v", prefix, err)
	}
	size, err := view.Int("chunk_size")
	if err != nil || size != 4096 {
		t.Errorf("chunk_size = %d, %v", size, err)
	}
	verbose, err := view.Bool("verbose")
	if err != nil || !verbose {
		t.Errorf("verbose = %v, %v", verbose, err)
	}
	roots, err := view.Strings("roots")
	if err != nil || !reflect.DeepEqual(roots, []string{"/a", "/b"}) {
		t.Errorf("roots = %v, %v", roots, err)
	}
	extra, err := view.Sub("extra")
	if err != nil {
		t.Fatalf("Sub(extra): %v", err)
	}
	if free, err := extra.String("free"); err != nil || free != "form" {
		t.Errorf("extra.free = %q, %v", free, err)
	}
}

func TestValueUnknownKey(t *testing.T) {
	provider := NewProvider(parse(t, "launcher: {site: x, undeclared: 1}\n"))
	view, err := provider.Value(launcherSchema)
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if _, err := view.Get("undeclared"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("Get(undeclared) error = %v, want ErrUnknownKey", err)
	}

	provider.AddSchema(launcherSchema)
	if _, err := provider.Lookup("other.key"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("Lookup(other.key) error = %v, want ErrUnknownKey", err)
	}
	value, err := provider.Lookup("launcher.chunk_size")
	if err != nil || value != int64(30000) {
		t.Errorf("Lookup(launcher.chunk_size) = %#v, %v", value, err)
	}
}

func TestValueMissingRequired(t *testing.T) {
	_, err := NewProvider(tree.New()).Value(launcherSchema)
	var missing *MissingValueError
	if !errors.As(err, &missing) {
		t.Fatalf("error = %v, want *MissingValueError", err)
	}
	if missing.Key != "launcher.site" {
		t.Errorf("missing key = %q, want launcher.site", missing.Key)
	}
}

func TestValueReportsEveryProblem(t *testing.T) {
	_, err := NewProvider(parse(t, "launcher: {chunk_size: many}\n")).Value(launcherSchema)
	var typeError *TypeError
	var missing *MissingValueError
	if !errors.As(err, &typeError) || !errors.As(err, &missing) {
		t.Fatalf("error = %v, want both a type error and a missing value", err)
	}
	if typeError.Key != "launcher.chunk_size" {
		t.Errorf("type error key = %q", typeError.Key)
	}
}

func TestModifierChanges(t *testing.T) {
	modifier := NewModifier(parse(t, "launcher: {site: a, prefix: P_}\nother: {x: 1}\n"), launcherSchema)
	if err := modifier.SetValue("launcher.site", "b"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if err := modifier.SetValue("other.y", 2); err != nil {
		t.Fatalf("SetValue: %v", err)
	}

	want := parse(t, "launcher: {site: b}\nother: {y: 2}\n")
	if changes := modifier.Changes(); !tree.Equal(changes, want) {
		t.Errorf("Changes:\n%s\nwant:\n%s", changes, want)
	}

	modifier.Commit()
	if changes := modifier.Changes(); changes.Len() != 0 {
		t.Errorf("Changes after Commit:\n%s", changes)
	}
}

func TestModifierSetValueBySchema(t *testing.T) {
	modifier := NewModifier(parse(t, "launcher: {site: 'locked!'}\n"))
	err := modifier.SetValueBySchema(launcherSchema, parse(t, "site: other\nchunk_size: 10\n"))
	if err != nil {
		t.Fatalf("SetValueBySchema: %v", err)
	}
	site, _ := modifier.Data().Lookup("launcher.site")
	if site != "locked!" {
		t.Errorf("site = %#v, want the locked value to win", site)
	}
	size, _ := modifier.Data().Lookup("launcher.chunk_size")
	if size != int64(10) {
		t.Errorf("chunk_size = %#v, want 10", size)
	}

	err = modifier.SetValueBySchema(launcherSchema, parse(t, "chunk_size: lots\n"))
	var typeError *TypeError
	if !errors.As(err, &typeError) {
		t.Errorf("error = %v, want *TypeError", err)
	}
}

func TestModifierSave(t *testing.T) {
	modifier := NewModifier(parse(t, "a: 1\nb: 2\n"))
	if err := modifier.SetValue("b", 3); err != nil {
		t.Fatalf("SetValue: %v", err)
	}

	var sparse bytes.Buffer
	if err := modifier.Save(&sparse, Sparse); err != nil {
		t.Fatalf("Save(Sparse): %v", err)
	}
	if got := strings.TrimSpace(sparse.String()); got != "b: 3" {
		t.Errorf("sparse = %q, want \"b: 3\"", got)
	}

	var full bytes.Buffer
	if err := modifier.Save(&full, Full); err != nil {
		t.Fatalf("Save(Full): %v", err)
	}
	if !tree.Equal(parse(t, full.String()), parse(t, "a: 1\nb: 3\n")) {
		t.Errorf("full = %q", full.String())
	}
}

func TestLoadFilesMergesInOrder(t *testing.T) {
	dir := t.TempDir()
	first := writeFile(t, dir, "10-base.yaml", "env: {A: base, B: 'keep!'}\nlist: [1]\n")
	second := writeFile(t, dir, "20-site.jsonc", `{
  // site overrides
  "env": {"A": "site", "B": "ignored", "C": "new"},
}`)

	result, err := LoadFiles([]string{first, second}, nil)
	if err != nil {
		t.Fatalf("LoadFiles: %v", err)
	}
	if len(result.Loaded) != 2 {
		t.Fatalf("loaded %d files, want 2", len(result.Loaded))
	}

	want := parse(t, "env: {A: site, B: 'keep!', C: new}\nlist: [1]\n")
	if !tree.Equal(result.Tree, want) {
		t.Errorf("merged:\n%s\nwant:\n%s", result.Tree, want)
	}
}

func TestLoadFilesSkip(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.yaml", "x: 1\n")
	copyPath := writeFile(t, dir, "b.yaml", "x: 1\n")

	seen := make(map[string]bool)
	result, err := LoadFiles([]string{path, copyPath}, func(source FileSource) bool {
		key := source.Hash.String()
		if seen[key] {
			return true
		}
		seen[key] = true
		return false
	})
	if err != nil {
		t.Fatalf("LoadFiles: %v", err)
	}
	if len(result.Loaded) != 1 || len(result.Skipped) != 1 {
		t.Errorf("loaded %d skipped %d, want 1 and 1", len(result.Loaded), len(result.Skipped))
	}
}

func TestLoadFilesRejectsBadFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.yaml", "a: [unterminated\n")
	if _, err := LoadFiles([]string{path}, nil); err == nil {
		t.Error("LoadFiles accepted malformed YAML")
	}
}

func TestPlatformMatching(t *testing.T) {
	linux := Platform{Tag: "lnx", Width: 64}
	tests := []struct {
		name string
		want bool
	}{
		{"launcher.yaml", true},
		{"launcher.lnx.yaml", true},
		{"launcher.lnx64.yml", true},
		{"launcher.lnx32.yaml", false},
		{"launcher.win.yaml", false},
		{"launcher.mac64.jsonc", false},
		{"version.2.yaml", true},
		{"notes.txt", false},
	}
	for _, test := range tests {
		if got := linux.Matches(test.name); got != test.want {
			t.Errorf("Matches(%q) = %v, want %v", test.name, got, test.want)
		}
	}
}

func TestParsePlatform(t *testing.T) {
	platform, err := ParsePlatform("win32")
	if err != nil {
		t.Fatalf("ParsePlatform: %v", err)
	}
	if platform != (Platform{Tag: "win", Width: 32}) {
		t.Errorf("ParsePlatform(win32) = %+v", platform)
	}
	if platform, err := ParsePlatform("mac"); err != nil || platform.Tag != "mac" || platform.Width == 0 {
		t.Errorf("ParsePlatform(mac) = %+v, %v", platform, err)
	}
	if _, err := ParsePlatform("linux"); err == nil {
		t.Error("ParsePlatform(linux) succeeded")
	}
}

func TestListDirectoryOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"launcher.lnx64.yaml", "launcher.yaml", "launcher.lnx.yaml", "alpha.yaml", "launcher.win.yaml", ".hidden.yaml"} {
		writeFile(t, dir, name, "{}\n")
	}

	paths, err := ListDirectory(dir, Platform{Tag: "lnx", Width: 64})
	if err != nil {
		t.Fatalf("ListDirectory: %v", err)
	}
	var names []string
	for _, path := range paths {
		names = append(names, filepath.Base(path))
	}
	want := []string{"alpha.yaml", "launcher.yaml", "launcher.lnx.yaml", "launcher.lnx64.yaml"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("names = %v, want %v", names, want)
	}

	missing, err := ListDirectory(filepath.Join(dir, "absent"), CurrentPlatform())
	if err != nil || len(missing) != 0 {
		t.Errorf("ListDirectory(absent) = %v, %v", missing, err)
	}
}

func TestSchemaValidatorClashes(t *testing.T) {
	var same SchemaValidator
	same.Add(NewSchema("tool", map[string]any{"k": "x"}), NewSchema("tool", map[string]any{"k": "x", "j": 1}))
	if clashes := same.ValidateSchema(); len(clashes) != 0 {
		t.Errorf("identical defaults clashed: %v", clashes)
	}

	var differing SchemaValidator
	differing.Add(NewSchema("tool", map[string]any{"k": "x"}), NewSchema("", map[string]any{"tool": map[string]any{"k": "y"}}))
	clashes := differing.ValidateSchema()
	if len(clashes) != 1 || clashes[0].Key != "tool.k" {
		t.Errorf("clashes = %v, want one clash for tool.k", clashes)
	}
}

func TestSchemaValidatorProvider(t *testing.T) {
	var validator SchemaValidator
	validator.Add(launcherSchema)
	violations := validator.ValidateProvider(NewProvider(parse(t, "launcher: {chunk_size: many}\n")))

	got := make(map[string]bool)
	for _, violation := range violations {
		got[violation.Key] = violation.Missing
	}
	want := map[string]bool{"launcher.chunk_size": false, "launcher.site": true}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("violations = %v, want %v", violations, want)
	}
}
