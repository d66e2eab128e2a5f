// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tree

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/bureau-foundation/stagehand/lib/codec"
)

func TestSetPreservesInsertionOrder(t *testing.T) {
	result := New()
	result.Set("zeta", 1)
	result.Set("alpha", 2)
	result.Set("zeta", 3)

	if got := result.Keys(); !reflect.DeepEqual(got, []string{"zeta", "alpha"}) {
		t.Errorf("Keys() = %v, want [zeta alpha]", got)
	}
	value, _ := result.Get("zeta")
	if value != int64(3) {
		t.Errorf("zeta = %#v, want int64(3)", value)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  any
	}{
		{"int", 5, int64(5)},
		{"uint32", uint32(9), int64(9)},
		{"float32", float32(0.5), float64(0.5)},
		{"string slice", []string{"a", "b"}, []any{"a", "b"}},
		{"nested list", []any{1, "x"}, []any{int64(1), "x"}},
		{"string", "value", "value"},
		{"nil", nil, nil},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Normalize(test.input); !reflect.DeepEqual(got, test.want) {
				t.Errorf("Normalize(%#v) = %#v, want %#v", test.input, got, test.want)
			}
		})
	}

	if _, ok := Normalize(map[string]any{"a": 1}).(*Tree); !ok {
		t.Error("Normalize(map) did not produce a *Tree")
	}
}

func TestPathAccess(t *testing.T) {
	result := New()
	if err := result.SetPath("packages.maya.version", "2025"); err != nil {
		t.Fatalf("SetPath: %v", err)
	}

	value, ok := result.Lookup("packages.maya.version")
	if !ok || value != "2025" {
		t.Errorf("Lookup = %#v, %v; want \"2025\", true", value, ok)
	}
	if _, ok := result.Subtree("packages.maya"); !ok {
		t.Error("Subtree(packages.maya) not found")
	}
	if _, ok := result.Subtree("packages.maya.version"); ok {
		t.Error("Subtree of a value reported ok")
	}

	err := result.SetPath("packages.maya.version.major", 1)
	var pathError *PathError
	if !errors.As(err, &pathError) {
		t.Fatalf("SetPath through a value: err = %v, want *PathError", err)
	}
	if pathError.Blocking != "packages.maya.version" {
		t.Errorf("Blocking = %q, want packages.maya.version", pathError.Blocking)
	}

	if !result.DeletePath("packages.maya.version") {
		t.Error("DeletePath returned false for an existing key")
	}
	if maya, _ := result.Subtree("packages.maya"); maya.Len() != 0 {
		t.Errorf("maya still has %d keys", maya.Len())
	}
}

func TestEqualIgnoresKeyOrder(t *testing.T) {
	left := New()
	left.Set("a", 1)
	left.Set("b", []any{"x", 2})
	right := New()
	right.Set("b", []any{"x", int64(2)})
	right.Set("a", int64(1))

	if !Equal(left, right) {
		t.Error("Equal() = false for trees differing only in key order")
	}

	right.Set("c", New())
	if Equal(left, right) {
		t.Error("Equal() = true after adding an empty subtree to one side")
	}
	if Equal(New(), "") {
		t.Error("an empty tree must not equal a value")
	}
}

func TestCloneIsDeep(t *testing.T) {
	original := New()
	if err := original.SetPath("a.b", []any{"x"}); err != nil {
		t.Fatalf("SetPath: %v", err)
	}

	clone := original.Clone()
	if err := clone.SetPath("a.c", true); err != nil {
		t.Fatalf("SetPath: %v", err)
	}

	if original.Has("c") {
		t.Fatal("unexpected top-level key")
	}
	if _, ok := original.Lookup("a.c"); ok {
		t.Error("mutating the clone changed the original")
	}
}

func TestWalkVisitsLeavesAndEmptySubtrees(t *testing.T) {
	data, err := ParseYAML([]byte(`
a:
  b: 1
  c: {}
d: x
`))
	if err != nil {
		t.Fatalf("ParseYAML: %v", err)
	}

	var visited []string
	data.Walk(func(keys []string, value any) bool {
		visited = append(visited, strings.Join(keys, "."))
		return true
	})
	if want := []string{"a.b", "a.c", "d"}; !reflect.DeepEqual(visited, want) {
		t.Errorf("visited = %v, want %v", visited, want)
	}
}

func TestYAMLRoundtripPreservesOrder(t *testing.T) {
	source := `zeta: 1
alpha:
    nested: "1!"
    list:
        - a
        - 2
middle: true
`
	parsed, err := ParseYAML([]byte(source))
	if err != nil {
		t.Fatalf("ParseYAML: %v", err)
	}
	if got := parsed.Keys(); !reflect.DeepEqual(got, []string{"zeta", "alpha", "middle"}) {
		t.Errorf("Keys() = %v", got)
	}

	rendered := parsed.String()
	reparsed, err := ParseYAML([]byte(rendered))
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if !Equal(parsed, reparsed) {
		t.Errorf("YAML roundtrip mismatch:\n%s", rendered)
	}
	if strings.Index(rendered, "zeta") > strings.Index(rendered, "alpha") {
		t.Errorf("rendered YAML lost key order:\n%s", rendered)
	}
}

func TestYAMLMergeKeys(t *testing.T) {
	parsed, err := ParseYAML([]byte(`
base: &base
  a: 1
  b: 2
derived:
  <<: *base
  b: 3
`))
	if err != nil {
		t.Fatalf("ParseYAML: %v", err)
	}
	a, _ := parsed.Lookup("derived.a")
	b, _ := parsed.Lookup("derived.b")
	if a != int64(1) || b != int64(3) {
		t.Errorf("derived = a:%v b:%v, want a:1 b:3", a, b)
	}
}

func TestParseYAMLRejectsNonMapping(t *testing.T) {
	if _, err := ParseYAML([]byte("- a\n- b\n")); err == nil {
		t.Error("ParseYAML accepted a sequence document")
	}
	empty, err := ParseYAML(nil)
	if err != nil || empty.Len() != 0 {
		t.Errorf("ParseYAML(nil) = %v, %v; want empty tree", empty, err)
	}
}

func TestCBORRoundtripPreservesOrder(t *testing.T) {
	original := New()
	original.Set("zeta", "z")
	original.Set("alpha", -4)
	if err := original.SetPath("nested.list", []any{1.5, "x", nil, false}); err != nil {
		t.Fatalf("SetPath: %v", err)
	}
	original.Set("empty", New())

	data, err := codec.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	decoded := New()
	if err := codec.Unmarshal(data, decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !Equal(original, decoded) {
		t.Errorf("CBOR roundtrip mismatch:\noriginal:\n%s\ndecoded:\n%s", original, decoded)
	}
	if got := decoded.Keys(); !reflect.DeepEqual(got, original.Keys()) {
		t.Errorf("decoded key order = %v, want %v", got, original.Keys())
	}
}
