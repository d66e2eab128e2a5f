// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package procctl

import (
	"errors"
	"reflect"
	"testing"

	"github.com/bureau-foundation/stagehand/lib/tree"
)

func packagesFrom(t *testing.T, source string) *Packages {
	t.Helper()
	parsed, err := tree.ParseYAML([]byte(source))
	if err != nil {
		t.Fatalf("ParseYAML: %v", err)
	}
	packages, err := PackagesFrom(parsed)
	if err != nil {
		t.Fatalf("PackagesFrom: %v", err)
	}
	return packages
}

func TestFlattenOrder(t *testing.T) {
	packages := packagesFrom(t, `
packages:
  app:
    requires: [lib, tools]
  lib:
    requires: [base]
  tools:
    requires: [base]
  base: {}
`)
	flattened, err := Flatten(packages, "app", nil)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	want := []string{"base", "lib", "tools", "app"}
	if got := flattened.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
	if flattened.Root.Name != "app" {
		t.Errorf("Root = %s, want app", flattened.Root.Name)
	}

	var iterated []string
	packagesIter := flattened.Iter()
	for pkg, ok := packagesIter.Next(); ok; pkg, ok = packagesIter.Next() {
		iterated = append(iterated, pkg.Name)
	}
	if !reflect.DeepEqual(iterated, want) {
		t.Errorf("Iter() = %v, want %v", iterated, want)
	}
}

func TestFlattenIsDeterministic(t *testing.T) {
	source := `
packages:
  app:
    requires: [c, a, b]
  a:
    requires: [b]
  b: {}
  c:
    requires: [a]
`
	first, err := Flatten(packagesFrom(t, source), "app", nil)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	for range 10 {
		again, err := Flatten(packagesFrom(t, source), "app", nil)
		if err != nil {
			t.Fatalf("Flatten: %v", err)
		}
		if !reflect.DeepEqual(again.Names(), first.Names()) {
			t.Fatalf("Names() = %v, then %v", first.Names(), again.Names())
		}
	}
	if want := []string{"b", "a", "c", "app"}; !reflect.DeepEqual(first.Names(), want) {
		t.Errorf("Names() = %v, want %v", first.Names(), want)
	}
}

func TestFlattenExclusion(t *testing.T) {
	packages := packagesFrom(t, `
packages:
  app:
    exclude: [legacy]
    requires: [lib]
  lib:
    requires: [legacy, base]
  legacy: {}
  base: {}
`)
	flattened, err := Flatten(packages, "app", nil)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	if want := []string{"base", "lib", "app"}; !reflect.DeepEqual(flattened.Names(), want) {
		t.Errorf("Names() = %v, want %v", flattened.Names(), want)
	}
	if want := []Exclusion{{Package: "legacy", ExcludedBy: "app"}}; !reflect.DeepEqual(flattened.Excluded, want) {
		t.Errorf("Excluded = %+v, want %+v", flattened.Excluded, want)
	}
	if len(flattened.Late) != 0 {
		t.Errorf("Late = %+v, want none", flattened.Late)
	}
}

func TestFlattenExcludeFlag(t *testing.T) {
	packages := packagesFrom(t, `
packages:
  app:
    requires: [lib, legacy]
  lib:
    requires: ["legacy>=1"]
  legacy:
    exclude: true
    version: "0.1"
`)
	flattened, err := Flatten(packages, "app", nil)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	if want := []string{"lib", "app"}; !reflect.DeepEqual(flattened.Names(), want) {
		t.Errorf("Names() = %v, want %v", flattened.Names(), want)
	}
	if want := []Exclusion{{Package: "legacy", ExcludedBy: "legacy"}}; !reflect.DeepEqual(flattened.Excluded, want) {
		t.Errorf("Excluded = %+v, want %+v", flattened.Excluded, want)
	}

	_, err = Flatten(packages, "legacy", nil)
	var excluded *ExcludedPackageError
	if !errors.As(err, &excluded) || excluded.Name != "legacy" {
		t.Errorf("Flatten(legacy) error = %v, want *ExcludedPackageError", err)
	}
}

func TestFlattenLateExclusionKeepsPackage(t *testing.T) {
	packages := packagesFrom(t, `
packages:
  app:
    requires: [legacy, lib]
  lib:
    exclude: [legacy]
  legacy: {}
`)
	flattened, err := Flatten(packages, "app", nil)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	if want := []string{"legacy", "lib", "app"}; !reflect.DeepEqual(flattened.Names(), want) {
		t.Errorf("Names() = %v, want %v", flattened.Names(), want)
	}
	if want := []Exclusion{{Package: "legacy", ExcludedBy: "lib"}}; !reflect.DeepEqual(flattened.Late, want) {
		t.Errorf("Late = %+v, want %+v", flattened.Late, want)
	}
}

func TestFlattenCycle(t *testing.T) {
	packages := packagesFrom(t, `
packages:
  a:
    requires: [b]
  b:
    requires: [c]
  c:
    requires: [a]
`)
	_, err := Flatten(packages, "a", nil)
	var cycle *CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("error = %v, want *CycleError", err)
	}
	if want := []string{"a", "b", "c", "a"}; !reflect.DeepEqual(cycle.Cycle, want) {
		t.Errorf("Cycle = %v, want %v", cycle.Cycle, want)
	}
}

func TestFlattenVersionConstraints(t *testing.T) {
	source := `
packages:
  app:
    version: "1.0"
    requires: ["python>=3.9 <4"]
  python:
    version: "3.11.2"
`
	if _, err := Flatten(packagesFrom(t, source), "app", nil); err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	if _, err := Flatten(packagesFrom(t, source), "app==1", nil); err != nil {
		t.Fatalf("Flatten(app==1): %v", err)
	}

	_, err := Flatten(packagesFrom(t, source), "app>=2", nil)
	var versionErr *VersionError
	if !errors.As(err, &versionErr) {
		t.Fatalf("error = %v, want *VersionError", err)
	}
	if versionErr.RequiredBy != "" || versionErr.Version != "1.0" {
		t.Errorf("VersionError = %+v", versionErr)
	}

	strict := packagesFrom(t, `
packages:
  app:
    requires: ["python>=4"]
  python:
    version: "3.11.2"
`)
	_, err = Flatten(strict, "app", nil)
	if !errors.As(err, &versionErr) {
		t.Fatalf("error = %v, want *VersionError", err)
	}
	if versionErr.RequiredBy != "app" {
		t.Errorf("RequiredBy = %q, want app", versionErr.RequiredBy)
	}
}

func TestFlattenUnknownPackage(t *testing.T) {
	packages := packagesFrom(t, `
packages:
  app:
    requires: [missing]
`)
	_, err := Flatten(packages, "app", nil)
	var unknown *UnknownPackageError
	if !errors.As(err, &unknown) {
		t.Fatalf("error = %v, want *UnknownPackageError", err)
	}
	if unknown.Name != "missing" || unknown.RequiredBy != "app" {
		t.Errorf("UnknownPackageError = %+v", unknown)
	}
}

func TestRefTree(t *testing.T) {
	packages := packagesFrom(t, `
packages:
  app:
    version: "2.0"
    requires: ["lib>=1"]
  lib:
    version: "1.5"
`)
	flattened, err := Flatten(packages, "app", nil)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	refs := flattened.Refs()
	want := []PackageRef{
		{Name: "lib", Version: "1.5"},
		{Name: "app", Version: "2.0", Requires: []string{"lib>=1"}},
	}
	if !reflect.DeepEqual(refs, want) {
		t.Errorf("Refs() = %+v, want %+v", refs, want)
	}
	refTree := RefTree(refs)
	if got, _ := refTree.Lookup("app.version"); got != "2.0" {
		t.Errorf("app.version = %#v", got)
	}
	if got, _ := refTree.Lookup("app.requires"); !reflect.DeepEqual(got, []any{"lib>=1"}) {
		t.Errorf("app.requires = %#v", got)
	}
}
