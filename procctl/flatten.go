// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package procctl

import (
	"errors"
	"log/slog"
	"slices"

	"github.com/bureau-foundation/stagehand/lib/tree"
)

// Flattened is the ordered package list of a launch, dependencies
// first, the root last.
type Flattened struct {
	Root     *Package
	Packages []*Package

	// Excluded lists the packages skipped because an exclusion was in
	// effect when they were reached, in the order they were reached.
	Excluded []Exclusion

	// Late lists exclusions declared after the excluded package was
	// already placed (or was still being visited). Such packages stay
	// in the list.
	Late []Exclusion
}

// Exclusion records an excluded package. ExcludedBy is the package
// itself when it carries "exclude: true".
type Exclusion struct {
	Package    string
	ExcludedBy string
}

// Flatten resolves the requires graph below root ("name" or a
// requirement such as "maya>=2024") into an ordered package list.
//
// Packages are placed depth first in post order: every package after
// all of its requirements, requirements in declaration order, each
// package once. A package's exclusions take effect when the package is
// visited, before its own requirements; an excluded package is never
// placed however it is reached later. An exclusion naming a package
// that is already placed has no effect beyond a warning. A package
// marked "exclude: true" is never placed as a requirement and cannot be
// the root. Version constraints are checked at every edge.
func Flatten(packages *Packages, root string, logger *slog.Logger) (*Flattened, error) {
	if logger == nil {
		logger = slog.Default()
	}
	requirement, err := ParseRequirement(root)
	if err != nil {
		return nil, err
	}

	f := &flattener{
		packages: packages,
		placed:   make(map[string]bool),
		excluded: make(map[string]string),
		result:   &Flattened{},
		logger:   logger,
	}
	if err := f.visit(requirement, ""); err != nil {
		return nil, err
	}
	f.result.Root = f.result.Packages[len(f.result.Packages)-1]
	return f.result, nil
}

type flattener struct {
	packages *Packages
	placed   map[string]bool
	// excluded maps an excluded package to the package excluding it.
	excluded map[string]string
	visiting []string
	result   *Flattened
	logger   *slog.Logger
}

func (f *flattener) visit(requirement Requirement, requiredBy string) error {
	name := requirement.Name

	if by, ok := f.excluded[name]; ok && requiredBy != "" {
		if !slices.ContainsFunc(f.result.Excluded, func(e Exclusion) bool { return e.Package == name }) {
			f.result.Excluded = append(f.result.Excluded, Exclusion{Package: name, ExcludedBy: by})
		}
		f.logger.Debug("package excluded", "package", name, "required_by", requiredBy, "excluded_by", by)
		return nil
	}

	pkg, err := f.packages.Lookup(name)
	if err != nil {
		var unknown *UnknownPackageError
		if errors.As(err, &unknown) {
			unknown.RequiredBy = requiredBy
		}
		return err
	}
	if pkg.Excluded {
		if requiredBy == "" {
			return &ExcludedPackageError{Name: name}
		}
		if !slices.ContainsFunc(f.result.Excluded, func(e Exclusion) bool { return e.Package == name }) {
			f.result.Excluded = append(f.result.Excluded, Exclusion{Package: name, ExcludedBy: name})
		}
		f.logger.Debug("package excluded", "package", name, "required_by", requiredBy, "excluded_by", name)
		return nil
	}

	allowed, err := requirement.Allows(pkg.Version)
	if err != nil || !allowed {
		return &VersionError{Requirement: requirement, Version: pkg.Version, RequiredBy: requiredBy, Err: err}
	}

	if f.placed[name] {
		return nil
	}
	if start := slices.Index(f.visiting, name); start >= 0 {
		cycle := append(slices.Clone(f.visiting[start:]), name)
		return &CycleError{Cycle: cycle}
	}

	f.visiting = append(f.visiting, name)
	for _, excluded := range pkg.Exclude {
		if f.placed[excluded] || slices.Contains(f.visiting, excluded) {
			f.result.Late = append(f.result.Late, Exclusion{Package: excluded, ExcludedBy: name})
			f.logger.Warn("exclusion declared after the excluded package was placed; keeping it",
				"package", excluded,
				"excluded_by", name,
			)
			continue
		}
		if _, already := f.excluded[excluded]; !already {
			f.excluded[excluded] = name
		}
	}

	for _, required := range pkg.Requires {
		if err := f.visit(required, name); err != nil {
			return err
		}
	}

	f.visiting = f.visiting[:len(f.visiting)-1]
	f.placed[name] = true
	f.result.Packages = append(f.result.Packages, pkg)
	f.logger.Debug("package placed", "package", pkg.String(), "position", len(f.result.Packages)-1)
	return nil
}

// Names returns the flattened package names in order.
func (f *Flattened) Names() []string {
	names := make([]string, len(f.Packages))
	for index, pkg := range f.Packages {
		names[index] = pkg.Name
	}
	return names
}

// Iter returns an iterator over the packages in order.
func (f *Flattened) Iter() *PackageIterator {
	return &PackageIterator{packages: f.Packages}
}

// PackageIterator walks a flattened package list.
type PackageIterator struct {
	packages []*Package
	next     int
}

// Next returns the next package; the boolean is false once the list is
// exhausted.
func (it *PackageIterator) Next() (*Package, bool) {
	if it.next >= len(it.packages) {
		return nil, false
	}
	pkg := it.packages[it.next]
	it.next++
	return pkg, true
}

// PackageRef is the launch-time record of one flattened package.
type PackageRef struct {
	Name     string   `json:"name"`
	Version  string   `json:"version,omitempty"`
	Requires []string `json:"requires,omitempty"`
}

// Refs returns the records of the flattened packages in order.
func (f *Flattened) Refs() []PackageRef {
	refs := make([]PackageRef, len(f.Packages))
	for index, pkg := range f.Packages {
		ref := PackageRef{Name: pkg.Name, Version: pkg.Version}
		for _, requirement := range pkg.Requires {
			ref.Requires = append(ref.Requires, requirement.String())
		}
		refs[index] = ref
	}
	return refs
}

// RefTree converts package records into a tree keyed by package name,
// the form compared by [CheckCompatibility].
func RefTree(refs []PackageRef) *tree.Tree {
	result := tree.New()
	for _, ref := range refs {
		entry := tree.New()
		entry.Set("version", ref.Version)
		requires := make([]any, len(ref.Requires))
		for index, requirement := range ref.Requires {
			requires[index] = requirement
		}
		entry.Set("requires", requires)
		result.Set(ref.Name, entry)
	}
	return result
}
