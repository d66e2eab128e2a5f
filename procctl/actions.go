// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package procctl

import (
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/bureau-foundation/stagehand/lib/sealed"
	"github.com/bureau-foundation/stagehand/lib/settings"
	"github.com/bureau-foundation/stagehand/lib/transaction"
	"github.com/bureau-foundation/stagehand/lib/tree"
)

// ActionType builds operations from action declarations of one type.
// Types are registered as instances under this interface; the nearest
// registration of a type name wins.
type ActionType interface {
	// Type is the name used in action references ("mkdir").
	Type() string

	// Template is the schema template of one declaration.
	Template() *tree.Tree

	// Build returns the operation for a resolved declaration.
	Build(spec *ActionSpec) (transaction.Operation, error)
}

// ActionSpec is one resolved action declaration. String accessors
// expand {NAME} references against the launch environment.
type ActionSpec struct {
	Ref     ActionRef
	Package string
	View    *settings.View
	Env     *Environment
}

// String returns the expanded string at key.
func (s *ActionSpec) String(key string) (string, error) {
	value, err := s.View.String(key)
	if err != nil {
		return "", err
	}
	return ExpandReferences(value, s.Env.Lookup), nil
}

// Strings returns the expanded string list at key.
func (s *ActionSpec) Strings(key string) ([]string, error) {
	values, err := s.View.Strings(key)
	if err != nil {
		return nil, err
	}
	for index, value := range values {
		values[index] = ExpandReferences(value, s.Env.Lookup)
	}
	return values, nil
}

// Bool returns the boolean at key.
func (s *ActionSpec) Bool(key string) (bool, error) {
	return s.View.Bool(key)
}

// Mode returns the file mode at key. Integers are taken as they are
// (YAML 0o755 is already octal); strings are parsed as octal. A missing
// value yields zero, which operations treat as their default.
func (s *ActionSpec) Mode(key string) (fs.FileMode, error) {
	value, err := s.View.Get(key)
	if err != nil {
		return 0, err
	}
	switch typed := value.(type) {
	case nil:
		return 0, nil
	case int64:
		if typed < 0 || typed > 0o7777 {
			return 0, fmt.Errorf("%s.%s: mode %o out of range", s.Ref.Key(), key, typed)
		}
		return fs.FileMode(typed), nil
	case string:
		parsed, err := strconv.ParseUint(strings.TrimPrefix(typed, "0o"), 8, 32)
		if err != nil || parsed > 0o7777 {
			return 0, fmt.Errorf("%s.%s: invalid mode %q", s.Ref.Key(), key, typed)
		}
		return fs.FileMode(parsed), nil
	default:
		return 0, &settings.TypeError{Key: s.Ref.Key() + "." + key, Want: settings.KindInt, Value: value}
	}
}

// builtinAction is an ActionType defined by a template and a builder.
type builtinAction struct {
	name     string
	template map[string]any
	build    func(spec *ActionSpec) (transaction.Operation, error)
}

func (a *builtinAction) Type() string {
	return a.name
}

func (a *builtinAction) Template() *tree.Tree {
	return tree.FromMap(a.template)
}

func (a *builtinAction) Build(spec *ActionSpec) (transaction.Operation, error) {
	operation, err := a.build(spec)
	if err != nil {
		return nil, fmt.Errorf("action %s: %w", spec.Ref, err)
	}
	return operation, nil
}

// specReader collects the first accessor error.
type specReader struct {
	spec *ActionSpec
	err  error
}

func (r *specReader) string(key string) string {
	value, err := r.spec.String(key)
	r.keep(err)
	return value
}

func (r *specReader) strings(key string) []string {
	value, err := r.spec.Strings(key)
	r.keep(err)
	return value
}

func (r *specReader) bool(key string) bool {
	value, err := r.spec.Bool(key)
	r.keep(err)
	return value
}

func (r *specReader) mode(key string) fs.FileMode {
	value, err := r.spec.Mode(key)
	r.keep(err)
	return value
}

func (r *specReader) keep(err error) {
	if r.err == nil {
		r.err = err
	}
}

// BuiltinActionTypes returns the built-in action types. Decrypt actions
// use identityFiles in addition to the identities a declaration lists.
func BuiltinActionTypes(identityFiles []string) []ActionType {
	return []ActionType{
		&builtinAction{
			name: "mkdir",
			template: map[string]any{
				"path": settings.Required(settings.KindString),
				"mode": nil,
			},
			build: func(spec *ActionSpec) (transaction.Operation, error) {
				r := &specReader{spec: spec}
				operation := &transaction.CreateDirectory{Path: r.string("path"), Mode: r.mode("mode")}
				return operation, r.err
			},
		},
		&builtinAction{
			name: "copy",
			template: map[string]any{
				"source":      settings.Required(settings.KindString),
				"destination": settings.Required(settings.KindString),
				"mode":        nil,
				"overwrite":   false,
			},
			build: func(spec *ActionSpec) (transaction.Operation, error) {
				r := &specReader{spec: spec}
				operation := &transaction.CopyFile{
					Source:      r.string("source"),
					Destination: r.string("destination"),
					Mode:        r.mode("mode"),
					Overwrite:   r.bool("overwrite"),
				}
				return operation, r.err
			},
		},
		&builtinAction{
			name: "symlink",
			template: map[string]any{
				"target":    settings.Required(settings.KindString),
				"path":      settings.Required(settings.KindString),
				"overwrite": false,
			},
			build: func(spec *ActionSpec) (transaction.Operation, error) {
				r := &specReader{spec: spec}
				operation := &transaction.Symlink{
					Target:    r.string("target"),
					Path:      r.string("path"),
					Overwrite: r.bool("overwrite"),
				}
				return operation, r.err
			},
		},
		&builtinAction{
			name: "write",
			template: map[string]any{
				"path":      settings.Required(settings.KindString),
				"content":   settings.Required(settings.KindString),
				"mode":      nil,
				"overwrite": false,
			},
			build: func(spec *ActionSpec) (transaction.Operation, error) {
				r := &specReader{spec: spec}
				operation := &transaction.WriteFile{
					Path:      r.string("path"),
					Data:      []byte(r.string("content")),
					Mode:      r.mode("mode"),
					Overwrite: r.bool("overwrite"),
				}
				return operation, r.err
			},
		},
		&builtinAction{
			name: "command",
			template: map[string]any{
				"args":     settings.Required(settings.KindList),
				"rollback": []any{},
				"cwd":      "",
			},
			build: func(spec *ActionSpec) (transaction.Operation, error) {
				r := &specReader{spec: spec}
				operation := &transaction.Command{
					Args:         r.strings("args"),
					RollbackArgs: r.strings("rollback"),
					Dir:          r.string("cwd"),
					Env:          spec.Env.Environ(),
				}
				if r.err == nil && len(operation.Args) == 0 {
					r.err = fmt.Errorf("args is empty")
				}
				return operation, r.err
			},
		},
		&builtinAction{
			name: "decrypt",
			template: map[string]any{
				"source":      settings.Required(settings.KindString),
				"destination": settings.Required(settings.KindString),
				"identities":  []any{},
				"mode":        nil,
				"overwrite":   false,
			},
			build: func(spec *ActionSpec) (transaction.Operation, error) {
				r := &specReader{spec: spec}
				operation := &decryptOperation{
					source:     r.string("source"),
					identities: append(r.strings("identities"), identityFiles...),
					write: transaction.WriteFile{
						Path:      r.string("destination"),
						Mode:      r.mode("mode"),
						Overwrite: r.bool("overwrite"),
					},
				}
				if operation.write.Mode == 0 {
					operation.write.Mode = 0o600
				}
				return operation, r.err
			},
		},
	}
}

// decryptOperation decrypts an age-encrypted file into place. The
// ciphertext is decrypted in dry-run too, so a missing or wrong key
// fails validation.
type decryptOperation struct {
	source     string
	identities []string
	write      transaction.WriteFile
}

func (o *decryptOperation) Name() string {
	return fmt.Sprintf("decrypt %s -> %s", o.source, o.write.Path)
}

func (o *decryptOperation) Apply(tx *transaction.Transaction) error {
	identities, err := sealed.LoadIdentities(o.identities)
	if err != nil {
		return err
	}
	plaintext, err := sealed.DecryptFile(o.source, identities)
	if err != nil {
		return err
	}
	o.write.Data = plaintext
	return o.write.Apply(tx)
}

func (o *decryptOperation) Rollback(tx *transaction.Transaction) error {
	return o.write.Rollback(tx)
}
