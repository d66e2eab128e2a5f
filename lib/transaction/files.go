// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transaction

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// CreateDirectory creates a directory and any missing parents.
type CreateDirectory struct {
	Path string
	// Mode defaults to 0755.
	Mode fs.FileMode

	// created lists the directories Apply made, deepest last.
	created []string
}

func (o *CreateDirectory) Name() string {
	return "mkdir " + o.Path
}

func (o *CreateDirectory) Apply(tx *Transaction) error {
	missing, err := missingDirectories(o.Path)
	if err != nil {
		return err
	}
	if tx.DryRun() || len(missing) == 0 {
		return nil
	}

	mode := o.Mode
	if mode == 0 {
		mode = 0o755
	}
	for _, directory := range missing {
		if err := os.Mkdir(directory, mode); err != nil && !errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("creating directory: %w", err)
		}
		o.created = append(o.created, directory)
	}
	return nil
}

func (o *CreateDirectory) Rollback(tx *Transaction) error {
	for index := len(o.created) - 1; index >= 0; index-- {
		if err := os.Remove(o.created[index]); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing created directory: %w", err)
		}
	}
	o.created = nil
	return nil
}

// missingDirectories returns the directories that must be created for
// path to exist, outermost first. An existing non-directory anywhere on
// the way is an error.
func missingDirectories(path string) ([]string, error) {
	var missing []string
	for current := filepath.Clean(path); ; current = filepath.Dir(current) {
		info, err := os.Stat(current)
		if err == nil {
			if !info.IsDir() {
				return nil, fmt.Errorf("%s exists and is not a directory", current)
			}
			break
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		missing = append([]string{current}, missing...)
		if parent := filepath.Dir(current); parent == current {
			break
		}
	}
	return missing, nil
}

// fileRestore remembers what a file replacement overwrote.
type fileRestore struct {
	path     string
	written  bool
	existed  bool
	previous []byte
	mode     fs.FileMode
}

// prepare checks that path can receive a regular file and, outside dry
// run, snapshots its current content.
func (r *fileRestore) prepare(tx *Transaction, path string, overwrite bool) error {
	r.path = path
	info, err := os.Lstat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case err != nil:
		return err
	case info.IsDir():
		return fmt.Errorf("%s exists and is a directory", path)
	case !overwrite:
		return fmt.Errorf("%s already exists", path)
	case !info.Mode().IsRegular():
		return fmt.Errorf("%s exists and is not a regular file", path)
	}
	if tx.DryRun() {
		return nil
	}
	previous, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("saving previous content: %w", err)
	}
	r.existed = true
	r.previous = previous
	r.mode = info.Mode().Perm()
	return nil
}

func (r *fileRestore) write(data []byte, mode fs.FileMode) error {
	if err := writeAtomic(r.path, data, mode); err != nil {
		return err
	}
	r.written = true
	return nil
}

func (r *fileRestore) restore() error {
	if !r.written {
		return nil
	}
	if r.existed {
		if err := writeAtomic(r.path, r.previous, r.mode); err != nil {
			return fmt.Errorf("restoring previous content: %w", err)
		}
	} else if err := os.Remove(r.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing written file: %w", err)
	}
	r.written = false
	return nil
}

// writeAtomic writes data to a temporary file next to path, syncs it
// and renames it into place.
func writeAtomic(path string, data []byte, mode fs.FileMode) error {
	temporaryPath := path + ".tmp"

	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary file: %w", err)
	}
	if err := os.Chmod(temporaryPath, mode); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("setting file mode: %w", err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming file into place: %w", err)
	}

	parentDirectory, err := os.Open(filepath.Dir(path))
	if err == nil {
		parentDirectory.Sync()
		parentDirectory.Close()
	}
	return nil
}

// WriteFile writes Data to Path atomically.
type WriteFile struct {
	Path string
	Data []byte
	// Mode defaults to 0644.
	Mode fs.FileMode
	// Overwrite allows replacing an existing regular file, which is
	// restored on rollback.
	Overwrite bool

	restore fileRestore
}

func (o *WriteFile) Name() string {
	return "write " + o.Path
}

func (o *WriteFile) Apply(tx *Transaction) error {
	if err := o.restore.prepare(tx, o.Path, o.Overwrite); err != nil {
		return err
	}
	if tx.DryRun() {
		return nil
	}
	return o.restore.write(o.Data, modeOrDefault(o.Mode, 0o644))
}

func (o *WriteFile) Rollback(tx *Transaction) error {
	return o.restore.restore()
}

// CopyFile copies the regular file Source to Destination.
type CopyFile struct {
	Source      string
	Destination string
	// Mode defaults to the mode of Source.
	Mode      fs.FileMode
	Overwrite bool

	restore fileRestore
}

func (o *CopyFile) Name() string {
	return fmt.Sprintf("copy %s -> %s", o.Source, o.Destination)
}

func (o *CopyFile) Apply(tx *Transaction) error {
	info, err := os.Stat(o.Source)
	if err != nil {
		return fmt.Errorf("copy source: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("copy source %s is not a regular file", o.Source)
	}
	if err := o.restore.prepare(tx, o.Destination, o.Overwrite); err != nil {
		return err
	}
	if tx.DryRun() {
		return nil
	}
	data, err := os.ReadFile(o.Source)
	if err != nil {
		return fmt.Errorf("reading copy source: %w", err)
	}
	return o.restore.write(data, modeOrDefault(o.Mode, info.Mode().Perm()))
}

func (o *CopyFile) Rollback(tx *Transaction) error {
	return o.restore.restore()
}

// Symlink creates a symbolic link at Path pointing to Target.
type Symlink struct {
	Target string
	Path   string
	// Overwrite allows replacing an existing symlink, which is restored
	// on rollback. Other existing files are never replaced.
	Overwrite bool

	created        bool
	previousTarget string
}

func (o *Symlink) Name() string {
	return fmt.Sprintf("symlink %s -> %s", o.Path, o.Target)
}

func (o *Symlink) Apply(tx *Transaction) error {
	info, err := os.Lstat(o.Path)
	replacing := false
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return err
	case info.Mode()&fs.ModeSymlink == 0:
		return fmt.Errorf("%s exists and is not a symlink", o.Path)
	default:
		current, err := os.Readlink(o.Path)
		if err != nil {
			return err
		}
		if current == o.Target {
			return nil
		}
		if !o.Overwrite {
			return fmt.Errorf("%s already links to %s", o.Path, current)
		}
		replacing = true
		if !tx.DryRun() {
			o.previousTarget = current
		}
	}
	if tx.DryRun() {
		return nil
	}

	if replacing {
		if err := os.Remove(o.Path); err != nil {
			return fmt.Errorf("replacing symlink: %w", err)
		}
	}
	if err := os.Symlink(o.Target, o.Path); err != nil {
		if replacing {
			os.Symlink(o.previousTarget, o.Path)
		}
		return fmt.Errorf("creating symlink: %w", err)
	}
	o.created = true
	return nil
}

func (o *Symlink) Rollback(tx *Transaction) error {
	if !o.created {
		return nil
	}
	if err := os.Remove(o.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing symlink: %w", err)
	}
	if o.previousTarget != "" {
		if err := os.Symlink(o.previousTarget, o.Path); err != nil {
			return fmt.Errorf("restoring previous symlink: %w", err)
		}
	}
	o.created = false
	return nil
}

func modeOrDefault(mode, fallback fs.FileMode) fs.FileMode {
	if mode == 0 {
		return fallback
	}
	return mode
}
