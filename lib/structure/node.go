// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package structure

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

var (
	// ErrDuplicateName reports two children of one directory that
	// resolve to the same name. It indicates a defect in a domain or
	// name function, not bad input data.
	ErrDuplicateName = errors.New("structure: duplicate child name")

	// ErrInvalidName reports a child name that cannot be used as a
	// single path segment.
	ErrInvalidName = errors.New("structure: invalid name")

	// ErrNoDomain reports an index directory prepared without an
	// index domain.
	ErrNoDomain = errors.New("structure: index directory has no domain")
)

// Node is one element of the tree materialized on disk: a file or a
// directory of further nodes.
//
// Prepare expands the node for the given ancestor context. It runs
// single-threaded over the whole tree before any Write, and may be
// called more than once; each call replaces the previous expansion.
// Write renders the prepared node beneath parent. Writes of disjoint
// subtrees may run concurrently.
type Node interface {
	Name() string
	Prepare(indices Indices) error
	Write(ctx context.Context, output *Output, parent string) error
}

// Output carries the settings and counters shared by one render pass.
// It is safe for concurrent use by the nodes being written.
type Output struct {
	// Parallelism bounds how many sibling subtrees of one index
	// directory are written concurrently. Values below 1 mean 1.
	Parallelism int

	// FileMode and DirMode default to 0644 and 0755.
	FileMode os.FileMode
	DirMode  os.FileMode

	files atomic.Int64
	bytes atomic.Int64
}

// Files returns the number of files written so far.
func (output *Output) Files() int64 { return output.files.Load() }

// Bytes returns the number of payload bytes written so far.
func (output *Output) Bytes() int64 { return output.bytes.Load() }

func (output *Output) parallelism() int {
	if output.Parallelism < 1 {
		return 1
	}
	return output.Parallelism
}

func (output *Output) fileMode() os.FileMode {
	if output.FileMode == 0 {
		return 0o644
	}
	return output.FileMode
}

func (output *Output) dirMode() os.FileMode {
	if output.DirMode == 0 {
		return 0o755
	}
	return output.DirMode
}

func (output *Output) writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, output.fileMode()); err != nil {
		return fmt.Errorf("structure: writing %s: %w", path, err)
	}
	output.files.Add(1)
	output.bytes.Add(int64(len(data)))
	return nil
}

func (output *Output) makeDir(path string) error {
	if err := os.Mkdir(path, output.dirMode()); err != nil && !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("structure: creating %s: %w", path, err)
	}
	return nil
}

// ValidateName checks that name is usable as one path segment.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`), strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	case filepath.VolumeName(name) != "":
		return fmt.Errorf("%w: %q has a volume name", ErrInvalidName, name)
	}
	return nil
}

// File is a leaf node with fixed contents.
type File struct {
	name string
	data []byte
}

// NewFile returns a file node named name holding data. The slice is
// retained, not copied.
func NewFile(name string, data []byte) *File {
	return &File{name: name, data: data}
}

func (file *File) Name() string { return file.name }

// Bytes returns the file contents.
func (file *File) Bytes() []byte { return file.data }

func (file *File) Prepare(Indices) error { return nil }

func (file *File) Write(ctx context.Context, output *Output, parent string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return output.writeFile(filepath.Join(parent, file.name), file.data)
}

// LazyFile is a leaf node whose contents are produced when it is
// written. Expensive work (serialization, signing) then happens
// inside the parallel write phase. A producer error aborts the write
// and nothing is written for this file.
type LazyFile struct {
	name    string
	produce func() ([]byte, error)
}

// NewLazyFile returns a file node whose contents come from produce.
// produce may be called concurrently with other producers but only
// once per Write of this node.
func NewLazyFile(name string, produce func() ([]byte, error)) *LazyFile {
	return &LazyFile{name: name, produce: produce}
}

func (file *LazyFile) Name() string { return file.name }

func (file *LazyFile) Prepare(Indices) error { return nil }

func (file *LazyFile) Write(ctx context.Context, output *Output, parent string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := file.produce()
	if err != nil {
		return fmt.Errorf("structure: producing %s: %w", filepath.Join(parent, file.name), err)
	}
	return output.writeFile(filepath.Join(parent, file.name), data)
}
