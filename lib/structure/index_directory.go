// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package structure

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"
)

// IndexSpec describes how an IndexDirectory enumerates its children.
type IndexSpec[T any] struct {
	// Domain returns the index values for this level. It receives
	// the context of the ancestors, not including this level.
	Domain func(indices Indices) ([]T, error)

	// Format turns an index value into its subdirectory name. Names
	// must be pairwise distinct across one Domain result.
	Format func(value T) string

	// Child, if set, builds the node placed inside the subdirectory
	// of value. indices already has value pushed. A nil node means
	// the subdirectory gets no factory child.
	Child func(value T, indices Indices) (Node, error)
}

// Producer builds an optional extra child for the subdirectory of one
// index value. Returning a nil node attaches nothing for that value.
type Producer[T any] func(value T, indices Indices) (Node, error)

// Indexed is a node whose children are generated from an index
// domain. ChildNames reports the names resolved by the most recent
// Prepare, in the order they are written.
type Indexed interface {
	Node
	ChildNames() []string
}

// IndexDirectory is a directory with one subdirectory per value of an
// index domain. The subdirectory of value v holds the Child node for v
// followed by every attached producer's node for v.
type IndexDirectory[T any] struct {
	name        string
	spec        IndexSpec[T]
	attachments []Producer[T]

	prepared []*Directory
}

// NewIndexDirectory returns an index directory named name enumerating
// children as described by spec.
func NewIndexDirectory[T any](name string, spec IndexSpec[T]) *IndexDirectory[T] {
	return &IndexDirectory[T]{name: name, spec: spec}
}

func (directory *IndexDirectory[T]) Name() string { return directory.name }

// Attach registers a producer of extra per-value children. Producers
// run in registration order during Prepare.
func (directory *IndexDirectory[T]) Attach(producer Producer[T]) {
	directory.attachments = append(directory.attachments, producer)
}

// ChildNames returns the subdirectory names of the last Prepare,
// sorted lexicographically.
func (directory *IndexDirectory[T]) ChildNames() []string {
	names := make([]string, len(directory.prepared))
	for position, child := range directory.prepared {
		names[position] = child.Name()
	}
	return names
}

// Prepare evaluates the domain once and builds the subtree of every
// index value. The same ancestor context always yields the same set
// of children provided the domain and factories are deterministic.
func (directory *IndexDirectory[T]) Prepare(indices Indices) error {
	if directory.spec.Domain == nil || directory.spec.Format == nil {
		return fmt.Errorf("%w: %s", ErrNoDomain, directory.name)
	}

	values, err := directory.spec.Domain(indices)
	if err != nil {
		return fmt.Errorf("structure: evaluating domain of %s: %w", directory.name, err)
	}

	type entry struct {
		name  string
		value T
	}
	entries := make([]entry, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		name := directory.spec.Format(value)
		if err := ValidateName(name); err != nil {
			return fmt.Errorf("in %s: %w", directory.name, err)
		}
		if _, duplicate := seen[name]; duplicate {
			return fmt.Errorf("%w: %q in %s", ErrDuplicateName, name, directory.name)
		}
		seen[name] = struct{}{}
		entries = append(entries, entry{name: name, value: value})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	prepared := make([]*Directory, 0, len(entries))
	for _, entry := range entries {
		childIndices := indices.Push(entry.value)
		subdirectory := NewDirectory(entry.name)

		if directory.spec.Child != nil {
			child, err := directory.spec.Child(entry.value, childIndices)
			if err != nil {
				return fmt.Errorf("structure: building %s/%s: %w", directory.name, entry.name, err)
			}
			subdirectory.Add(child)
		}
		for _, producer := range directory.attachments {
			attached, err := producer(entry.value, childIndices)
			if err != nil {
				return fmt.Errorf("structure: attaching to %s/%s: %w", directory.name, entry.name, err)
			}
			subdirectory.Add(attached)
		}

		if err := subdirectory.Prepare(childIndices); err != nil {
			return err
		}
		prepared = append(prepared, subdirectory)
	}

	directory.prepared = prepared
	return nil
}

// Write creates the directory and writes the subdirectories,
// concurrently up to output.Parallelism. The first error cancels the
// remaining siblings and is returned.
func (directory *IndexDirectory[T]) Write(ctx context.Context, output *Output, parent string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(parent, directory.name)
	if err := output.makeDir(path); err != nil {
		return err
	}

	group, groupContext := errgroup.WithContext(ctx)
	group.SetLimit(output.parallelism())
	for _, child := range directory.prepared {
		group.Go(func() error {
			return child.Write(groupContext, output, path)
		})
	}
	return group.Wait()
}
