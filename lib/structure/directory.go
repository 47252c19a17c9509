// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package structure

import (
	"context"
	"fmt"
	"path/filepath"
)

// Directory is a node with a fixed set of children, written in the
// order they were added.
type Directory struct {
	name     string
	children []Node
}

// NewDirectory returns an empty directory named name.
func NewDirectory(name string, children ...Node) *Directory {
	directory := &Directory{name: name}
	directory.Add(children...)
	return directory
}

func (directory *Directory) Name() string { return directory.name }

// Add appends children. Nil nodes are ignored so callers can pass the
// result of optional producers directly.
func (directory *Directory) Add(children ...Node) {
	for _, child := range children {
		if child != nil {
			directory.children = append(directory.children, child)
		}
	}
}

// Children returns the children in insertion order.
func (directory *Directory) Children() []Node {
	children := make([]Node, len(directory.children))
	copy(children, directory.children)
	return children
}

// Prepare validates child names and prepares every child with the
// same context: a static directory adds no index of its own.
func (directory *Directory) Prepare(indices Indices) error {
	seen := make(map[string]struct{}, len(directory.children))
	for _, child := range directory.children {
		name := child.Name()
		if err := ValidateName(name); err != nil {
			return fmt.Errorf("in %s: %w", directory.name, err)
		}
		if _, duplicate := seen[name]; duplicate {
			return fmt.Errorf("%w: %q in %s", ErrDuplicateName, name, directory.name)
		}
		seen[name] = struct{}{}
	}
	for _, child := range directory.children {
		if err := child.Prepare(indices); err != nil {
			return err
		}
	}
	return nil
}

func (directory *Directory) Write(ctx context.Context, output *Output, parent string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(parent, directory.name)
	if err := output.makeDir(path); err != nil {
		return err
	}
	for _, child := range directory.children {
		if err := child.Write(ctx, output, path); err != nil {
			return err
		}
	}
	return nil
}
