// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package structure

import "fmt"

// Indices is the ordered sequence of index values chosen by the
// ancestors of a node, root first. The zero value is the empty
// context.
//
// Indices is immutable. Push returns a new value with its own backing
// array, so sibling subtrees that extend the same parent context
// never observe each other's values, even when rendered concurrently.
type Indices struct {
	values []any
}

// NewIndices returns an Indices holding values in root-to-leaf order.
func NewIndices(values ...any) Indices {
	copied := make([]any, len(values))
	copy(copied, values)
	return Indices{values: copied}
}

// Push returns a copy of the context with value appended as the
// deepest index.
func (indices Indices) Push(value any) Indices {
	extended := make([]any, len(indices.values)+1)
	copy(extended, indices.values)
	extended[len(indices.values)] = value
	return Indices{values: extended}
}

// Len returns the number of index values.
func (indices Indices) Len() int {
	return len(indices.values)
}

// At returns the value at depth position, where 0 is the root-most
// index. Panics if position is out of range.
func (indices Indices) At(position int) any {
	return indices.values[position]
}

// Peek returns the deepest index value, or nil for the empty context.
func (indices Indices) Peek() any {
	if len(indices.values) == 0 {
		return nil
	}
	return indices.values[len(indices.values)-1]
}

// Values returns a copy of the index values in root-to-leaf order.
func (indices Indices) Values() []any {
	copied := make([]any, len(indices.values))
	copy(copied, indices.values)
	return copied
}

// Top returns the deepest index value as a T. It fails if the context
// is empty or the deepest value has a different type.
func Top[T any](indices Indices) (T, error) {
	var zero T
	if indices.Len() == 0 {
		return zero, fmt.Errorf("structure: empty index context, want %T", zero)
	}
	value, ok := indices.Peek().(T)
	if !ok {
		return zero, fmt.Errorf("structure: deepest index is %T, want %T", indices.Peek(), zero)
	}
	return value, nil
}

// Nearest returns the deepest index value of type T, searching from
// the leaf towards the root. Useful when a level several steps below
// needs a value chosen higher up (the country seen from an hour).
func Nearest[T any](indices Indices) (T, bool) {
	for position := len(indices.values) - 1; position >= 0; position-- {
		if value, ok := indices.values[position].(T); ok {
			return value, true
		}
	}
	var zero T
	return zero, false
}
