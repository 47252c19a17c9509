// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package structure materializes a tree of files and directories on
// disk. Parts of the tree are generated: an [IndexDirectory] has one
// subdirectory per value of an index domain (countries, dates, hours,
// API versions), and the domain of a deeper level is computed from
// the [Indices] chosen above it.
//
// Rendering has two phases. Prepare walks the whole tree once,
// single-threaded, evaluating every domain and building the concrete
// children. Write then performs only filesystem I/O. Sibling subtrees
// of an index directory are written concurrently because they touch
// disjoint paths. The [Indexing] decorator relies on the split: it
// writes the listing from the names Prepare resolved, which are the
// same names Write creates.
//
// The node kinds are:
//
//   - [File] and [LazyFile] -- leaf payloads
//   - [Directory] -- fixed children in insertion order
//   - [IndexDirectory] -- children generated from an index domain,
//     plus attached per-value producers
//   - [Indexing] -- adds a JSON listing of an index directory's
//     children
//
// Name collisions within one directory and names that are not a
// single path segment are construction errors ([ErrDuplicateName],
// [ErrInvalidName]).
package structure
