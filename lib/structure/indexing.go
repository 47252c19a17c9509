// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package structure

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
)

// Indexing decorates an Indexed node with a listing file written
// inside its directory. The listing is a JSON array of the child
// names resolved by Prepare, so it can never disagree with the
// subdirectories actually written next to it.
type Indexing struct {
	wrapped     Indexed
	listingName string
	listing     []byte
}

// NewIndexing wraps directory so that it writes a listing file named
// listingName alongside its generated children.
func NewIndexing(directory Indexed, listingName string) *Indexing {
	return &Indexing{wrapped: directory, listingName: listingName}
}

func (indexing *Indexing) Name() string { return indexing.wrapped.Name() }

// ChildNames forwards to the wrapped directory.
func (indexing *Indexing) ChildNames() []string { return indexing.wrapped.ChildNames() }

// Listing returns the encoded listing of the last Prepare.
func (indexing *Indexing) Listing() []byte { return indexing.listing }

func (indexing *Indexing) Prepare(indices Indices) error {
	if err := ValidateName(indexing.listingName); err != nil {
		return fmt.Errorf("listing of %s: %w", indexing.wrapped.Name(), err)
	}
	if err := indexing.wrapped.Prepare(indices); err != nil {
		return err
	}
	names := indexing.wrapped.ChildNames()
	for _, name := range names {
		if name == indexing.listingName {
			return fmt.Errorf("%w: child %q of %s collides with its listing", ErrDuplicateName, name, indexing.wrapped.Name())
		}
	}
	listing, err := EncodeListing(names)
	if err != nil {
		return err
	}
	indexing.listing = listing
	return nil
}

func (indexing *Indexing) Write(ctx context.Context, output *Output, parent string) error {
	if err := indexing.wrapped.Write(ctx, output, parent); err != nil {
		return err
	}
	path := filepath.Join(parent, indexing.wrapped.Name(), indexing.listingName)
	return output.writeFile(path, indexing.listing)
}

// EncodeListing serializes child names as a JSON array. An empty set
// encodes as [] rather than null.
func EncodeListing(names []string) ([]byte, error) {
	if names == nil {
		names = []string{}
	}
	listing, err := json.Marshal(names)
	if err != nil {
		return nil, fmt.Errorf("structure: encoding listing: %w", err)
	}
	return listing, nil
}

// DecodeListing parses a listing written by Indexing.
func DecodeListing(data []byte) ([]string, error) {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("structure: decoding listing: %w", err)
	}
	return names, nil
}
