// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package structure

import (
	"context"
	"fmt"
)

// Render prepares root with an empty index context and writes it
// beneath dir, which must already exist. Any failure aborts the whole
// render; whatever was written before the failure is left for the
// caller to discard.
func Render(ctx context.Context, root Node, dir string, output *Output) error {
	if err := ValidateName(root.Name()); err != nil {
		return fmt.Errorf("root: %w", err)
	}
	if err := root.Prepare(Indices{}); err != nil {
		return err
	}
	return root.Write(ctx, output, dir)
}
