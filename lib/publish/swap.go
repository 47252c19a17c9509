// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package publish

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// swapByRename moves target aside, then renames staging into its
// place. If the second rename fails the previous tree is restored.
func swapByRename(staging, target string) (string, error) {
	previous := stagingPath(target, "previous")
	if err := os.Rename(target, previous); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", os.Rename(staging, target)
		}
		return "", err
	}
	if err := os.Rename(staging, target); err != nil {
		if restoreErr := os.Rename(previous, target); restoreErr != nil {
			return "", fmt.Errorf("%w (restoring previous tree: %v)", err, restoreErr)
		}
		return "", err
	}
	return previous, nil
}
