// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package publish

import (
	"errors"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"
)

// swap moves staging to target. When target exists the two are
// exchanged atomically and the old tree is left at the staging path,
// which is returned for removal.
func swap(staging, target string) (string, error) {
	err := unix.Renameat2(unix.AT_FDCWD, staging, unix.AT_FDCWD, target, unix.RENAME_EXCHANGE)
	switch {
	case err == nil:
		return staging, nil
	case errors.Is(err, unix.ENOENT):
		if _, statErr := os.Lstat(target); errors.Is(statErr, fs.ErrNotExist) {
			return "", os.Rename(staging, target)
		}
		return "", err
	case errors.Is(err, unix.EINVAL), errors.Is(err, unix.ENOSYS):
		// Filesystem or kernel without RENAME_EXCHANGE.
		return swapByRename(staging, target)
	default:
		return "", err
	}
}
