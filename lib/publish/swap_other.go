// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package publish

func swap(staging, target string) (string, error) {
	return swapByRename(staging, target)
}
