// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package publish replaces a published output directory with a newly
// rendered tree so that readers see either the previous tree or the
// new one, never a mix or a partial write.
//
// The tree is rendered into a staging directory next to the output
// directory, flushed to disk, then swapped into place. On Linux the
// swap is a single renameat2(RENAME_EXCHANGE); elsewhere the previous
// tree is moved aside first, which leaves a short window in which the
// output path does not exist. A failed run removes its staging
// directory and leaves the published tree untouched.
package publish
