// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers: the structured
// logger every component receives, and fatal error reporting to
// stderr for failures before or outside that logger.
//
// Library packages never print. A binary's run() returns its error to
// main(), which hands it to [Fatal].
package process
