// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the distribution
// run.
//
// Configuration is loaded from a single file specified by either the
// CWA_DISTRIBUTION_CONFIG environment variable (via [Load]) or a
// --config flag (via [LoadFile]). There are no fallbacks and no
// automatic file search. The file is YAML; files ending in .json or
// .jsonc are JSON with comments allowed.
//
// The file may contain environment-specific sections (development,
// staging, production) that override output, bundling, signature and
// keystore values when [Config].Environment matches.
//
// Variable expansion is performed on path fields after loading:
// ${HOME} and ${VAR:-default} patterns are expanded against the
// process environment. No other environment variables override config
// values.
//
// Every configuration problem is a fatal error raised before the run
// writes anything; [Config.Validate] reports all of them at once.
package config
