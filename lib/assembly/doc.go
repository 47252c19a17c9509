// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package assembly composes the distribution tree served to clients:
//
//	version/index                              ["v1"]
//	version/v1/configuration/app_config        opaque payloads
//	version/v1/stats
//	version/v1/diagnosis-keys/country/index    ["DE"]
//	.../country/DE/date/index                  ["2021-03-01", ...]
//	.../date/2021-03-01/export.bin             day batch, if any
//	.../date/2021-03-01/export.sig
//	.../date/2021-03-01/hour/index             ["08", "14"] or []
//	.../date/2021-03-01/hour/14/export.bin     hour batch
//	.../date/2021-03-01/hour/14/export.sig
//
// Every indexed level carries a listing so clients discover countries,
// dates, hours and versions without a query API. A date appears
// exactly when it has at least one batch; its hour directory is always
// present and lists only the hours that met the minimum batch size on
// their own. Path segments and file names come from [API].
//
// The tree is built from an already bundled [bundler.Result] and
// nothing here touches the filesystem until the tree is written.
package assembly
