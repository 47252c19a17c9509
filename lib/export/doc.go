// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package export turns a batch into its signed on-disk artifacts.
//
// The payload is the 16-byte header "EK Export v1    " followed by a
// deterministic CBOR [Export] holding the batch's keys in publication
// order. The detached signature file is a CBOR [SignatureList] whose
// signature covers the exact payload bytes, so a client holding the
// deployment's public key can verify a download independently.
//
// [Exporter.Nodes] returns the artifacts as structure nodes that
// serialize and sign on first write. Signing failures abort the write
// before the payload file is created: a payload never appears on disk
// without its signature. In archive mode the pair is packaged as one
// zip file with fixed timestamps so reruns stay byte-identical.
package export
