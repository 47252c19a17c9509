// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding configuration shared by the
// batch payloads and signature files.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items.
// Same logical data always produces identical bytes. Payloads are
// signed over their exact bytes, so every writer must go through this
// package rather than configuring fxamacker/cbor on its own.
//
// For plain values:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For files that start with a fixed format header:
//
//	data, err := codec.MarshalFramed("EK Export v1    ", export)
//	err = codec.UnmarshalFramed("EK Export v1    ", data, &export)
//
// Wire types use `cbor` struct tags with short keyed names. They are
// never serialized as JSON.
package codec
