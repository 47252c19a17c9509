// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package signing provides the long-lived batch signing key.
//
// A deployment has exactly one signing key with a fixed algorithm:
// Ed25519, or ECDSA over P-256 with SHA-256 (the algorithm exposure
// notification clients verify). The key is held by a [Signer], which
// is read-only after construction and safe for concurrent use, so
// batches of sibling subtrees can be signed in parallel.
//
// Private keys are PKCS#8 PEM files. A key file may additionally be
// encrypted with age to one or more recipients; [LoadSigner] decrypts
// it with an age identity file before parsing. Public keys are PKIX
// PEM files, the form handed to client developers.
package signing
