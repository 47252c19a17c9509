// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"crypto"
	"errors"
	"testing"

	"github.com/Howard86/cwa-server/lib/signing"
)

// Signer returns a freshly generated Ed25519 signer. Ed25519
// signatures are deterministic, which keeps whole-tree comparisons
// byte-exact.
func Signer(t testing.TB) signing.Signer {
	t.Helper()
	signer, err := signing.GenerateKey(signing.Ed25519)
	if err != nil {
		t.Fatalf("generating signing key: %v", err)
	}
	return signer
}

// ErrSignerBroken is returned by every FailingSigner.Sign call.
var ErrSignerBroken = errors.New("testutil: signer broken")

// FailingSigner is a signing.Signer whose Sign always fails, for
// exercising the no-unsigned-payload path.
type FailingSigner struct{}

func (FailingSigner) Sign([]byte) ([]byte, error) { return nil, ErrSignerBroken }
func (FailingSigner) Algorithm() signing.Algorithm { return signing.ECDSAP256 }
func (FailingSigner) Public() crypto.PublicKey { return nil }
