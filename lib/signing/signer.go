// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package signing

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrKey is wrapped by failures to load, parse or generate a key.
	ErrKey = errors.New("signing: unusable key")

	// ErrVerification is returned by Verify for a signature that does
	// not match the payload.
	ErrVerification = errors.New("signing: signature verification failed")
)

// Algorithm names a signature scheme.
type Algorithm string

const (
	// Ed25519 signs the payload directly (RFC 8032).
	Ed25519 Algorithm = "ed25519"

	// ECDSAP256 signs the SHA-256 digest of the payload with a P-256
	// key. Signatures are ASN.1 DER encoded.
	ECDSAP256 Algorithm = "ecdsa-p256"
)

// ParseAlgorithm accepts the configuration names of the supported
// algorithms.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(name))) {
	case Ed25519:
		return Ed25519, nil
	case ECDSAP256:
		return ECDSAP256, nil
	default:
		return "", fmt.Errorf("%w: unsupported algorithm %q", ErrKey, name)
	}
}

// OID returns the object identifier clients use to select the
// verification algorithm.
func (algorithm Algorithm) OID() string {
	switch algorithm {
	case Ed25519:
		return "1.3.101.112"
	case ECDSAP256:
		return "1.2.840.10045.4.3.2"
	default:
		return ""
	}
}

// Signer produces detached signatures over payload bytes.
// Implementations are safe for concurrent use.
type Signer interface {
	Sign(payload []byte) ([]byte, error)
	Algorithm() Algorithm
	Public() crypto.PublicKey
}

// Ed25519Signer signs with an Ed25519 private key. Signatures are
// deterministic.
type Ed25519Signer struct {
	key ed25519.PrivateKey
}

// NewEd25519Signer wraps key. The key is not copied and must not be
// modified afterwards.
func NewEd25519Signer(key ed25519.PrivateKey) (*Ed25519Signer, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: Ed25519 private key has %d bytes, want %d", ErrKey, len(key), ed25519.PrivateKeySize)
	}
	return &Ed25519Signer{key: key}, nil
}

func (signer *Ed25519Signer) Sign(payload []byte) ([]byte, error) {
	return ed25519.Sign(signer.key, payload), nil
}

func (signer *Ed25519Signer) Algorithm() Algorithm { return Ed25519 }

func (signer *Ed25519Signer) Public() crypto.PublicKey { return signer.key.Public() }

// ECDSASigner signs the SHA-256 digest of the payload with a P-256
// key. Signatures are randomized.
type ECDSASigner struct {
	key *ecdsa.PrivateKey
}

// NewECDSASigner wraps key, which must be on P-256.
func NewECDSASigner(key *ecdsa.PrivateKey) (*ECDSASigner, error) {
	if key == nil || key.Curve != elliptic.P256() {
		return nil, fmt.Errorf("%w: ECDSA key is not on P-256", ErrKey)
	}
	return &ECDSASigner{key: key}, nil
}

func (signer *ECDSASigner) Sign(payload []byte) ([]byte, error) {
	digest := sha256.Sum256(payload)
	signature, err := ecdsa.SignASN1(rand.Reader, signer.key, digest[:])
	if err != nil {
		return nil, fmt.Errorf("signing: ECDSA: %w", err)
	}
	return signature, nil
}

func (signer *ECDSASigner) Algorithm() Algorithm { return ECDSAP256 }

func (signer *ECDSASigner) Public() crypto.PublicKey { return &signer.key.PublicKey }

// NewSigner wraps a parsed private key of a supported algorithm.
func NewSigner(privateKey any) (Signer, error) {
	switch key := privateKey.(type) {
	case ed25519.PrivateKey:
		return NewEd25519Signer(key)
	case *ecdsa.PrivateKey:
		return NewECDSASigner(key)
	default:
		return nil, fmt.Errorf("%w: unsupported private key type %T", ErrKey, privateKey)
	}
}

// GenerateKey creates a fresh key for algorithm.
func GenerateKey(algorithm Algorithm) (Signer, error) {
	switch algorithm {
	case Ed25519:
		_, private, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generating Ed25519 key: %w", err)
		}
		return &Ed25519Signer{key: private}, nil
	case ECDSAP256:
		private, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generating P-256 key: %w", err)
		}
		return &ECDSASigner{key: private}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrKey, algorithm)
	}
}

// Verify checks signature over payload against a public key returned
// by Signer.Public or ParsePublicKeyPEM.
func Verify(publicKey crypto.PublicKey, payload, signature []byte) error {
	switch key := publicKey.(type) {
	case ed25519.PublicKey:
		if !ed25519.Verify(key, payload, signature) {
			return ErrVerification
		}
		return nil
	case *ecdsa.PublicKey:
		digest := sha256.Sum256(payload)
		if !ecdsa.VerifyASN1(key, digest[:], signature) {
			return ErrVerification
		}
		return nil
	default:
		return fmt.Errorf("%w: unsupported public key type %T", ErrKey, publicKey)
	}
}
