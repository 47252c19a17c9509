// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package signing

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"filippo.io/age"
)

const (
	privateKeyBlock = "PRIVATE KEY"
	publicKeyBlock  = "PUBLIC KEY"

	// PrivateKeyFile and PublicKeyFile are the names cwa-keygen
	// writes. An age-encrypted private key gets EncryptedSuffix
	// appended.
	PrivateKeyFile  = "signing-key.pem"
	PublicKeyFile   = "signing-key.pub.pem"
	EncryptedSuffix = ".age"
)

// LoadSigner reads a PKCS#8 PEM private key from keyPath. When
// identityPath is not empty, the key file is age ciphertext and is
// decrypted with the identities in identityPath first. Any failure is
// a configuration error and wraps ErrKey.
func LoadSigner(keyPath, identityPath string) (Signer, error) {
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("%w: reading private key: %v", ErrKey, err)
	}
	if identityPath != "" {
		data, err = decryptKeyFile(data, identityPath)
		if err != nil {
			return nil, err
		}
	}
	return ParsePrivateKeyPEM(data)
}

func decryptKeyFile(ciphertext []byte, identityPath string) ([]byte, error) {
	identityFile, err := os.Open(identityPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening age identity: %v", ErrKey, err)
	}
	defer identityFile.Close()

	identities, err := age.ParseIdentities(identityFile)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing age identity %s: %v", ErrKey, identityPath, err)
	}
	reader, err := age.Decrypt(bytes.NewReader(ciphertext), identities...)
	if err != nil {
		return nil, fmt.Errorf("%w: decrypting private key: %v", ErrKey, err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: reading decrypted private key: %v", ErrKey, err)
	}
	return plaintext, nil
}

// ParsePrivateKeyPEM parses a PKCS#8 "PRIVATE KEY" PEM block.
func ParsePrivateKeyPEM(data []byte) (Signer, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != privateKeyBlock {
		return nil, fmt.Errorf("%w: no %s PEM block", ErrKey, privateKeyBlock)
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing PKCS#8: %v", ErrKey, err)
	}
	return NewSigner(key)
}

// MarshalPrivateKeyPEM encodes the key held by signer as PKCS#8 PEM.
func MarshalPrivateKeyPEM(signer Signer) ([]byte, error) {
	var key any
	switch concrete := signer.(type) {
	case *Ed25519Signer:
		key = concrete.key
	case *ECDSASigner:
		key = concrete.key
	default:
		return nil, fmt.Errorf("%w: cannot export key of %T", ErrKey, signer)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("marshaling PKCS#8: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: privateKeyBlock, Bytes: der}), nil
}

// MarshalPublicKeyPEM encodes a public key as PKIX PEM.
func MarshalPublicKeyPEM(publicKey crypto.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(publicKey)
	if err != nil {
		return nil, fmt.Errorf("marshaling PKIX public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: publicKeyBlock, Bytes: der}), nil
}

// ParsePublicKeyPEM parses a PKIX "PUBLIC KEY" PEM block.
func ParsePublicKeyPEM(data []byte) (crypto.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != publicKeyBlock {
		return nil, fmt.Errorf("%w: no %s PEM block", ErrKey, publicKeyBlock)
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing PKIX public key: %v", ErrKey, err)
	}
	return key, nil
}

// EncryptToRecipients encrypts plaintext to the given age public keys
// (age1... format). At least one recipient is required.
func EncryptToRecipients(plaintext []byte, recipientKeys []string) ([]byte, error) {
	if len(recipientKeys) == 0 {
		return nil, fmt.Errorf("at least one recipient is required")
	}
	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return nil, fmt.Errorf("parsing recipient key %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}

	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, recipients...)
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing plaintext to age encryptor: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalizing age encryption: %w", err)
	}
	return ciphertext.Bytes(), nil
}

// SaveKeypair writes the private key of signer and its public key into
// dir. With recipients, the private key is age-encrypted and its file
// name gets EncryptedSuffix. The private key file has 0600
// permissions; the public key file has 0644. Returns the path of the
// private key file.
func SaveKeypair(dir string, signer Signer, recipients []string) (string, error) {
	privatePEM, err := MarshalPrivateKeyPEM(signer)
	if err != nil {
		return "", err
	}
	publicPEM, err := MarshalPublicKeyPEM(signer.Public())
	if err != nil {
		return "", err
	}

	privatePath := filepath.Join(dir, PrivateKeyFile)
	if len(recipients) > 0 {
		privatePEM, err = EncryptToRecipients(privatePEM, recipients)
		if err != nil {
			return "", err
		}
		privatePath += EncryptedSuffix
	}
	if err := os.WriteFile(privatePath, privatePEM, 0600); err != nil {
		return "", fmt.Errorf("writing private key: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, PublicKeyFile), publicPEM, 0644); err != nil {
		return "", fmt.Errorf("writing public key: %w", err)
	}
	return privatePath, nil
}
