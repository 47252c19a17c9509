// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package signing

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"filippo.io/age"
)

var algorithms = []Algorithm{Ed25519, ECDSAP256}

func TestSignVerify(t *testing.T) {
	payload := []byte("EK Export v1    batch bytes")
	for _, algorithm := range algorithms {
		t.Run(string(algorithm), func(t *testing.T) {
			signer, err := GenerateKey(algorithm)
			if err != nil {
				t.Fatalf("GenerateKey: %v", err)
			}
			if signer.Algorithm() != algorithm {
				t.Errorf("Algorithm() = %q, want %q", signer.Algorithm(), algorithm)
			}

			signature, err := signer.Sign(payload)
			if err != nil {
				t.Fatalf("Sign: %v", err)
			}
			if err := Verify(signer.Public(), payload, signature); err != nil {
				t.Errorf("Verify: %v", err)
			}

			tampered := append([]byte(nil), payload...)
			tampered[0] ^= 0xff
			if err := Verify(signer.Public(), tampered, signature); !errors.Is(err, ErrVerification) {
				t.Errorf("Verify of tampered payload = %v, want ErrVerification", err)
			}
		})
	}
}

func TestConcurrentSigning(t *testing.T) {
	for _, algorithm := range algorithms {
		signer, err := GenerateKey(algorithm)
		if err != nil {
			t.Fatalf("GenerateKey(%s): %v", algorithm, err)
		}
		var wait sync.WaitGroup
		errs := make(chan error, 32)
		for index := 0; index < 32; index++ {
			wait.Add(1)
			go func(index int) {
				defer wait.Done()
				payload := []byte{byte(index)}
				signature, err := signer.Sign(payload)
				if err == nil {
					err = Verify(signer.Public(), payload, signature)
				}
				errs <- err
			}(index)
		}
		wait.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Errorf("%s: concurrent sign: %v", algorithm, err)
			}
		}
	}
}

func TestPEMRoundtrip(t *testing.T) {
	for _, algorithm := range algorithms {
		t.Run(string(algorithm), func(t *testing.T) {
			signer, err := GenerateKey(algorithm)
			if err != nil {
				t.Fatalf("GenerateKey: %v", err)
			}
			privatePEM, err := MarshalPrivateKeyPEM(signer)
			if err != nil {
				t.Fatalf("MarshalPrivateKeyPEM: %v", err)
			}
			loaded, err := ParsePrivateKeyPEM(privatePEM)
			if err != nil {
				t.Fatalf("ParsePrivateKeyPEM: %v", err)
			}
			if loaded.Algorithm() != algorithm {
				t.Errorf("loaded algorithm %q, want %q", loaded.Algorithm(), algorithm)
			}

			publicPEM, err := MarshalPublicKeyPEM(signer.Public())
			if err != nil {
				t.Fatalf("MarshalPublicKeyPEM: %v", err)
			}
			public, err := ParsePublicKeyPEM(publicPEM)
			if err != nil {
				t.Fatalf("ParsePublicKeyPEM: %v", err)
			}

			signature, err := loaded.Sign([]byte("payload"))
			if err != nil {
				t.Fatalf("Sign: %v", err)
			}
			if err := Verify(public, []byte("payload"), signature); err != nil {
				t.Errorf("signature of reloaded key does not verify with original public key: %v", err)
			}
		})
	}
}

func TestLoadSignerPlain(t *testing.T) {
	dir := t.TempDir()
	signer, err := GenerateKey(ECDSAP256)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	path, err := SaveKeypair(dir, signer, nil)
	if err != nil {
		t.Fatalf("SaveKeypair: %v", err)
	}
	if path != filepath.Join(dir, PrivateKeyFile) {
		t.Errorf("private key path = %s", path)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		t.Errorf("private key mode = %o, want 600", mode)
	}

	loaded, err := LoadSigner(path, "")
	if err != nil {
		t.Fatalf("LoadSigner: %v", err)
	}
	if loaded.Algorithm() != ECDSAP256 {
		t.Errorf("loaded algorithm %q", loaded.Algorithm())
	}
}

func TestLoadSignerEncrypted(t *testing.T) {
	dir := t.TempDir()
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("GenerateX25519Identity: %v", err)
	}
	identityPath := filepath.Join(dir, "identity.txt")
	if err := os.WriteFile(identityPath, []byte(identity.String()+"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	signer, err := GenerateKey(Ed25519)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	path, err := SaveKeypair(dir, signer, []string{identity.Recipient().String()})
	if err != nil {
		t.Fatalf("SaveKeypair: %v", err)
	}
	if filepath.Base(path) != PrivateKeyFile+EncryptedSuffix {
		t.Errorf("encrypted key written to %s", path)
	}
	ciphertext, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(ciphertext, []byte("PRIVATE KEY")) {
		t.Error("encrypted key file contains the PEM plaintext")
	}

	loaded, err := LoadSigner(path, identityPath)
	if err != nil {
		t.Fatalf("LoadSigner: %v", err)
	}
	first, _ := signer.Sign([]byte("x"))
	second, _ := loaded.Sign([]byte("x"))
	if !bytes.Equal(first, second) {
		t.Error("decrypted key signs differently from the original Ed25519 key")
	}

	if _, err := LoadSigner(path, ""); !errors.Is(err, ErrKey) {
		t.Errorf("LoadSigner of ciphertext without identity = %v, want ErrKey", err)
	}

	other, _ := age.GenerateX25519Identity()
	otherPath := filepath.Join(dir, "other.txt")
	if err := os.WriteFile(otherPath, []byte(other.String()+"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSigner(path, otherPath); !errors.Is(err, ErrKey) {
		t.Errorf("LoadSigner with wrong identity = %v, want ErrKey", err)
	}
}

func TestLoadSignerMissingFile(t *testing.T) {
	_, err := LoadSigner(filepath.Join(t.TempDir(), "absent.pem"), "")
	if !errors.Is(err, ErrKey) {
		t.Errorf("LoadSigner of missing file = %v, want ErrKey", err)
	}
}

func TestParseAlgorithm(t *testing.T) {
	for _, name := range []string{"ed25519", "ECDSA-P256", " ecdsa-p256 "} {
		if _, err := ParseAlgorithm(name); err != nil {
			t.Errorf("ParseAlgorithm(%q): %v", name, err)
		}
	}
	if _, err := ParseAlgorithm("rsa"); !errors.Is(err, ErrKey) {
		t.Errorf("ParseAlgorithm(rsa) = %v, want ErrKey", err)
	}
	if got := ECDSAP256.OID(); got != "1.2.840.10045.4.3.2" {
		t.Errorf("ECDSAP256.OID() = %q", got)
	}
}
