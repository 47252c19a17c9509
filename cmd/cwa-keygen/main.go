// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// cwa-keygen generates the batch signing keypair used by
// cwa-distribution. The private key is written as PKCS#8 PEM, or as
// age ciphertext of it when at least one --age-recipient is given;
// the public key is written as PKIX PEM for distribution to clients.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/Howard86/cwa-server/lib/process"
	"github.com/Howard86/cwa-server/lib/signing"
	"github.com/Howard86/cwa-server/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		algorithm   string
		outDir      string
		recipients  []string
		force       bool
		showVersion bool
	)
	flagSet := pflag.NewFlagSet("cwa-keygen", pflag.ContinueOnError)
	flagSet.StringVar(&algorithm, "algorithm", string(signing.ECDSAP256), "key algorithm: ed25519 or ecdsa-p256")
	flagSet.StringVar(&outDir, "out", ".", "directory to write the keypair into")
	flagSet.StringArrayVar(&recipients, "age-recipient", nil, "encrypt the private key to this age recipient (repeatable)")
	flagSet.BoolVar(&force, "force", false, "overwrite an existing keypair")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Printf("cwa-keygen %s\n", version.Info())
		return nil
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}

	privatePath, err := generate(outDir, algorithm, recipients, force)
	if err != nil {
		return err
	}
	fmt.Printf("private key: %s\npublic key:  %s\n", privatePath, filepath.Join(outDir, signing.PublicKeyFile))
	return nil
}

// generate creates a keypair in outDir and returns the private key
// path. Existing key files are kept unless force is set.
func generate(outDir, algorithmName string, recipients []string, force bool) (string, error) {
	algorithm, err := signing.ParseAlgorithm(algorithmName)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", outDir, err)
	}
	if !force {
		for _, name := range []string{signing.PrivateKeyFile, signing.PrivateKeyFile + signing.EncryptedSuffix, signing.PublicKeyFile} {
			path := filepath.Join(outDir, name)
			if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
				return "", fmt.Errorf("%s already exists; use --force to overwrite it", path)
			}
		}
	}

	signer, err := signing.GenerateKey(algorithm)
	if err != nil {
		return "", err
	}
	return signing.SaveKeypair(outDir, signer, recipients)
}
