// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// cwa-distribution assembles the static diagnosis key distribution
// tree from the keystore and publishes it into the output directory.
//
// One invocation is one run: records older than the retention window
// are deleted, the retained records are bundled into batches that meet
// the minimum batch size, every batch is signed, and the complete tree
// replaces the previous one atomically. A run that fails at any point
// leaves the published tree as it was. Schedule it hourly.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/Howard86/cwa-server/lib/clock"
	"github.com/Howard86/cwa-server/lib/config"
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
		configPath  string
		logLevel    string
		dryRun      bool
		showVersion bool
	)
	flagSet := pflag.NewFlagSet("cwa-distribution", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to the configuration file (default: $"+config.EnvironmentVariable+")")
	flagSet.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
	flagSet.BoolVar(&dryRun, "dry-run", false, "bundle and log the result without signing or writing anything")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if showVersion {
		fmt.Printf("cwa-distribution %s\n", version.Full())
		return nil
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}

	logger, err := process.NewLogger(logLevel)
	if err != nil {
		return err
	}

	var cfg *config.Config
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// The signer is loaded even for dry runs so that a broken key is
	// reported before the first real run.
	signer, err := loadSigner(cfg.Signature)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	logger = logger.With("run_id", runID)
	logger.Info("starting distribution run",
		version.LogAttr(),
		"environment", cfg.Environment,
		"output", cfg.Output.Directory,
		"dry_run", dryRun,
	)

	_, err = distribute(ctx, runOptions{
		config: cfg,
		signer: signer,
		clock:  clock.Real(),
		logger: logger,
		dryRun: dryRun,
	})
	return err
}

// loadSigner loads the signing key and checks it against the
// configured algorithm.
func loadSigner(cfg config.SignatureConfig) (signing.Signer, error) {
	want, err := signing.ParseAlgorithm(cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	signer, err := signing.LoadSigner(cfg.PrivateKey, cfg.AgeIdentity)
	if err != nil {
		return nil, err
	}
	if signer.Algorithm() != want {
		return nil, fmt.Errorf("%w: %s holds an %s key, configured algorithm is %s",
			signing.ErrKey, cfg.PrivateKey, signer.Algorithm(), want)
	}
	return signer, nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `cwa-distribution builds and publishes the diagnosis key distribution tree.

Usage:
  cwa-distribution --config FILE [flags]

The configuration path may also be given in $%s.

Flags:
`, config.EnvironmentVariable)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
