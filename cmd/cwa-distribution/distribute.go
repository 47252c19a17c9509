// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Howard86/cwa-server/lib/assembly"
	"github.com/Howard86/cwa-server/lib/bundler"
	"github.com/Howard86/cwa-server/lib/clock"
	"github.com/Howard86/cwa-server/lib/config"
	"github.com/Howard86/cwa-server/lib/export"
	"github.com/Howard86/cwa-server/lib/keystore"
	"github.com/Howard86/cwa-server/lib/metrics"
	"github.com/Howard86/cwa-server/lib/publish"
	"github.com/Howard86/cwa-server/lib/signing"
	"github.com/Howard86/cwa-server/lib/structure"
)

type runOptions struct {
	config *config.Config
	signer signing.Signer
	clock  clock.Clock
	logger *slog.Logger
	dryRun bool
}

// runSummary is what one run did, for the final log line and tests.
type runSummary struct {
	Expired int
	Stats   bundler.Stats
	Files   int64
	Bytes   int64
}

// distribute performs one run. Metrics are written even when the run
// fails so that alerting sees the failure.
func distribute(ctx context.Context, options runOptions) (summary runSummary, err error) {
	cfg := options.config
	logger := options.logger
	started := options.clock.Now()
	runMetrics := metrics.NewRun()
	defer func() {
		runMetrics.Finish(started, options.clock.Now(), err)
		if cfg.Metrics.Textfile == "" || options.dryRun {
			return
		}
		if writeErr := runMetrics.WriteTextfile(cfg.Metrics.Textfile); writeErr != nil {
			logger.Warn("writing metrics textfile", "error", writeErr)
		}
	}()

	policy, err := cfg.Policy()
	if err != nil {
		return summary, err
	}
	bundle, err := bundler.New(policy, cfg.Countries, logger)
	if err != nil {
		return summary, err
	}
	exporter, err := export.New(export.Config{
		Signer:                 options.signer,
		AppBundleID:            cfg.Signature.AppBundleID,
		AndroidPackage:         cfg.Signature.AndroidPackage,
		VerificationKeyVersion: cfg.Signature.VerificationKeyVersion,
		VerificationKeyID:      cfg.Signature.VerificationKeyID,
		PayloadName:            cfg.API.PayloadFile,
		SignatureName:          cfg.API.SignatureFile,
		Archive:                cfg.API.Archive,
		ArchiveName:            cfg.API.ArchiveFile,
		Logger:                 logger,
	})
	if err != nil {
		return summary, err
	}
	payloads, err := assembly.LoadPayloads(cfg.Payloads)
	if err != nil {
		return summary, err
	}

	store, err := keystore.Open(keystore.Config{Path: cfg.Keystore.Path, Logger: logger})
	if err != nil {
		return summary, err
	}
	defer store.Close()

	cutoff := cfg.RetentionCutoff(started)
	if !options.dryRun {
		summary.Expired, err = store.ApplyRetention(ctx, cutoff)
		if err != nil {
			return summary, err
		}
		runMetrics.ObserveRetention(summary.Expired)
	}
	records, err := store.Records(ctx, cutoff)
	if err != nil {
		return summary, err
	}

	result := bundle.Bundle(records, started)
	summary.Stats = result.Stats()
	runMetrics.ObserveBundle(summary.Stats)
	logger.Info("bundled records",
		"read", summary.Stats.Read,
		"unsupported", summary.Stats.Unsupported,
		"withheld", summary.Stats.Withheld,
		"discarded", summary.Stats.Discarded,
		"published", summary.Stats.Published,
		"hour_batches", summary.Stats.HourBatches,
		"day_batches", summary.Stats.DayBatches,
		"since", cutoff.Format(time.RFC3339),
	)
	if options.dryRun {
		logger.Info("dry run, nothing written")
		return summary, nil
	}

	root := assembly.Tree(result, exporter, assembly.NewAPI(cfg), cfg.Countries, payloads)
	output := &structure.Output{Parallelism: cfg.Output.Parallelism}
	publisher := &publish.Publisher{OutputDir: cfg.Output.Directory, Logger: logger}
	if removed, cleanErr := publisher.CleanStale(); cleanErr != nil {
		logger.Warn("removing stale staging directories", "error", cleanErr)
	} else if removed > 0 {
		logger.Info("removed stale staging directories", "count", removed)
	}
	if err := publisher.Publish(ctx, root, output); err != nil {
		return summary, fmt.Errorf("publishing %s: %w", cfg.Output.Directory, err)
	}

	summary.Files = output.Files()
	summary.Bytes = output.Bytes()
	runMetrics.ObserveOutput(summary.Files, summary.Bytes)
	logger.Info("distribution run complete",
		"expired", summary.Expired,
		"files", summary.Files,
		"size", humanize.Bytes(uint64(summary.Bytes)),
		"duration", options.clock.Now().Sub(started).String(),
	)
	return summary, nil
}
