// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package publish

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/Howard86/cwa-server/lib/structure"
)

// ErrOutputNotDirectory reports an output path occupied by something
// other than a directory.
var ErrOutputNotDirectory = errors.New("publish: output path is not a directory")

// Publisher writes trees into OutputDir.
type Publisher struct {
	// OutputDir is the directory served to clients. Its parent must
	// exist; the directory itself is created by the first Publish.
	OutputDir string

	// Logger receives progress logs. Nil discards them.
	Logger *slog.Logger
}

// Publish renders root into a staging directory and swaps it in as
// OutputDir. output collects the file and byte counts of the render.
// On any error the staging directory is removed and OutputDir keeps
// its previous contents.
func (publisher *Publisher) Publish(ctx context.Context, root structure.Node, output *structure.Output) (err error) {
	logger := publisher.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	target := filepath.Clean(publisher.OutputDir)
	if target == "." || target == string(filepath.Separator) {
		return fmt.Errorf("publish: refusing to publish into %q", publisher.OutputDir)
	}
	if info, statErr := os.Stat(target); statErr == nil && !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrOutputNotDirectory, target)
	}

	staging := stagingPath(target, "staging")
	mode := output.DirMode
	if mode == 0 {
		mode = 0o755
	}
	if err := os.Mkdir(staging, mode); err != nil {
		return fmt.Errorf("publish: creating staging directory: %w", err)
	}
	defer func() {
		if err != nil {
			if removeErr := os.RemoveAll(staging); removeErr != nil {
				logger.Warn("removing staging directory", "path", staging, "error", removeErr)
			}
		}
	}()

	logger.Debug("rendering into staging directory", "path", staging)
	if err := structure.Render(ctx, root, staging, output); err != nil {
		return err
	}
	if err := syncTree(staging); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	previous, err := swap(staging, target)
	if err != nil {
		return fmt.Errorf("publish: swapping %s into place: %w", target, err)
	}
	syncDirectory(filepath.Dir(target))

	if previous != "" {
		if removeErr := os.RemoveAll(previous); removeErr != nil {
			logger.Warn("removing previous tree", "path", previous, "error", removeErr)
		}
	}
	logger.Info("published tree",
		"path", target,
		"files", output.Files(),
		"bytes", output.Bytes(),
	)
	return nil
}

// stagingPath returns a hidden sibling of target unique to this run.
func stagingPath(target, purpose string) string {
	return filepath.Join(filepath.Dir(target),
		"."+filepath.Base(target)+"."+purpose+"-"+uuid.NewString())
}

// CleanStale removes staging and previous-tree directories left next
// to OutputDir by runs that were killed before cleaning up. It returns
// the number of directories removed.
func (publisher *Publisher) CleanStale() (int, error) {
	target := filepath.Clean(publisher.OutputDir)
	prefix := "." + filepath.Base(target) + "."
	entries, err := os.ReadDir(filepath.Dir(target))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("publish: listing %s: %w", filepath.Dir(target), err)
	}
	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		purpose := strings.TrimPrefix(name, prefix)
		if !strings.HasPrefix(purpose, "staging-") && !strings.HasPrefix(purpose, "previous-") {
			continue
		}
		if err := os.RemoveAll(filepath.Join(filepath.Dir(target), name)); err != nil {
			return removed, fmt.Errorf("publish: removing stale %s: %w", name, err)
		}
		removed++
	}
	return removed, nil
}

// syncTree flushes every file and directory below root.
func syncTree(root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("publish: opening %s for sync: %w", path, err)
		}
		syncErr := file.Sync()
		closeErr := file.Close()
		if syncErr != nil {
			return fmt.Errorf("publish: syncing %s: %w", path, syncErr)
		}
		return closeErr
	})
}

// syncDirectory makes a rename inside dir durable. Failures are
// ignored: the rename itself already happened.
func syncDirectory(dir string) {
	directory, err := os.Open(dir)
	if err == nil {
		directory.Sync()
		directory.Close()
	}
}
