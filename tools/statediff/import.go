// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Fantom-foundation/statediff/backend/archive"
	"github.com/Fantom-foundation/statediff/common"
	"github.com/Fantom-foundation/statediff/common/interrupt"
	"github.com/Fantom-foundation/statediff/common/logging"
	"github.com/Fantom-foundation/statediff/diff"
	"github.com/Fantom-foundation/statediff/state"
	"github.com/Fantom-foundation/statediff/state/alloc"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

const importLockFile = "import.lock"

var importCommand = cli.Command{
	Action:    importAllocs,
	Name:      "import",
	Usage:     "appends genesis allocation files as consecutive blocks to an archive",
	ArgsUsage: "<alloc.json>...",
	Flags: []cli.Flag{
		&archiveDirectoryFlag,
		&archiveBackendFlag,
		&cpuProfilingFlag,
	},
}

func importAllocs(ctx *cli.Context) error {
	log := logging.NewLogger("import")
	var previous *state.World
	return appendBlocks(ctx, log, func(ctx context.Context, a archive.Archive, block uint64, file string) error {
		if previous == nil {
			var err error
			if previous, err = lastWorld(ctx, a); err != nil {
				return err
			}
		}
		world, err := alloc.LoadFile(file)
		if err != nil {
			return err
		}
		d := diff.Compute(previous, world)
		if err := a.Add(block, d.ToUpdate()); err != nil {
			return err
		}
		log.Debug().
			Uint64(logging.FieldBlockNumber, block).
			Int(logging.FieldAccounts, d.Len()).
			Msg("Imported allocation")
		previous = world
		return nil
	})
}

// lastWorld loads the world at the end of the last block of the archive, the
// empty world for an empty archive.
func lastWorld(ctx context.Context, a archive.Archive) (*state.World, error) {
	last, empty, err := a.GetLastBlockHeight()
	if err != nil || empty {
		return state.NewWorld(nil), err
	}
	return a.GetWorld(ctx, last)
}

// appendBlocks adds one block per file argument to the archive, continuing
// after the last block already present. The archive directory is locked for
// the duration of the run.
func appendBlocks(ctx *cli.Context, log zerolog.Logger, add func(ctx context.Context, a archive.Archive, block uint64, file string) error) (err error) {
	if ctx.NArg() == 0 {
		return fmt.Errorf("no input files given")
	}

	stopProfile, err := startCPUProfile(ctx.String(cpuProfilingFlag.Name))
	if err != nil {
		return err
	}
	defer stopProfile()

	cfg := archiveConfig(ctx)
	log.Info().
		Str(logging.FieldBackend, cfg.Backend).
		Str(logging.FieldDirectory, cfg.Directory).
		Msg("Opening archive")
	a, err := openArchive(cfg)
	if err != nil {
		return err
	}
	defer closeArchive(log, a, &err)

	// Concurrent writers would race for block numbers.
	lock, err := common.CreateLockFile(filepath.Join(cfg.Directory, importLockFile))
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, lock.Release())
	}()

	interruptible, cancel := interrupt.Register(ctx.Context, log)
	defer cancel()

	block := uint64(1)
	last, empty, err := a.GetLastBlockHeight()
	if err != nil {
		return err
	}
	if !empty {
		block = last + 1
	}

	start := time.Now()
	for _, file := range ctx.Args().Slice() {
		if interrupt.IsCancelled(interruptible) {
			return fmt.Errorf("%w: stopped before block %d", interrupt.ErrCanceled, block)
		}
		if err := add(interruptible, a, block, file); err != nil {
			return fmt.Errorf("failed to add block %d from %s; %w", block, file, err)
		}
		block++
	}
	log.Info().
		Uint64(logging.FieldToBlock, block-1).
		Dur(logging.FieldDuration, time.Since(start)).
		Msg("Import complete")
	return nil
}
