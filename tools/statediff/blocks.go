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
	"fmt"
	"os"
	"strconv"

	"github.com/Fantom-foundation/statediff/common/logging"
	"github.com/Fantom-foundation/statediff/diff"
	"github.com/urfave/cli/v2"
)

var blocksCommand = cli.Command{
	Action:    diffBlocks,
	Name:      "blocks",
	Usage:     "prints the difference between two blocks of an archive",
	ArgsUsage: "<from> <to>",
	Flags: []cli.Flag{
		&archiveDirectoryFlag,
		&archiveBackendFlag,
		&jsonFlag,
		&updateFileFlag,
	},
}

var updateFileFlag = cli.StringFlag{
	Name:  "update",
	Usage: "also write the diff as an encoded block update to the given file",
}

func diffBlocks(ctx *cli.Context) (err error) {
	log := logging.NewLogger("blocks")
	if ctx.NArg() != 2 {
		return fmt.Errorf("expected two block numbers, got %d arguments", ctx.NArg())
	}
	from, err := strconv.ParseUint(ctx.Args().Get(0), 0, 64)
	if err != nil {
		return fmt.Errorf("invalid block number %q; %w", ctx.Args().Get(0), err)
	}
	to, err := strconv.ParseUint(ctx.Args().Get(1), 0, 64)
	if err != nil {
		return fmt.Errorf("invalid block number %q; %w", ctx.Args().Get(1), err)
	}

	archive, err := openArchive(archiveConfig(ctx))
	if err != nil {
		return err
	}
	defer closeArchive(log, archive, &err)

	pre, err := archive.GetWorld(ctx.Context, from)
	if err != nil {
		return err
	}
	post, err := archive.GetWorld(ctx.Context, to)
	if err != nil {
		return err
	}
	log.Debug().
		Uint64(logging.FieldFromBlock, from).
		Uint64(logging.FieldToBlock, to).
		Msg("Computing diff")
	d := diff.Compute(pre, post)
	if file := ctx.String(updateFileFlag.Name); file != "" {
		update := d.ToUpdate()
		if err := os.WriteFile(file, update.ToBytes(), 0600); err != nil {
			return fmt.Errorf("failed to write update; %w", err)
		}
	}
	return printDiff(ctx.App.Writer, d, ctx.Bool(jsonFlag.Name))
}
