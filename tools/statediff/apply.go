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
	"os"

	"github.com/Fantom-foundation/statediff/backend/archive"
	"github.com/Fantom-foundation/statediff/common"
	"github.com/Fantom-foundation/statediff/common/logging"
	"github.com/urfave/cli/v2"
)

var applyCommand = cli.Command{
	Action:    applyUpdates,
	Name:      "apply",
	Usage:     "appends encoded block updates as consecutive blocks to an archive",
	ArgsUsage: "<update-file>...",
	Flags: []cli.Flag{
		&archiveDirectoryFlag,
		&archiveBackendFlag,
		&cpuProfilingFlag,
	},
}

func applyUpdates(ctx *cli.Context) error {
	log := logging.NewLogger("apply")
	return appendBlocks(ctx, log, func(_ context.Context, a archive.Archive, block uint64, file string) error {
		data, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		update, err := common.UpdateFromBytes(data)
		if err != nil {
			return err
		}
		// Updates written by other tools need not be sorted.
		if err := update.Normalize(); err != nil {
			return err
		}
		if err := a.Add(block, update); err != nil {
			return err
		}
		log.Debug().
			Uint64(logging.FieldBlockNumber, block).
			Int(logging.FieldAccounts, len(update.CreatedAccounts)+len(update.DeletedAccounts)).
			Msg("Applied update")
		return nil
	})
}
