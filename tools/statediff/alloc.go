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

	"github.com/Fantom-foundation/statediff/diff"
	"github.com/Fantom-foundation/statediff/state/alloc"
	"github.com/urfave/cli/v2"
)

var allocCommand = cli.Command{
	Action:    diffAllocs,
	Name:      "alloc",
	Usage:     "prints the difference between two genesis allocation files",
	ArgsUsage: "<pre.json> <post.json>",
	Flags: []cli.Flag{
		&jsonFlag,
	},
}

func diffAllocs(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return fmt.Errorf("expected two allocation files, got %d arguments", ctx.NArg())
	}
	pre, err := alloc.LoadFile(ctx.Args().Get(0))
	if err != nil {
		return err
	}
	post, err := alloc.LoadFile(ctx.Args().Get(1))
	if err != nil {
		return err
	}
	return printDiff(ctx.App.Writer, diff.Compute(pre, post), ctx.Bool(jsonFlag.Name))
}
