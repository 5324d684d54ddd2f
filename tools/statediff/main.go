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

	"github.com/Fantom-foundation/statediff/common/logging"
	"github.com/urfave/cli/v2"
)

// Run with `go run ./tools/statediff`

var (
	logLevelFlag = cli.StringFlag{
		Name:    "log.level",
		Usage:   "minimum level of log messages (trace, debug, info, warn, error)",
		Value:   "info",
		EnvVars: []string{"STATEDIFF_LOG_LEVEL"},
	}
	logFilterFlag = cli.StringFlag{
		Name:  "log.filter",
		Usage: "colon separated list of components to log, '-' disables a component",
	}
)

func newApp() *cli.App {
	return &cli.App{
		Name:      "State Diff Toolbox",
		HelpName:  "statediff",
		Usage:     "Computes and serves differences between world states",
		Copyright: "(c) 2024 Fantom Foundation",
		Flags: []cli.Flag{
			&logLevelFlag,
			&logFilterFlag,
		},
		Before: func(ctx *cli.Context) error {
			logging.ApplyComponentsFilterEnv()
			if filter := ctx.String(logFilterFlag.Name); filter != "" {
				logging.ApplyComponentsFilter(filter)
			}
			return logging.SetupGlobalLevel(ctx.String(logLevelFlag.Name))
		},
		Commands: []*cli.Command{
			&allocCommand,
			&importCommand,
			&applyCommand,
			&blocksCommand,
			&serveCommand,
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
