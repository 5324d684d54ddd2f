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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/pprof"

	"github.com/Fantom-foundation/statediff/api"
	"github.com/Fantom-foundation/statediff/backend/archive"
	"github.com/Fantom-foundation/statediff/backend/archive/ldb"
	"github.com/Fantom-foundation/statediff/backend/archive/sqlite"
	"github.com/Fantom-foundation/statediff/config"
	"github.com/Fantom-foundation/statediff/diff"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

var (
	archiveDirectoryFlag = cli.StringFlag{
		Name:     "dir",
		Usage:    "the archive directory",
		Required: true,
	}
	archiveBackendFlag = cli.StringFlag{
		Name:  "backend",
		Usage: "the archive implementation, ldb or sqlite",
		Value: config.BackendLevelDb,
	}
	jsonFlag = cli.BoolFlag{
		Name:  "json",
		Usage: "print the diff in its JSON-RPC encoding",
	}
	cpuProfilingFlag = cli.StringFlag{
		Name:  "cpu-profile",
		Usage: "enable the recording of a CPU profile",
	}
)

const sqliteFile = "archive.sqlite"

// openArchive opens the archive described by the given configuration,
// creating it if needed.
func openArchive(cfg config.Archive) (archive.Archive, error) {
	switch cfg.Backend {
	case config.BackendLevelDb:
		a, err := ldb.OpenArchive(cfg.Directory)
		if err != nil {
			return nil, err
		}
		return a, nil
	case config.BackendSqlite:
		if err := os.MkdirAll(cfg.Directory, 0700); err != nil {
			return nil, err
		}
		a, err := sqlite.NewArchive(filepath.Join(cfg.Directory, sqliteFile))
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("%w: unknown archive backend %q", config.ErrInvalidConfig, cfg.Backend)
	}
}

func archiveConfig(ctx *cli.Context) config.Archive {
	return config.Archive{
		Backend:   ctx.String(archiveBackendFlag.Name),
		Directory: ctx.String(archiveDirectoryFlag.Name),
	}
}

// closeArchive closes the archive and reports the failure through err if no
// other error occurred before.
func closeArchive(log zerolog.Logger, a archive.Archive, err *error) {
	if closeError := a.Close(); closeError != nil {
		if *err == nil {
			*err = closeError
		} else {
			log.Error().Err(closeError).Msg("Failure closing archive")
		}
	}
}

// printDiff writes the diff in its text form, or in its JSON-RPC encoding.
func printDiff(out io.Writer, d *diff.StateDiff, asJson bool) error {
	if !asJson {
		_, err := d.WriteTo(out)
		return err
	}
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(api.NewStateDiff(d))
}

func startCPUProfile(profileName string) (func(), error) {
	if profileName == "" {
		return func() {}, nil
	}
	f, err := os.Create(profileName)
	if err != nil {
		return nil, fmt.Errorf("could not create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("could not start CPU profile: %w", err)
	}
	return func() {
		pprof.StopCPUProfile()
		f.Close()
	}, nil
}
