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
	"net"
	"net/http"
	"time"

	"github.com/Fantom-foundation/statediff/api"
	"github.com/Fantom-foundation/statediff/backend/archive"
	"github.com/Fantom-foundation/statediff/common/interrupt"
	"github.com/Fantom-foundation/statediff/common/logging"
	"github.com/Fantom-foundation/statediff/config"
	"github.com/Fantom-foundation/statediff/state"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
)

var (
	configFileFlag = cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "YAML configuration file of the service",
	}
	serveDirectoryFlag = cli.StringFlag{
		Name:  "dir",
		Usage: "the archive directory, overrides the configuration file",
	}
	serveBackendFlag = cli.StringFlag{
		Name:  "backend",
		Usage: "the archive implementation, overrides the configuration file",
	}
	httpAddressFlag = cli.StringFlag{
		Name:    "http.addr",
		Usage:   "listen address of the JSON-RPC server, overrides the configuration file",
		EnvVars: []string{"STATEDIFF_HTTP_ADDR"},
	}
)

var serveCommand = cli.Command{
	Action: serve,
	Name:   "serve",
	Usage:  "serves state diffs of an archive via JSON-RPC over HTTP",
	Flags: []cli.Flag{
		&configFileFlag,
		&serveDirectoryFlag,
		&serveBackendFlag,
		&httpAddressFlag,
	},
}

const shutdownTimeout = 5 * time.Second

// serviceConfig loads the configuration file, if any, and applies the
// overrides given on the command line.
func serviceConfig(ctx *cli.Context) (config.Service, error) {
	cfg := config.Default()
	if file := ctx.String(configFileFlag.Name); file != "" {
		var err error
		if cfg, err = config.Load(file); err != nil {
			return cfg, err
		}
	}
	if ctx.IsSet(serveDirectoryFlag.Name) {
		cfg.Archive.Directory = ctx.String(serveDirectoryFlag.Name)
	}
	if ctx.IsSet(serveBackendFlag.Name) {
		cfg.Archive.Backend = ctx.String(serveBackendFlag.Name)
	}
	if ctx.IsSet(httpAddressFlag.Name) {
		cfg.HTTP.Address = ctx.String(httpAddressFlag.Name)
	}
	if ctx.IsSet(logLevelFlag.Name) {
		cfg.Log.Level = ctx.String(logLevelFlag.Name)
	}
	if ctx.IsSet(logFilterFlag.Name) {
		cfg.Log.Filter = ctx.String(logFilterFlag.Name)
	}
	return cfg, cfg.Check()
}

func serve(ctx *cli.Context) error {
	cfg, err := serviceConfig(ctx)
	if err != nil {
		return err
	}
	if err := logging.SetupGlobalLevel(cfg.Log.Level); err != nil {
		return err
	}
	if cfg.Log.Filter != "" {
		logging.ApplyComponentsFilter(cfg.Log.Filter)
	}

	listener, err := net.Listen("tcp", cfg.HTTP.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s; %w", cfg.HTTP.Address, err)
	}
	interruptible, cancel := interrupt.Register(ctx.Context, logging.NewLogger("service"))
	defer cancel()
	return runService(interruptible, cfg, listener)
}

// runService serves the archive named by the configuration on the given
// listener until the context is cancelled.
func runService(ctx context.Context, cfg config.Service, listener net.Listener) (err error) {
	log := logging.NewLogger("service")

	a, err := openArchive(cfg.Archive)
	if err != nil {
		listener.Close()
		return err
	}
	defer closeArchive(log, a, &err)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	service := api.NewStateDiffAPI(
		state.NewCachedProvider(archive.NewProvider(a), cfg.Archive.CacheSize),
		a,
		api.NewMetrics(registry),
		logging.NewLogger("rpc"),
	)
	rpcServer, err := api.NewServer(service)
	if err != nil {
		listener.Close()
		return err
	}
	defer rpcServer.Stop()

	httpServer := &http.Server{
		Handler:           api.NewHandler(rpcServer, registry),
		ReadHeaderTimeout: 10 * time.Second,
	}
	served := make(chan error, 1)
	go func() {
		served <- httpServer.Serve(listener)
	}()
	log.Info().
		Str("http", listener.Addr().String()).
		Str(logging.FieldBackend, cfg.Archive.Backend).
		Str(logging.FieldDirectory, cfg.Archive.Directory).
		Msg("Serving state diffs")

	select {
	case err := <-served:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-served; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
