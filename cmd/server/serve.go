// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

package main

import (
	"context"
	"errors"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/cartotile/internal/config"
	"github.com/tomtom215/cartotile/internal/logging"
	"github.com/tomtom215/cartotile/internal/server"
	"github.com/tomtom215/cartotile/internal/supervisor"
	"github.com/tomtom215/cartotile/internal/supervisor/services"
)

// janitorInterval is how often expired tiles are evicted.
const janitorInterval = time.Minute

func addServeFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("config", "c", "", "config file (default: $CONFIG_PATH, ./config.yaml, /etc/cartotile/config.yaml)")
	f.String("listen-addresses", "", "comma separated host:port list to listen on")
	f.Duration("keep-alive", 0, "idle timeout of keep-alive connections")
	f.Int("workers", 0, "OS threads executing Go code (0: one per CPU)")
	f.Int("cache-entries", 0, "tile cache size in entries (0 disables the cache)")
	f.Bool("watch", false, "refresh when the config file changes")
	f.String("log-level", "", "trace, debug, info, warn, error")
	f.String("log-format", "", "json or console")
}

// serveArgs captures the start-up overrides. They are reapplied on every
// refresh.
func serveArgs(cmd *cobra.Command) (config.Args, error) {
	f := cmd.Flags()
	explicit, _ := f.GetString("config")
	path, err := config.ResolvePath(explicit)
	if err != nil {
		return config.Args{}, err
	}

	args := config.Args{ConfigPath: path}
	args.ListenAddresses, _ = f.GetString("listen-addresses")
	args.KeepAlive, _ = f.GetDuration("keep-alive")
	args.WorkerProcesses, _ = f.GetInt("workers")
	args.LogLevel, _ = f.GetString("log-level")
	args.LogFormat, _ = f.GetString("log-format")
	if f.Changed("cache-entries") {
		n, _ := f.GetInt("cache-entries")
		args.CacheEntries = &n
	}
	if f.Changed("watch") {
		w, _ := f.GetBool("watch")
		args.WatchConfig = &w
	}
	return args, nil
}

func runServe(ctx context.Context, args config.Args) error {
	cfg, err := config.Read(args)
	if err != nil {
		return err
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	if cfg.Server.WorkerProcesses > 0 {
		runtime.GOMAXPROCS(cfg.Server.WorkerProcesses)
	}
	logging.Info().
		Str("version", version).
		Str("config", args.ConfigPath).
		Int("sources", len(cfg.Sources)).
		Msg("Starting Cartotile")

	srv, err := server.New(ctx, args, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := srv.Close(); err != nil {
			logging.Warn().Err(err).Msg("Closing sources failed")
		}
	}()

	listeners, err := srv.Bind(ctx)
	if err != nil {
		return err
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return err
	}
	for _, l := range listeners {
		tree.AddAPIService(services.NewHTTPServerService(srv.HTTPServer(), l, cfg.Server.ShutdownTimeout))
		logging.Info().Str("addr", l.Addr().String()).Msg("Listening")
	}
	if cfg.Server.WatchConfig {
		if args.ConfigPath == "" {
			logging.Warn().Msg("watch_config is set but no config file is in use")
		} else {
			tree.AddControlService(services.NewConfigWatchService(args.ConfigPath, srv.Refresher))
		}
	}
	if cfg.Cache.Entries > 0 {
		tree.AddControlService(services.NewCacheJanitorService(func() services.ExpiredCleaner {
			return srv.App.Cache.Read()
		}, janitorInterval))
	}

	if err := <-tree.ServeBackground(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
	}
	logging.Info().Msg("Stopped")
	return nil
}
