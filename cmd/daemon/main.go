// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Sharnabh/LMS-sub002/internal/config"
	"github.com/Sharnabh/LMS-sub002/internal/daemon"
	"github.com/Sharnabh/LMS-sub002/internal/health"
	lmslog "github.com/Sharnabh/LMS-sub002/internal/log"
	"github.com/Sharnabh/LMS-sub002/internal/version"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			os.Exit(runConfigCLI(os.Args[2:]))
		case "healthcheck":
			os.Exit(runHealthcheckCLI(os.Args[2:]))
		}
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	// Safe defaults until config is loaded.
	lmslog.Configure(lmslog.Config{
		Level:   "info",
		Service: "lmsd",
		Version: version.Version,
	})
	logger := lmslog.WithComponent("daemon")

	ctx, stop := daemon.WaitForShutdown()
	defer stop()

	// Explicit --config wins; otherwise ${LMS_DATA_DIR}/config.yaml is used when present.
	explicitConfigPath := strings.TrimSpace(*configPath)
	effectiveConfigPath := explicitConfigPath
	if effectiveConfigPath == "" {
		effectiveConfigPath = resolveDefaultConfigPath()
	}

	loader := config.NewLoader(effectiveConfigPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(lmslog.FieldEvent, "config.load_failed").
			Str("config_path", effectiveConfigPath).
			Msg("failed to load configuration")
	}

	lmslog.Reconfigure(lmslog.Config{
		Level:   cfg.Log.Level,
		Service: cfg.Log.Service,
		Version: cfg.Version,
	})
	logger = lmslog.WithComponent("daemon")

	source := "env+defaults"
	switch {
	case explicitConfigPath != "":
		source = "file"
	case effectiveConfigPath != "":
		source = "file(auto)"
	}
	logger.Info().
		Str(lmslog.FieldEvent, "config.loaded").
		Str("source", source).
		Str(lmslog.FieldPath, effectiveConfigPath).
		Msg("loaded configuration")

	if err := health.PerformStartupChecks(cfg); err != nil {
		logger.Fatal().
			Err(err).
			Str(lmslog.FieldEvent, "startup.check_failed").
			Msg("Startup checks failed. Please verify configuration and permissions.")
	}

	logger.Info().
		Str(lmslog.FieldEvent, "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("addr", cfg.API.ListenAddr).
		Str(lmslog.FieldStore, cfg.Store.Backend).
		Str("cache", cfg.Cache.Backend).
		Msg("starting lmsd")
	logger.Info().Msgf("→ Data dir: %s", cfg.DataDir)
	logger.Info().Msgf("→ Refresh: every %s (background %s)", cfg.Refresh.Interval, cfg.Refresh.BackgroundInterval)
	if cfg.Store.Backend == config.StoreREST && cfg.Store.REST.APIKey == "" {
		logger.Warn().
			Str("security", "weak").
			Msg("→ REST API key: NOT configured. Set LMS_REST_API_KEY if the store requires it.")
	}

	rt, err := daemon.Build(ctx, cfg)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(lmslog.FieldEvent, "daemon.build_failed").
			Msg("failed to build runtime")
	}

	mgr, err := daemon.NewManager(daemon.ServerConfigFrom(cfg), daemon.Deps{
		Logger:     logger,
		APIHandler: rt.Server.Handler(),
	})
	if err != nil {
		_ = rt.Close(context.WithoutCancel(ctx))
		logger.Fatal().
			Err(err).
			Str(lmslog.FieldEvent, "manager.creation.failed").
			Msg("failed to create daemon manager")
	}

	// Hot reload: watch the config file and accept SIGHUP.
	var cfgHolder *config.ConfigHolder
	if effectiveConfigPath != "" {
		cfgHolder = config.NewConfigHolder(cfg, config.NewLoader(effectiveConfigPath, version.Version), effectiveConfigPath)
	}

	app, err := daemon.NewApp(logger, mgr, rt, cfgHolder)
	if err != nil {
		_ = rt.Close(context.WithoutCancel(ctx))
		logger.Fatal().Err(err).Msg("failed to create daemon app")
	}
	if err := app.Run(ctx); err != nil {
		logger.Fatal().
			Err(err).
			Str(lmslog.FieldEvent, "manager.failed").
			Msg("daemon app failed")
	}

	logger.Info().Msg("server exiting")
}

func resolveDefaultConfigPath() string {
	dataDir := strings.TrimSpace(os.Getenv("LMS_DATA_DIR"))
	if dataDir == "" {
		dataDir = config.Defaults().DataDir
	}
	autoPath := filepath.Join(dataDir, "config.yaml")
	if _, err := os.Stat(autoPath); err == nil {
		return autoPath
	}
	return ""
}
