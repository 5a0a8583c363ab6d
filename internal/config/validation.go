// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"

	"github.com/Sharnabh/LMS-sub002/internal/lifecycle"
	"github.com/Sharnabh/LMS-sub002/internal/validate"
)

// minInterval keeps a misconfigured scheduler from hammering the store.
const minInterval = time.Second

// Validate validates an AppConfig using the centralized validation package
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.NotEmpty("DataDir", cfg.DataDir)
	v.LogLevel("Log.Level", cfg.Log.Level)

	v.NotEmpty("API.ListenAddr", cfg.API.ListenAddr)
	v.NonNegative("API.RefreshRateLimit", cfg.API.RefreshRateLimit)
	v.MinDuration("API.ShutdownTimeout", cfg.API.ShutdownTimeout, 0)

	v.OneOf("Store.Backend", cfg.Store.Backend, []string{StoreSQLite, StoreREST})
	switch cfg.Store.Backend {
	case StoreSQLite:
		v.NotEmpty("Store.SQLitePath", cfg.Store.SQLitePath)
	case StoreREST:
		v.URL("Store.REST.BaseURL", cfg.Store.REST.BaseURL, []string{"http", "https"})
		v.MinDuration("Store.REST.Timeout", cfg.Store.REST.Timeout, 0)
		v.Positive("Store.REST.BreakerThreshold", cfg.Store.REST.BreakerThreshold)
		v.MinDuration("Store.REST.BreakerReset", cfg.Store.REST.BreakerReset, minInterval)
	}

	v.MinDuration("Refresh.Interval", cfg.Refresh.Interval, minInterval)
	v.MinDuration("Refresh.BackgroundInterval", cfg.Refresh.BackgroundInterval, minInterval)
	v.MinDuration("Refresh.Timeout", cfg.Refresh.Timeout, 0)
	v.MinDuration("Refresh.StaleAfter", cfg.Refresh.StaleAfter, 0)

	v.OneOf("Cache.Backend", cfg.Cache.Backend, []string{CacheMemory, CacheRedis, CacheFile, CacheNone})
	switch cfg.Cache.Backend {
	case CacheRedis:
		v.NotEmpty("Cache.Redis.Addr", cfg.Cache.Redis.Addr)
		v.Range("Cache.Redis.DB", cfg.Cache.Redis.DB, 0, 15)
	case CacheFile:
		v.NotEmpty("Cache.Dir", cfg.Cache.Dir)
	}
	v.MinDuration("Cache.TTL", cfg.Cache.TTL, 0)

	if cfg.Telemetry.Enabled {
		v.OneOf("Telemetry.Exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("Telemetry.Endpoint", cfg.Telemetry.Endpoint)
		v.Fraction("Telemetry.SamplingRate", cfg.Telemetry.SamplingRate)
	}

	if _, err := lifecycle.ParsePhase(cfg.Lifecycle.InitialPhase); err != nil {
		v.AddError("Lifecycle.InitialPhase", err.Error(), cfg.Lifecycle.InitialPhase)
	}

	return v.Err()
}
