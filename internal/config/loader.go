// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader resolves an AppConfig from defaults, an optional YAML file and LMS_* environment variables.
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

// Load loads configuration with precedence ENV > File > Defaults, then validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)
	resolveDerived(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// loadFile decodes path over dst. Keys absent from the file keep their current value.
func (l *Loader) loadFile(path string, dst *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("strict config parse error: %w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return ErrMultipleDocuments
	}

	dst.DataDir = os.ExpandEnv(dst.DataDir)
	dst.Store.SQLitePath = os.ExpandEnv(dst.Store.SQLitePath)
	dst.Store.REST.BaseURL = os.ExpandEnv(dst.Store.REST.BaseURL)
	dst.Store.REST.APIKey = os.ExpandEnv(dst.Store.REST.APIKey)
	dst.Cache.Redis.Password = os.ExpandEnv(dst.Cache.Redis.Password)
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.DataDir = l.envString("LMS_DATA_DIR", cfg.DataDir)
	cfg.Log.Level = l.envString("LMS_LOG_LEVEL", cfg.Log.Level)

	cfg.API.ListenAddr = l.envString("LMS_LISTEN_ADDR", cfg.API.ListenAddr)
	cfg.API.RefreshRateLimit = l.envInt("LMS_REFRESH_RATE_LIMIT", cfg.API.RefreshRateLimit)
	cfg.API.ShutdownTimeout = l.envDuration("LMS_SHUTDOWN_TIMEOUT", cfg.API.ShutdownTimeout)

	cfg.Store.Backend = l.envString("LMS_STORE_BACKEND", cfg.Store.Backend)
	cfg.Store.SQLitePath = l.envString("LMS_SQLITE_PATH", cfg.Store.SQLitePath)
	cfg.Store.REST.BaseURL = l.envString("LMS_REST_BASE_URL", cfg.Store.REST.BaseURL)
	cfg.Store.REST.APIKey = l.envString("LMS_REST_API_KEY", cfg.Store.REST.APIKey)
	cfg.Store.REST.Timeout = l.envDuration("LMS_REST_TIMEOUT", cfg.Store.REST.Timeout)

	cfg.Refresh.Interval = l.envDuration("LMS_REFRESH_INTERVAL", cfg.Refresh.Interval)
	cfg.Refresh.BackgroundInterval = l.envDuration("LMS_REFRESH_BACKGROUND_INTERVAL", cfg.Refresh.BackgroundInterval)
	cfg.Refresh.Timeout = l.envDuration("LMS_REFRESH_TIMEOUT", cfg.Refresh.Timeout)
	cfg.Refresh.ServerSideMerge = l.envBool("LMS_SERVER_SIDE_MERGE", cfg.Refresh.ServerSideMerge)

	cfg.Cache.Backend = l.envString("LMS_CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.Dir = l.envString("LMS_CACHE_DIR", cfg.Cache.Dir)
	cfg.Cache.TTL = l.envDuration("LMS_CACHE_TTL", cfg.Cache.TTL)
	cfg.Cache.Redis.Addr = l.envString("LMS_REDIS_ADDR", cfg.Cache.Redis.Addr)
	cfg.Cache.Redis.Password = l.envString("LMS_REDIS_PASSWORD", cfg.Cache.Redis.Password)
	cfg.Cache.Redis.DB = l.envInt("LMS_REDIS_DB", cfg.Cache.Redis.DB)

	cfg.Telemetry.Enabled = l.envBool("LMS_OTEL_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString("LMS_OTEL_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString("LMS_OTEL_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat("LMS_OTEL_SAMPLING_RATE", cfg.Telemetry.SamplingRate)

	cfg.Lifecycle.Signals = l.envBool("LMS_LIFECYCLE_SIGNALS", cfg.Lifecycle.Signals)
}

// resolveDerived fills paths that default relative to DataDir.
func resolveDerived(cfg *AppConfig) {
	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	if cfg.Store.SQLitePath == "" {
		cfg.Store.SQLitePath = filepath.Join(cfg.DataDir, "lms.db")
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = filepath.Join(cfg.DataDir, "cache")
	}
}
