// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreREST   = "rest"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheFile   = "file"
	CacheNone   = "none"
)

// AppConfig is the resolved daemon configuration.
type AppConfig struct {
	Version   string          `yaml:"-"`
	DataDir   string          `yaml:"dataDir"`
	Log       LogConfig       `yaml:"log"`
	API       APIConfig       `yaml:"api"`
	Store     StoreConfig     `yaml:"store"`
	Refresh   RefreshConfig   `yaml:"refresh"`
	Cache     CacheConfig     `yaml:"cache"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

type APIConfig struct {
	ListenAddr string `yaml:"listenAddr"`
	// RefreshRateLimit caps manual refresh requests per client per minute.
	RefreshRateLimit int           `yaml:"refreshRateLimit"`
	ShutdownTimeout  time.Duration `yaml:"shutdownTimeout"`
}

type StoreConfig struct {
	Backend    string     `yaml:"backend"`
	SQLitePath string     `yaml:"sqlitePath"`
	REST       RESTConfig `yaml:"rest"`
}

type RESTConfig struct {
	BaseURL          string        `yaml:"baseUrl"`
	APIKey           string        `yaml:"apiKey"`
	Timeout          time.Duration `yaml:"timeout"`
	BreakerThreshold int           `yaml:"breakerThreshold"`
	BreakerReset     time.Duration `yaml:"breakerReset"`
}

// RefreshConfig drives the schedulers and loaders.
type RefreshConfig struct {
	Interval           time.Duration `yaml:"interval"`
	BackgroundInterval time.Duration `yaml:"backgroundInterval"`
	// Timeout bounds a single refresh. Zero disables the bound.
	Timeout time.Duration `yaml:"timeout"`
	// StaleAfter marks a snapshot degraded for health reporting.
	StaleAfter      time.Duration `yaml:"staleAfter"`
	ServerSideMerge bool          `yaml:"serverSideMerge"`
}

type CacheConfig struct {
	Backend string        `yaml:"backend"`
	Dir     string        `yaml:"dir"`
	TTL     time.Duration `yaml:"ttl"`
	Redis   RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	Environment  string  `yaml:"environment"`
	SamplingRate float64 `yaml:"samplingRate"`
}

type LifecycleConfig struct {
	// Signals enables SIGUSR1/SIGUSR2 phase switching.
	Signals      bool   `yaml:"signals"`
	InitialPhase string `yaml:"initialPhase"`
}

// Defaults returns the configuration used before any file or environment is applied.
func Defaults() AppConfig {
	return AppConfig{
		DataDir: "data",
		Log: LogConfig{
			Level:   "info",
			Service: "lmsd",
		},
		API: APIConfig{
			ListenAddr:       ":8080",
			RefreshRateLimit: 30,
			ShutdownTimeout:  10 * time.Second,
		},
		Store: StoreConfig{
			Backend: StoreSQLite,
			REST: RESTConfig{
				Timeout:          10 * time.Second,
				BreakerThreshold: 5,
				BreakerReset:     30 * time.Second,
			},
		},
		Refresh: RefreshConfig{
			Interval:           10 * time.Second,
			BackgroundInterval: 10 * time.Second,
			Timeout:            30 * time.Second,
			StaleAfter:         2 * time.Minute,
		},
		Cache: CacheConfig{
			Backend: CacheFile,
			TTL:     24 * time.Hour,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Environment:  "production",
			SamplingRate: 1.0,
		},
		Lifecycle: LifecycleConfig{
			Signals:      true,
			InitialPhase: "foreground",
		},
	}
}
