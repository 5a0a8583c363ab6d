// SPDX-License-Identifier: MIT

package daemon

import (
	"net/http"
	"time"

	"github.com/Sharnabh/LMS-sub002/internal/config"
	"github.com/rs/zerolog"
)

// Deps contains dependencies required by the daemon Manager.
type Deps struct {
	// Logger is the structured logger for the daemon
	Logger zerolog.Logger

	// APIHandler is the HTTP handler for the API server
	APIHandler http.Handler
}

// Validate checks if the dependencies are valid.
func (d *Deps) Validate() error {
	if d.Logger.GetLevel() == zerolog.Disabled {
		return ErrMissingLogger
	}
	if d.APIHandler == nil {
		return ErrMissingAPIHandler
	}
	return nil
}

// ServerConfig holds HTTP server timeouts and the listen address.
type ServerConfig struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxHeaderBytes  int
	ShutdownTimeout time.Duration
}

// ServerConfigFrom derives server settings from the API section of the configuration.
// WriteTimeout leaves room for a synchronous refresh bounded by Refresh.Timeout.
func ServerConfigFrom(cfg config.AppConfig) ServerConfig {
	write := 30 * time.Second
	if cfg.Refresh.Timeout > 0 && cfg.Refresh.Timeout+5*time.Second > write {
		write = cfg.Refresh.Timeout + 5*time.Second
	}
	return ServerConfig{
		ListenAddr:      cfg.API.ListenAddr,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    write,
		IdleTimeout:     2 * time.Minute,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: cfg.API.ShutdownTimeout,
	}
}
