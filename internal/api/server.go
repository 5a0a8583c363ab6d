// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the lmsd HTTP interface: catalog snapshots, book imports,
// manual refresh triggers and lifecycle phase changes.
package api

import (
	"context"
	"net/http"

	"github.com/Sharnabh/LMS-sub002/internal/catalog"
	"github.com/Sharnabh/LMS-sub002/internal/health"
	"github.com/Sharnabh/LMS-sub002/internal/lifecycle"
	"github.com/Sharnabh/LMS-sub002/internal/refresh"
)

// SnapshotStore is the part of a refresh.Loader the API reads and triggers.
type SnapshotStore[T any] interface {
	Name() string
	Snapshot() *refresh.Snapshot[T]
	State() refresh.State
	Refresh(ctx context.Context) error
}

// Upserter imports a book by ISBN.
type Upserter interface {
	Upsert(ctx context.Context, candidate catalog.Book) (catalog.UpsertResult, error)
}

// PhasePublisher accepts lifecycle phase changes.
type PhasePublisher interface {
	Publish(p lifecycle.Phase) bool
	Current() lifecycle.Phase
}

// Deps wires the server to the daemon's components.
type Deps struct {
	Announcements SnapshotStore[catalog.Announcement]
	Books         SnapshotStore[catalog.Book]
	Upserter      Upserter
	Lifecycle     PhasePublisher
	Health        *health.Manager

	// RefreshRateLimit caps POST /api/v1/refresh/{store} per client per minute; 0 disables.
	RefreshRateLimit int
	// TracingService names the otelhttp server spans; empty disables HTTP tracing.
	TracingService string
}

// Server represents the HTTP API server for lmsd.
type Server struct {
	announcements SnapshotStore[catalog.Announcement]
	books         SnapshotStore[catalog.Book]
	upserter      Upserter
	lifecycle     PhasePublisher
	healthManager *health.Manager

	refreshRateLimit int
	tracingService   string
}

// NewServer creates a server. Health may be nil, in which case an empty manager is used.
func NewServer(d Deps) *Server {
	hm := d.Health
	if hm == nil {
		hm = health.NewManager("")
	}
	return &Server{
		announcements:    d.Announcements,
		books:            d.Books,
		upserter:         d.Upserter,
		lifecycle:        d.Lifecycle,
		healthManager:    hm,
		refreshRateLimit: d.RefreshRateLimit,
		tracingService:   d.TracingService,
	}
}

// Handler returns the configured HTTP handler with all routes and middleware applied.
func (s *Server) Handler() http.Handler {
	return s.routes()
}
