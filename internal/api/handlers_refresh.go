// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/Sharnabh/LMS-sub002/internal/log"
	"github.com/Sharnabh/LMS-sub002/internal/refresh"
	"github.com/go-chi/chi/v5"
)

type refreshResponse struct {
	Store string `json:"store"`
	snapshotMeta
	Records int       `json:"records"`
	State   stateView `json:"state"`
}

// handleRefresh runs one synchronous refresh of the named store.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "store")

	var (
		run     func(context.Context) error
		summary func() refreshResponse
	)
	switch name {
	case s.announcements.Name():
		run = s.announcements.Refresh
		summary = func() refreshResponse {
			snap := s.announcements.Snapshot()
			return refreshResponse{snapshotMeta: metaOf(snap), Records: snap.Len(), State: newStateView(s.announcements.State())}
		}
	case s.books.Name():
		run = s.books.Refresh
		summary = func() refreshResponse {
			snap := s.books.Snapshot()
			return refreshResponse{snapshotMeta: metaOf(snap), Records: snap.Len(), State: newStateView(s.books.State())}
		}
	default:
		writeNotFound(w)
		return
	}

	err := run(r.Context())
	if err == nil {
		resp := summary()
		resp.Store = name
		writeJSON(w, http.StatusOK, resp)
		return
	}

	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Info().Err(err).
		Str(log.FieldEvent, "api.refresh_rejected").
		Str(log.FieldStore, name).
		Str("outcome", refresh.Outcome(err)).
		Msg("manual refresh did not complete")

	var connErr *refresh.ConnectivityError
	var partialErr *refresh.PartialFetchError
	switch {
	case errors.Is(err, refresh.ErrRefreshInFlight):
		w.Header().Set("Retry-After", "1")
		writeProblem(w, http.StatusConflict, "refresh_in_flight", err.Error())
	case errors.As(err, &connErr):
		writeProblem(w, http.StatusServiceUnavailable, "store_unreachable", err.Error())
	case errors.As(err, &partialErr):
		writeProblem(w, http.StatusBadGateway, "partial_fetch", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeProblem(w, http.StatusServiceUnavailable, "cancelled", err.Error())
	default:
		writeProblem(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
