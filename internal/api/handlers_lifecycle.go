// SPDX-License-Identifier: MIT

package api

import (
	"net/http"

	"github.com/Sharnabh/LMS-sub002/internal/lifecycle"
	"github.com/go-chi/chi/v5"
)

type lifecycleResponse struct {
	Phase   string `json:"phase"`
	Changed bool   `json:"changed"`
}

func (s *Server) handleGetLifecycle(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, lifecycleResponse{Phase: s.lifecycle.Current().String()})
}

// handleSetLifecycle publishes a phase change; schedulers following the notifier react asynchronously.
func (s *Server) handleSetLifecycle(w http.ResponseWriter, r *http.Request) {
	phase, err := lifecycle.ParsePhase(chi.URLParam(r, "phase"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	changed := s.lifecycle.Publish(phase)
	writeJSON(w, http.StatusAccepted, lifecycleResponse{Phase: phase.String(), Changed: changed})
}
