// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Sharnabh/LMS-sub002/internal/catalog"
	"github.com/Sharnabh/LMS-sub002/internal/log"
)

const maxBookBody = 64 << 10

type announcementsResponse struct {
	snapshotMeta
	Partitions map[string][]catalog.Announcement `json:"partitions"`
	Order      []string                          `json:"order"`
	State      stateView                         `json:"state"`
}

// handleListAnnouncements returns the published announcement snapshot.
// ?status= narrows the response to one partition.
func (s *Server) handleListAnnouncements(w http.ResponseWriter, r *http.Request) {
	snap := s.announcements.Snapshot()
	resp := announcementsResponse{
		snapshotMeta: metaOf(snap),
		Partitions:   make(map[string][]catalog.Announcement),
		Order:        []string{},
		State:        newStateView(s.announcements.State()),
	}

	order := catalog.AnnouncementPartitions
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, ok := catalog.ParseAnnouncementStatus(raw)
		if !ok {
			writeBadRequest(w, "unknown announcement status "+raw)
			return
		}
		order = []string{status.String()}
	}

	for _, p := range order {
		items := snap.Partition(p)
		if items == nil {
			items = []catalog.Announcement{}
		}
		resp.Partitions[p] = items
		resp.Order = append(resp.Order, p)
	}
	writeJSON(w, http.StatusOK, resp)
}

type booksResponse struct {
	snapshotMeta
	Books []catalog.Book `json:"books"`
	State stateView      `json:"state"`
}

// handleListBooks returns the published book snapshot, optionally filtered by exact ?isbn=.
func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	snap := s.books.Snapshot()
	books := snap.All()

	if isbn := r.URL.Query().Get("isbn"); isbn != "" {
		filtered := make([]catalog.Book, 0, 1)
		for _, b := range books {
			if b.ISBN == isbn {
				filtered = append(filtered, b)
			}
		}
		books = filtered
	}
	if books == nil {
		books = []catalog.Book{}
	}

	writeJSON(w, http.StatusOK, booksResponse{
		snapshotMeta: metaOf(snap),
		Books:        books,
		State:        newStateView(s.books.State()),
	})
}

// handleUpsertBook imports one book: 201 when inserted, 200 when merged into an existing ISBN.
func (s *Server) handleUpsertBook(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "api")

	var candidate catalog.Book
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBookBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&candidate); err != nil {
		writeBadRequest(w, "invalid book payload: "+err.Error())
		return
	}

	res, err := s.upserter.Upsert(r.Context(), candidate)
	if err != nil {
		var verr *catalog.ValidationError
		var werr *catalog.WriteError
		switch {
		case errors.As(err, &verr):
			writeJSON(w, http.StatusBadRequest, problem{Error: "invalid_book", Detail: verr.Reason, Field: verr.Field})
		case errors.As(err, &werr):
			logger.Warn().Err(err).
				Str(log.FieldEvent, "api.upsert_failed").
				Str(log.FieldISBN, candidate.ISBN).
				Msg("book upsert write failed")
			writeProblem(w, http.StatusBadGateway, "write_failed", err.Error())
		default:
			logger.Error().Err(err).
				Str(log.FieldEvent, "api.upsert_failed").
				Str(log.FieldISBN, candidate.ISBN).
				Msg("book upsert failed")
			writeProblem(w, http.StatusInternalServerError, "internal_error", "")
		}
		return
	}

	code := http.StatusOK
	if res.IsNew {
		code = http.StatusCreated
	}
	writeJSON(w, code, res)
}
