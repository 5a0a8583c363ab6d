// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sharnabh/LMS-sub002/internal/catalog"
	"github.com/Sharnabh/LMS-sub002/internal/log"
	"github.com/Sharnabh/LMS-sub002/internal/resilience"
)

func newTestREST(t *testing.T, h http.HandlerFunc) (*RESTStore, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	store, err := NewRESTStore(RESTConfig{
		BaseURL:          srv.URL,
		APIKey:           "anon-key",
		BreakerThreshold: 2,
		BreakerReset:     time.Hour,
	}, srv.Client())
	require.NoError(t, err)
	return store, srv
}

func TestNewRESTStore_InvalidURL(t *testing.T) {
	_, err := NewRESTStore(RESTConfig{BaseURL: "not a url"}, nil)
	assert.Error(t, err)
}

func TestRESTStore_FetchAnnouncements(t *testing.T) {
	store, _ := newTestREST(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/announcements", r.URL.Path)
		assert.Equal(t, "eq.scheduled", r.URL.Query().Get("status"))
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))
		assert.Equal(t, "req-42", r.Header.Get("X-Request-ID"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"a1","title":"Summer hours","status":"scheduled","audience":"all","publish_at":"2025-06-01T09:00:00Z"}]`))
	})

	ctx := log.ContextWithRequestID(context.Background(), "req-42")
	got, err := store.FetchAnnouncements(ctx, catalog.AnnouncementScheduled)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Summer hours", got[0].Title)
	assert.Equal(t, catalog.AnnouncementScheduled, got[0].Status)
}

func TestRESTStore_InsertAndUpdateBook(t *testing.T) {
	var mu sync.Mutex
	var methods []string
	store, _ := newTestREST(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		methods = append(methods, r.Method)
		mu.Unlock()
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
		var b catalog.Book
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&b))
		if r.Method == http.MethodPatch {
			assert.Equal(t, "eq.b-1", r.URL.Query().Get("id"))
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode([]catalog.Book{b})
	})

	b := catalog.Book{ID: "b-1", ISBN: "111", TotalCopies: 2, AvailableCopies: 2}
	stored, err := store.InsertBook(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, "b-1", stored.ID)

	b.TotalCopies = 4
	stored, err = store.UpdateBook(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, 4, stored.TotalCopies)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{http.MethodPost, http.MethodPatch}, methods)
}

func TestRESTStore_UpdateMissingBook(t *testing.T) {
	store, _ := newTestREST(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := store.UpdateBook(context.Background(), catalog.Book{ID: "ghost"})
	assert.ErrorIs(t, err, ErrRejected)
}

func TestRESTStore_UpsertBookByISBN(t *testing.T) {
	store, _ := newTestREST(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/rpc/upsert_book_by_isbn", r.URL.Path)
		var body map[string]catalog.Book
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "978", body["candidate"].ISBN)
		_, _ = w.Write([]byte(`{"book":{"id":"b-9","isbn":"978","total_copies":5,"available_copies":5},"inserted":false}`))
	})

	stored, inserted, err := store.UpsertBookByISBN(context.Background(), catalog.Book{ISBN: "978", TotalCopies: 2})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, "b-9", stored.ID)
}

func TestRESTStore_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
	}{
		{"client error", http.StatusBadRequest, `{"message":"bad filter"}`, ErrRejected},
		{"forbidden", http.StatusForbidden, `{"message":"permission denied"}`, ErrRejected},
		{"server error", http.StatusInternalServerError, `oops`, ErrUpstream},
		{"rate limited", http.StatusTooManyRequests, ``, ErrUnavailable},
		{"malformed json", http.StatusOK, `[{"id":`, ErrBadResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _ := newTestREST(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := store.FetchBooks(context.Background())
			require.ErrorIs(t, err, tt.sentinel)

			var se *StoreError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, "fetch books", se.Operation)
		})
	}
}

func TestRESTStore_ServerDownIsConnectivity(t *testing.T) {
	store, srv := newTestREST(t, func(w http.ResponseWriter, _ *http.Request) {})
	srv.Close()

	err := store.Ping(context.Background())
	assert.True(t, IsConnectivity(err))
}

func TestRESTStore_BreakerOpensOnUpstreamFailures(t *testing.T) {
	var hits atomic.Int32
	store, _ := newTestREST(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, store.Ping(context.Background()), ErrUpstream)
	}
	assert.Equal(t, resilience.StateOpen, store.Breaker().State())

	err := store.Ping(context.Background())
	assert.True(t, IsConnectivity(err))
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(2), hits.Load(), "open breaker must not reach the server")
}

func TestRESTStore_DataErrorsDoNotTripBreaker(t *testing.T) {
	store, _ := newTestREST(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})

	for i := 0; i < 5; i++ {
		_, err := store.InsertBook(context.Background(), catalog.Book{ISBN: "1"})
		assert.ErrorIs(t, err, ErrRejected)
	}
	assert.Equal(t, resilience.StateClosed, store.Breaker().State())
}

func TestRESTStore_CancelledRequestsDoNotTripBreaker(t *testing.T) {
	var hits atomic.Int32
	store, _ := newTestREST(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 5; i++ {
		err := store.Ping(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.True(t, IsConnectivity(err))
	}
	assert.Equal(t, resilience.StateClosed, store.Breaker().State())

	require.NoError(t, store.Ping(context.Background()))
	assert.Equal(t, int32(1), hits.Load())
}
