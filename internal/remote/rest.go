// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sharnabh/LMS-sub002/internal/catalog"
	"github.com/Sharnabh/LMS-sub002/internal/log"
	"github.com/Sharnabh/LMS-sub002/internal/resilience"
)

const maxErrorBody = 512

// RESTConfig configures a RESTStore.
type RESTConfig struct {
	BaseURL          string        // e.g. https://project.example.co
	APIKey           string        // sent as apikey and bearer token
	Timeout          time.Duration // per request
	BreakerThreshold int
	BreakerReset     time.Duration
}

// RESTStore talks to a PostgREST-style API exposing books and announcements
// tables under /rest/v1.
type RESTStore struct {
	base    *url.URL
	apiKey  string
	client  *http.Client
	breaker *resilience.CircuitBreaker
	logger  zerolog.Logger
}

var _ Store = (*RESTStore)(nil)
var _ catalog.KeyedUpserter = (*RESTStore)(nil)

// NewRESTStore validates cfg and builds a store. No request is made.
func NewRESTStore(cfg RESTConfig, client *http.Client) (*RESTStore, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid REST base url %q", cfg.BaseURL)
	}
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	return &RESTStore{
		base:   base,
		apiKey: cfg.APIKey,
		client: client,
		breaker: resilience.NewCircuitBreaker("remote.rest", cfg.BreakerThreshold, cfg.BreakerReset,
			resilience.WithFailureFilter(tripsBreaker)),
		logger: log.WithComponent("remote.rest").With().Str(log.FieldBaseURL, base.Redacted()).Logger(),
	}, nil
}

// tripsBreaker counts transport failures and 5xx replies. Data errors and
// requests abandoned by their caller pass.
func tripsBreaker(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrUpstream)
}

// Close releases idle connections.
func (s *RESTStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// Breaker exposes the circuit breaker for health reporting.
func (s *RESTStore) Breaker() *resilience.CircuitBreaker { return s.breaker }

// Ping issues the cheapest possible query against the books table.
func (s *RESTStore) Ping(ctx context.Context) error {
	q := url.Values{"select": {"id"}, "limit": {"1"}}
	return s.do(ctx, "ping", http.MethodGet, "books", q, nil, nil)
}

func (s *RESTStore) FetchAnnouncements(ctx context.Context, status catalog.AnnouncementStatus) ([]catalog.Announcement, error) {
	q := url.Values{
		"status": {"eq." + string(status)},
		"order":  {"publish_at.desc,id.asc"},
	}
	out := []catalog.Announcement{}
	if err := s.do(ctx, "fetch announcements", http.MethodGet, "announcements", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *RESTStore) FetchBooks(ctx context.Context) ([]catalog.Book, error) {
	q := url.Values{"order": {"created_at.asc,id.asc"}}
	out := []catalog.Book{}
	if err := s.do(ctx, "fetch books", http.MethodGet, "books", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *RESTStore) InsertBook(ctx context.Context, b catalog.Book) (catalog.Book, error) {
	var rows []catalog.Book
	if err := s.do(ctx, "insert book", http.MethodPost, "books", nil, b, &rows); err != nil {
		return catalog.Book{}, err
	}
	if len(rows) == 0 {
		return b, nil
	}
	return rows[0], nil
}

func (s *RESTStore) UpdateBook(ctx context.Context, b catalog.Book) (catalog.Book, error) {
	var rows []catalog.Book
	q := url.Values{"id": {"eq." + b.ID}}
	if err := s.do(ctx, "update book", http.MethodPatch, "books", q, b, &rows); err != nil {
		return catalog.Book{}, err
	}
	if len(rows) == 0 {
		return catalog.Book{}, &StoreError{Sentinel: ErrRejected, Operation: "update book", Body: "no book with id " + b.ID}
	}
	return rows[0], nil
}

type upsertReply struct {
	Book     catalog.Book `json:"book"`
	Inserted bool         `json:"inserted"`
}

// UpsertBookByISBN calls the upsert_book_by_isbn stored procedure, which
// merges or inserts in one transaction on the server.
func (s *RESTStore) UpsertBookByISBN(ctx context.Context, candidate catalog.Book) (catalog.Book, bool, error) {
	var reply upsertReply
	body := map[string]catalog.Book{"candidate": candidate}
	if err := s.do(ctx, "upsert book", http.MethodPost, "rpc/upsert_book_by_isbn", nil, body, &reply); err != nil {
		return catalog.Book{}, false, err
	}
	return reply.Book, reply.Inserted, nil
}

func (s *RESTStore) endpoint(path string, q url.Values) string {
	u := *s.base
	u.Path = strings.TrimRight(u.Path, "/") + "/rest/v1/" + path
	if q != nil {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// do runs one request through the circuit breaker and decodes a JSON reply
// into out (if non-nil).
func (s *RESTStore) do(ctx context.Context, op, method, path string, q url.Values, in, out any) error {
	err := s.breaker.Execute(func() error {
		return s.roundTrip(ctx, op, method, path, q, in, out)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return &StoreError{Sentinel: ErrUnavailable, Operation: op, Err: err}
	}
	return err
}

func (s *RESTStore) roundTrip(ctx context.Context, op, method, path string, q url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return &StoreError{Sentinel: ErrRejected, Operation: op, Err: err}
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.endpoint(path, q), body)
	if err != nil {
		return &StoreError{Sentinel: ErrRejected, Operation: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "return=representation")
	}
	if s.apiKey != "" {
		req.Header.Set("apikey", s.apiKey)
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	if rid := log.RequestIDFromContext(ctx); rid != "" {
		req.Header.Set("X-Request-ID", rid)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return &StoreError{Sentinel: ErrUnavailable, Operation: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	s.logger.Debug().
		Str(log.FieldEvent, "remote.request").
		Str("op", op).
		Int("status", resp.StatusCode).
		Int64(log.FieldDurationMS, time.Since(start).Milliseconds()).
		Msg("remote request completed")

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		sentinel := ErrRejected
		switch {
		case resp.StatusCode >= 500:
			sentinel = ErrUpstream
		case resp.StatusCode == http.StatusRequestTimeout, resp.StatusCode == http.StatusTooManyRequests:
			sentinel = ErrUnavailable
		}
		return &StoreError{Sentinel: sentinel, Operation: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return &StoreError{Sentinel: ErrUnavailable, Operation: op, Status: resp.StatusCode, Err: err}
		}
		return &StoreError{Sentinel: ErrBadResponse, Operation: op, Status: resp.StatusCode, Err: err}
	}
	return nil
}
