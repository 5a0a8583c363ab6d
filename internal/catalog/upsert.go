// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Sharnabh/LMS-sub002/internal/log"
	"github.com/Sharnabh/LMS-sub002/internal/metrics"
)

// BookWriter persists books in the remote store.
type BookWriter interface {
	InsertBook(ctx context.Context, b Book) (Book, error)
	UpdateBook(ctx context.Context, b Book) (Book, error)
}

// KeyedUpserter is implemented by stores that can merge by ISBN in a single
// transaction. inserted reports whether a new row was created.
type KeyedUpserter interface {
	UpsertBookByISBN(ctx context.Context, candidate Book) (stored Book, inserted bool, err error)
}

// UpsertResult describes what an upsert did. ID is empty when the write failed.
type UpsertResult struct {
	IsNew bool   `json:"is_new"`
	ID    string `json:"id,omitempty"`
}

// Coordinator deduplicates imported books by ISBN and merges copy counts into
// the existing record instead of inserting a duplicate.
//
// The lookup reads whatever book snapshot was last published, which may be
// momentarily stale. Enable WithServerSideMerge against a KeyedUpserter store to
// close that window.
type Coordinator struct {
	writer     BookWriter
	books      func() []Book
	reload     func(ctx context.Context) error
	serverSide bool
	now        func() time.Time
	newID      func() string
	logger     zerolog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithReload sets the hook invoked after every successful write so the
// published snapshot catches up with the store.
func WithReload(fn func(ctx context.Context) error) Option {
	return func(c *Coordinator) { c.reload = fn }
}

// WithServerSideMerge delegates lookup+write to the store when it implements
// KeyedUpserter. It is a no-op for stores that do not.
func WithServerSideMerge(enabled bool) Option {
	return func(c *Coordinator) { c.serverSide = enabled }
}

// WithClock overrides the time source used for CreatedAt/UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithIDGenerator overrides the generator used for new book IDs.
func WithIDGenerator(fn func() string) Option {
	return func(c *Coordinator) { c.newID = fn }
}

// NewCoordinator builds a Coordinator that looks candidates up in books().
func NewCoordinator(writer BookWriter, books func() []Book, opts ...Option) *Coordinator {
	c := &Coordinator{
		writer: writer,
		books:  books,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
		logger: log.WithComponent("catalog"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Validate checks a candidate before any lookup or write.
func Validate(candidate Book) error {
	if strings.TrimSpace(candidate.ISBN) == "" {
		return &ValidationError{Field: "isbn", Reason: "required"}
	}
	if candidate.TotalCopies <= 0 {
		return &ValidationError{Field: "total_copies", Reason: "must be positive"}
	}
	if candidate.TotalCopies > MaxCopies {
		return &ValidationError{Field: "total_copies", Reason: "exceeds maximum"}
	}
	return nil
}

// Upsert inserts candidate, or merges its copies into the first published book
// with the same ISBN. Failures come back as an error alongside a result whose
// IsNew is false and ID is empty.
func (c *Coordinator) Upsert(ctx context.Context, candidate Book) (UpsertResult, error) {
	logger := log.WithContext(ctx, c.logger).With().Str(log.FieldISBN, candidate.ISBN).Logger()

	if err := Validate(candidate); err != nil {
		metrics.RecordUpsert("invalid")
		logger.Warn().Err(err).Str(log.FieldEvent, "upsert.invalid").Msg("rejected book candidate")
		return UpsertResult{}, err
	}

	if ku, ok := c.writer.(KeyedUpserter); ok && c.serverSide {
		return c.upsertServerSide(ctx, ku, candidate, logger)
	}

	if existing, found := c.lookup(candidate.ISBN); found {
		merged, err := Merge(existing, candidate)
		if err != nil {
			metrics.RecordUpsert("invalid")
			logger.Warn().Err(err).Str(log.FieldEvent, "upsert.invalid").Str(log.FieldBookID, existing.ID).Msg("merged copy count out of range")
			return UpsertResult{}, err
		}
		merged.UpdatedAt = c.now()
		if _, err := c.writer.UpdateBook(ctx, merged); err != nil {
			metrics.RecordUpsert("failed")
			logger.Error().Err(err).Str(log.FieldEvent, "upsert.update_failed").Str(log.FieldBookID, existing.ID).Msg("failed to merge book copies")
			return UpsertResult{}, &WriteError{Op: "update", ISBN: candidate.ISBN, Err: err}
		}
		metrics.RecordUpsert("merged")
		logger.Info().
			Str(log.FieldEvent, "upsert.merged").
			Str(log.FieldBookID, existing.ID).
			Int("total_copies", merged.TotalCopies).
			Int("available_copies", merged.AvailableCopies).
			Msg("merged copies into existing book")
		c.afterWrite(ctx, logger)
		return UpsertResult{IsNew: false, ID: existing.ID}, nil
	}

	fresh := c.prepareInsert(candidate)
	stored, err := c.writer.InsertBook(ctx, fresh)
	if err != nil {
		metrics.RecordUpsert("failed")
		logger.Error().Err(err).Str(log.FieldEvent, "upsert.insert_failed").Msg("failed to insert book")
		return UpsertResult{}, &WriteError{Op: "insert", ISBN: candidate.ISBN, Err: err}
	}
	id := fresh.ID
	if stored.ID != "" {
		id = stored.ID
	}
	metrics.RecordUpsert("inserted")
	logger.Info().Str(log.FieldEvent, "upsert.inserted").Str(log.FieldBookID, id).Int("total_copies", fresh.TotalCopies).Msg("inserted new book")
	c.afterWrite(ctx, logger)
	return UpsertResult{IsNew: true, ID: id}, nil
}

func (c *Coordinator) upsertServerSide(ctx context.Context, ku KeyedUpserter, candidate Book, logger zerolog.Logger) (UpsertResult, error) {
	stored, inserted, err := ku.UpsertBookByISBN(ctx, c.prepareInsert(candidate))
	if err != nil {
		metrics.RecordUpsert("failed")
		logger.Error().Err(err).Str(log.FieldEvent, "upsert.failed").Msg("server-side book upsert failed")
		return UpsertResult{}, &WriteError{Op: "upsert", ISBN: candidate.ISBN, Err: err}
	}
	outcome := "merged"
	if inserted {
		outcome = "inserted"
	}
	metrics.RecordUpsert(outcome)
	logger.Info().Str(log.FieldEvent, "upsert."+outcome).Str(log.FieldBookID, stored.ID).Bool("server_side", true).Msg("book upserted")
	c.afterWrite(ctx, logger)
	return UpsertResult{IsNew: inserted, ID: stored.ID}, nil
}

// lookup returns the first book in the published snapshot with an exactly
// matching ISBN. Duplicate ISBNs already in the store resolve to the first one.
func (c *Coordinator) lookup(isbn string) (Book, bool) {
	if c.books == nil {
		return Book{}, false
	}
	for _, b := range c.books() {
		if b.ISBN == isbn {
			return b, true
		}
	}
	return Book{}, false
}

// prepareInsert fills identity and timestamps. Imported copies are fresh stock,
// so all of them start out available.
func (c *Coordinator) prepareInsert(candidate Book) Book {
	b := candidate
	if b.ID == "" {
		b.ID = c.newID()
	}
	now := c.now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	b.AvailableCopies = b.TotalCopies
	return b
}

func (c *Coordinator) afterWrite(ctx context.Context, logger zerolog.Logger) {
	if c.reload == nil {
		return
	}
	if err := c.reload(ctx); err != nil {
		logger.Warn().Err(err).Str(log.FieldEvent, "upsert.reload_failed").Msg("reload after write failed; next tick will catch up")
	}
}

// Merge adds the candidate's copies to existing, keeping existing's identity
// and descriptive fields. All added copies count as available. A merge whose
// total would pass MaxCopies is rejected with a *ValidationError.
func Merge(existing, candidate Book) (Book, error) {
	if candidate.TotalCopies > MaxCopies-existing.TotalCopies {
		return Book{}, &ValidationError{Field: "total_copies", Reason: "merged total exceeds maximum"}
	}
	merged := existing
	merged.TotalCopies += candidate.TotalCopies
	merged.AvailableCopies += candidate.TotalCopies
	return merged, merged.CheckQuantities()
}
