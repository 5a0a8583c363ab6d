// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package remote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite" // SQLite driver (pure Go, no CGO)

	"github.com/Sharnabh/LMS-sub002/internal/catalog"
)

// sqliteConstraint is SQLITE_CONSTRAINT; extended codes keep it in the low byte.
const sqliteConstraint = 19

// SQLiteStore keeps books and announcements in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)
var _ catalog.KeyedUpserter = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at dbPath and migrates it.
// WAL + busy_timeout for the read-heavy refresh workload; immediate
// transactions so the keyed upsert takes the write lock up front.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS books (
		id TEXT PRIMARY KEY,
		isbn TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		author TEXT NOT NULL DEFAULT '',
		publisher TEXT NOT NULL DEFAULT '',
		genre TEXT NOT NULL DEFAULT '',
		published_year INTEGER NOT NULL DEFAULT 0,
		total_copies INTEGER NOT NULL CHECK(total_copies >= 0),
		available_copies INTEGER NOT NULL CHECK(available_copies >= 0 AND available_copies <= total_copies),
		location TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_books_isbn ON books(isbn);

	CREATE TABLE IF NOT EXISTS announcements (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		body TEXT NOT NULL DEFAULT '',
		audience TEXT NOT NULL DEFAULT 'all' CHECK(audience IN ('all', 'members', 'librarians')),
		status TEXT NOT NULL CHECK(status IN ('active', 'scheduled', 'archived')),
		publish_at TEXT NOT NULL,
		expires_at TEXT,
		created_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_announcements_status ON announcements(status, publish_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Ping checks that the database answers.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &StoreError{Sentinel: ErrUnavailable, Operation: "ping", Err: err}
	}
	return nil
}

// FetchAnnouncements returns announcements with status, newest first.
func (s *SQLiteStore) FetchAnnouncements(ctx context.Context, status catalog.AnnouncementStatus) ([]catalog.Announcement, error) {
	query := `
	SELECT id, title, body, audience, status, publish_at, expires_at, created_by, created_at
	FROM announcements
	WHERE status = ?
	ORDER BY publish_at DESC, id
	`

	rows, err := s.db.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, classify("fetch announcements", err)
	}
	defer func() { _ = rows.Close() }()

	out := []catalog.Announcement{}
	for rows.Next() {
		var a catalog.Announcement
		var audience, st, publishAt, createdAt string
		var expiresAt sql.NullString
		if err := rows.Scan(&a.ID, &a.Title, &a.Body, &audience, &st, &publishAt, &expiresAt, &a.CreatedBy, &createdAt); err != nil {
			return nil, &StoreError{Sentinel: ErrBadResponse, Operation: "fetch announcements", Err: err}
		}
		a.Audience = catalog.Audience(audience)
		a.Status = catalog.AnnouncementStatus(st)
		a.PublishAt = parseTime(publishAt)
		a.CreatedAt = parseTime(createdAt)
		if expiresAt.Valid {
			t := parseTime(expiresAt.String)
			a.ExpiresAt = &t
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("fetch announcements", err)
	}
	return out, nil
}

// InsertAnnouncement stores a new announcement.
func (s *SQLiteStore) InsertAnnouncement(ctx context.Context, a catalog.Announcement) error {
	query := `
	INSERT INTO announcements (id, title, body, audience, status, publish_at, expires_at, created_by, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	var expiresAt sql.NullString
	if a.ExpiresAt != nil {
		expiresAt = sql.NullString{String: formatTime(*a.ExpiresAt), Valid: true}
	}
	audience := a.Audience
	if audience == "" {
		audience = catalog.AudienceAll
	}
	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.Title, a.Body, string(audience), string(a.Status),
		formatTime(a.PublishAt), expiresAt, a.CreatedBy, formatTime(a.CreatedAt))
	if err != nil {
		return classify("insert announcement", err)
	}
	return nil
}

const bookColumns = `id, isbn, title, author, publisher, genre, published_year, total_copies, available_copies, location, created_at, updated_at`

// FetchBooks returns all books in insertion order.
func (s *SQLiteStore) FetchBooks(ctx context.Context) ([]catalog.Book, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+bookColumns+` FROM books ORDER BY created_at, rowid`)
	if err != nil {
		return nil, classify("fetch books", err)
	}
	defer func() { _ = rows.Close() }()

	out := []catalog.Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, &StoreError{Sentinel: ErrBadResponse, Operation: "fetch books", Err: err}
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("fetch books", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(r rowScanner) (catalog.Book, error) {
	var b catalog.Book
	var createdAt, updatedAt string
	err := r.Scan(&b.ID, &b.ISBN, &b.Title, &b.Author, &b.Publisher, &b.Genre, &b.PublishedYear,
		&b.TotalCopies, &b.AvailableCopies, &b.Location, &createdAt, &updatedAt)
	if err != nil {
		return b, err
	}
	b.CreatedAt = parseTime(createdAt)
	b.UpdatedAt = parseTime(updatedAt)
	return b, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertBook(ctx context.Context, db execer, b catalog.Book) error {
	query := `INSERT INTO books (` + bookColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		b.ID, b.ISBN, b.Title, b.Author, b.Publisher, b.Genre, b.PublishedYear,
		b.TotalCopies, b.AvailableCopies, b.Location, formatTime(b.CreatedAt), formatTime(b.UpdatedAt))
	return err
}

func updateBook(ctx context.Context, db execer, b catalog.Book) (bool, error) {
	query := `
	UPDATE books SET isbn = ?, title = ?, author = ?, publisher = ?, genre = ?, published_year = ?,
		total_copies = ?, available_copies = ?, location = ?, updated_at = ?
	WHERE id = ?
	`
	res, err := db.ExecContext(ctx, query,
		b.ISBN, b.Title, b.Author, b.Publisher, b.Genre, b.PublishedYear,
		b.TotalCopies, b.AvailableCopies, b.Location, formatTime(b.UpdatedAt), b.ID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// InsertBook stores a new book.
func (s *SQLiteStore) InsertBook(ctx context.Context, b catalog.Book) (catalog.Book, error) {
	if err := insertBook(ctx, s.db, b); err != nil {
		return catalog.Book{}, classify("insert book", err)
	}
	return b, nil
}

// UpdateBook overwrites the book with b.ID.
func (s *SQLiteStore) UpdateBook(ctx context.Context, b catalog.Book) (catalog.Book, error) {
	ok, err := updateBook(ctx, s.db, b)
	if err != nil {
		return catalog.Book{}, classify("update book", err)
	}
	if !ok {
		return catalog.Book{}, &StoreError{Sentinel: ErrRejected, Operation: "update book", Body: "no book with id " + b.ID}
	}
	return b, nil
}

// UpsertBookByISBN merges candidate into the oldest book with the same ISBN,
// or inserts it, inside one write transaction.
func (s *SQLiteStore) UpsertBookByISBN(ctx context.Context, candidate catalog.Book) (catalog.Book, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return catalog.Book{}, false, classify("upsert book", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE isbn = ? ORDER BY created_at, rowid LIMIT 1`, candidate.ISBN)
	existing, err := scanBook(row)
	inserted := false
	var stored catalog.Book

	switch {
	case errors.Is(err, sql.ErrNoRows):
		stored = candidate
		if err := insertBook(ctx, tx, stored); err != nil {
			return catalog.Book{}, false, classify("upsert book", err)
		}
		inserted = true
	case err != nil:
		return catalog.Book{}, false, classify("upsert book", err)
	default:
		merged, err := catalog.Merge(existing, candidate)
		if err != nil {
			return catalog.Book{}, false, &StoreError{Sentinel: ErrRejected, Operation: "upsert book", Err: err}
		}
		stored = merged
		stored.UpdatedAt = candidate.UpdatedAt
		if _, err := updateBook(ctx, tx, stored); err != nil {
			return catalog.Book{}, false, classify("upsert book", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return catalog.Book{}, false, classify("upsert book", err)
	}
	return stored, inserted, nil
}

// classify maps driver errors onto the remote sentinels.
func classify(op string, err error) error {
	var se *sqlite.Error
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), errors.Is(err, sql.ErrConnDone):
		return &StoreError{Sentinel: ErrUnavailable, Operation: op, Err: err}
	case errors.As(err, &se) && se.Code()&0xff == sqliteConstraint:
		return &StoreError{Sentinel: ErrRejected, Operation: op, Err: err}
	default:
		return &StoreError{Sentinel: ErrUpstream, Operation: op, Err: err}
	}
}

// timeLayout is fixed width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}
		}
	}
	return t
}
