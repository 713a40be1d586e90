package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/steveyegge/dupfinder/internal/types"
)

// Host-side write path: adding books and format files. The engine never
// calls these; they exist for library creation, imports and test fixtures.

// AddBook inserts a book record with its authors, identifiers and
// languages. book.ID is ignored; the assigned id is returned. A zero
// Timestamp is replaced with the current time.
func (l *Library) AddBook(ctx context.Context, book *types.Book) (types.BookID, error) {
	ts := book.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting add transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO books (title, series, timestamp) VALUES (?, ?, ?)",
		book.Title, book.Series, ts.Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("inserting book: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("resolving new book id: %w", err)
	}

	for ord, name := range book.Authors {
		sortName := ""
		if ord < len(book.AuthorSort) {
			sortName = book.AuthorSort[ord]
		}
		authorID, err := upsertAuthor(ctx, tx, name, sortName)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO books_authors_link (book, author, ord) VALUES (?, ?, ?)",
			id, authorID, ord); err != nil {
			return 0, fmt.Errorf("linking author %q: %w", name, err)
		}
	}

	for scheme, val := range book.Identifiers {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO identifiers (book, type, val) VALUES (?, ?, ?)",
			id, strings.ToLower(scheme), val); err != nil {
			return 0, fmt.Errorf("inserting identifier %q: %w", scheme, err)
		}
	}

	for ord, lang := range book.Languages {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO languages (book, lang_code, ord) VALUES (?, ?, ?)",
			id, strings.ToLower(lang), ord); err != nil {
			return 0, fmt.Errorf("inserting language %q: %w", lang, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing book: %w", err)
	}
	return types.BookID(id), nil
}

func upsertAuthor(ctx context.Context, tx *sql.Tx, name, sortName string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		"SELECT id FROM authors WHERE name = ?", name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("looking up author %q: %w", name, err)
	}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO authors (name, sort) VALUES (?, ?)", name, sortName)
	if err != nil {
		return 0, fmt.Errorf("inserting author %q: %w", name, err)
	}
	return res.LastInsertId()
}

// AddFormat stores the bytes of r as a format file of the book and records
// its size. An existing format with the same extension is replaced.
func (l *Library) AddFormat(ctx context.Context, id types.BookID, ext string, r io.Reader) error {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		return fmt.Errorf("format extension is required")
	}

	dir := filepath.Join(l.path, filesDir, strconv.FormatInt(int64(id), 10))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating format directory: %w", err)
	}
	filename := "book." + ext
	path := filepath.Join(dir, filename)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating format file: %w", err)
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("writing format file: %w", err)
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO formats (book, ext, size, filename) VALUES (?, ?, ?, ?)
		ON CONFLICT(book, ext) DO UPDATE SET size = excluded.size, filename = excluded.filename`,
		int64(id), ext, size, filename)
	if err != nil {
		return fmt.Errorf("recording format: %w", err)
	}
	return nil
}
