// Package sqlite implements the storage.Repository capability over a
// library directory: a metadata.db SQLite database plus the format files
// under files/<book-id>/. The driver is pure Go (wazero-based), so the
// binary stays cgo-free.
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

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/steveyegge/dupfinder/internal/types"
)

// MetadataFile is the database filename inside a library directory.
const MetadataFile = "metadata.db"

// filesDir holds the format files, one subdirectory per book id.
const filesDir = "files"

// Library is a storage.Repository backed by one library directory.
type Library struct {
	db   *sql.DB
	path string
}

// Open opens (or initializes) the library at dir. The directory is created
// when missing, so Open doubles as "create an empty library".
func Open(dir string) (*Library, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving library path: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("creating library directory: %w", err)
	}

	dbPath := filepath.Join(abs, MetadataFile)
	dsn := "file:" + dbPath +
		"?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return &Library{db: db, path: abs}, nil
}

// Location implements storage.Repository.
func (l *Library) Location() string { return l.path }

// Close implements storage.Repository.
func (l *Library) Close() error { return l.db.Close() }

// AllBookIDs implements storage.Repository. Order is ascending id; the
// engine depends on this enumeration order for deterministic tie-breaks.
func (l *Library) AllBookIDs(ctx context.Context) ([]types.BookID, error) {
	rows, err := l.db.QueryContext(ctx, "SELECT id FROM books ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("listing book ids: %w", err)
	}
	defer rows.Close()

	var ids []types.BookID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning book id: %w", err)
		}
		ids = append(ids, types.BookID(id))
	}
	return ids, rows.Err()
}

// GetBook implements storage.Repository.
func (l *Library) GetBook(ctx context.Context, id types.BookID) (*types.Book, error) {
	book := &types.Book{ID: id}

	var ts string
	err := l.db.QueryRowContext(ctx,
		"SELECT title, series, timestamp FROM books WHERE id = ?", int64(id),
	).Scan(&book.Title, &book.Series, &ts)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("book %d: %w", id, types.ErrBookNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching book %d: %w", id, err)
	}
	book.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, fmt.Errorf("book %d has invalid timestamp %q: %w", id, ts, err)
	}

	if err := l.loadAuthors(ctx, book); err != nil {
		return nil, err
	}
	if err := l.loadIdentifiers(ctx, book); err != nil {
		return nil, err
	}
	if err := l.loadLanguages(ctx, book); err != nil {
		return nil, err
	}
	if err := l.loadFormats(ctx, book); err != nil {
		return nil, err
	}
	return book, nil
}

func (l *Library) loadAuthors(ctx context.Context, book *types.Book) error {
	rows, err := l.db.QueryContext(ctx, `
		SELECT a.name, a.sort
		FROM authors a
		JOIN books_authors_link bal ON bal.author = a.id
		WHERE bal.book = ?
		ORDER BY bal.ord`, int64(book.ID))
	if err != nil {
		return fmt.Errorf("fetching authors for book %d: %w", book.ID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var name, sortName string
		if err := rows.Scan(&name, &sortName); err != nil {
			return fmt.Errorf("scanning author: %w", err)
		}
		book.Authors = append(book.Authors, name)
		book.AuthorSort = append(book.AuthorSort, sortName)
	}
	return rows.Err()
}

func (l *Library) loadIdentifiers(ctx context.Context, book *types.Book) error {
	rows, err := l.db.QueryContext(ctx,
		"SELECT type, val FROM identifiers WHERE book = ?", int64(book.ID))
	if err != nil {
		return fmt.Errorf("fetching identifiers for book %d: %w", book.ID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var scheme, val string
		if err := rows.Scan(&scheme, &val); err != nil {
			return fmt.Errorf("scanning identifier: %w", err)
		}
		if book.Identifiers == nil {
			book.Identifiers = make(map[string]string)
		}
		book.Identifiers[scheme] = val
	}
	return rows.Err()
}

func (l *Library) loadLanguages(ctx context.Context, book *types.Book) error {
	rows, err := l.db.QueryContext(ctx,
		"SELECT lang_code FROM languages WHERE book = ? ORDER BY ord", int64(book.ID))
	if err != nil {
		return fmt.Errorf("fetching languages for book %d: %w", book.ID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var lang string
		if err := rows.Scan(&lang); err != nil {
			return fmt.Errorf("scanning language: %w", err)
		}
		book.Languages = append(book.Languages, lang)
	}
	return rows.Err()
}

func (l *Library) loadFormats(ctx context.Context, book *types.Book) error {
	rows, err := l.db.QueryContext(ctx,
		"SELECT ext, size FROM formats WHERE book = ? ORDER BY ext", int64(book.ID))
	if err != nil {
		return fmt.Errorf("fetching formats for book %d: %w", book.ID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var f types.FormatRef
		if err := rows.Scan(&f.Ext, &f.Size); err != nil {
			return fmt.Errorf("scanning format: %w", err)
		}
		book.Formats = append(book.Formats, f)
	}
	return rows.Err()
}

// OpenFormat implements storage.Repository.
func (l *Library) OpenFormat(ctx context.Context, id types.BookID, ext string) (io.ReadCloser, error) {
	ext = strings.ToLower(ext)
	var filename string
	err := l.db.QueryRowContext(ctx,
		"SELECT filename FROM formats WHERE book = ? AND ext = ?", int64(id), ext,
	).Scan(&filename)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("book %d format %s: %w", id, ext, types.ErrFormatUnavailable)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up format %s of book %d: %w", ext, id, err)
	}

	f, err := os.Open(l.formatPath(id, filename))
	if err != nil {
		return nil, fmt.Errorf("book %d format %s: %w: %v", id, ext, types.ErrFormatUnavailable, err)
	}
	return f, nil
}

// RemoveFormat implements storage.Repository. The metadata row and the
// file on disk are both removed; the book record stays.
func (l *Library) RemoveFormat(ctx context.Context, id types.BookID, ext string) error {
	ext = strings.ToLower(ext)
	var filename string
	err := l.db.QueryRowContext(ctx,
		"SELECT filename FROM formats WHERE book = ? AND ext = ?", int64(id), ext,
	).Scan(&filename)
	if err == sql.ErrNoRows {
		return fmt.Errorf("book %d format %s: %w", id, ext, types.ErrFormatUnavailable)
	}
	if err != nil {
		return fmt.Errorf("looking up format %s of book %d: %w", ext, id, err)
	}

	if _, err := l.db.ExecContext(ctx,
		"DELETE FROM formats WHERE book = ? AND ext = ?", int64(id), ext); err != nil {
		return fmt.Errorf("deleting format row: %w", err)
	}
	if err := os.Remove(l.formatPath(id, filename)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting format file: %w", err)
	}
	return nil
}

// IdentifierSchemes implements storage.Repository.
func (l *Library) IdentifierSchemes(ctx context.Context) ([]string, error) {
	rows, err := l.db.QueryContext(ctx,
		"SELECT DISTINCT type FROM identifiers ORDER BY type")
	if err != nil {
		return nil, fmt.Errorf("listing identifier schemes: %w", err)
	}
	defer rows.Close()

	var schemes []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scanning scheme: %w", err)
		}
		schemes = append(schemes, s)
	}
	return schemes, rows.Err()
}

// MarkBooks implements storage.Repository. The whole marked set is
// replaced in one transaction.
func (l *Library) MarkBooks(ctx context.Context, marks map[types.BookID]string) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting mark transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM marked"); err != nil {
		return fmt.Errorf("clearing marked set: %w", err)
	}
	for id, tag := range marks {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO marked (book, tag) VALUES (?, ?)", int64(id), tag); err != nil {
			return fmt.Errorf("marking book %d: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing marked set: %w", err)
	}
	return nil
}

// MarkedBooks returns the current marked set.
func (l *Library) MarkedBooks(ctx context.Context) (map[types.BookID]string, error) {
	rows, err := l.db.QueryContext(ctx, "SELECT book, tag FROM marked")
	if err != nil {
		return nil, fmt.Errorf("listing marked books: %w", err)
	}
	defer rows.Close()

	marks := make(map[types.BookID]string)
	for rows.Next() {
		var id int64
		var tag string
		if err := rows.Scan(&id, &tag); err != nil {
			return nil, fmt.Errorf("scanning mark: %w", err)
		}
		marks[types.BookID(id)] = tag
	}
	return marks, rows.Err()
}

// GetPref implements storage.Repository.
func (l *Library) GetPref(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := l.db.QueryRowContext(ctx,
		"SELECT value FROM prefs WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading pref %q: %w", key, err)
	}
	return value, true, nil
}

// SetPref implements storage.Repository.
func (l *Library) SetPref(ctx context.Context, key string, value []byte) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO prefs (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("writing pref %q: %w", key, err)
	}
	return nil
}

func (l *Library) formatPath(id types.BookID, filename string) string {
	return filepath.Join(l.path, filesDir, strconv.FormatInt(int64(id), 10), filename)
}
