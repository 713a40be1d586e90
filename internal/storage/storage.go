// Package storage defines the repository capability the duplicate engine
// consumes. The host application owns the library; the engine only
// enumerates ids, fetches metadata, streams format bytes, reads and writes
// the keyed preference blobs, and marks result sets.
package storage

import (
	"context"
	"io"

	"github.com/steveyegge/dupfinder/internal/types"
)

// Repository is the book-library capability. Implementations must be safe
// for concurrent reads; mutation (RemoveFormat, MarkBooks, SetPref) is
// single-writer and serialized by the caller.
type Repository interface {
	// Location identifies the library on disk. Two Repository values with
	// the same Location are the same library.
	Location() string

	// AllBookIDs enumerates every book id in stable storage order. The
	// engine relies on this order for deterministic tie-breaking and must
	// not reorder it.
	AllBookIDs(ctx context.Context) ([]types.BookID, error)

	// GetBook fetches one book's metadata, or an error wrapping
	// types.ErrBookNotFound.
	GetBook(ctx context.Context, id types.BookID) (*types.Book, error)

	// OpenFormat streams the bytes of one format file, or an error
	// wrapping types.ErrFormatUnavailable. The caller closes the stream.
	OpenFormat(ctx context.Context, id types.BookID, ext string) (io.ReadCloser, error)

	// RemoveFormat deletes one format file from a book. The book record
	// itself is never removed.
	RemoveFormat(ctx context.Context, id types.BookID, ext string) error

	// IdentifierSchemes lists the identifier schemes present anywhere in
	// the library, for populating a scheme chooser.
	IdentifierSchemes(ctx context.Context) ([]string, error)

	// MarkBooks replaces the library's marked set with the given tags.
	// An empty map clears the marks.
	MarkBooks(ctx context.Context, marks map[types.BookID]string) error

	// GetPref and SetPref access the library's keyed blob store, used to
	// persist the exemption relations.
	GetPref(ctx context.Context, key string) ([]byte, bool, error)
	SetPref(ctx context.Context, key string, value []byte) error

	// Close releases the underlying resources.
	Close() error
}
