package sqlite

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/dupfinder/internal/types"
)

func openTestLibrary(t *testing.T) *Library {
	t.Helper()
	lib, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { lib.Close() })
	return lib
}

func TestAddAndGetBook(t *testing.T) {
	ctx := context.Background()
	lib := openTestLibrary(t)

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	id, err := lib.AddBook(ctx, &types.Book{
		Title:       "The Hobbit",
		Authors:     []string{"J. R. R. Tolkien"},
		AuthorSort:  []string{"Tolkien, J. R. R."},
		Identifiers: map[string]string{"isbn": "9780261103344"},
		Series:      "Middle-earth",
		Languages:   []string{"en"},
		Timestamp:   ts,
	})
	require.NoError(t, err)

	book, err := lib.GetBook(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "The Hobbit", book.Title)
	assert.Equal(t, []string{"J. R. R. Tolkien"}, book.Authors)
	assert.Equal(t, []string{"Tolkien, J. R. R."}, book.AuthorSort)
	assert.Equal(t, "9780261103344", book.Identifiers["isbn"])
	assert.Equal(t, "Middle-earth", book.Series)
	assert.Equal(t, []string{"en"}, book.Languages)
	assert.True(t, book.Timestamp.Equal(ts))
	assert.Empty(t, book.Formats)
}

func TestGetBookNotFound(t *testing.T) {
	ctx := context.Background()
	lib := openTestLibrary(t)

	_, err := lib.GetBook(ctx, 12345)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrBookNotFound))
}

func TestAllBookIDsOrdered(t *testing.T) {
	ctx := context.Background()
	lib := openTestLibrary(t)

	var want []types.BookID
	for i := 0; i < 5; i++ {
		id, err := lib.AddBook(ctx, &types.Book{Title: "Book"})
		require.NoError(t, err)
		want = append(want, id)
	}

	got, err := lib.AllBookIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFormatsRoundtrip(t *testing.T) {
	ctx := context.Background()
	lib := openTestLibrary(t)

	id, err := lib.AddBook(ctx, &types.Book{Title: "With Formats"})
	require.NoError(t, err)

	payload := strings.Repeat("epub-bytes ", 100)
	require.NoError(t, lib.AddFormat(ctx, id, "EPUB", strings.NewReader(payload)))

	book, err := lib.GetBook(ctx, id)
	require.NoError(t, err)
	require.Len(t, book.Formats, 1)
	assert.Equal(t, "epub", book.Formats[0].Ext)
	assert.Equal(t, int64(len(payload)), book.Formats[0].Size)

	rc, err := lib.OpenFormat(ctx, id, "epub")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))

	require.NoError(t, lib.RemoveFormat(ctx, id, "epub"))
	book, err = lib.GetBook(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, book.Formats, "format row removed but book record kept")

	_, err = lib.OpenFormat(ctx, id, "epub")
	assert.True(t, errors.Is(err, types.ErrFormatUnavailable))
}

func TestRemoveMissingFormat(t *testing.T) {
	ctx := context.Background()
	lib := openTestLibrary(t)

	id, err := lib.AddBook(ctx, &types.Book{Title: "No Formats"})
	require.NoError(t, err)

	err = lib.RemoveFormat(ctx, id, "mobi")
	assert.True(t, errors.Is(err, types.ErrFormatUnavailable))
}

func TestIdentifierSchemes(t *testing.T) {
	ctx := context.Background()
	lib := openTestLibrary(t)

	_, err := lib.AddBook(ctx, &types.Book{Title: "A", Identifiers: map[string]string{"isbn": "1"}})
	require.NoError(t, err)
	_, err = lib.AddBook(ctx, &types.Book{Title: "B", Identifiers: map[string]string{"amazon": "2", "isbn": "3"}})
	require.NoError(t, err)

	schemes, err := lib.IdentifierSchemes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"amazon", "isbn"}, schemes)
}

func TestMarkBooks(t *testing.T) {
	ctx := context.Background()
	lib := openTestLibrary(t)

	a, err := lib.AddBook(ctx, &types.Book{Title: "A"})
	require.NoError(t, err)
	b, err := lib.AddBook(ctx, &types.Book{Title: "B"})
	require.NoError(t, err)

	marks := map[types.BookID]string{
		a: "duplicate_group_1_1",
		b: "duplicate_group_1_2",
	}
	require.NoError(t, lib.MarkBooks(ctx, marks))

	got, err := lib.MarkedBooks(ctx)
	require.NoError(t, err)
	assert.Equal(t, marks, got)

	// Replacing with an empty set clears the marks
	require.NoError(t, lib.MarkBooks(ctx, nil))
	got, err = lib.MarkedBooks(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPrefsRoundtrip(t *testing.T) {
	ctx := context.Background()
	lib := openTestLibrary(t)

	_, ok, err := lib.GetPref(ctx, "book_exemptions")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, lib.SetPref(ctx, "book_exemptions", []byte(`{"1":"2"}`)))
	val, ok, err := lib.GetPref(ctx, "book_exemptions")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"1":"2"}`, string(val))

	// Overwrite
	require.NoError(t, lib.SetPref(ctx, "book_exemptions", []byte(`{}`)))
	val, _, err = lib.GetPref(ctx, "book_exemptions")
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(val))
}

func TestSharedAuthorRows(t *testing.T) {
	ctx := context.Background()
	lib := openTestLibrary(t)

	a, err := lib.AddBook(ctx, &types.Book{Title: "A", Authors: []string{"Shared Author"}})
	require.NoError(t, err)
	b, err := lib.AddBook(ctx, &types.Book{Title: "B", Authors: []string{"Shared Author"}})
	require.NoError(t, err)

	bookA, err := lib.GetBook(ctx, a)
	require.NoError(t, err)
	bookB, err := lib.GetBook(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, bookA.Authors, bookB.Authors)
}
