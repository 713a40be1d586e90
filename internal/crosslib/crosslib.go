// Package crosslib compares two libraries and reports which local books
// also exist in the remote one. Ids never mix: every match pairs a local
// id with remote display metadata, and nothing is ever mutated on either
// side.
package crosslib

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/steveyegge/dupfinder/internal/matcher"
	"github.com/steveyegge/dupfinder/internal/normalize"
	"github.com/steveyegge/dupfinder/internal/storage"
	"github.com/steveyegge/dupfinder/internal/types"
)

// DefaultMaxRemoteIndex bounds how many remote books the comparer will
// index before giving up. The index holds only keys and RemoteRefs, so a
// million books is well under a gigabyte.
const DefaultMaxRemoteIndex = 1_000_000

// Comparer matches one local library against one remote library.
type Comparer struct {
	local     storage.Repository
	remote    storage.Repository
	norm      *normalize.Normalizer
	log       *slog.Logger
	maxRemote int
}

// Option configures a Comparer.
type Option func(*Comparer)

// WithNormalizer overrides the default normalizer configuration.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(c *Comparer) { c.norm = n }
}

// WithLogger sets the slog logger for recoverable-failure warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *Comparer) { c.log = l }
}

// WithMaxRemoteIndex overrides the remote index cap.
func WithMaxRemoteIndex(n int) Option {
	return func(c *Comparer) {
		if n > 0 {
			c.maxRemote = n
		}
	}
}

// NewComparer builds a Comparer, refusing to compare a library with
// itself: same Location means same library, and a self-comparison would
// report every book as its own duplicate.
func NewComparer(local, remote storage.Repository, opts ...Option) (*Comparer, error) {
	if local.Location() == remote.Location() {
		return nil, &types.CrossLibraryError{
			Local:  local.Location(),
			Remote: remote.Location(),
			Reason: "local and remote are the same library",
		}
	}
	c := &Comparer{
		local:     local,
		remote:    remote,
		norm:      normalize.New(normalize.Config{}),
		log:       slog.Default(),
		maxRemote: DefaultMaxRemoteIndex,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Find reports every local book with at least one remote counterpart
// under the given spec, in local enumeration order. Unlike same-library
// searches, the (ignore title, identical author) combination is allowed:
// "which of this author's books does the other library have" is a
// legitimate cross-library question.
func (c *Comparer) Find(ctx context.Context, spec types.SearchSpec) ([]types.CrossMatch, error) {
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid search spec: %w", err)
	}
	if spec.Kind == types.KindBinary {
		return c.findBinary(ctx)
	}
	return c.findMetadata(ctx, spec)
}

func (c *Comparer) findMetadata(ctx context.Context, spec types.SearchSpec) ([]types.CrossMatch, error) {
	m, err := matcher.New(spec, c.norm)
	if err != nil {
		return nil, err
	}

	index, err := c.buildRemoteIndex(ctx, func(b *types.Book) []string {
		keys := m.Keys(b)
		out := make([]string, len(keys))
		for i, k := range keys {
			out[i] = k.Value
		}
		return out
	})
	if err != nil {
		return nil, err
	}

	localIDs, err := c.local.AllBookIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerating local books: %w", err)
	}

	var matches []types.CrossMatch
	for _, id := range localIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		book, err := c.local.GetBook(ctx, id)
		if err != nil {
			c.log.Warn("skipping local book", "book", int64(id), "err", err)
			continue
		}
		var remote []types.RemoteRef
		seen := make(map[types.BookID]struct{})
		for _, key := range m.Keys(book) {
			for _, ref := range index[key.Value] {
				if _, dup := seen[ref.ID]; dup {
					continue
				}
				seen[ref.ID] = struct{}{}
				remote = append(remote, ref)
			}
		}
		if len(remote) > 0 {
			matches = append(matches, types.CrossMatch{
				LocalID:    id,
				LocalTitle: book.Title,
				Remote:     remote,
			})
		}
	}
	return matches, nil
}

// buildRemoteIndex walks the remote library once and maps every key a
// remote book produces to its RemoteRef. The walk aborts with a
// CrossLibraryError when the remote side exceeds the index cap.
func (c *Comparer) buildRemoteIndex(ctx context.Context, keysOf func(*types.Book) []string) (map[string][]types.RemoteRef, error) {
	remoteIDs, err := c.remote.AllBookIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerating remote books: %w", err)
	}
	if len(remoteIDs) > c.maxRemote {
		return nil, &types.CrossLibraryError{
			Local:  c.local.Location(),
			Remote: c.remote.Location(),
			Reason: fmt.Sprintf("remote library has %d books, over the %d index cap", len(remoteIDs), c.maxRemote),
		}
	}

	index := make(map[string][]types.RemoteRef)
	for _, id := range remoteIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		book, err := c.remote.GetBook(ctx, id)
		if err != nil {
			c.log.Warn("skipping remote book", "book", int64(id), "err", err)
			continue
		}
		ref := types.RemoteRef{
			ID:      book.ID,
			Title:   book.Title,
			Authors: book.Authors,
			Path:    c.remote.Location(),
		}
		for _, key := range keysOf(book) {
			index[key] = append(index[key], ref)
		}
	}
	return index, nil
}
