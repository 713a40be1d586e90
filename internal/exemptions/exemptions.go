// Package exemptions tracks pairs the user has declared non-duplicates:
// book pairs within one library, and author-name pairs for searches whose
// grouping key is an author. Both relations are symmetric and idempotent.
//
// The store is single-writer per library. Loading builds a complete new
// image and swaps it in atomically; persisting writes a complete image and
// leaves memory untouched on failure, so the store never exposes a
// partially committed state.
package exemptions

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/steveyegge/dupfinder/internal/types"
)

// Logical keys in the host's keyed blob store.
const (
	BookExemptionsKey   = "book_exemptions"
	AuthorExemptionsKey = "author_exemptions"
)

// PrefsStore is the host-provided keyed blob store the exemption relations
// persist through. The second return of GetPref reports key presence.
type PrefsStore interface {
	GetPref(ctx context.Context, key string) ([]byte, bool, error)
	SetPref(ctx context.Context, key string, value []byte) error
}

// Store holds the in-memory exemption relations.
type Store struct {
	mu      sync.RWMutex
	books   map[types.BookID]map[types.BookID]struct{}
	authors map[string]map[string]struct{}
}

// New creates an empty store.
func New() *Store {
	return &Store{
		books:   make(map[types.BookID]map[types.BookID]struct{}),
		authors: make(map[string]map[string]struct{}),
	}
}

// IsExempt reports whether the user declared books a and b non-duplicates.
func (s *Store) IsExempt(a, b types.BookID) bool {
	if a == b {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.books[a][b]
	return ok
}

// AddExemptGroup records a symmetric exemption for every pair in ids.
// Duplicate ids are tolerated; self-pairs are never stored.
func (s *Store) AddExemptGroup(ids []types.BookID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range ids {
		for _, b := range ids {
			if a == b {
				continue
			}
			addPair(s.books, a, b)
		}
	}
}

// RemoveExempt deletes the exemption between a and b in both directions.
func (s *Store) RemoveExempt(a, b types.BookID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removePair(s.books, a, b)
}

// RemoveAllFor deletes every exemption involving id.
func (s *Store) RemoveAllFor(id types.BookID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for other := range s.books[id] {
		removePair(s.books, id, other)
	}
}

// ExemptionsFor returns the direct neighbours of id, sorted. The store does
// not model transitive closure.
func (s *Store) ExemptionsFor(id types.BookID) []types.BookID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	peers := s.books[id]
	if len(peers) == 0 {
		return nil
	}
	out := make([]types.BookID, 0, len(peers))
	for p := range peers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsAuthorExempt reports whether two author display names were declared
// non-equivalent. Comparison is exact on the stored display strings.
func (s *Store) IsAuthorExempt(a, b string) bool {
	if a == b {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.authors[a][b]
	return ok
}

// AddAuthorExemptGroup records a symmetric exemption for every pair of
// author names.
func (s *Store) AddAuthorExemptGroup(names []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range names {
		for _, b := range names {
			if a == b {
				continue
			}
			addPair(s.authors, a, b)
		}
	}
}

// RemoveAuthorExempt deletes the exemption between two author names.
func (s *Store) RemoveAuthorExempt(a, b string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removePair(s.authors, a, b)
}

// AuthorExemptionsFor returns the direct neighbours of an author name,
// sorted.
func (s *Store) AuthorExemptionsFor(name string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	peers := s.authors[name]
	if len(peers) == 0 {
		return nil
	}
	out := make([]string, 0, len(peers))
	for p := range peers {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// AuthorNames returns every author name present in the relation, sorted.
func (s *Store) AuthorNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.authors))
	for name := range s.authors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Counts returns the number of books and authors with at least one
// exemption, for display.
func (s *Store) Counts() (books, authors int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.books), len(s.authors)
}

// Load replaces the in-memory relations with the persisted image. The new
// image is built completely before the swap; on any error the current state
// is kept and a *types.ExemptionLoadError is returned.
//
// The legacy on-disk form recorded only the "first book" side of some
// pairs, so decoding tolerates one-directional, duplicate and reversed
// entries and normalizes all of them to symmetric form.
func (s *Store) Load(ctx context.Context, prefs PrefsStore) error {
	books, err := loadBookRelation(ctx, prefs)
	if err != nil {
		return &types.ExemptionLoadError{Key: BookExemptionsKey, Err: err}
	}
	authors, err := loadAuthorRelation(ctx, prefs)
	if err != nil {
		return &types.ExemptionLoadError{Key: AuthorExemptionsKey, Err: err}
	}

	s.mu.Lock()
	s.books = books
	s.authors = authors
	s.mu.Unlock()
	return nil
}

// Persist writes both relations. The encoded images are built from a
// consistent snapshot; if a write fails the in-memory state is unchanged
// and a *types.ExemptionPersistError is returned.
func (s *Store) Persist(ctx context.Context, prefs PrefsStore) error {
	s.mu.RLock()
	bookImage := encodeBookRelation(s.books)
	authorImage := encodeAuthorRelation(s.authors)
	s.mu.RUnlock()

	if err := prefs.SetPref(ctx, BookExemptionsKey, bookImage); err != nil {
		return &types.ExemptionPersistError{Key: BookExemptionsKey, Err: err}
	}
	if err := prefs.SetPref(ctx, AuthorExemptionsKey, authorImage); err != nil {
		return &types.ExemptionPersistError{Key: AuthorExemptionsKey, Err: err}
	}
	return nil
}

func addPair[K comparable](rel map[K]map[K]struct{}, a, b K) {
	if rel[a] == nil {
		rel[a] = make(map[K]struct{})
	}
	if rel[b] == nil {
		rel[b] = make(map[K]struct{})
	}
	rel[a][b] = struct{}{}
	rel[b][a] = struct{}{}
}

func removePair[K comparable](rel map[K]map[K]struct{}, a, b K) {
	delete(rel[a], b)
	delete(rel[b], a)
	if len(rel[a]) == 0 {
		delete(rel, a)
	}
	if len(rel[b]) == 0 {
		delete(rel, b)
	}
}

// Persisted form: a JSON object mapping the decimal book id to a
// comma-separated list of decimal book ids.
func encodeBookRelation(rel map[types.BookID]map[types.BookID]struct{}) []byte {
	image := make(map[string]string, len(rel))
	for id, peers := range rel {
		ids := make([]types.BookID, 0, len(peers))
		for p := range peers {
			ids = append(ids, p)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		parts := make([]string, len(ids))
		for i, p := range ids {
			parts[i] = strconv.FormatInt(int64(p), 10)
		}
		image[strconv.FormatInt(int64(id), 10)] = strings.Join(parts, ",")
	}
	data, _ := json.Marshal(image)
	return data
}

func loadBookRelation(ctx context.Context, prefs PrefsStore) (map[types.BookID]map[types.BookID]struct{}, error) {
	rel := make(map[types.BookID]map[types.BookID]struct{})
	data, ok, err := prefs.GetPref(ctx, BookExemptionsKey)
	if err != nil {
		return nil, err
	}
	if !ok || len(data) == 0 {
		return rel, nil
	}
	var image map[string]string
	if err := json.Unmarshal(data, &image); err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	for idStr, peerList := range image {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid book id %q: %w", idStr, err)
		}
		for _, peerStr := range strings.Split(peerList, ",") {
			peerStr = strings.TrimSpace(peerStr)
			if peerStr == "" {
				continue
			}
			peer, err := strconv.ParseInt(peerStr, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid book id %q: %w", peerStr, err)
			}
			if peer == id {
				continue
			}
			addPair(rel, types.BookID(id), types.BookID(peer))
		}
	}
	return rel, nil
}

// Persisted form: a JSON object mapping the author display string to a
// newline-separated list of author display strings.
func encodeAuthorRelation(rel map[string]map[string]struct{}) []byte {
	image := make(map[string]string, len(rel))
	for name, peers := range rel {
		names := make([]string, 0, len(peers))
		for p := range peers {
			names = append(names, p)
		}
		sort.Strings(names)
		image[name] = strings.Join(names, "\n")
	}
	data, _ := json.Marshal(image)
	return data
}

func loadAuthorRelation(ctx context.Context, prefs PrefsStore) (map[string]map[string]struct{}, error) {
	rel := make(map[string]map[string]struct{})
	data, ok, err := prefs.GetPref(ctx, AuthorExemptionsKey)
	if err != nil {
		return nil, err
	}
	if !ok || len(data) == 0 {
		return rel, nil
	}
	var image map[string]string
	if err := json.Unmarshal(data, &image); err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	for name, peerList := range image {
		for _, peer := range strings.Split(peerList, "\n") {
			peer = strings.TrimSpace(peer)
			if peer == "" || peer == name {
				continue
			}
			addPair(rel, name, peer)
		}
	}
	return rel, nil
}
