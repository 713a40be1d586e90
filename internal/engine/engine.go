// Package engine drives a book repository with a matcher and produces
// duplicate groups: deterministic, exemption-aware, and recoverable-error
// tolerant. One Engine serves one library; cross-library comparison lives
// in the crosslib package.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/dupfinder/internal/exemptions"
	"github.com/steveyegge/dupfinder/internal/matcher"
	"github.com/steveyegge/dupfinder/internal/normalize"
	"github.com/steveyegge/dupfinder/internal/storage"
	"github.com/steveyegge/dupfinder/internal/types"
)

// Engine runs duplicate searches against one repository. Public operations
// are synchronous; concurrency, when enabled, is internal to binary
// hashing and invisible to the caller.
type Engine struct {
	repo        storage.Repository
	exempt      *exemptions.Store
	norm        *normalize.Normalizer
	log         *slog.Logger
	hashWorkers int
}

// Option configures an Engine.
type Option func(*Engine)

// WithNormalizer overrides the default normalizer configuration.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(e *Engine) { e.norm = n }
}

// WithLogger sets the slog logger for recoverable-failure warnings.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithHashWorkers bounds the parallel format hashing of binary searches.
// The default of 1 keeps hashing fully sequential.
func WithHashWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.hashWorkers = n
		}
	}
}

// New creates an Engine. The exemption store may be empty but must be
// loaded by the caller beforehand; a load failure is fatal for the search
// that needed it, so it is surfaced there, not here.
func New(repo storage.Repository, exempt *exemptions.Store, opts ...Option) *Engine {
	e := &Engine{
		repo:        repo,
		exempt:      exempt,
		norm:        normalize.New(normalize.Config{}),
		log:         slog.Default(),
		hashWorkers: 1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FindDuplicates runs one search over the whole repository.
func (e *Engine) FindDuplicates(ctx context.Context, spec types.SearchSpec) (*types.DuplicateResult, error) {
	return e.FindDuplicatesAmong(ctx, spec, nil)
}

// FindDuplicatesAmong runs one search restricted to the given candidate
// ids. A nil ids slice means every book in the repository. Enumeration
// order is preserved up to the union-find so canonical tie-breaks never
// drift between runs.
//
// On context cancellation the engine stops cleanly between books (or
// between formats while hashing), returns the portion completed with
// Cancelled set, and performs no repository mutation.
func (e *Engine) FindDuplicatesAmong(ctx context.Context, spec types.SearchSpec, ids []types.BookID) (*types.DuplicateResult, error) {
	if err := spec.ValidateSameLibrary(); err != nil {
		return nil, fmt.Errorf("invalid search spec: %w", err)
	}

	result := &types.DuplicateResult{
		RunID: uuid.NewString(),
		Spec:  spec,
	}

	if ids == nil {
		var err error
		ids, err = e.repo.AllBookIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("enumerating books: %w", err)
		}
	}

	if spec.Kind == types.KindBinary {
		if err := e.runBinary(ctx, spec, ids, result); err != nil {
			return nil, err
		}
		return result, nil
	}

	m, err := matcher.New(spec, e.norm)
	if err != nil {
		return nil, err
	}

	buckets := make(map[string]*bucket)
	meta := make(map[types.BookID]bookMeta)

	for _, id := range ids {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}
		book, err := e.repo.GetBook(ctx, id)
		if err != nil {
			e.skipBook(result, id, "fetch_metadata", err)
			continue
		}
		meta[id] = bookMeta{
			timestamp: book.Timestamp,
			title:     book.Title,
			authors:   book.Authors,
		}
		for _, key := range m.Keys(book) {
			b := buckets[key.Value]
			if b == nil {
				b = &bucket{value: key.Value, label: key.Label}
				buckets[key.Value] = b
			}
			b.add(id)
		}
	}

	ignoreTitle := spec.Kind == types.KindTitleAuthor && spec.TitleMode == types.MatchIgnore
	e.finalize(result, buckets, meta, ignoreTitle)
	return result, nil
}

// bucket is one equivalence-key bucket in enumeration order.
type bucket struct {
	value   string
	label   string
	members []types.BookID
	seen    map[types.BookID]struct{}
}

func (b *bucket) add(id types.BookID) {
	if b.seen == nil {
		b.seen = make(map[types.BookID]struct{})
	}
	if _, dup := b.seen[id]; dup {
		return
	}
	b.seen[id] = struct{}{}
	b.members = append(b.members, id)
}

// bookMeta is the slice of book state the engine keeps per run: enough to
// order members, label groups and apply author exemptions.
type bookMeta struct {
	timestamp time.Time
	title     string
	authors   []string
}

// finalize turns key buckets into ordered, exemption-filtered groups.
func (e *Engine) finalize(result *types.DuplicateResult, buckets map[string]*bucket, meta map[types.BookID]bookMeta, ignoreTitle bool) {
	values := make([]string, 0, len(buckets))
	for v, b := range buckets {
		if len(b.members) >= 2 {
			values = append(values, v)
		}
	}
	sort.Strings(values)

	uf := newUnionFind()
	componentKeys := make(map[types.BookID][]string)
	componentLabel := make(map[types.BookID]string)
	var order []types.BookID // roots in first-seen order
	for _, v := range values {
		b := buckets[v]
		first := b.members[0]
		for _, id := range b.members[1:] {
			uf.union(first, id)
		}
	}
	for _, v := range values {
		b := buckets[v]
		root := uf.find(b.members[0])
		if _, seen := componentKeys[root]; !seen {
			order = append(order, root)
			componentLabel[root] = b.label
		}
		componentKeys[root] = append(componentKeys[root], v)
	}

	components := make(map[types.BookID][]types.BookID)
	for _, v := range values {
		for _, id := range buckets[v].members {
			root := uf.find(id)
			if !containsID(components[root], id) {
				components[root] = append(components[root], id)
			}
		}
	}

	for _, root := range order {
		members := components[root]
		sortMembers(members, meta)
		kept, excluded := e.filterExempt(members, meta, ignoreTitle)
		result.ExemptExcluded += excluded
		if len(kept) < 2 {
			continue
		}
		label := meta[kept[0]].title
		if ignoreTitle {
			label = componentLabel[root]
		}
		result.Groups = append(result.Groups, types.DuplicateGroup{
			Members: kept,
			Keys:    componentKeys[root],
			Label:   label,
		})
	}

	sortGroups(result)
	for _, g := range result.Groups {
		result.AllMembers = append(result.AllMembers, g.Members...)
	}
}

// filterExempt removes members so that no kept pair is exempted. The scan
// is canonical-first: each member is kept only if no already-kept member
// is exempted from it, which matches how the exemption UI records "X is
// not a duplicate of Y1..Yk" sets.
func (e *Engine) filterExempt(members []types.BookID, meta map[types.BookID]bookMeta, ignoreTitle bool) (kept []types.BookID, excluded int) {
	for _, id := range members {
		ok := true
		for _, k := range kept {
			if e.pairExempt(k, id, meta, ignoreTitle) {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, id)
		} else {
			excluded++
		}
	}
	return kept, excluded
}

// pairExempt checks the book-pair relation, plus the author-name relation
// when the grouping key is an author (ignore-title searches).
func (e *Engine) pairExempt(a, b types.BookID, meta map[types.BookID]bookMeta, ignoreTitle bool) bool {
	if e.exempt == nil {
		return false
	}
	if e.exempt.IsExempt(a, b) {
		return true
	}
	if !ignoreTitle {
		return false
	}
	for _, authorA := range meta[a].authors {
		for _, authorB := range meta[b].authors {
			if e.exempt.IsAuthorExempt(authorA, authorB) {
				return true
			}
		}
	}
	return false
}

func (e *Engine) skipBook(result *types.DuplicateResult, id types.BookID, op string, err error) {
	msg := err.Error()
	if errors.Is(err, types.ErrBookNotFound) {
		msg = "book disappeared during the run"
	}
	e.log.Warn("skipping book", "op", op, "book", int64(id), "err", err)
	result.Diagnostics = append(result.Diagnostics, types.Diagnostic{
		BookID:  id,
		Op:      op,
		Message: msg,
	})
}

// sortMembers orders a group by (timestamp asc, id asc): canonical first.
func sortMembers(members []types.BookID, meta map[types.BookID]bookMeta) {
	sort.SliceStable(members, func(i, j int) bool {
		a, b := meta[members[i]], meta[members[j]]
		if !a.timestamp.Equal(b.timestamp) {
			return a.timestamp.Before(b.timestamp)
		}
		return members[i] < members[j]
	})
}

// sortGroups applies the presentation order: descending size when
// SortByCount, otherwise ascending case-folded label. All ties fall
// through to the canonical id so the order is total.
func sortGroups(result *types.DuplicateResult) {
	groups := result.Groups
	byLabel := func(i, j int) int {
		return strings.Compare(strings.ToLower(groups[i].Label), strings.ToLower(groups[j].Label))
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if result.Spec.SortByCount {
			if len(groups[i].Members) != len(groups[j].Members) {
				return len(groups[i].Members) > len(groups[j].Members)
			}
		}
		if c := byLabel(i, j); c != 0 {
			return c < 0
		}
		return groups[i].Canonical() < groups[j].Canonical()
	})
}

func containsID(ids []types.BookID, id types.BookID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
