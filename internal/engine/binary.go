package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/steveyegge/dupfinder/internal/matcher"
	"github.com/steveyegge/dupfinder/internal/types"
)

// formatEntry is one (book, format) pair surviving the size/ext phase.
type formatEntry struct {
	id  types.BookID
	ref types.FormatRef
}

// runBinary executes the two-phase binary search: bucket every format by
// (extension, size), then hash only the buckets with two or more distinct
// books and group on content digest. Hashing is the one place the engine
// uses worker concurrency; everything before and after is sequential so
// the result stays deterministic.
func (e *Engine) runBinary(ctx context.Context, spec types.SearchSpec, ids []types.BookID, result *types.DuplicateResult) error {
	sizeBuckets := make(map[string][]formatEntry)
	meta := make(map[types.BookID]bookMeta)

	for _, id := range ids {
		if ctx.Err() != nil {
			result.Cancelled = true
			return nil
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
		for _, f := range book.Formats {
			key := matcher.SizeKey(f)
			sizeBuckets[key] = append(sizeBuckets[key], formatEntry{id: id, ref: f})
		}
	}

	candidates := collectHashCandidates(sizeBuckets)
	digests, cancelled := e.hashAll(ctx, candidates, result)
	if cancelled {
		result.Cancelled = true
		return nil
	}

	hashBuckets := make(map[string]*bucket)
	for _, c := range candidates {
		h, ok := digests[c]
		if !ok {
			continue
		}
		key := matcher.HashKey(c.ref, h)
		b := hashBuckets[key]
		if b == nil {
			b = &bucket{value: key, label: meta[c.id].title}
			hashBuckets[key] = b
		}
		b.add(c.id)
	}

	e.finalize(result, hashBuckets, meta, false)

	if spec.AutoRemoveFormats && !result.Cancelled {
		e.autoRemoveFormats(ctx, result, hashBuckets)
	}
	return nil
}

// collectHashCandidates flattens the size buckets that could still produce
// a group: at least two distinct books sharing an extension and a size.
// The return order is deterministic (sorted bucket key, then enumeration
// order within the bucket).
func collectHashCandidates(sizeBuckets map[string][]formatEntry) []formatEntry {
	keys := make([]string, 0, len(sizeBuckets))
	for k, entries := range sizeBuckets {
		distinct := make(map[types.BookID]struct{})
		for _, en := range entries {
			distinct[en.id] = struct{}{}
		}
		if len(distinct) >= 2 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var out []formatEntry
	for _, k := range keys {
		out = append(out, sizeBuckets[k]...)
	}
	return out
}

// hashAll digests every candidate format, bounded by hashWorkers. Failures
// to open or read a format are recoverable: the entry is dropped with a
// diagnostic and the rest of the bucket proceeds.
func (e *Engine) hashAll(ctx context.Context, candidates []formatEntry, result *types.DuplicateResult) (map[formatEntry]string, bool) {
	digests := make(map[formatEntry]string, len(candidates))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := semaphore.NewWeighted(int64(e.hashWorkers))

	cancelled := false
	for _, c := range candidates {
		if err := sem.Acquire(ctx, 1); err != nil {
			cancelled = true
			break
		}
		wg.Add(1)
		go func(c formatEntry) {
			defer wg.Done()
			defer sem.Release(1)
			h, err := e.hashFormat(ctx, c)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				e.log.Warn("skipping format", "op", "hash_format",
					"book", int64(c.id), "format", c.ref.Ext, "err", err)
				result.Diagnostics = append(result.Diagnostics, types.Diagnostic{
					BookID:  c.id,
					Format:  c.ref.Ext,
					Op:      "hash_format",
					Message: err.Error(),
				})
				return
			}
			digests[c] = h
		}(c)
	}
	wg.Wait()
	return digests, cancelled || ctx.Err() != nil
}

func (e *Engine) hashFormat(ctx context.Context, c formatEntry) (string, error) {
	rc, err := e.repo.OpenFormat(ctx, c.id, c.ref.Ext)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	h, err := matcher.HashReader(rc)
	if err != nil {
		return "", fmt.Errorf("reading %s of book %d: %w", c.ref.Ext, c.id, err)
	}
	return h, nil
}

// autoRemoveFormats prunes redundant identical copies: within every hash
// bucket that contains the canonical book of its group, the format is
// removed from every other member, leaving the canonical copy untouched.
// Buckets whose group canonical is absent (its own copy was unreadable)
// are skipped with a diagnostic rather than guessed at.
func (e *Engine) autoRemoveFormats(ctx context.Context, result *types.DuplicateResult, hashBuckets map[string]*bucket) {
	canonicalOf := make(map[types.BookID]types.BookID)
	inGroup := make(map[types.BookID]bool)
	for _, g := range result.Groups {
		for _, id := range g.Members {
			canonicalOf[id] = g.Canonical()
			inGroup[id] = true
		}
	}

	keys := make([]string, 0, len(hashBuckets))
	for k, b := range hashBuckets {
		if len(b.members) >= 2 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		b := hashBuckets[k]
		ext := extOfHashKey(k)
		canonical, ok := bucketCanonical(b, canonicalOf, inGroup)
		if !ok {
			e.log.Warn("keeping redundant copies", "op", "auto_remove",
				"format", ext, "reason", "canonical copy unreadable")
			result.Diagnostics = append(result.Diagnostics, types.Diagnostic{
				Format:  ext,
				Op:      "auto_remove",
				Message: "canonical copy unreadable, keeping redundant copies",
			})
			continue
		}
		for _, id := range b.members {
			if id == canonical {
				continue
			}
			if err := e.repo.RemoveFormat(ctx, id, ext); err != nil {
				e.skipFormat(result, id, ext, "remove_format", err)
				continue
			}
			e.log.Info("removed redundant format",
				"book", int64(id), "format", ext, "kept", int64(canonical))
		}
	}
}

// bucketCanonical returns the group canonical of the bucket's members, and
// whether that canonical itself is present in the bucket. All exemption
// filtering has already happened, so members filtered out of groups never
// lose formats.
func bucketCanonical(b *bucket, canonicalOf map[types.BookID]types.BookID, inGroup map[types.BookID]bool) (types.BookID, bool) {
	var canonical types.BookID
	for _, id := range b.members {
		if inGroup[id] {
			canonical = canonicalOf[id]
			break
		}
	}
	if canonical == 0 {
		return 0, false
	}
	for _, id := range b.members {
		if id == canonical {
			return canonical, true
		}
	}
	return canonical, false
}

func (e *Engine) skipFormat(result *types.DuplicateResult, id types.BookID, ext, op string, err error) {
	e.log.Warn("skipping format", "op", op, "book", int64(id), "format", ext, "err", err)
	result.Diagnostics = append(result.Diagnostics, types.Diagnostic{
		BookID:  id,
		Format:  ext,
		Op:      op,
		Message: err.Error(),
	})
}

// extOfHashKey recovers the extension from a key built by matcher.HashKey.
func extOfHashKey(key string) string {
	if i := strings.IndexByte(key, '\x1f'); i >= 0 {
		return key[:i]
	}
	return key
}
