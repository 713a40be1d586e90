package crosslib

import (
	"context"
	"fmt"

	"github.com/steveyegge/dupfinder/internal/matcher"
	"github.com/steveyegge/dupfinder/internal/storage"
	"github.com/steveyegge/dupfinder/internal/types"
)

// remoteFormat is one remote (book, format) pair found in a size bucket.
// Its digest is computed at most once, the first time a local format
// lands in the same bucket.
type remoteFormat struct {
	ref    types.RemoteRef
	format types.FormatRef
	digest string
	hashed bool
	broken bool
}

// findBinary matches byte-identical format files across the two
// libraries. Remote formats are indexed by (extension, size) first; only
// buckets a local format actually hits get hashed, and each side of a
// pair is hashed at most once per run.
func (c *Comparer) findBinary(ctx context.Context) ([]types.CrossMatch, error) {
	index, err := c.buildRemoteSizeIndex(ctx)
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
		for _, f := range book.Formats {
			bucket := index[matcher.SizeKey(f)]
			if len(bucket) == 0 {
				continue
			}
			digest, err := hashOne(ctx, c.local, id, f.Ext)
			if err != nil {
				c.log.Warn("skipping local format", "book", int64(id), "format", f.Ext, "err", err)
				continue
			}
			for _, rf := range bucket {
				if !rf.hashed {
					rf.digest, err = hashOne(ctx, c.remote, rf.ref.ID, rf.format.Ext)
					rf.hashed = true
					if err != nil {
						rf.broken = true
						c.log.Warn("skipping remote format",
							"book", int64(rf.ref.ID), "format", rf.format.Ext, "err", err)
					}
				}
				if rf.broken || rf.digest != digest {
					continue
				}
				if _, dup := seen[rf.ref.ID]; dup {
					continue
				}
				seen[rf.ref.ID] = struct{}{}
				remote = append(remote, rf.ref)
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

func (c *Comparer) buildRemoteSizeIndex(ctx context.Context) (map[string][]*remoteFormat, error) {
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

	index := make(map[string][]*remoteFormat)
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
		for _, f := range book.Formats {
			key := matcher.SizeKey(f)
			index[key] = append(index[key], &remoteFormat{ref: ref, format: f})
		}
	}
	return index, nil
}

func hashOne(ctx context.Context, repo storage.Repository, id types.BookID, ext string) (string, error) {
	rc, err := repo.OpenFormat(ctx, id, ext)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	return matcher.HashReader(rc)
}
