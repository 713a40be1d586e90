// Package presenter turns a DuplicateResult into host-facing artifacts:
// the marked set, a one-group-at-a-time iterator, and a textual summary.
// It never reorders anything; group order is fixed by the engine.
package presenter

import (
	"context"
	"fmt"
	"strings"

	"github.com/steveyegge/dupfinder/internal/storage"
	"github.com/steveyegge/dupfinder/internal/types"
)

// MarkedSet maps every group member to its stable display tag, of the
// form duplicate_group_<N>_<M> with 1-based group and member indexes.
// Each id appears exactly once: group membership is disjoint.
func MarkedSet(result *types.DuplicateResult) map[types.BookID]string {
	marks := make(map[types.BookID]string, len(result.AllMembers))
	for g, group := range result.Groups {
		for m, id := range group.Members {
			marks[id] = tag(g+1, m+1)
		}
	}
	return marks
}

// MarkGroup is the single-group variant for hosts paging with the
// show_all_groups hint off: only the n-th (0-based) group is tagged.
func MarkGroup(result *types.DuplicateResult, n int) map[types.BookID]string {
	if n < 0 || n >= len(result.Groups) {
		return nil
	}
	group := result.Groups[n]
	marks := make(map[types.BookID]string, len(group.Members))
	for m, id := range group.Members {
		marks[id] = tag(n+1, m+1)
	}
	return marks
}

func tag(group, member int) string {
	return fmt.Sprintf("duplicate_group_%d_%d", group, member)
}

// Apply replaces the repository's marked set according to the result and
// the show_all_groups hint. A result with no groups clears the marks.
func Apply(ctx context.Context, repo storage.Repository, result *types.DuplicateResult) error {
	marks := MarkedSet(result)
	if !result.Spec.ShowAllGroups && len(result.Groups) > 0 {
		marks = MarkGroup(result, 0)
	}
	if err := repo.MarkBooks(ctx, marks); err != nil {
		return fmt.Errorf("marking %d books: %w", len(marks), err)
	}
	return nil
}

// Iterator pages through groups in engine order. The zero position is
// before the first group; Next advances, Prev backs up, and both report
// whether a group was available.
type Iterator struct {
	groups []types.DuplicateGroup
	pos    int
}

// NewIterator creates an iterator positioned before the first group.
func NewIterator(result *types.DuplicateResult) *Iterator {
	return &Iterator{groups: result.Groups, pos: -1}
}

// Len returns the number of groups.
func (it *Iterator) Len() int { return len(it.groups) }

// Pos returns the 0-based index of the current group, or -1 before the
// first call to Next.
func (it *Iterator) Pos() int { return it.pos }

// Next advances to the following group.
func (it *Iterator) Next() (*types.DuplicateGroup, bool) {
	if it.pos+1 >= len(it.groups) {
		return nil, false
	}
	it.pos++
	return &it.groups[it.pos], true
}

// Prev backs up to the preceding group.
func (it *Iterator) Prev() (*types.DuplicateGroup, bool) {
	if it.pos <= 0 {
		return nil, false
	}
	it.pos--
	return &it.groups[it.pos], true
}

// Current returns the group at the present position.
func (it *Iterator) Current() (*types.DuplicateGroup, bool) {
	if it.pos < 0 || it.pos >= len(it.groups) {
		return nil, false
	}
	return &it.groups[it.pos], true
}

// Summary renders the human-readable outcome line(s) of a run.
func Summary(result *types.DuplicateResult) string {
	var b strings.Builder
	if len(result.Groups) == 0 {
		b.WriteString("No duplicates found")
	} else {
		fmt.Fprintf(&b, "Found %d duplicate group%s spanning %d books",
			len(result.Groups), plural(len(result.Groups)), len(result.AllMembers))
	}
	if result.ExemptExcluded > 0 {
		fmt.Fprintf(&b, " (%d book%s excluded by exemptions)",
			result.ExemptExcluded, plural(result.ExemptExcluded))
	}
	if result.Cancelled {
		b.WriteString("; search was cancelled, results are partial")
	}
	if n := len(result.Diagnostics); n > 0 {
		fmt.Fprintf(&b, "; %d book%s skipped with errors", n, plural(n))
	}
	return b.String()
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
