package types

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// BookID is an opaque stable identifier for a book within one repository.
// IDs are only comparable between books of the same repository.
type BookID int64

// FormatRef describes one persisted format file attached to a book.
// Size is authoritative and cheap to obtain; the bytes themselves are
// streamed lazily through Repository.OpenFormat.
type FormatRef struct {
	// Ext is the lower-case format extension without a dot (e.g. "epub")
	Ext string `json:"ext"`

	// Size is the file size in bytes
	Size int64 `json:"size"`
}

// Book is an immutable view of one library record. The engine borrows these
// from the repository for the duration of a run and never holds references
// between runs; duplicate groups carry BookIDs only.
type Book struct {
	ID BookID `json:"id"`

	// Title may be empty
	Title string `json:"title"`

	// Authors are display names in book order. AuthorSort carries the
	// normalized "Last, First" form at the same index when known.
	Authors    []string `json:"authors,omitempty"`
	AuthorSort []string `json:"author_sort,omitempty"`

	// Identifiers maps scheme name (e.g. "isbn", "amazon") to value
	Identifiers map[string]string `json:"identifiers,omitempty"`

	// Series is optional
	Series string `json:"series,omitempty"`

	// Languages are language codes, possibly empty
	Languages []string `json:"languages,omitempty"`

	// Formats are the persisted format files in repository order
	Formats []FormatRef `json:"formats,omitempty"`

	// Timestamp is the creation instant in the library, used for tie-break
	Timestamp time.Time `json:"timestamp"`
}

// PrimaryLanguage returns the first language code, or "" when unknown.
func (b *Book) PrimaryLanguage() string {
	if len(b.Languages) == 0 {
		return ""
	}
	return b.Languages[0]
}

// LanguageKey returns the sorted language codes joined for bucketing.
// Books with no language information share the empty key.
func (b *Book) LanguageKey() string {
	if len(b.Languages) == 0 {
		return ""
	}
	langs := make([]string, len(b.Languages))
	for i, l := range b.Languages {
		langs[i] = strings.ToLower(l)
	}
	sort.Strings(langs)
	return strings.Join(langs, ",")
}

// SearchKind selects the matching strategy of a search.
type SearchKind string

const (
	KindTitleAuthor SearchKind = "titleauthor"
	KindBinary      SearchKind = "binary"
	KindIdentifier  SearchKind = "identifier"
)

// IsValid checks if the search kind is one of the defined values
func (k SearchKind) IsValid() bool {
	switch k {
	case KindTitleAuthor, KindBinary, KindIdentifier:
		return true
	}
	return false
}

// MatchMode selects how a title or author is normalized before comparison.
type MatchMode string

const (
	MatchIdentical MatchMode = "identical"
	MatchSimilar   MatchMode = "similar"
	MatchSoundex   MatchMode = "soundex"
	MatchFuzzy     MatchMode = "fuzzy"
	MatchIgnore    MatchMode = "ignore"
)

// IsValid checks if the match mode is one of the defined values
func (m MatchMode) IsValid() bool {
	switch m {
	case MatchIdentical, MatchSimilar, MatchSoundex, MatchFuzzy, MatchIgnore:
		return true
	}
	return false
}

// AnyScheme is the identifier scheme wildcard: match a book on every
// identifier it carries, regardless of scheme.
const AnyScheme = "any"

// SearchSpec is the immutable configuration of one duplicate search.
// Only the fields of the selected Kind are consulted; the rest are ignored.
// Build one by hand or through config.Options.SearchSpec().
type SearchSpec struct {
	Kind SearchKind `json:"kind"`

	// Identifier searches
	Scheme string `json:"scheme,omitempty"`

	// Binary searches
	AutoRemoveFormats bool `json:"auto_remove_formats,omitempty"`

	// TitleAuthor searches
	TitleMode           MatchMode `json:"title_mode,omitempty"`
	AuthorMode          MatchMode `json:"author_mode,omitempty"`
	TitleSoundexLength  int       `json:"title_soundex_length,omitempty"`
	AuthorSoundexLength int       `json:"author_soundex_length,omitempty"`
	IncludeLanguages    bool      `json:"include_languages,omitempty"`

	// Presentation hints, not consulted by the matchers
	ShowAllGroups bool `json:"show_all_groups,omitempty"`
	SortByCount   bool `json:"sort_by_count,omitempty"`
}

// Validate checks the rules common to same-library and cross-library use.
func (s SearchSpec) Validate() error {
	if !s.Kind.IsValid() {
		return fmt.Errorf("invalid search kind: %q", s.Kind)
	}
	switch s.Kind {
	case KindIdentifier:
		if s.Scheme == "" {
			return fmt.Errorf("identifier search requires a scheme (use %q to match all)", AnyScheme)
		}
	case KindTitleAuthor:
		if !s.TitleMode.IsValid() {
			return fmt.Errorf("invalid title match mode: %q", s.TitleMode)
		}
		if !s.AuthorMode.IsValid() {
			return fmt.Errorf("invalid author match mode: %q", s.AuthorMode)
		}
		if s.TitleMode == MatchIgnore && s.AuthorMode == MatchIgnore {
			return fmt.Errorf("title and author cannot both be ignored")
		}
		if s.TitleMode == MatchSoundex && s.TitleSoundexLength < 1 {
			return fmt.Errorf("title_soundex_length must be at least 1 (got %d)", s.TitleSoundexLength)
		}
		if s.AuthorMode == MatchSoundex && s.AuthorSoundexLength < 1 {
			return fmt.Errorf("author_soundex_length must be at least 1 (got %d)", s.AuthorSoundexLength)
		}
	}
	return nil
}

// ValidateSameLibrary applies Validate plus the restriction that only holds
// when searching within a single library: grouping every book that shares an
// exact author while ignoring titles would fold whole bibliographies into
// one group, so the (ignore title, identical author) combination is refused.
func (s SearchSpec) ValidateSameLibrary() error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.Kind == KindTitleAuthor && s.TitleMode == MatchIgnore && s.AuthorMode == MatchIdentical {
		return fmt.Errorf("ignoring titles with identical authors is not a valid same-library search")
	}
	return nil
}

// DuplicateGroup is a set of books the engine asserts are mutual duplicates
// under one SearchSpec. Members are ordered by (timestamp asc, id asc), so
// the canonical book is always first.
type DuplicateGroup struct {
	// Members in canonical order
	Members []BookID `json:"members"`

	// Keys are the equivalence key values that produced the group, sorted
	Keys []string `json:"keys,omitempty"`

	// Label is the representative sort label: the canonical book's title,
	// or the grouping author for ignore-title searches
	Label string `json:"label"`
}

// Canonical returns the member chosen as the "keep" side of the group.
func (g *DuplicateGroup) Canonical() BookID {
	if len(g.Members) == 0 {
		return 0
	}
	return g.Members[0]
}

// Contains reports whether id is a member of the group.
func (g *DuplicateGroup) Contains(id BookID) bool {
	for _, m := range g.Members {
		if m == id {
			return true
		}
	}
	return false
}

// Diagnostic records one recoverable failure during a run. Recoverable
// failures never interrupt the run; the host shows them alongside results.
type Diagnostic struct {
	BookID  BookID `json:"book_id,omitempty"`
	Format  string `json:"format,omitempty"`
	Op      string `json:"op"`
	Message string `json:"message"`
}

func (d Diagnostic) String() string {
	var b strings.Builder
	b.WriteString(d.Op)
	if d.BookID != 0 {
		fmt.Fprintf(&b, " book=%d", d.BookID)
	}
	if d.Format != "" {
		fmt.Fprintf(&b, " format=%s", d.Format)
	}
	b.WriteString(": ")
	b.WriteString(d.Message)
	return b.String()
}

// DuplicateResult is the complete outcome of one same-library search.
type DuplicateResult struct {
	// RunID uniquely identifies this run in diagnostics and logs
	RunID string `json:"run_id"`

	// Spec is the search that produced the result
	Spec SearchSpec `json:"spec"`

	// Groups in presentation order (see engine ordering rules)
	Groups []DuplicateGroup `json:"groups"`

	// AllMembers spans every group member, in group order. This is the id
	// set the presenter turns into the marked set.
	AllMembers []BookID `json:"all_members,omitempty"`

	// ExemptExcluded counts books removed from groups by exemptions
	ExemptExcluded int `json:"exempt_excluded"`

	// Cancelled is set when the run was interrupted; Groups then holds the
	// portion completed before the cancellation point
	Cancelled bool `json:"cancelled,omitempty"`

	// Diagnostics are the recoverable failures encountered during the run
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// Validate checks structural invariants of the result: no group smaller
// than two members and no id repeated within a group.
func (r *DuplicateResult) Validate() error {
	for i, g := range r.Groups {
		if len(g.Members) < 2 {
			return fmt.Errorf("group %d has %d members (minimum 2)", i, len(g.Members))
		}
		seen := make(map[BookID]struct{}, len(g.Members))
		for _, id := range g.Members {
			if _, dup := seen[id]; dup {
				return fmt.Errorf("group %d contains book %d twice", i, id)
			}
			seen[id] = struct{}{}
		}
	}
	return nil
}

// RemoteRef is the minimal remote-book metadata kept in a cross-library
// index: enough to display a match, never the full record.
type RemoteRef struct {
	ID      BookID   `json:"id"`
	Title   string   `json:"title"`
	Authors []string `json:"authors,omitempty"`
	Path    string   `json:"path,omitempty"`
}

// CrossMatch reports one local book that matched one or more remote books.
type CrossMatch struct {
	LocalID    BookID      `json:"local_id"`
	LocalTitle string      `json:"local_title"`
	Remote     []RemoteRef `json:"remote"`
}
