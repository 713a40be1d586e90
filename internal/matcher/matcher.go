// Package matcher turns books into equivalence keys. Books sharing a key
// value are candidate duplicates; the engine does the grouping. Every
// matcher is deterministic and side-effect free.
package matcher

import (
	"fmt"
	"strings"

	"github.com/steveyegge/dupfinder/internal/normalize"
	"github.com/steveyegge/dupfinder/internal/types"
)

// keySep joins key components. It cannot appear in normalized text.
const keySep = "\x1f"

// Key is one equivalence key for a book.
type Key struct {
	// Value is the canonical bucket value; equality is byte-for-byte
	Value string

	// Label is the human-readable form used to order and display groups
	Label string
}

// Matcher produces zero or more equivalence keys for a book. A book that
// yields no keys participates in no group under this matcher.
type Matcher interface {
	Keys(b *types.Book) []Key
}

// New selects the metadata matcher for a search spec. Binary searches do
// not go through this constructor: their grouping is two-phase and driven
// by the engine (see SizeKey and HashReader).
func New(spec types.SearchSpec, norm *normalize.Normalizer) (Matcher, error) {
	switch spec.Kind {
	case types.KindIdentifier:
		return &IdentifierMatcher{Scheme: strings.ToLower(spec.Scheme)}, nil
	case types.KindTitleAuthor:
		return &TitleAuthorMatcher{
			TitleMode:           spec.TitleMode,
			AuthorMode:          spec.AuthorMode,
			TitleSoundexLength:  spec.TitleSoundexLength,
			AuthorSoundexLength: spec.AuthorSoundexLength,
			IncludeLanguages:    spec.IncludeLanguages,
			Normalizer:          norm,
		}, nil
	case types.KindBinary:
		return nil, fmt.Errorf("binary searches are driven by the engine, not a metadata matcher")
	}
	return nil, fmt.Errorf("unknown search kind: %q", spec.Kind)
}

// IdentifierMatcher keys books on external identifiers. With the "any"
// scheme every identifier yields a key; otherwise only the named scheme
// does, and books without it yield no keys.
type IdentifierMatcher struct {
	Scheme string
}

// Keys implements Matcher.
func (m *IdentifierMatcher) Keys(b *types.Book) []Key {
	var keys []Key
	for scheme, value := range b.Identifiers {
		scheme = strings.ToLower(scheme)
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		if m.Scheme != types.AnyScheme && scheme != m.Scheme {
			continue
		}
		keys = append(keys, Key{
			Value: scheme + keySep + value,
			Label: scheme + ":" + value,
		})
	}
	return keys
}

// TitleAuthorMatcher keys books on a normalized title bucket combined with
// a normalized author bucket, fanned out per author: a book yields one key
// per author (and per language bucket when enabled). Two books are
// duplicates when any author bucket matches and the title bucket matches.
type TitleAuthorMatcher struct {
	TitleMode           types.MatchMode
	AuthorMode          types.MatchMode
	TitleSoundexLength  int
	AuthorSoundexLength int
	IncludeLanguages    bool
	Normalizer          *normalize.Normalizer
}

// Keys implements Matcher.
func (m *TitleAuthorMatcher) Keys(b *types.Book) []Key {
	lang := b.PrimaryLanguage()
	tkey := m.titleKey(b.Title, lang)
	if m.TitleMode != types.MatchIgnore && tkey == "" {
		// An empty title cannot assert anything about duplication
		return nil
	}

	langKey := ""
	if m.IncludeLanguages {
		langKey = b.LanguageKey()
	}

	if m.AuthorMode == types.MatchIgnore {
		return []Key{{
			Value: tkey + keySep + keySep + langKey,
			Label: b.Title,
		}}
	}

	if len(b.Authors) == 0 {
		return nil
	}
	keys := make([]Key, 0, len(b.Authors))
	seen := make(map[string]struct{}, len(b.Authors))
	for _, author := range b.Authors {
		akey := m.authorKey(author)
		if akey == "" {
			continue
		}
		value := tkey + keySep + akey + keySep + langKey
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}
		label := b.Title
		if m.TitleMode == types.MatchIgnore {
			label = author
		}
		keys = append(keys, Key{Value: value, Label: label})
	}
	return keys
}

func (m *TitleAuthorMatcher) titleKey(title, lang string) string {
	switch m.TitleMode {
	case types.MatchIdentical:
		return m.Normalizer.TitleSortable(title, lang)
	case types.MatchSimilar:
		return m.Normalizer.TitleSimilarKey(title, lang)
	case types.MatchSoundex:
		return m.Normalizer.TitleSoundexKey(title, lang, m.TitleSoundexLength)
	case types.MatchFuzzy:
		return m.Normalizer.TitleFuzzyKey(title, lang)
	}
	return ""
}

func (m *TitleAuthorMatcher) authorKey(author string) string {
	switch m.AuthorMode {
	case types.MatchIdentical:
		return normalize.StripPunct(normalize.Fold(author))
	case types.MatchSimilar:
		return normalize.AuthorSimilarKey(author)
	case types.MatchSoundex:
		return normalize.AuthorSoundexKey(author, m.AuthorSoundexLength)
	case types.MatchFuzzy:
		return normalize.AuthorFuzzyKey(author)
	}
	return ""
}
