// Package variations finds alternate spellings of the same library item:
// author names, series titles, publishers, tags. It shares the matching
// primitives of duplicate searches but runs over bare name lists, so a
// host can feed it any item column it keeps.
package variations

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/steveyegge/dupfinder/internal/normalize"
	"github.com/steveyegge/dupfinder/internal/types"
)

// Kind selects the item column and with it the key derivation: author
// names tokenize into given/surname parts, everything else keys like a
// title.
type Kind string

const (
	KindAuthor    Kind = "author"
	KindSeries    Kind = "series"
	KindPublisher Kind = "publisher"
	KindTag       Kind = "tag"
)

// IsValid checks if the kind is one of the defined values
func (k Kind) IsValid() bool {
	switch k {
	case KindAuthor, KindSeries, KindPublisher, KindTag:
		return true
	}
	return false
}

// Item is one distinct item value with its occurrence count.
type Item struct {
	Name  string `json:"name" yaml:"name"`
	Count int    `json:"count" yaml:"count"`
}

// Group is one set of item values the finder considers variations of the
// same thing. Canonical is the suggested merge target: the most frequent
// variant, ties broken alphabetically.
type Group struct {
	Key       string `json:"key" yaml:"key"`
	Canonical string `json:"canonical" yaml:"canonical"`
	Variants  []Item `json:"variants" yaml:"variants"`
}

// Options configures one variation search.
type Options struct {
	Kind Kind

	// Mode is similar, soundex or fuzzy
	Mode types.MatchMode

	// SoundexLength applies in soundex mode (minimum 1)
	SoundexLength int

	// MaxDistance, when positive, additionally requires every variant to
	// be within this Levenshtein distance of the group canonical
	MaxDistance int

	// Normalizer defaults to the stock configuration when nil
	Normalizer *normalize.Normalizer
}

func (o Options) validate() error {
	if !o.Kind.IsValid() {
		return fmt.Errorf("invalid variation kind: %q", o.Kind)
	}
	switch o.Mode {
	case types.MatchSimilar, types.MatchSoundex, types.MatchFuzzy:
	default:
		return fmt.Errorf("invalid variation mode: %q", o.Mode)
	}
	if o.Mode == types.MatchSoundex && o.SoundexLength < 1 {
		return fmt.Errorf("soundex_length must be at least 1 (got %d)", o.SoundexLength)
	}
	return nil
}

// Find groups the items whose keys collide. Items whose key derives to
// empty never group, and groups that refine down to a single variant are
// dropped. The result order is deterministic: ascending case-folded
// canonical name.
func Find(items []Item, opts Options) ([]Group, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	norm := opts.Normalizer
	if norm == nil {
		norm = normalize.New(normalize.Config{})
	}

	buckets := make(map[string][]Item)
	for _, it := range items {
		key := deriveKey(norm, opts, it.Name)
		if key == "" {
			continue
		}
		buckets[key] = append(buckets[key], it)
	}

	var groups []Group
	for key, variants := range buckets {
		if len(variants) < 2 {
			continue
		}
		sortVariants(variants)
		if opts.MaxDistance > 0 {
			variants = refineByDistance(variants, opts.MaxDistance)
			if len(variants) < 2 {
				continue
			}
		}
		groups = append(groups, Group{
			Key:       key,
			Canonical: variants[0].Name,
			Variants:  variants,
		})
	}

	sort.Slice(groups, func(i, j int) bool {
		a := strings.ToLower(groups[i].Canonical)
		b := strings.ToLower(groups[j].Canonical)
		if a != b {
			return a < b
		}
		return groups[i].Key < groups[j].Key
	})
	return groups, nil
}

func deriveKey(n *normalize.Normalizer, opts Options, name string) string {
	if opts.Kind == KindAuthor {
		switch opts.Mode {
		case types.MatchSoundex:
			return normalize.AuthorSoundexKey(name, opts.SoundexLength)
		case types.MatchFuzzy:
			return normalize.AuthorFuzzyKey(name)
		default:
			return normalize.AuthorSimilarKey(name)
		}
	}
	switch opts.Mode {
	case types.MatchSoundex:
		return n.TitleSoundexKey(name, "", opts.SoundexLength)
	case types.MatchFuzzy:
		return n.TitleFuzzyKey(name, "")
	default:
		return n.TitleSimilarKey(name, "")
	}
}

// sortVariants puts the suggested canonical first: highest count, then
// alphabetical.
func sortVariants(variants []Item) {
	sort.Slice(variants, func(i, j int) bool {
		if variants[i].Count != variants[j].Count {
			return variants[i].Count > variants[j].Count
		}
		return variants[i].Name < variants[j].Name
	})
}

// refineByDistance keeps the canonical and every variant within max edits
// of it, comparing the folded forms so case and accents cost nothing.
func refineByDistance(variants []Item, max int) []Item {
	kept := variants[:1:1]
	canonical := normalize.Fold(variants[0].Name)
	for _, v := range variants[1:] {
		if levenshtein.ComputeDistance(canonical, normalize.Fold(v.Name)) <= max {
			kept = append(kept, v)
		}
	}
	return kept
}
