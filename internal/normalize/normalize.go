// Package normalize derives canonical comparison keys from titles and
// author names. Every function is total and idempotent: empty input yields
// an empty key, and norm(norm(x)) == norm(x). Two values are considered
// equivalent by the matchers iff their keys are byte-for-byte equal.
package normalize

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Config carries the locale-sensitive parts of normalization. The article
// and separator sets were hard-coded English heuristics in earlier duplicate
// finders; they are configuration here so hosts can localize them.
type Config struct {
	// Articles maps a language code to the leading articles removed by
	// TitleSortable. The "" key is the fallback for unknown languages.
	Articles map[string][]string `yaml:"articles"`

	// SubtitleSeparators mark where a subtitle or edition suffix begins.
	// TitleSimilarKey cuts the title at the first occurrence.
	SubtitleSeparators []string `yaml:"subtitle_separators"`

	// Connectors are the joining words TitleFuzzyKey truncates at.
	Connectors []string `yaml:"connectors"`
}

// DefaultConfig returns the stock English-biased configuration.
func DefaultConfig() Config {
	english := []string{"a", "an", "the"}
	return Config{
		Articles: map[string][]string{
			"":    english,
			"en":  english,
			"eng": english,
			"fr":  {"le", "la", "les", "un", "une", "des"},
			"fra": {"le", "la", "les", "un", "une", "des"},
			"de":  {"der", "die", "das", "ein", "eine"},
			"deu": {"der", "die", "das", "ein", "eine"},
			"es":  {"el", "la", "los", "las", "un", "una"},
			"spa": {"el", "la", "los", "las", "un", "una"},
		},
		SubtitleSeparators: []string{": ", " - ", "; "},
		Connectors:         []string{" and ", " or ", " aka "},
	}
}

// Normalizer applies one Config. The zero value is not usable; construct
// with New.
type Normalizer struct {
	cfg Config
}

// New creates a Normalizer. Missing Config fields fall back to defaults so
// a partially populated config file still yields a working normalizer.
func New(cfg Config) *Normalizer {
	def := DefaultConfig()
	if len(cfg.Articles) == 0 {
		cfg.Articles = def.Articles
	}
	if len(cfg.SubtitleSeparators) == 0 {
		cfg.SubtitleSeparators = def.SubtitleSeparators
	}
	if len(cfg.Connectors) == 0 {
		cfg.Connectors = def.Connectors
	}
	return &Normalizer{cfg: cfg}
}

// Fold lower-cases the string and strips combining marks, so accented and
// unaccented spellings compare equal ("Brontë" -> "bronte").
func Fold(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return norm.NFC.String(b.String())
}

// StripPunct drops Unicode punctuation and symbols, collapses runs of
// whitespace to single spaces, and trims.
func StripPunct(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// articlesFor returns the leading-article set for a language hint.
func (n *Normalizer) articlesFor(lang string) []string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if arts, ok := n.cfg.Articles[lang]; ok {
		return arts
	}
	// "en-GB" style hints fall back to the base code
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		if arts, ok := n.cfg.Articles[lang[:i]]; ok {
			return arts
		}
	}
	return n.cfg.Articles[""]
}

// TitleSortable lower-cases the title, removes leading articles for the
// given language hint, strips punctuation and collapses whitespace.
// Articles are stripped to a fixpoint ("The A-Team" does not keep a
// leading "a") so the derivation is idempotent.
func (n *Normalizer) TitleSortable(title, lang string) string {
	t := StripPunct(Fold(title))
	arts := n.articlesFor(lang)
	for stripped := true; stripped; {
		stripped = false
		for _, art := range arts {
			if strings.HasPrefix(t, art+" ") {
				t = t[len(art)+1:]
				stripped = true
				break
			}
		}
	}
	return t
}

// cutSubtitle removes everything from the first subtitle separator on,
// provided a non-empty prefix remains. Comparison is done on the folded
// form so separator matching is case-insensitive.
func (n *Normalizer) cutSubtitle(folded string) string {
	cut := len(folded)
	for _, sep := range n.cfg.SubtitleSeparators {
		if i := strings.Index(folded, sep); i > 0 && i < cut {
			cut = i
		}
	}
	return folded[:cut]
}

// TitleSimilarKey is TitleSortable with subtitle and edition suffixes
// removed: "dune: deluxe edition" and "dune" share a key.
func (n *Normalizer) TitleSimilarKey(title, lang string) string {
	t := n.cutSubtitle(Fold(title))
	return n.TitleSortable(t, lang)
}

// TitleFuzzyKey produces an aggressively short key: the similar key
// truncated at the first connector word ("and", "or", "aka").
func (n *Normalizer) TitleFuzzyKey(title, lang string) string {
	t := n.cutSubtitle(Fold(title))
	cut := len(t)
	for _, conn := range n.cfg.Connectors {
		if i := strings.Index(t, conn); i > 0 && i < cut {
			cut = i
		}
	}
	return n.TitleSortable(t[:cut], lang)
}

// AuthorTokens splits an author display name into given-name tokens and a
// surname. Both "First Last" and "Last, First" forms are accepted; initials
// are single letters with or without a trailing period.
func AuthorTokens(name string) (given []string, surname string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ""
	}
	if comma := strings.Index(name, ","); comma >= 0 {
		surname = strings.TrimSpace(name[:comma])
		given = strings.Fields(strings.TrimSpace(name[comma+1:]))
		return given, surname
	}
	fields := strings.Fields(name)
	if len(fields) == 1 {
		return nil, fields[0]
	}
	return fields[:len(fields)-1], fields[len(fields)-1]
}

// mergeInitialRuns joins consecutive single-letter tokens into one token so
// "j r r tolkien" and "jrr tolkien" normalize identically.
func mergeInitialRuns(tokens []string) []string {
	var out []string
	var run strings.Builder
	flush := func() {
		if run.Len() > 0 {
			out = append(out, run.String())
			run.Reset()
		}
	}
	for _, tok := range tokens {
		if len(tok) == 1 {
			run.WriteString(tok)
			continue
		}
		flush()
		out = append(out, tok)
	}
	flush()
	return out
}

// AuthorSimilarKey is the sorted multiset of the name's lower-cased,
// de-punctuated tokens, with adjacent single-letter tokens merged after
// sorting. "J. R. R. Tolkien" and "Tolkien, JRR" share a key.
func AuthorSimilarKey(name string) string {
	tokens := strings.Fields(StripPunct(Fold(name)))
	sort.Strings(tokens)
	tokens = mergeInitialRuns(tokens)
	return strings.Join(tokens, " ")
}

// AuthorFuzzyKey reduces a name to surname plus first initial of the given
// name, in sortable form: "Jane Doe" -> "doe, j". The comma keeps the key
// parseable as a "Last, First" name, which makes the derivation idempotent.
func AuthorFuzzyKey(name string) string {
	given, surname := AuthorTokens(Fold(name))
	surname = StripPunct(surname)
	if surname == "" {
		return ""
	}
	if len(given) == 0 {
		return surname
	}
	first := StripPunct(given[0])
	if first == "" {
		return surname
	}
	initial := []rune(first)
	return surname + ", " + string(initial[0])
}

// TitleSoundexKey concatenates the soundex of each word of the similar key,
// each truncated to length, in word order.
func (n *Normalizer) TitleSoundexKey(title, lang string, length int) string {
	words := strings.Fields(n.TitleSimilarKey(title, lang))
	var b strings.Builder
	for _, w := range words {
		b.WriteString(Soundex(w, length))
	}
	return b.String()
}

// AuthorSoundexKey is the soundex of the surname padded to length,
// concatenated with the first initial of the given name.
func AuthorSoundexKey(name string, length int) string {
	given, surname := AuthorTokens(Fold(name))
	surname = StripPunct(surname)
	if surname == "" {
		return ""
	}
	key := Soundex(surname, length)
	if len(given) > 0 {
		if first := StripPunct(given[0]); first != "" {
			initial := []rune(first)
			key += strings.ToUpper(string(initial[0]))
		}
	}
	return key
}
