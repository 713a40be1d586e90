package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripPunct(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "hello world", "hello world"},
		{"punctuation dropped", "hello, world!", "hello world"},
		{"whitespace collapsed", "  a \t b\n c  ", "a b c"},
		{"symbols dropped", "war & peace", "war peace"},
		{"empty", "", ""},
		{"only punctuation", "?!...", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripPunct(tt.input))
		})
	}
}

func TestFold(t *testing.T) {
	assert.Equal(t, "bronte", Fold("Brontë"))
	assert.Equal(t, "uber", Fold("Über"))
	assert.Equal(t, "the hobbit", Fold("The Hobbit"))
}

func TestTitleSortable(t *testing.T) {
	n := New(Config{})
	tests := []struct {
		name  string
		title string
		lang  string
		want  string
	}{
		{"leading article removed", "The Hobbit", "en", "hobbit"},
		{"article removal to fixpoint", "The A Team", "en", "team"},
		{"no language hint uses default", "A Study in Scarlet", "", "study in scarlet"},
		{"french article", "Le Petit Prince", "fr", "petit prince"},
		{"article not removed mid-title", "Death of a Salesman", "en", "death of a salesman"},
		{"punctuation stripped", "Dune!", "en", "dune"},
		{"empty title", "", "en", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.TitleSortable(tt.title, tt.lang))
		})
	}
}

func TestTitleSimilarKey(t *testing.T) {
	n := New(Config{})
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"subtitle cut", "Dune: Deluxe Edition", "dune"},
		{"dash subtitle cut", "Dune - 40th Anniversary", "dune"},
		{"plain title unchanged", "Dune", "dune"},
		{"leading separator kept", ": odd title", "odd title"},
		{"article plus subtitle", "The Stand: Complete Edition", "stand"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.TitleSimilarKey(tt.title, "en"))
		})
	}
}

func TestTitleFuzzyKey(t *testing.T) {
	n := New(Config{})
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"connector truncation", "War and Peace", "war"},
		{"aka truncation", "Edson aka The Machine", "edson"},
		{"subtitle before connector", "Alice: or What Happened After", "alice"},
		{"no connectors", "Emma", "emma"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.TitleFuzzyKey(tt.title, "en"))
		})
	}
}

func TestAuthorTokens(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		given   []string
		surname string
	}{
		{"first last", "Jane Doe", []string{"Jane"}, "Doe"},
		{"last comma first", "Doe, Jane", []string{"Jane"}, "Doe"},
		{"initials", "J. R. R. Tolkien", []string{"J.", "R.", "R."}, "Tolkien"},
		{"single token", "Homer", nil, "Homer"},
		{"empty", "", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			given, surname := AuthorTokens(tt.input)
			assert.Equal(t, tt.given, given)
			assert.Equal(t, tt.surname, surname)
		})
	}
}

func TestAuthorSimilarKey(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{"initials vs merged", "J. R. R. Tolkien", "Tolkien, JRR"},
		{"name order", "Jane Doe", "Doe, Jane"},
		{"case and accents", "Charlotte Brontë", "bronte, charlotte"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, AuthorSimilarKey(tt.a), AuthorSimilarKey(tt.b))
		})
	}

	// Different people stay apart
	assert.NotEqual(t, AuthorSimilarKey("Jane Doe"), AuthorSimilarKey("John Doe"))
}

func TestAuthorFuzzyKey(t *testing.T) {
	assert.Equal(t, "doe, j", AuthorFuzzyKey("Jane Doe"))
	assert.Equal(t, "doe, j", AuthorFuzzyKey("Doe, Jane"))
	assert.Equal(t, "doe, j", AuthorFuzzyKey("John Doe"))
	assert.Equal(t, "homer", AuthorFuzzyKey("Homer"))
	assert.Equal(t, "", AuthorFuzzyKey(""))
}

func TestSoundex(t *testing.T) {
	tests := []struct {
		token  string
		length int
		want   string
	}{
		{"Smith", 4, "S530"},
		{"Smyth", 4, "S530"},
		{"Jones", 4, "J520"},
		{"Robert", 4, "R163"},
		{"Rupert", 4, "R163"},
		{"Tymczak", 4, "T522"},
		{"Pfister", 4, "P236"},
		{"Honeyman", 4, "H555"},
		{"Smith", 1, "S"},
		{"Smith", 6, "S53000"},
		{"", 4, ""},
		{"...", 4, ""},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			assert.Equal(t, tt.want, Soundex(tt.token, tt.length))
		})
	}
}

func TestAuthorSoundexKey(t *testing.T) {
	assert.Equal(t, "S530J", AuthorSoundexKey("John Smith", 4))
	assert.Equal(t, "S530J", AuthorSoundexKey("Smyth, Jon", 4))
	assert.Equal(t, "S530", AuthorSoundexKey("Smith", 4))
	assert.Equal(t, "", AuthorSoundexKey("", 4))
}

func TestTitleSoundexKey(t *testing.T) {
	n := New(Config{})
	// One code per significant word, article removed by the similar key
	assert.Equal(t, Soundex("hobbit", 4), n.TitleSoundexKey("The Hobbit", "en", 4))
	assert.Equal(t,
		n.TitleSoundexKey("The Color of Magic", "en", 4),
		n.TitleSoundexKey("The Colour of Magic", "en", 4))
}

// Idempotence: re-deriving a key from itself yields the same key.
func TestNormalizerIdempotence(t *testing.T) {
	n := New(Config{})
	inputs := []string{
		"The Hobbit: An Unexpected Journey",
		"War and Peace",
		"Brontë, Charlotte",
		"J. R. R. Tolkien",
		"A Study in Scarlet!",
		"",
	}
	for _, in := range inputs {
		assert.Equal(t, StripPunct(in), StripPunct(StripPunct(in)), "StripPunct(%q)", in)
		assert.Equal(t, Fold(in), Fold(Fold(in)), "Fold(%q)", in)

		ts := n.TitleSortable(in, "en")
		assert.Equal(t, ts, n.TitleSortable(ts, "en"), "TitleSortable(%q)", in)

		sim := n.TitleSimilarKey(in, "en")
		assert.Equal(t, sim, n.TitleSimilarKey(sim, "en"), "TitleSimilarKey(%q)", in)

		fz := n.TitleFuzzyKey(in, "en")
		assert.Equal(t, fz, n.TitleFuzzyKey(fz, "en"), "TitleFuzzyKey(%q)", in)

		ak := AuthorSimilarKey(in)
		assert.Equal(t, ak, AuthorSimilarKey(ak), "AuthorSimilarKey(%q)", in)

		af := AuthorFuzzyKey(in)
		assert.Equal(t, af, AuthorFuzzyKey(af), "AuthorFuzzyKey(%q)", in)

		sx := Soundex(in, 4)
		assert.Equal(t, sx, Soundex(sx, 4), "Soundex(%q)", in)
	}
}
