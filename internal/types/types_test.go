package types

import (
	"testing"
)

func TestSearchSpecValidate(t *testing.T) {
	tests := []struct {
		name        string
		spec        SearchSpec
		sameLibrary bool
		expectError bool
		errorMsg    string
	}{
		{
			name: "valid identifier search",
			spec: SearchSpec{Kind: KindIdentifier, Scheme: "isbn"},
		},
		{
			name: "valid any-scheme identifier search",
			spec: SearchSpec{Kind: KindIdentifier, Scheme: AnyScheme},
		},
		{
			name:        "identifier search without scheme",
			spec:        SearchSpec{Kind: KindIdentifier},
			expectError: true,
			errorMsg:    "requires a scheme",
		},
		{
			name: "valid binary search",
			spec: SearchSpec{Kind: KindBinary, AutoRemoveFormats: true},
		},
		{
			name: "valid titleauthor search",
			spec: SearchSpec{Kind: KindTitleAuthor, TitleMode: MatchIdentical, AuthorMode: MatchSimilar},
		},
		{
			name:        "unknown kind",
			spec:        SearchSpec{Kind: "covers"},
			expectError: true,
			errorMsg:    "invalid search kind",
		},
		{
			name:        "both ignored",
			spec:        SearchSpec{Kind: KindTitleAuthor, TitleMode: MatchIgnore, AuthorMode: MatchIgnore},
			expectError: true,
			errorMsg:    "cannot both be ignored",
		},
		{
			name:        "invalid title mode",
			spec:        SearchSpec{Kind: KindTitleAuthor, TitleMode: "close enough", AuthorMode: MatchIgnore},
			expectError: true,
			errorMsg:    "invalid title match mode",
		},
		{
			name:        "soundex title needs positive length",
			spec:        SearchSpec{Kind: KindTitleAuthor, TitleMode: MatchSoundex, AuthorMode: MatchIgnore},
			expectError: true,
			errorMsg:    "title_soundex_length",
		},
		{
			name:        "soundex author needs positive length",
			spec:        SearchSpec{Kind: KindTitleAuthor, TitleMode: MatchIdentical, AuthorMode: MatchSoundex},
			expectError: true,
			errorMsg:    "author_soundex_length",
		},
		{
			name: "soundex with lengths",
			spec: SearchSpec{
				Kind: KindTitleAuthor, TitleMode: MatchSoundex, AuthorMode: MatchSoundex,
				TitleSoundexLength: 6, AuthorSoundexLength: 4,
			},
		},
		{
			name:        "ignore title with identical author rejected same-library",
			spec:        SearchSpec{Kind: KindTitleAuthor, TitleMode: MatchIgnore, AuthorMode: MatchIdentical},
			sameLibrary: true,
			expectError: true,
			errorMsg:    "not a valid same-library search",
		},
		{
			name: "ignore title with identical author allowed cross-library",
			spec: SearchSpec{Kind: KindTitleAuthor, TitleMode: MatchIgnore, AuthorMode: MatchIdentical},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.sameLibrary {
				err = tt.spec.ValidateSameLibrary()
			} else {
				err = tt.spec.Validate()
			}
			if tt.expectError {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.errorMsg)
				}
				if tt.errorMsg != "" && !contains(err.Error(), tt.errorMsg) {
					t.Errorf("expected error containing %q, got %q", tt.errorMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestDuplicateResultValidate(t *testing.T) {
	ok := DuplicateResult{Groups: []DuplicateGroup{{Members: []BookID{1, 2}}}}
	if err := ok.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	short := DuplicateResult{Groups: []DuplicateGroup{{Members: []BookID{1}}}}
	if err := short.Validate(); err == nil {
		t.Error("expected error for singleton group")
	}

	repeated := DuplicateResult{Groups: []DuplicateGroup{{Members: []BookID{1, 2, 1}}}}
	if err := repeated.Validate(); err == nil {
		t.Error("expected error for repeated member")
	}
}

func TestLanguageKey(t *testing.T) {
	b := Book{Languages: []string{"FR", "en"}}
	if got := b.LanguageKey(); got != "en,fr" {
		t.Errorf("LanguageKey = %q, want %q", got, "en,fr")
	}
	empty := Book{}
	if got := empty.LanguageKey(); got != "" {
		t.Errorf("LanguageKey = %q, want empty", got)
	}
}

func TestGroupCanonical(t *testing.T) {
	g := DuplicateGroup{Members: []BookID{7, 3, 9}}
	if g.Canonical() != 7 {
		t.Errorf("Canonical = %d, want 7 (first member)", g.Canonical())
	}
	if !g.Contains(3) || g.Contains(4) {
		t.Error("Contains gave wrong answer")
	}
}

func contains(s, substr string) bool {
	return len(substr) == 0 || (len(s) >= len(substr) && indexOf(s, substr) >= 0)
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
