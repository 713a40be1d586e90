package variations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/dupfinder/internal/types"
)

func TestFindAuthorSimilar(t *testing.T) {
	items := []Item{
		{Name: "J. R. R. Tolkien", Count: 12},
		{Name: "Tolkien, J.R.R.", Count: 3},
		{Name: "JRR Tolkien", Count: 1},
		{Name: "Frank Herbert", Count: 8},
	}

	groups, err := Find(items, Options{Kind: KindAuthor, Mode: types.MatchSimilar})
	require.NoError(t, err)

	require.Len(t, groups, 1)
	assert.Equal(t, "J. R. R. Tolkien", groups[0].Canonical, "most frequent spelling wins")
	assert.Len(t, groups[0].Variants, 3)
}

func TestFindAuthorSoundex(t *testing.T) {
	items := []Item{
		{Name: "Robert Smith", Count: 2},
		{Name: "Rupert Smyth", Count: 1},
		{Name: "Jane Jones", Count: 5},
	}

	groups, err := Find(items, Options{
		Kind: KindAuthor, Mode: types.MatchSoundex, SoundexLength: 4,
	})
	require.NoError(t, err)

	require.Len(t, groups, 1)
	assert.Equal(t, "Robert Smith", groups[0].Canonical)
}

func TestFindSeriesSimilar(t *testing.T) {
	items := []Item{
		{Name: "The Expanse", Count: 9},
		{Name: "Expanse", Count: 2},
		{Name: "Expanse: The Complete Series", Count: 1},
		{Name: "Discworld", Count: 40},
	}

	groups, err := Find(items, Options{Kind: KindSeries, Mode: types.MatchSimilar})
	require.NoError(t, err)

	require.Len(t, groups, 1)
	assert.Equal(t, "The Expanse", groups[0].Canonical)
	assert.Len(t, groups[0].Variants, 3)
}

func TestFindDistanceGate(t *testing.T) {
	// Soundex lumps Robert and Rupert together; a tight edit-distance
	// gate lets only true near-spellings through.
	items := []Item{
		{Name: "Robert Smith", Count: 3},
		{Name: "Robert Smyth", Count: 1},
		{Name: "Rupert Smith", Count: 1},
	}

	loose, err := Find(items, Options{
		Kind: KindAuthor, Mode: types.MatchSoundex, SoundexLength: 4,
	})
	require.NoError(t, err)
	require.Len(t, loose, 1)
	assert.Len(t, loose[0].Variants, 3)

	tight, err := Find(items, Options{
		Kind: KindAuthor, Mode: types.MatchSoundex, SoundexLength: 4, MaxDistance: 1,
	})
	require.NoError(t, err)
	require.Len(t, tight, 1)
	assert.Equal(t, []Item{
		{Name: "Robert Smith", Count: 3},
		{Name: "Robert Smyth", Count: 1},
	}, tight[0].Variants)
}

func TestFindCanonicalTieBreak(t *testing.T) {
	items := []Item{
		{Name: "beta tag", Count: 1},
		{Name: "Beta Tag", Count: 1},
	}
	groups, err := Find(items, Options{Kind: KindTag, Mode: types.MatchSimilar})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "Beta Tag", groups[0].Canonical, "alphabetical on equal counts")
}

func TestFindGroupOrderDeterministic(t *testing.T) {
	items := []Item{
		{Name: "Zeta", Count: 1}, {Name: "zeta", Count: 1},
		{Name: "Alpha", Count: 1}, {Name: "alpha", Count: 1},
	}
	groups, err := Find(items, Options{Kind: KindTag, Mode: types.MatchSimilar})
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "Alpha", groups[0].Canonical)
	assert.Equal(t, "Zeta", groups[1].Canonical)
}

func TestFindEmptyKeysNeverGroup(t *testing.T) {
	items := []Item{
		{Name: "", Count: 3},
		{Name: "   ", Count: 2},
		{Name: "...", Count: 1},
	}
	groups, err := Find(items, Options{Kind: KindTag, Mode: types.MatchSimilar})
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestFindValidation(t *testing.T) {
	_, err := Find(nil, Options{Kind: "bogus", Mode: types.MatchSimilar})
	require.Error(t, err)

	_, err = Find(nil, Options{Kind: KindTag, Mode: types.MatchIdentical})
	require.Error(t, err, "identical mode is pointless on distinct items")

	_, err = Find(nil, Options{Kind: KindTag, Mode: types.MatchSoundex})
	require.Error(t, err, "soundex length is required")
}
