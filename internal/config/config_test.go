package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/dupfinder/internal/types"
)

func TestDefaultTranslates(t *testing.T) {
	spec, err := Default().SearchSpec()
	require.NoError(t, err)
	assert.Equal(t, types.KindTitleAuthor, spec.Kind)
	assert.Equal(t, types.MatchSimilar, spec.TitleMode)
	assert.Equal(t, types.MatchSimilar, spec.AuthorMode)
	assert.True(t, spec.SortByCount, "largest groups first by default")
	assert.True(t, spec.ShowAllGroups)
}

func TestLegacyIsbnAlias(t *testing.T) {
	opts := Default()
	opts.SearchType = "isbn"
	opts.IdentifierType = "" // the alias overrides whatever was here

	spec, err := opts.SearchSpec()
	require.NoError(t, err)
	assert.Equal(t, types.KindIdentifier, spec.Kind)
	assert.Equal(t, "isbn", spec.Scheme)
}

func TestSortGroupsByTitle(t *testing.T) {
	opts := Default()
	opts.SortGroupsByTitle = true
	spec, err := opts.SearchSpec()
	require.NoError(t, err)
	assert.False(t, spec.SortByCount)
}

func TestInvalidOptionsSurface(t *testing.T) {
	opts := Default()
	opts.TitleMatch = "approximate"
	_, err := opts.SearchSpec()
	require.Error(t, err)

	opts = Default()
	opts.SearchType = "identifier"
	opts.IdentifierType = ""
	_, err = opts.SearchSpec()
	require.Error(t, err, "identifier searches need a scheme")
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dupfinder.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"search_type: binary\nauto_delete_binary_duplicate_formats: true\nshow_all_groups: false\n",
	), 0o644))

	opts, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "binary", opts.SearchType)
	assert.True(t, opts.AutoDeleteBinaryDuplicateFormats)
	assert.False(t, opts.ShowAllGroups)
	assert.Equal(t, string(types.MatchSimilar), opts.TitleMatch, "untouched keys keep defaults")

	spec, err := opts.SearchSpec()
	require.NoError(t, err)
	assert.True(t, spec.AutoRemoveFormats)
}

func TestLoadMissingFileIsDefaults(t *testing.T) {
	opts, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), opts)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search_type: [unterminated"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}
