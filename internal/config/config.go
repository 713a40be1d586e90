// Package config is the host-facing options bag: the flat key set a
// config file or flag layer populates, translated into a SearchSpec for
// the engine. The names are kept stable because they appear verbatim in
// YAML files.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/steveyegge/dupfinder/internal/types"
)

// Options is one duplicate-search configuration in external vocabulary.
type Options struct {
	SearchType     string `yaml:"search_type" mapstructure:"search_type"`
	IdentifierType string `yaml:"identifier_type" mapstructure:"identifier_type"`

	TitleMatch  string `yaml:"title_match" mapstructure:"title_match"`
	AuthorMatch string `yaml:"author_match" mapstructure:"author_match"`

	TitleSoundexLength  int `yaml:"title_soundex_length" mapstructure:"title_soundex_length"`
	AuthorSoundexLength int `yaml:"author_soundex_length" mapstructure:"author_soundex_length"`

	IncludeLanguages bool `yaml:"include_languages" mapstructure:"include_languages"`

	ShowAllGroups     bool `yaml:"show_all_groups" mapstructure:"show_all_groups"`
	SortGroupsByTitle bool `yaml:"sort_groups_by_title" mapstructure:"sort_groups_by_title"`

	AutoDeleteBinaryDuplicateFormats bool `yaml:"auto_delete_binary_duplicate_formats" mapstructure:"auto_delete_binary_duplicate_formats"`
}

// Default returns the stock search: similar title and author matching,
// soundex lengths tuned for titles vs surnames, largest groups first.
func Default() Options {
	return Options{
		SearchType:          string(types.KindTitleAuthor),
		IdentifierType:      types.AnyScheme,
		TitleMatch:          string(types.MatchSimilar),
		AuthorMatch:         string(types.MatchSimilar),
		TitleSoundexLength:  6,
		AuthorSoundexLength: 8,
		ShowAllGroups:       true,
	}
}

// SearchSpec translates the options into the engine's vocabulary. The
// legacy "isbn" search type is rewritten to an identifier search scoped
// to the isbn scheme, as older config files still carry it.
func (o Options) SearchSpec() (types.SearchSpec, error) {
	searchType, scheme := o.SearchType, o.IdentifierType
	if searchType == "isbn" {
		searchType = string(types.KindIdentifier)
		scheme = "isbn"
	}

	spec := types.SearchSpec{
		Kind:                types.SearchKind(searchType),
		Scheme:              scheme,
		AutoRemoveFormats:   o.AutoDeleteBinaryDuplicateFormats,
		TitleMode:           types.MatchMode(o.TitleMatch),
		AuthorMode:          types.MatchMode(o.AuthorMatch),
		TitleSoundexLength:  o.TitleSoundexLength,
		AuthorSoundexLength: o.AuthorSoundexLength,
		IncludeLanguages:    o.IncludeLanguages,
		ShowAllGroups:       o.ShowAllGroups,
		SortByCount:         !o.SortGroupsByTitle,
	}
	if err := spec.Validate(); err != nil {
		return types.SearchSpec{}, err
	}
	return spec, nil
}

// Load reads a YAML options file over the defaults. A missing file is
// not an error; the defaults are returned as-is.
func Load(path string) (Options, error) {
	opts := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return opts, nil
		}
		return opts, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return opts, nil
}
