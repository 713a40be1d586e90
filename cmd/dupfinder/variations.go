package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/steveyegge/dupfinder/internal/storage/sqlite"
	"github.com/steveyegge/dupfinder/internal/types"
	"github.com/steveyegge/dupfinder/internal/variations"
)

var (
	variationsKind     string
	variationsMode     string
	variationsSoundex  int
	variationsDistance int
	variationsOutput   string
)

var variationsCmd = &cobra.Command{
	Use:   "variations",
	Short: "Find alternate spellings of authors or series",
	Long: `Scan the library for item values that are probably variations of the
same thing: "J. R. R. Tolkien" vs "Tolkien, JRR", "The Expanse" vs
"Expanse". Nothing is merged; the groups are printed for review.

Example:
  dupfinder variations -l ~/books --kind author
  dupfinder variations -l ~/books --kind series --mode soundex
  dupfinder variations -l ~/books --kind author --distance 2 --output yaml`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		kind := variations.Kind(variationsKind)
		lib := openLibrary()
		defer lib.Close()

		ctx := context.Background()
		items, err := collectItems(ctx, lib, kind)
		if err != nil {
			fatalf("%v", err)
		}

		groups, err := variations.Find(items, variations.Options{
			Kind:          kind,
			Mode:          types.MatchMode(variationsMode),
			SoundexLength: variationsSoundex,
			MaxDistance:   variationsDistance,
		})
		if err != nil {
			fatalf("%v", err)
		}

		if variationsOutput == "yaml" {
			if err := yaml.NewEncoder(os.Stdout).Encode(groups); err != nil {
				fatalf("encoding output: %v", err)
			}
			return
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan(fmt.Sprintf("=== %s variations ===", kind)))
		if len(groups) == 0 {
			fmt.Println("No variations found")
			return
		}
		for _, g := range groups {
			fmt.Printf("%s %s\n", yellow("keep:"), g.Canonical)
			for _, v := range g.Variants {
				if v.Name == g.Canonical {
					continue
				}
				fmt.Printf("    %s %s\n", v.Name, gray(fmt.Sprintf("(%d books)", v.Count)))
			}
		}
		fmt.Printf("\n%d variation groups\n", len(groups))
	},
}

// collectItems walks the library once and counts distinct item values of
// the requested kind.
func collectItems(ctx context.Context, lib *sqlite.Library, kind variations.Kind) ([]variations.Item, error) {
	switch kind {
	case variations.KindAuthor, variations.KindSeries:
	default:
		return nil, fmt.Errorf("this library keeps no %q column (supported: author, series)", kind)
	}

	ids, err := lib.AllBookIDs(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, id := range ids {
		book, err := lib.GetBook(ctx, id)
		if err != nil {
			continue
		}
		switch kind {
		case variations.KindAuthor:
			for _, a := range book.Authors {
				counts[a]++
			}
		case variations.KindSeries:
			if book.Series != "" {
				counts[book.Series]++
			}
		}
	}

	items := make([]variations.Item, 0, len(counts))
	for name, n := range counts {
		items = append(items, variations.Item{Name: name, Count: n})
	}
	return items, nil
}

func init() {
	variationsCmd.Flags().StringVar(&variationsKind, "kind", "author", "item kind: author or series")
	variationsCmd.Flags().StringVar(&variationsMode, "mode", "similar", "matching mode: similar, soundex or fuzzy")
	variationsCmd.Flags().IntVar(&variationsSoundex, "soundex-length", 6, "soundex truncation length in soundex mode")
	variationsCmd.Flags().IntVar(&variationsDistance, "distance", 0, "additionally require variants within this edit distance (0 = off)")
	variationsCmd.Flags().StringVar(&variationsOutput, "output", "text", "output format: text or yaml")
	rootCmd.AddCommand(variationsCmd)
}
