package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/dupfinder/internal/storage/sqlite"
	"github.com/steveyegge/dupfinder/internal/types"
)

var initSample bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Create an empty library",
	Long: `Create a library at the given directory (default: --library, or the
current directory): a metadata.db database plus a files/ tree for
format files.

With --sample the library is seeded with a handful of books containing
known duplicates, useful for trying the search commands out.

Example:
  dupfinder init ~/books
  dupfinder init --sample /tmp/demo`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dir := resolveLibrary()
		if len(args) > 0 {
			dir = args[0]
		}

		lib, err := sqlite.Open(dir)
		if err != nil {
			fatalf("creating library: %v", err)
		}
		defer lib.Close()

		if initSample {
			if err := seedSample(context.Background(), lib); err != nil {
				fatalf("seeding sample books: %v", err)
			}
		}

		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Printf("\n%s Initialized library\n\n", green("✓"))
		fmt.Printf("  Location: %s\n", cyan(lib.Location()))
		if initSample {
			fmt.Printf("  Seeded sample books; try: dupfinder find -l %s\n", dir)
		}
		fmt.Println()
	},
}

// seedSample imports a small set of books with deliberate duplicates:
// a subtitle variant, an initials variant, a shared ISBN, and one pair
// of byte-identical format files.
func seedSample(ctx context.Context, lib *sqlite.Library) error {
	payload := strings.Repeat("sample e-book content\n", 256)

	books := []struct {
		book   types.Book
		format string
		data   string
	}{
		{
			book: types.Book{
				Title: "The Hobbit", Authors: []string{"J. R. R. Tolkien"},
				Identifiers: map[string]string{"isbn": "9780547928227"},
				Languages:   []string{"en"},
			},
			format: "epub", data: payload,
		},
		{
			book: types.Book{
				Title: "Hobbit: 75th Anniversary Edition", Authors: []string{"Tolkien, JRR"},
				Identifiers: map[string]string{"isbn": "9780547928227"},
				Languages:   []string{"en"},
			},
			format: "epub", data: payload,
		},
		{
			book: types.Book{
				Title: "Dune", Authors: []string{"Frank Herbert"},
				Series: "Dune", Languages: []string{"en"},
			},
			format: "epub", data: "unrelated bytes",
		},
	}

	for _, s := range books {
		id, err := lib.AddBook(ctx, &s.book)
		if err != nil {
			return err
		}
		if err := lib.AddFormat(ctx, id, s.format, strings.NewReader(s.data)); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	initCmd.Flags().BoolVar(&initSample, "sample", false, "seed the new library with sample books")
	rootCmd.AddCommand(initCmd)
}
