package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/dupfinder/internal/config"
	"github.com/steveyegge/dupfinder/internal/engine"
	"github.com/steveyegge/dupfinder/internal/presenter"
	"github.com/steveyegge/dupfinder/internal/storage"
	"github.com/steveyegge/dupfinder/internal/storage/sqlite"
	"github.com/steveyegge/dupfinder/internal/types"
)

var (
	findType           string
	findIdentifier     string
	findTitleMatch     string
	findAuthorMatch    string
	findTitleSoundex   int
	findAuthorSoundex  int
	findIncludeLangs   bool
	findSortByTitle    bool
	findAutoRemove     bool
	findMark           bool
	findWorkers        int
	findShowDiagnostic bool
)

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Search the library for duplicate books",
	Long: `Search the library for duplicate books and print the groups found.

The search type and match modes default to the library's dupfinder.yaml
when present; flags override the file.

Example:
  dupfinder find -l ~/books
  dupfinder find -l ~/books --type binary --auto-remove
  dupfinder find -l ~/books --title-match soundex --author-match ignore`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		opts := loadOptions()
		applyFindFlags(cmd, &opts)

		spec, err := opts.SearchSpec()
		if err != nil {
			fatalf("%v", err)
		}

		lib := openLibrary()
		defer lib.Close()

		// Mutating runs take the single-writer lock for the library
		if spec.AutoRemoveFormats || findMark {
			lockPath, err := storage.AcquireWriterLock(resolveLibrary(), version)
			if err != nil {
				fatalf("%v", err)
			}
			defer func() { _ = storage.ReleaseWriterLock(lockPath) }()
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		e := engine.New(lib, loadExemptions(ctx, lib), engine.WithHashWorkers(findWorkers))
		result, err := e.FindDuplicates(ctx, spec)
		if err != nil {
			fatalf("%v", err)
		}

		printResult(lib, result)

		if findMark {
			if err := presenter.Apply(ctx, lib, result); err != nil {
				fatalf("%v", err)
			}
			fmt.Printf("\nMarked %d books in the library view\n", len(result.AllMembers))
		}
	},
}

func init() {
	addSearchFlags(findCmd)
	findCmd.Flags().BoolVar(&findSortByTitle, "sort-by-title", false, "order groups by title instead of size")
	findCmd.Flags().BoolVar(&findAutoRemove, "auto-remove", false, "binary searches: delete redundant identical format files")
	findCmd.Flags().BoolVar(&findMark, "mark", false, "persist duplicate_group tags to the library's marked set")
	findCmd.Flags().BoolVar(&findShowDiagnostic, "diagnostics", false, "print per-book skip diagnostics")
	rootCmd.AddCommand(findCmd)
}

// addSearchFlags registers the flags shared by every searching command.
// Only one command runs per invocation, so they can share the backing
// variables.
func addSearchFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&findType, "type", "", "search type: titleauthor, binary or identifier")
	cmd.Flags().StringVar(&findIdentifier, "identifier", "", "identifier scheme for identifier searches (or 'any')")
	cmd.Flags().StringVar(&findTitleMatch, "title-match", "", "title mode: identical, similar, soundex, fuzzy or ignore")
	cmd.Flags().StringVar(&findAuthorMatch, "author-match", "", "author mode: identical, similar, soundex, fuzzy or ignore")
	cmd.Flags().IntVar(&findTitleSoundex, "title-soundex-length", 0, "title soundex truncation length")
	cmd.Flags().IntVar(&findAuthorSoundex, "author-soundex-length", 0, "author soundex truncation length")
	cmd.Flags().BoolVar(&findIncludeLangs, "include-languages", false, "treat different languages as different books")
	cmd.Flags().IntVar(&findWorkers, "workers", 4, "parallel format hashing workers for binary searches")
}

// applyFindFlags overlays set flags onto the file-derived options.
func applyFindFlags(cmd *cobra.Command, opts *config.Options) {
	if cmd.Flags().Changed("type") {
		opts.SearchType = findType
	}
	if cmd.Flags().Changed("identifier") {
		opts.IdentifierType = findIdentifier
	}
	if cmd.Flags().Changed("title-match") {
		opts.TitleMatch = findTitleMatch
	}
	if cmd.Flags().Changed("author-match") {
		opts.AuthorMatch = findAuthorMatch
	}
	if cmd.Flags().Changed("title-soundex-length") {
		opts.TitleSoundexLength = findTitleSoundex
	}
	if cmd.Flags().Changed("author-soundex-length") {
		opts.AuthorSoundexLength = findAuthorSoundex
	}
	if cmd.Flags().Changed("include-languages") {
		opts.IncludeLanguages = findIncludeLangs
	}
	if cmd.Flags().Changed("sort-by-title") {
		opts.SortGroupsByTitle = findSortByTitle
	}
	if cmd.Flags().Changed("auto-remove") {
		opts.AutoDeleteBinaryDuplicateFormats = findAutoRemove
	}
}

// printResult renders the groups: header, one block per group with the
// canonical member starred, then the summary line.
func printResult(lib *sqlite.Library, result *types.DuplicateResult) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Printf("\n%s\n\n", cyan("=== Duplicate Search ==="))

	ctx := context.Background()
	for i, g := range result.Groups {
		fmt.Printf("%s %s\n", yellow(fmt.Sprintf("Group %d:", i+1)), g.Label)
		for _, id := range g.Members {
			line := fmt.Sprintf("book %d", id)
			if book, err := lib.GetBook(ctx, id); err == nil {
				line = describeBook(book)
			}
			marker := " "
			if id == g.Canonical() {
				marker = "*"
			}
			fmt.Printf("  %s [%d] %s\n", marker, id, line)
		}
		fmt.Println()
	}

	fmt.Println(presenter.Summary(result))
	if result.Cancelled {
		fmt.Println(red("Interrupted; shown results are partial"))
	}
	if findShowDiagnostic {
		for _, d := range result.Diagnostics {
			fmt.Printf("  %s\n", gray(d.String()))
		}
	}
}

func describeBook(b *types.Book) string {
	switch len(b.Authors) {
	case 0:
		return b.Title
	case 1:
		return fmt.Sprintf("%s - %s", b.Title, b.Authors[0])
	default:
		return fmt.Sprintf("%s - %s et al.", b.Title, b.Authors[0])
	}
}
