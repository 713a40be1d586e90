package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/dupfinder/internal/exemptions"
	"github.com/steveyegge/dupfinder/internal/storage"
	"github.com/steveyegge/dupfinder/internal/types"
)

var exemptAuthors bool

var exemptCmd = &cobra.Command{
	Use:   "exempt",
	Short: "Manage duplicate exemptions",
	Long: `Exemptions record that specific books (or author names) are not
duplicates of each other, whatever the matcher says. Exempted pairs
never appear together in a duplicate group again.`,
}

var exemptAddCmd = &cobra.Command{
	Use:   "add <id> <id> [id...]",
	Short: "Exempt a set of books (or authors) from each other",
	Long: `Record that none of the listed books are duplicates of any other.

With --authors the arguments are author names instead of book ids;
author exemptions apply to ignore-title searches.

Example:
  dupfinder exempt add 12 47 103
  dupfinder exempt add --authors "Robert Smith" "Rupert Smith"`,
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		lib := openLibrary()
		defer lib.Close()

		lockPath, err := storage.AcquireWriterLock(resolveLibrary(), version)
		if err != nil {
			fatalf("%v", err)
		}
		defer func() { _ = storage.ReleaseWriterLock(lockPath) }()

		ctx := context.Background()
		store := loadExemptions(ctx, lib)

		if exemptAuthors {
			store.AddAuthorExemptGroup(args)
		} else {
			store.AddExemptGroup(parseBookIDs(args))
		}
		if err := store.Persist(ctx, lib); err != nil {
			fatalf("%v", err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Exempted %d items from each other\n", green("✓"), len(args))
	},
}

var exemptRemoveCmd = &cobra.Command{
	Use:   "remove <id> [id]",
	Short: "Remove an exemption pair, or every exemption of one book",
	Long: `With two arguments, remove the exemption between that pair. With one,
remove every exemption the book (or author, with --authors) is part of.`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		lib := openLibrary()
		defer lib.Close()

		lockPath, err := storage.AcquireWriterLock(resolveLibrary(), version)
		if err != nil {
			fatalf("%v", err)
		}
		defer func() { _ = storage.ReleaseWriterLock(lockPath) }()

		ctx := context.Background()
		store := loadExemptions(ctx, lib)

		if exemptAuthors {
			if len(args) == 2 {
				store.RemoveAuthorExempt(args[0], args[1])
			} else {
				for _, other := range store.AuthorExemptionsFor(args[0]) {
					store.RemoveAuthorExempt(args[0], other)
				}
			}
		} else {
			ids := parseBookIDs(args)
			if len(ids) == 2 {
				store.RemoveExempt(ids[0], ids[1])
			} else {
				store.RemoveAllFor(ids[0])
			}
		}
		if err := store.Persist(ctx, lib); err != nil {
			fatalf("%v", err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Exemptions updated\n", green("✓"))
	},
}

var exemptListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all recorded exemptions",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		lib := openLibrary()
		defer lib.Close()

		ctx := context.Background()
		store := loadExemptions(ctx, lib)

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== Exemptions ==="))

		books, authors := store.Counts()
		if books == 0 && authors == 0 {
			fmt.Println(gray("none recorded"))
			return
		}

		printed := make(map[string]bool)
		ids, _ := lib.AllBookIDs(ctx)
		for _, id := range ids {
			others := store.ExemptionsFor(id)
			if len(others) == 0 {
				continue
			}
			title := fmt.Sprintf("book %d", id)
			if b, err := lib.GetBook(ctx, id); err == nil {
				title = b.Title
			}
			fmt.Printf("%s [%d] %s\n", yellow("book"), id, title)
			for _, other := range others {
				key := pairKey(id, other)
				if printed[key] {
					continue
				}
				printed[key] = true
				fmt.Printf("    not a duplicate of [%d]\n", other)
			}
		}

		if authors > 0 {
			fmt.Printf("\n%s\n", yellow("authors:"))
			for _, pair := range authorPairs(store) {
				fmt.Printf("    %s %s %s\n", pair[0], gray("<>"), pair[1])
			}
		}
	},
}

func parseBookIDs(args []string) []types.BookID {
	ids := make([]types.BookID, len(args))
	for i, a := range args {
		n, err := strconv.ParseInt(a, 10, 64)
		if err != nil || n <= 0 {
			fatalf("not a book id: %q", a)
		}
		ids[i] = types.BookID(n)
	}
	return ids
}

func pairKey(a, b types.BookID) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

// authorPairs flattens the author relation into unique sorted pairs.
func authorPairs(store *exemptions.Store) [][2]string {
	var pairs [][2]string
	seen := make(map[string]bool)
	for _, name := range store.AuthorNames() {
		for _, other := range store.AuthorExemptionsFor(name) {
			a, b := name, other
			if b < a {
				a, b = b, a
			}
			key := a + "\x00" + b
			if seen[key] {
				continue
			}
			seen[key] = true
			pairs = append(pairs, [2]string{a, b})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
	return pairs
}

func init() {
	exemptCmd.PersistentFlags().BoolVar(&exemptAuthors, "authors", false, "operate on author names instead of book ids")
	exemptCmd.AddCommand(exemptAddCmd)
	exemptCmd.AddCommand(exemptRemoveCmd)
	exemptCmd.AddCommand(exemptListCmd)
	rootCmd.AddCommand(exemptCmd)
}
