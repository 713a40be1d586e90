package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/dupfinder/internal/engine"
	"github.com/steveyegge/dupfinder/internal/exemptions"
	"github.com/steveyegge/dupfinder/internal/presenter"
	"github.com/steveyegge/dupfinder/internal/storage"
	"github.com/steveyegge/dupfinder/internal/storage/sqlite"
	"github.com/steveyegge/dupfinder/internal/types"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Interactively page through duplicate groups",
	Long: `Run a duplicate search and walk the groups one at a time. From the
prompt, exempt the current group, re-show it, or move on.

Commands at the prompt:
  n, next      next group
  p, prev      previous group
  s, show      re-show the current group
  x, exempt    exempt the current group's members from each other
  q, quit      leave review`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		opts := loadOptions()
		applyFindFlags(cmd, &opts)
		opts.AutoDeleteBinaryDuplicateFormats = false // review never prunes

		spec, err := opts.SearchSpec()
		if err != nil {
			fatalf("%v", err)
		}

		lib := openLibrary()
		defer lib.Close()

		// Exempting from the prompt writes to the library
		lockPath, err := storage.AcquireWriterLock(resolveLibrary(), version)
		if err != nil {
			fatalf("%v", err)
		}
		defer func() { _ = storage.ReleaseWriterLock(lockPath) }()

		ctx := context.Background()
		store := loadExemptions(ctx, lib)

		e := engine.New(lib, store, engine.WithHashWorkers(findWorkers))
		result, err := e.FindDuplicates(ctx, spec)
		if err != nil {
			fatalf("%v", err)
		}

		fmt.Println(presenter.Summary(result))
		if len(result.Groups) == 0 {
			return
		}

		if err := runReview(ctx, lib, store, result); err != nil {
			fatalf("%v", err)
		}
	},
}

type review struct {
	lib    *sqlite.Library
	store  *exemptions.Store
	result *types.DuplicateResult
	it     *presenter.Iterator
}

func runReview(ctx context.Context, lib *sqlite.Library, store *exemptions.Store, result *types.DuplicateResult) error {
	cyan := color.New(color.FgCyan).SprintFunc()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            cyan("review> "),
		InterruptPrompt:   "^C",
		EOFPrompt:         "quit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("starting prompt: %w", err)
	}
	defer rl.Close()

	r := &review{lib: lib, store: store, result: result, it: presenter.NewIterator(result)}
	if _, ok := r.it.Next(); ok {
		r.showCurrent(ctx)
	}

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		switch strings.TrimSpace(line) {
		case "":
			continue
		case "n", "next":
			if _, ok := r.it.Next(); !ok {
				fmt.Println("Already at the last group")
				continue
			}
			r.showCurrent(ctx)
		case "p", "prev":
			if _, ok := r.it.Prev(); !ok {
				fmt.Println("Already at the first group")
				continue
			}
			r.showCurrent(ctx)
		case "s", "show":
			r.showCurrent(ctx)
		case "x", "exempt":
			if err := r.exemptCurrent(ctx); err != nil {
				red := color.New(color.FgRed).SprintFunc()
				fmt.Printf("%s %v\n", red("Error:"), err)
			}
		case "q", "quit", "exit":
			return nil
		default:
			fmt.Println("Commands: n(ext), p(rev), s(how), x  (exempt), q(uit)")
		}
	}
}

func (r *review) showCurrent(ctx context.Context) {
	g, ok := r.it.Current()
	if !ok {
		return
	}
	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Printf("\n%s %s\n", yellow(fmt.Sprintf("Group %d/%d:", r.it.Pos()+1, r.it.Len())), g.Label)
	for _, id := range g.Members {
		line := fmt.Sprintf("book %d", id)
		if book, err := r.lib.GetBook(ctx, id); err == nil {
			line = describeBook(book)
		}
		marker := " "
		if id == g.Canonical() {
			marker = "*"
		}
		fmt.Printf("  %s [%d] %s\n", marker, id, line)
	}
}

// exemptCurrent records the current group's members as mutual
// non-duplicates and persists immediately, so an interrupted session
// loses nothing.
func (r *review) exemptCurrent(ctx context.Context) error {
	g, ok := r.it.Current()
	if !ok {
		return fmt.Errorf("no current group")
	}
	r.store.AddExemptGroup(g.Members)
	if err := r.store.Persist(ctx, r.lib); err != nil {
		return err
	}
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("%s Exempted %d books; the group will not match again\n", green("✓"), len(g.Members))
	return nil
}

func init() {
	addSearchFlags(reviewCmd)
	rootCmd.AddCommand(reviewCmd)
}
