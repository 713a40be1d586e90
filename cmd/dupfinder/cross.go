package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/dupfinder/internal/crosslib"
	"github.com/steveyegge/dupfinder/internal/storage/sqlite"
)

var crossMaxRemote int

var crossCmd = &cobra.Command{
	Use:   "cross <remote-library>",
	Short: "Find which local books also exist in another library",
	Long: `Compare the local library against a second one and list every local
book with a counterpart on the remote side. Neither library is modified.

Example:
  dupfinder cross -l ~/books ~/backup/books
  dupfinder cross -l ~/books --type binary /mnt/nas/books`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		opts := loadOptions()
		applyFindFlags(cmd, &opts)

		spec, err := opts.SearchSpec()
		if err != nil {
			fatalf("%v", err)
		}
		spec.AutoRemoveFormats = false // cross comparisons never mutate

		local := openLibrary()
		defer local.Close()

		remote, err := sqlite.Open(args[0])
		if err != nil {
			fatalf("opening remote library: %v", err)
		}
		defer remote.Close()

		c, err := crosslib.NewComparer(local, remote,
			crosslib.WithMaxRemoteIndex(crossMaxRemote))
		if err != nil {
			fatalf("%v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		matches, err := c.Find(ctx, spec)
		if err != nil {
			fatalf("%v", err)
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== Cross-Library Comparison ==="))
		if len(matches) == 0 {
			fmt.Println("No local books were found in the remote library")
			return
		}
		for _, m := range matches {
			fmt.Printf("%s [%d] %s\n", yellow("local"), m.LocalID, m.LocalTitle)
			for _, r := range m.Remote {
				authors := ""
				if len(r.Authors) > 0 {
					authors = " - " + strings.Join(r.Authors, ", ")
				}
				fmt.Printf("    remote [%d] %s%s %s\n", r.ID, r.Title, authors, gray(r.Path))
			}
		}
		fmt.Printf("\n%d of the local books exist remotely\n", len(matches))
	},
}

func init() {
	addSearchFlags(crossCmd)
	crossCmd.Flags().IntVar(&crossMaxRemote, "max-remote", crosslib.DefaultMaxRemoteIndex,
		"abort if the remote library holds more books than this")
	rootCmd.AddCommand(crossCmd)
}
