package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var schemesCmd = &cobra.Command{
	Use:   "schemes",
	Short: "List identifier schemes present in the library",
	Long: `List every identifier scheme the library's books carry (isbn, amazon,
goodreads, ...) for use with 'find --type identifier --identifier <scheme>'.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		lib := openLibrary()
		defer lib.Close()

		schemes, err := lib.IdentifierSchemes(context.Background())
		if err != nil {
			fatalf("%v", err)
		}

		if len(schemes) == 0 {
			fmt.Println("No identifiers in this library")
			return
		}
		cyan := color.New(color.FgCyan).SprintFunc()
		for _, s := range schemes {
			fmt.Println(cyan(s))
		}
	},
}

func init() {
	rootCmd.AddCommand(schemesCmd)
}
