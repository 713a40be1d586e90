// dupfinder finds duplicate books in an e-book library: by metadata, by
// identifier, or by byte-identical format files.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/steveyegge/dupfinder/internal/config"
	"github.com/steveyegge/dupfinder/internal/exemptions"
	"github.com/steveyegge/dupfinder/internal/storage/sqlite"
)

const version = "0.1.0"

var (
	libraryPath string
	configPath  string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "dupfinder",
	Short: "Duplicate detection for e-book libraries",
	Long: `dupfinder searches an e-book library for duplicate books.

Searches compare titles and authors (exact, similar, soundex or fuzzy),
identifiers (ISBN etc.), or the format files themselves byte for byte.
Known false positives can be exempted so they stop showing up.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&libraryPath, "library", "l", "", "path to the library directory")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a dupfinder.yaml options file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	viper.SetEnvPrefix("DUPFINDER")
	viper.AutomaticEnv()
	_ = viper.BindPFlag("library", rootCmd.PersistentFlags().Lookup("library"))
}

// resolveLibrary returns the library directory from the flag, the
// environment, or the current directory as a last resort.
func resolveLibrary() string {
	if libraryPath != "" {
		return libraryPath
	}
	if env := viper.GetString("library"); env != "" {
		return env
	}
	cwd, err := os.Getwd()
	if err != nil {
		fatalf("resolving current directory: %v", err)
	}
	return cwd
}

// openLibrary opens the library every read-side command works against.
func openLibrary() *sqlite.Library {
	dir := resolveLibrary()
	if _, err := os.Stat(filepath.Join(dir, "metadata.db")); err != nil {
		fatalf("no library at %s (run 'dupfinder init' to create one)", dir)
	}
	lib, err := sqlite.Open(dir)
	if err != nil {
		fatalf("opening library: %v", err)
	}
	return lib
}

// loadOptions layers the config file over the defaults. The default file
// location is <library>/dupfinder.yaml.
func loadOptions() config.Options {
	path := configPath
	if path == "" {
		path = filepath.Join(resolveLibrary(), "dupfinder.yaml")
	}
	opts, err := config.Load(path)
	if err != nil {
		fatalf("%v", err)
	}
	return opts
}

// loadExemptions builds a loaded exemption store for the library.
func loadExemptions(ctx context.Context, lib *sqlite.Library) *exemptions.Store {
	store := exemptions.New()
	if err := store.Load(ctx, lib); err != nil {
		fatalf("loading exemptions: %v", err)
	}
	return store
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fatalf("%v", err)
	}
}
