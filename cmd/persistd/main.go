// Command persistd serves and inspects persisted values.
package main

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/persist/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "persistd",
		Short: "Key-value store for persisted values",
		Long: `persistd keeps JSON values under string keys and serves them over HTTP.

Values written by one process are visible to every other client bound to
the same key, and watchers are told about each change. Backends:

  • memory   values live as long as the process
  • sqlite   a local database file
  • s3       one object per key in a bucket

Configuration is read from persist.json, then PERSIST_* environment
variables, then command-line flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags.register(rootCmd)

	rootCmd.AddCommand(
		serveCmd(flags),
		getCmd(flags),
		setCmd(flags),
		rmCmd(flags),
		keysCmd(flags),
		versionCmd(),
	)
	return rootCmd
}

// printError prints structured errors with their hints, others on one line.
func printError(err error) {
	var e *errors.Error
	if stderrors.As(err, &e) {
		fmt.Fprint(os.Stderr, e.Format())
		return
	}
	fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
}
