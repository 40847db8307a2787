package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// These variables are set at build time by ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "cwrap",
		Short: "cwrap generates resource-managed Go bindings for C libraries.",
		Long: `cwrap reads a declaration dump of a C library, groups its functions around
the record types they operate on and emits cgo wrappers that own their
handles, convert status codes into errors and route C callbacks into Go.
Naming conventions and the deny-list are configured through a .cwrap.yaml file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log every extraction and generation decision")

	rootCmd.AddCommand(newGenerateCmd(opts))
	rootCmd.AddCommand(newInspectCmd(opts))
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number of cwrap",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "cwrap version %s\n", version)
			fmt.Fprintf(out, "commit: %s\n", commit)
			fmt.Fprintf(out, "built at: %s\n", date)
		},
	})
	return rootCmd
}

// newLogger builds the development logger in verbose mode and a production
// logger otherwise. Commands sync it before returning.
var newLogger = func(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func (o *rootOptions) logger() (*zap.Logger, error) {
	return newLogger(o.verbose)
}
