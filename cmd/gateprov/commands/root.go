// Package commands implements the gateprov command line interface.
package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/gateprov/gateprov/internal/logging"
)

var (
	// Global flags
	registryPath string
	verbose      bool
	jsonOutput   bool
)

// Execute runs the root command.
func Execute(ctx context.Context, version string) error {
	return newRootCommand(version).ExecuteContext(ctx)
}

func newRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gateprov",
		Short: "Gateprov - access point provisioning for legacy admin panels",
		Long: `Gateprov drives legacy, server-rendered admin panels through their
browser-oriented workflow to create and configure network access points:
session and cookie continuity, anti-forgery token extraction, multi-step
form submission, and recovery of server-assigned identifiers.`,
		Version: version,
	}

	rootCmd.PersistentFlags().StringVarP(&registryPath, "registry", "r", "instances.yaml", "instance registry file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newCreateCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newInstancesCommand())

	return rootCmd
}

// newLogger builds the CLI logger: console output when verbose, silent
// otherwise so command output stays parseable.
func newLogger() *logging.Logger {
	if verbose {
		return logging.NewDevelopment()
	}
	return logging.NewNop()
}
