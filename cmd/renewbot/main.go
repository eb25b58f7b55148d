// Package main provides the renewbot command line: it attaches to the
// operator's logged-in Chrome and renews the plans of every client on the
// roster.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var storePath string

var rootCmd = &cobra.Command{
	Use:           "renewbot",
	Short:         "Renew marketplace health plans for every client on the roster",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "profile store path (default ~/.renewbot/config.json)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(profilesCmd)
	rootCmd.AddCommand(carriersCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
