package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	rootCmd = &cobra.Command{
		Use:   "bucketlint",
		Short: "Bucket Fleet Spec Validator",
		Long: `Bucketlint - Bucket Fleet Spec Validator

Bucketlint validates declarative object-storage fleet specs before
anything touches the cloud. It checks that every module carries its
required units, that every unit parses, and that every bucket honors
the fleet's security and lifecycle invariants.

Render the bucket graph, validate it in three phases, watch a spec
tree continuously, and keep a local history of past runs.`,
		Version: version,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// init sets up the root command
func init() {
	rootCmd.SetVersionTemplate(`Bucketlint {{.Version}} - Bucket Fleet Spec Validator
`)
}
