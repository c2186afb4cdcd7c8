// ccas runs lab-trend assessments from the command line and maintains the
// snapshot archive.
//
// Usage:
//
//	ccas assess <patient-id> --records=<file> [--from=YYYY-MM-DD] [--to=YYYY-MM-DD] [-o <file>]
//	ccas history <patient-id>
//	ccas export [-o <file>] [--database-url=<url>]
//	ccas import <file> [--database-url=<url>]
//	ccas migrate <up|down|status> [--database-url=<url>] [--path=<dir>]
//	ccas serve-mcp [--records=<file>] [--database-url=<url>]
//	ccas setup <desktop|status> [--config=<file>]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "ccas",
	Short: "Lab-trend clinical assessment",
	Long: "ccas turns a patient's laboratory history into trend statistics, clinical\n" +
		"patterns and a consolidated recommendation set.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.AddCommand(assessCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(serveMCPCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
