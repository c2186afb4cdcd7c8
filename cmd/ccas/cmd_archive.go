package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

var archiveFlags struct {
	databaseURL string
	output      string
	limit       int
}

var historyCmd = &cobra.Command{
	Use:   "history <patient-id>",
	Short: "List archived assessments of a patient, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export archived case files as JSON",
	Long: `Export writes every archived case file to a JSON document. Without -o the
file is written to the exports directory under CCAS_DATA_DIR.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import case files from an export; existing cases are skipped",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	for _, c := range []*cobra.Command{historyCmd, exportCmd, importCmd} {
		c.Flags().StringVar(&archiveFlags.databaseURL, "database-url", "", "PostgreSQL archive URL (default: local SQLite archive)")
	}
	historyCmd.Flags().IntVar(&archiveFlags.limit, "limit", 0, "Maximum number of cases (default 20)")
	exportCmd.Flags().StringVarP(&archiveFlags.output, "output", "o", "", "Output file (- for stdout)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	store, err := env.openArchive(archiveFlags.databaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	limit := archiveFlags.limit
	if limit <= 0 {
		limit = 20
	}
	cases, err := store.ListByPatient(cmd.Context(), args[0], limit)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if len(cases) == 0 {
		fmt.Fprintf(w, "No archived assessments for %s\n", args[0])
		return nil
	}
	for _, c := range cases {
		fmt.Fprintf(w, "%s  %s  %s\n", c.CreatedAt.Format(time.RFC3339), c.CaseID, c.OverallRisk)
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	store, err := env.openArchive(archiveFlags.databaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	path := archiveFlags.output
	if path == "" {
		if err := env.lite.EnsureDataDir(); err != nil {
			return err
		}
		path = filepath.Join(env.lite.ExportDir(), fmt.Sprintf("ccas-export-%s.json", time.Now().UTC().Format("20060102-150405")))
	}

	out, closeOut, err := openOutput(path, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if err := store.ExportJSON(cmd.Context(), out); err != nil {
		closeOut()
		return err
	}
	if err := closeOut(); err != nil {
		return err
	}

	if path != "-" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported archive to %s\n", path)
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	store, err := env.openArchive(archiveFlags.databaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer f.Close()

	imported, skipped, err := store.ImportJSON(cmd.Context(), f)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d case files, skipped %d\n", imported, skipped)
	return nil
}
