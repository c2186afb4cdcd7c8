package main

import (
	"github.com/spf13/cobra"

	"github.com/Project-DevX/healthmate-sub000/internal/mcp"
)

var serveFlags struct {
	records     string
	databaseURL string
}

var serveMCPCmd = &cobra.Command{
	Use:   "serve-mcp",
	Short: "Serve assessments as MCP tools over stdio",
	Long: `Serve-mcp speaks the Model Context Protocol on stdin/stdout so an assistant
can run assessments, read earlier case files and list a patient's history.
Logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: runServeMCP,
}

func init() {
	f := serveMCPCmd.Flags()
	f.StringVar(&serveFlags.records, "records", "", "JSON record file keyed by patient id")
	f.StringVar(&serveFlags.databaseURL, "database-url", "", "PostgreSQL archive URL (default: local SQLite archive)")
}

func runServeMCP(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	env, err := loadEnvironment()
	if err != nil {
		return err
	}

	records, closeRecords, err := env.openRecordSource(ctx, serveFlags.records)
	if err != nil {
		return err
	}
	defer closeRecords()

	store, err := env.openArchive(serveFlags.databaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	svc, err := env.newAssessmentService(records, store)
	if err != nil {
		return err
	}

	env.logger.WithField("archive", env.lite.DataDir).Info("Serving MCP tools on stdio")
	return mcp.NewServer(env.logger, svc).Run(ctx)
}
