package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Project-DevX/healthmate-sub000/internal/database"
	"github.com/Project-DevX/healthmate-sub000/internal/domain"
)

var migrateFlags struct {
	databaseURL string
	path        string
}

var migrateCmd = &cobra.Command{
	Use:       "migrate <up|down|status>",
	Short:     "Apply or inspect the PostgreSQL archive schema",
	Long:      "Migrate manages the archive schema. The database URL is read from\n--database-url or CCAS_DATABASE_URL.",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "status"},
	RunE:      runMigrate,
}

func init() {
	f := migrateCmd.Flags()
	f.StringVar(&migrateFlags.databaseURL, "database-url", "", "PostgreSQL URL (default: $CCAS_DATABASE_URL)")
	f.StringVar(&migrateFlags.path, "path", "", "Migrations directory (default: migrations)")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	databaseURL := migrateFlags.databaseURL
	if databaseURL == "" {
		databaseURL = os.Getenv("CCAS_DATABASE_URL")
	}
	if databaseURL == "" {
		return fmt.Errorf("%w: --database-url or CCAS_DATABASE_URL is required", domain.ErrConfiguration)
	}

	env, err := loadEnvironment()
	if err != nil {
		return err
	}

	runner, err := database.NewMigrationRunner(databaseURL, migrateFlags.path, env.logger)
	if err != nil {
		return err
	}
	defer runner.Close()

	switch args[0] {
	case "up":
		return runner.Up(cmd.Context())
	case "down":
		return runner.Down(cmd.Context())
	default:
		status, err := runner.Status()
		if err != nil {
			return err
		}
		if !status.Applied {
			fmt.Fprintln(cmd.OutOrStdout(), "No migrations applied")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Version %d (dirty: %t)\n", status.Version, status.Dirty)
		return nil
	}
}
