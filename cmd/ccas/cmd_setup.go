package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Project-DevX/healthmate-sub000/internal/config"
	"github.com/Project-DevX/healthmate-sub000/internal/setup"
)

var setupFlags struct {
	configPath  string
	binary      string
	records     string
	dataDir     string
	databaseURL string
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Register ccas with a desktop MCP client",
}

var setupDesktopCmd = &cobra.Command{
	Use:   "desktop",
	Short: "Add the ccas serve-mcp entry to the Claude Desktop configuration",
	Args:  cobra.NoArgs,
	RunE:  runSetupDesktop,
}

var setupStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether ccas is registered and runnable",
	Args:  cobra.NoArgs,
	RunE:  runSetupStatus,
}

func init() {
	pf := setupCmd.PersistentFlags()
	pf.StringVar(&setupFlags.configPath, "config", "", "Client configuration file (default: platform Claude Desktop path)")

	f := setupDesktopCmd.Flags()
	f.StringVar(&setupFlags.binary, "binary", "", "ccas binary the client starts (default: this executable)")
	f.StringVar(&setupFlags.records, "records", "", "JSON record file passed to serve-mcp")
	f.StringVar(&setupFlags.dataDir, "data-dir", "", "Data directory for the archive and exports")
	f.StringVar(&setupFlags.databaseURL, "database-url", "", "PostgreSQL archive URL passed to serve-mcp")

	setupCmd.AddCommand(setupDesktopCmd, setupStatusCmd)
}

func clientConfigPath() (string, error) {
	if setupFlags.configPath != "" {
		return setupFlags.configPath, nil
	}
	return setup.DefaultConfigPath()
}

func runSetupDesktop(cmd *cobra.Command, _ []string) error {
	path, err := clientConfigPath()
	if err != nil {
		return err
	}

	lite := config.LoadLiteConfig()
	opts := setup.Options{
		BinaryPath:  setupFlags.binary,
		DataDir:     setupFlags.dataDir,
		RecordsPath: setupFlags.records,
		MongoURI:    lite.MongoURI,
		DatabaseURL: setupFlags.databaseURL,
	}
	if opts.BinaryPath == "" {
		if opts.BinaryPath, err = os.Executable(); err != nil {
			return fmt.Errorf("failed to locate ccas binary: %w", err)
		}
	}
	if opts.RecordsPath != "" {
		if opts.RecordsPath, err = filepath.Abs(opts.RecordsPath); err != nil {
			return err
		}
	}
	if opts.DataDir == "" {
		opts.DataDir = lite.DataDir
	}

	if err := setup.Register(path, opts); err != nil {
		return fmt.Errorf("failed to configure client: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Registered %s in %s\n", setup.ServerName, path)
	fmt.Fprintln(out, "Restart the client to load the new configuration.")
	return nil
}

func runSetupStatus(cmd *cobra.Command, _ []string) error {
	path, err := clientConfigPath()
	if err != nil {
		return err
	}
	status, err := setup.GetStatus(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config path: %s\n", status.ConfigPath)
	if status.Configured {
		fmt.Fprintf(out, "Binary: %s\n", status.BinaryPath)
		if status.DataDir != "" {
			fmt.Fprintf(out, "Data directory: %s\n", status.DataDir)
		}
	}
	for _, issue := range status.Issues {
		fmt.Fprintf(out, "Issue: %s\n", issue)
	}
	return nil
}
