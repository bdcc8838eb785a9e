package cli

import (
	"github.com/spf13/cobra"

	configcmd "github.com/watchdeck/watchdeck/cli/cmd/config"
	"github.com/watchdeck/watchdeck/cli/cmd/dashboard"
	"github.com/watchdeck/watchdeck/cli/cmd/jobs"
	"github.com/watchdeck/watchdeck/cli/cmd/serve"
	"github.com/watchdeck/watchdeck/cli/cmd/setup"
	"github.com/watchdeck/watchdeck/pkg/config"
	"github.com/watchdeck/watchdeck/pkg/version"
)

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "watchdeck",
		Short: "Drive parse and export jobs of the watchdeck job service",
		Long: `watchdeck starts, watches and stops the long-running parse and export
jobs of a remote job service, and can run a local reference service.`,
		Version:           version.Get().String(),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: SetupGlobalConfig,
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return closeGlobalConfig(cmd)
		},
	}

	addGlobalFlags(root)
	root.AddCommand(
		dashboard.NewDashboardCommand(),
		jobs.NewJobCommand(),
		setup.NewSetupCommand(),
		serve.NewServeCommand(),
		configcmd.NewConfigCommand(),
	)

	return root
}

func addGlobalFlags(root *cobra.Command) {
	defaults := config.Default()
	pf := root.PersistentFlags()
	pf.String("config", "watchdeck.yaml", "Path to the config file")
	pf.String("env-file", ".env", "Path to the environment variables file")
	pf.String("server-url", defaults.Server.URL, "Base URL of the job service")
	pf.Duration("timeout", defaults.Server.Timeout, "Timeout of a single request")
	pf.Duration("parse-poll-interval", defaults.Jobs.ParsePollInterval, "Poll interval of the parse job")
	pf.Duration("export-poll-interval", defaults.Jobs.ExportPollInterval, "Poll interval of the export job")
	pf.String("username-parser", "", "Authorized user of the parser module")
	pf.String("username-exporter", "", "Authorized user of the exporter module")
	pf.String("mode", defaults.CLI.Mode, "Output mode (auto, tui, json)")
	pf.String("format", defaults.CLI.Format, "Event format of non-interactive commands (text, json)")
	pf.Bool("no-color", false, "Disable colored output")
	pf.String("log-level", defaults.Runtime.LogLevel, "Log level (debug, info, warn, error, disabled)")
	pf.Bool("log-json", false, "Output logs in JSON format")
	pf.Bool("log-source", false, "Include source code location in logs")
}
