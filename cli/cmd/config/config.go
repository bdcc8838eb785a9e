package config

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/watchdeck/watchdeck/cli/cmd"
	"github.com/watchdeck/watchdeck/engine/core"
	"github.com/watchdeck/watchdeck/pkg/config"
	"github.com/watchdeck/watchdeck/pkg/logger"
)

// NewConfigCommand creates the config command using the unified command pattern
func NewConfigCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "config",
		Short: "Configuration management and diagnostics",
	}
	c.AddCommand(
		NewConfigShowCommand(),
		NewConfigValidateCommand(),
	)
	return c
}

// NewConfigShowCommand creates the config show subcommand
func NewConfigShowCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration values",
		Long: `Display the effective configuration in JSON, YAML or table format.
Sensitive values are redacted.`,
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(cobraCmd, cmd.ExecutorOptions{}, cmd.ModeHandlers{
				JSON: handleConfigShow,
				TUI:  handleConfigShow,
			}, args)
		},
	}
	c.Flags().StringP("output", "o", "table", "Output format (json, yaml, table)")
	c.Flags().BoolP("sources", "s", false, "Show which source supplied each value")
	return c
}

func handleConfigShow(ctx context.Context, cobraCmd *cobra.Command, _ *cmd.CommandExecutor, _ []string) error {
	log := logger.FromContext(ctx)
	log.Debug("executing config show command")

	format, err := cobraCmd.Flags().GetString("output")
	if err != nil {
		return fmt.Errorf("failed to get output flag: %w", err)
	}
	showSources, err := cobraCmd.Flags().GetBool("sources")
	if err != nil {
		return fmt.Errorf("failed to get sources flag: %w", err)
	}
	manager := config.ManagerFromContext(ctx)
	cfg := manager.Get()
	var sources map[string]config.SourceType
	if showSources {
		sources = sourcesOf(manager.Service, flattenConfig(cfg))
	}
	return formatConfigOutput(cobraCmd.OutOrStdout(), cfg, sources, format, showSources)
}

// NewConfigValidateCommand creates the config validate subcommand
func NewConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the effective configuration",
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(cobraCmd, cmd.ExecutorOptions{}, cmd.ModeHandlers{
				JSON: handleConfigValidateJSON,
				TUI:  handleConfigValidateTUI,
			}, args)
		},
	}
}

func handleConfigValidateJSON(ctx context.Context, cobraCmd *cobra.Command, _ *cmd.CommandExecutor, _ []string) error {
	manager := config.ManagerFromContext(ctx)
	result := map[string]any{"valid": true, "message": "Configuration is valid"}
	validationErr := manager.Service.Validate(manager.Get())
	if validationErr != nil {
		result = map[string]any{"valid": false, "message": validationErr.Error()}
	}
	encoder := json.NewEncoder(cobraCmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		return err
	}
	return validationErr
}

func handleConfigValidateTUI(ctx context.Context, cobraCmd *cobra.Command, _ *cmd.CommandExecutor, _ []string) error {
	manager := config.ManagerFromContext(ctx)
	if err := manager.Service.Validate(manager.Get()); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	fmt.Fprintln(cobraCmd.OutOrStdout(), "✅ Configuration is valid")
	return nil
}

// formatConfigOutput formats and outputs configuration based on requested format
func formatConfigOutput(
	w io.Writer,
	cfg *config.Config,
	sources map[string]config.SourceType,
	format string,
	showSources bool,
) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(document(cfg, sources, showSources))
	case "yaml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		return encoder.Encode(document(cfg, sources, showSources))
	case "table":
		return outputTable(w, cfg, sources, showSources)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func document(cfg *config.Config, sources map[string]config.SourceType, showSources bool) map[string]any {
	output := map[string]any{"config": flattenConfig(cfg)}
	if showSources && len(sources) > 0 {
		output["sources"] = sources
	}
	return output
}

func outputTable(w io.Writer, cfg *config.Config, sources map[string]config.SourceType, showSources bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	flatMap := flattenConfig(cfg)
	keys := make([]string, 0, len(flatMap))
	for k := range flatMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if showSources {
		fmt.Fprintln(tw, "KEY\tVALUE\tSOURCE")
		fmt.Fprintln(tw, "---\t-----\t------")
	} else {
		fmt.Fprintln(tw, "KEY\tVALUE")
		fmt.Fprintln(tw, "---\t-----")
	}
	for _, key := range keys {
		if showSources {
			source := sources[key]
			if source == "" {
				source = config.SourceDefault
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", key, flatMap[key], source)
		} else {
			fmt.Fprintf(tw, "%s\t%s\n", key, flatMap[key])
		}
	}
	return tw.Flush()
}

func sourcesOf(service config.Service, flat map[string]string) map[string]config.SourceType {
	sources := make(map[string]config.SourceType, len(flat))
	for key := range flat {
		sources[key] = service.GetSource(key)
	}
	return sources
}

// flattenConfig converts nested config to a flat, redacted key-value map
func flattenConfig(cfg *config.Config) map[string]string {
	return map[string]string{
		"server.url":                cfg.Server.URL,
		"server.timeout":            cfg.Server.Timeout.String(),
		"jobs.parse_poll_interval":  cfg.Jobs.ParsePollInterval.String(),
		"jobs.export_poll_interval": cfg.Jobs.ExportPollInterval.String(),
		"cli.username_parser":       cfg.CLI.UsernameParser,
		"cli.username_exporter":     cfg.CLI.UsernameExporter,
		"cli.mode":                  cfg.CLI.Mode,
		"cli.format":                cfg.CLI.Format,
		"cli.no_color":              strconv.FormatBool(cfg.CLI.NoColor),
		"setup.parser_module":       cfg.Setup.ParserModule,
		"setup.exporter_module":     cfg.Setup.ExporterModule,
		"setup.cookies":             cfg.Setup.Cookies.String(),
		"dev.addr":                  cfg.Dev.Addr,
		"dev.store":                 cfg.Dev.Store,
		"dev.redis_addr":            core.RedactString(cfg.Dev.RedisAddr),
		"dev.redis_prefix":          cfg.Dev.RedisPrefix,
		"dev.task_duration":         cfg.Dev.TaskDuration.String(),
		"dev.task_steps":            strconv.Itoa(cfg.Dev.TaskSteps),
		"runtime.log_level":         cfg.Runtime.LogLevel,
	}
}
