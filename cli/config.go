package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/watchdeck/watchdeck/cli/helpers"
	"github.com/watchdeck/watchdeck/pkg/config"
	"github.com/watchdeck/watchdeck/pkg/logger"
)

// SetupGlobalConfig loads the configuration of the executing command and
// stores the logger, the manager and the resolved config in its context.
func SetupGlobalConfig(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logOpts, err := logger.FlagOptions(cmd)
	if err != nil {
		return err
	}
	logger.SetDefault(logger.New(logOpts))

	sources, err := configSources(cmd)
	if err != nil {
		return err
	}
	manager := config.NewManager(config.NewService())
	cfg, err := manager.Load(ctx, sources...)
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("log-level") {
		log := logger.Default()
		log.SetLevel(logger.ParseLevel(cfg.Runtime.LogLevel))
		manager.OnChange(func(cfg *config.Config) {
			log.SetLevel(logger.ParseLevel(cfg.Runtime.LogLevel))
		})
	}

	ctx = logger.ContextWithLogger(ctx, logger.Default())
	ctx = config.ContextWithManager(ctx, manager)
	ctx = context.WithValue(ctx, helpers.ConfigKey, cfg)
	cmd.SetContext(ctx)
	logger.FromContext(ctx).Debug("configuration loaded", "server", cfg.Server.URL)
	return nil
}

func closeGlobalConfig(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		return nil
	}
	if m, ok := ctx.Value(config.ManagerCtxKey).(*config.Manager); ok {
		return m.Close(ctx)
	}
	return nil
}

// configSources returns the dotenv, YAML and flag layers. The loader applies
// the environment between the YAML file and the flags.
func configSources(cmd *cobra.Command) ([]config.Source, error) {
	envFile, err := cmd.Flags().GetString("env-file")
	if err != nil {
		return nil, fmt.Errorf("failed to get env-file flag: %w", err)
	}
	cfgFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	sources := []config.Source{config.NewDotEnvProvider(envFile)}
	if cfgFile != "" {
		if !filepath.IsAbs(cfgFile) {
			cwd, err := os.Getwd()
			if err != nil {
				return nil, fmt.Errorf("failed to get current working directory: %w", err)
			}
			cfgFile = filepath.Join(cwd, cfgFile)
		}
		sources = append(sources, config.NewYAMLProvider(filepath.Clean(cfgFile)))
	}
	flags := make(map[string]any)
	extractCLIFlags(cmd.Flags(), flags)
	sources = append(sources, config.NewCLIProvider(flags))
	return sources, nil
}

// extractCLIFlags copies every changed flag that maps onto a configuration
// key, keeping its typed value.
func extractCLIFlags(fs *pflag.FlagSet, flags map[string]any) {
	known := config.FlagToPath()
	fs.Visit(func(f *pflag.Flag) {
		if _, ok := known[f.Name]; !ok {
			return
		}
		var (
			value any
			err   error
		)
		switch f.Value.Type() {
		case "string":
			value, err = fs.GetString(f.Name)
		case "bool":
			value, err = fs.GetBool(f.Name)
		case "int":
			value, err = fs.GetInt(f.Name)
		case "duration":
			value, err = fs.GetDuration(f.Name)
		default:
			value = f.Value.String()
		}
		if err == nil {
			flags[f.Name] = value
		}
	})
}
