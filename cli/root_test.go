package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchdeck/watchdeck/cli/helpers"
	"github.com/watchdeck/watchdeck/pkg/config"
)

func TestSetupGlobalConfig(t *testing.T) {
	t.Run("Should load YAML and inject the configuration into the context", func(t *testing.T) {
		dir := t.TempDir()
		cfgPath := filepath.Join(dir, "watchdeck.yaml")
		yaml := "server:\n  url: http://jobs.local:9000\njobs:\n  parse_poll_interval: 5s\n"
		require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0o600))

		cmd := RootCmd()
		cmd.SetContext(t.Context())
		require.NoError(t, cmd.PersistentFlags().Set("env-file", ""))
		require.NoError(t, cmd.PersistentFlags().Set("config", cfgPath))

		require.NoError(t, SetupGlobalConfig(cmd, nil))
		t.Cleanup(func() { _ = closeGlobalConfig(cmd) })

		cfg := config.FromContext(cmd.Context())
		require.NotNil(t, cfg)
		assert.Equal(t, "http://jobs.local:9000", cfg.Server.URL)
		assert.Equal(t, 5*time.Second, cfg.Jobs.ParsePollInterval)
		assert.Equal(t, 3*time.Second, cfg.Jobs.ExportPollInterval)
		assert.Same(t, cfg, cmd.Context().Value(helpers.ConfigKey))
	})

	t.Run("Should let flags override YAML", func(t *testing.T) {
		dir := t.TempDir()
		cfgPath := filepath.Join(dir, "watchdeck.yaml")
		require.NoError(t, os.WriteFile(cfgPath, []byte("server:\n  url: http://jobs.local:9000\n"), 0o600))

		cmd := RootCmd()
		cmd.SetContext(t.Context())
		require.NoError(t, cmd.PersistentFlags().Set("env-file", ""))
		require.NoError(t, cmd.PersistentFlags().Set("config", cfgPath))
		require.NoError(t, cmd.PersistentFlags().Set("server-url", "http://override:8080"))
		require.NoError(t, cmd.PersistentFlags().Set("username-parser", "alice"))

		require.NoError(t, SetupGlobalConfig(cmd, nil))
		t.Cleanup(func() { _ = closeGlobalConfig(cmd) })

		cfg := config.FromContext(cmd.Context())
		assert.Equal(t, "http://override:8080", cfg.Server.URL)
		assert.Equal(t, "alice", cfg.Username("parser"))
	})

	t.Run("Should reject an invalid configuration", func(t *testing.T) {
		cmd := RootCmd()
		cmd.SetContext(t.Context())
		require.NoError(t, cmd.PersistentFlags().Set("env-file", ""))
		require.NoError(t, cmd.PersistentFlags().Set("config", ""))
		require.NoError(t, cmd.PersistentFlags().Set("mode", "gui"))

		assert.Error(t, SetupGlobalConfig(cmd, nil))
	})
}

func TestExtractCLIFlags(t *testing.T) {
	t.Run("Should copy only changed configuration flags with their types", func(t *testing.T) {
		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		fs.String("server-url", "http://localhost:8080", "")
		fs.Duration("timeout", time.Second, "")
		fs.Bool("no-color", false, "")
		fs.Int("task-steps", 10, "")
		fs.String("unrelated", "", "")
		require.NoError(t, fs.Parse([]string{
			"--timeout=2s", "--no-color", "--task-steps=3", "--unrelated=x",
		}))

		flags := make(map[string]any)
		extractCLIFlags(fs, flags)

		assert.Equal(t, map[string]any{
			"timeout":    2 * time.Second,
			"no-color":   true,
			"task-steps": 3,
		}, flags)
	})
}
