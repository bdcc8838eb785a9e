package helpers

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/watchdeck/watchdeck/cli/tui/models"
	"github.com/watchdeck/watchdeck/pkg/config"
)

// isRunningInCI checks if we're running in a CI/CD environment
func isRunningInCI() bool {
	if os.Getenv("CI") != "" {
		return true
	}
	ciVars := []string{
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"CIRCLECI",
		"BUILDKITE",
		"DRONE",
		"JENKINS_URL",
		"TF_BUILD", // Azure DevOps
		"CONTINUOUS_INTEGRATION",
	}
	for _, v := range ciVars {
		if os.Getenv(v) != "" {
			return true
		}
	}
	return false
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// isInteractiveEnvironment checks stdin and stdout for a usable terminal
func isInteractiveEnvironment() bool {
	if isRunningInCI() {
		return false
	}
	if !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
		return false
	}
	term := os.Getenv("TERM")
	return term != "dumb" && term != ""
}

// configFromCommand returns the configuration stored by the root command
func configFromCommand(cmd *cobra.Command) *config.Config {
	if cmd == nil || cmd.Context() == nil {
		return nil
	}
	cfg, ok := cmd.Context().Value(ConfigKey).(*config.Config)
	if !ok {
		return nil
	}
	return cfg
}

// ResolveMode picks the output mode from the configuration. An explicit
// mode wins, then a json event format; otherwise interactive terminals get
// the TUI mode.
func ResolveMode(cfg *config.Config, interactive bool) models.Mode {
	if cfg != nil {
		switch cfg.CLI.Mode {
		case ModeJSON:
			return models.ModeJSON
		case ModeTUI:
			return models.ModeTUI
		}
		if cfg.CLI.Format == string(OutputFormatJSON) {
			return models.ModeJSON
		}
	}
	if interactive {
		return models.ModeTUI
	}
	return models.ModeJSON
}

// DetectMode detects the output mode of cmd
func DetectMode(cmd *cobra.Command) models.Mode {
	return ResolveMode(configFromCommand(cmd), isInteractiveEnvironment())
}

// ShouldUseColor determines if colored output should be used
func ShouldUseColor(cmd *cobra.Command) bool {
	if cfg := configFromCommand(cmd); cfg != nil && cfg.CLI.NoColor {
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if !isTerminal(os.Stdout) || isRunningInCI() {
		return false
	}
	term := os.Getenv("TERM")
	return term != "dumb" && term != ""
}
