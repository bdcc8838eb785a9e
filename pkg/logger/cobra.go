package logger

import (
	"fmt"

	"github.com/spf13/cobra"
)

// FlagOptions reads the persistent log-level, log-json and log-source flags.
func FlagOptions(cmd *cobra.Command) (Options, error) {
	level, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return Options{}, fmt.Errorf("failed to get log-level flag: %w", err)
	}
	asJSON, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		return Options{}, fmt.Errorf("failed to get log-json flag: %w", err)
	}
	source, err := cmd.Flags().GetBool("log-source")
	if err != nil {
		return Options{}, fmt.Errorf("failed to get log-source flag: %w", err)
	}
	return Options{Level: ParseLevel(level), JSON: asJSON, Source: source}, nil
}
