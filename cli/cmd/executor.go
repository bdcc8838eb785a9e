package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/watchdeck/watchdeck/cli/helpers"
	"github.com/watchdeck/watchdeck/cli/tui/models"
	"github.com/watchdeck/watchdeck/engine/action"
	"github.com/watchdeck/watchdeck/engine/job"
	"github.com/watchdeck/watchdeck/pkg/config"
	"github.com/watchdeck/watchdeck/pkg/logger"
)

// CommandExecutor handles common setup and execution patterns for CLI commands:
// - Client creation
// - Mode detection
// - Context cancellation
// - Error handling
type CommandExecutor struct {
	mode   models.Mode
	color  bool
	client *action.Client
}

// HandlerFunc defines the signature for command handlers.
type HandlerFunc func(ctx context.Context, cmd *cobra.Command, executor *CommandExecutor, args []string) error

// ModeHandlers contains handlers for different execution modes.
type ModeHandlers struct {
	JSON HandlerFunc
	TUI  HandlerFunc
}

// ExecutorOptions allows customization of the command executor
type ExecutorOptions struct {
	RequireClient bool
}

// NewCommandExecutor creates a new command executor with all necessary setup.
func NewCommandExecutor(cmd *cobra.Command, opts ExecutorOptions) (*CommandExecutor, error) {
	ctx := cmd.Context()
	log := logger.FromContext(ctx)
	mode := helpers.DetectMode(cmd)
	log.Debug("detected execution mode", "mode", mode)
	executor := &CommandExecutor{
		mode:  mode,
		color: helpers.ShouldUseColor(cmd),
	}
	if opts.RequireClient {
		cfg := config.FromContext(ctx)
		if cfg == nil {
			return nil, fmt.Errorf("configuration manager not found in context")
		}
		client, err := action.NewClient(cfg.Server.URL,
			action.WithTimeout(cfg.Server.Timeout),
			action.WithDebug(cfg.Runtime.LogLevel == string(logger.DebugLevel)),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create action client: %w", err)
		}
		executor.client = client
	}
	return executor, nil
}

// Execute runs the appropriate handler based on the detected mode.
func (e *CommandExecutor) Execute(ctx context.Context, cmd *cobra.Command, handlers ModeHandlers, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	switch e.mode {
	case models.ModeJSON:
		if handlers.JSON == nil {
			return fmt.Errorf("JSON mode handler not implemented")
		}
		return handlers.JSON(ctx, cmd, e, args)
	case models.ModeTUI:
		if handlers.TUI == nil {
			return fmt.Errorf("TUI mode handler not implemented")
		}
		return handlers.TUI(ctx, cmd, e, args)
	default:
		return fmt.Errorf("unsupported mode: %s", e.mode)
	}
}

// Client returns the action client, or nil when the command did not ask for one.
func (e *CommandExecutor) Client() *action.Client {
	return e.client
}

func (e *CommandExecutor) Mode() models.Mode {
	return e.mode
}

// UseColor reports whether styled output is allowed.
func (e *CommandExecutor) UseColor() bool {
	return e.color
}

// ExecuteCommand is a convenience function that combines executor creation and execution.
func ExecuteCommand(cmd *cobra.Command, opts ExecutorOptions, handlers ModeHandlers, args []string) error {
	executor, err := NewCommandExecutor(cmd, opts)
	if err != nil {
		return HandleCommonErrors(cmd.ErrOrStderr(), err, helpers.DetectMode(cmd))
	}
	return HandleCommonErrors(cmd.ErrOrStderr(), executor.Execute(cmd.Context(), cmd, handlers, args), executor.Mode())
}

// HandleCommonErrors writes err to w once, categorized when it is a known
// failure, and returns it for the exit status.
func HandleCommonErrors(w io.Writer, err error, mode models.Mode) error {
	if err == nil {
		return nil
	}
	if cliErr := categorizeError(err); cliErr != nil {
		err = cliErr
	}
	helpers.OutputError(w, err, mode)
	return err
}

// categorizeError converts errors to structured CLI errors
func categorizeError(err error) *helpers.CliError {
	switch {
	case errors.Is(err, context.Canceled):
		return helpers.NewCliError("OPERATION_CANCELED", "Operation was canceled by user").WithCause(err)
	case errors.Is(err, context.DeadlineExceeded):
		return helpers.NewCliError("OPERATION_TIMEOUT", "Operation timed out").WithCause(err)
	case helpers.IsAuthError(err):
		return helpers.NewCliError("AUTH_ERROR", "User not authorized", err.Error()).WithCause(err)
	case errors.Is(err, helpers.ErrRejected):
		return helpers.NewCliError("JOB_REJECTED", "Job did not complete", err.Error()).WithCause(err)
	case errors.Is(err, job.ErrBusy):
		return helpers.NewCliError("JOB_BUSY", "Job is busy", err.Error()).WithCause(err)
	case helpers.IsNetworkError(err):
		return helpers.NewCliError("NETWORK_ERROR", "Network connection failed", err.Error()).WithCause(err)
	default:
		return nil
	}
}
