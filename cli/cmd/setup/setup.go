package setup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/watchdeck/watchdeck/cli/cmd"
	"github.com/watchdeck/watchdeck/cli/helpers"
	"github.com/watchdeck/watchdeck/cli/tui/components"
	"github.com/watchdeck/watchdeck/engine/action"
	"github.com/watchdeck/watchdeck/engine/core"
	"github.com/watchdeck/watchdeck/pkg/config"
	"github.com/watchdeck/watchdeck/pkg/logger"
)

// MsgRequestFailed is shown when /settingup could not be reached.
const MsgRequestFailed = "Failed to send a request."

// NewSetupCommand creates the setup command
func NewSetupCommand() *cobra.Command {
	c := &cobra.Command{
		Use:       "setup <parser|exporter>",
		Short:     "Authorize the parser or the exporter against its site",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{core.ModuleParser.String(), core.ModuleExporter.String()},
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(cobraCmd, cmd.ExecutorOptions{RequireClient: true}, cmd.ModeHandlers{
				JSON: func(ctx context.Context, c *cobra.Command, e *cmd.CommandExecutor, args []string) error {
					return executeSetup(ctx, c, e, args, true)
				},
				TUI: func(ctx context.Context, c *cobra.Command, e *cmd.CommandExecutor, args []string) error {
					return executeSetup(ctx, c, e, args, false)
				},
			}, args)
		},
	}
	c.Flags().String("site", "", "Site module to use instead of the configured one")
	c.Flags().String("cookies", "", "Cookie header of the site session")
	return c
}

// Request builds the /settingup request for module from the configuration.
// Non-empty site and cookies override the configured values.
func Request(cfg *config.Config, module core.ModuleName, site, cookies string) action.SetupRequest {
	req := action.SetupRequest{Module: module, Cookies: cfg.Setup.Cookies.Value()}
	switch module {
	case core.ModuleParser:
		req.SelectedModule = cfg.Setup.ParserModule
	case core.ModuleExporter:
		req.SelectedModule = cfg.Setup.ExporterModule
	}
	if site != "" {
		req.SelectedModule = site
	}
	if cookies != "" {
		req.Cookies = cookies
	}
	return req
}

// Result is the outcome of a setup call as shown to the user.
type Result struct {
	Module string `json:"module"`
	Status string `json:"status"`
	Level  string `json:"level,omitempty"`
	Text   string `json:"text"`
}

// Authorizer is the part of action.Client used by setup.
type Authorizer interface {
	Setup(ctx context.Context, req action.SetupRequest) (*action.Response, error)
}

// Authorize calls /settingup. A request that could not be sent yields the
// fail status with MsgRequestFailed together with the error.
func Authorize(ctx context.Context, sender Authorizer, req action.SetupRequest) (Result, error) {
	res := Result{Module: req.Module.String()}
	resp, err := sender.Setup(ctx, req)
	if err != nil {
		logger.FromContext(ctx).Debug("setup request failed", "module", req.Module, "error", err)
		res.Status = action.StatusFail
		res.Level = "fail"
		res.Text = MsgRequestFailed
		return res, err
	}
	r := action.Normalize(resp, nil)
	line := components.FlattenAlert(r.Msg)
	res.Status = r.Status
	res.Level = line.Level
	res.Text = line.Text
	if res.Text == "" && action.Failed(r) {
		res.Level = "fail"
		res.Text = "Fail."
	}
	return res, nil
}

func executeSetup(ctx context.Context, cobraCmd *cobra.Command, executor *cmd.CommandExecutor, args []string, asJSON bool) error {
	module, err := core.ParseModuleName(args[0])
	if err != nil {
		return err
	}
	site, err := cobraCmd.Flags().GetString("site")
	if err != nil {
		return fmt.Errorf("failed to get site flag: %w", err)
	}
	cookies, err := cobraCmd.Flags().GetString("cookies")
	if err != nil {
		return fmt.Errorf("failed to get cookies flag: %w", err)
	}
	req := Request(config.FromContext(ctx), module, site, cookies)
	res, sendErr := Authorize(ctx, executor.Client(), req)
	if err := printResult(cobraCmd.OutOrStdout(), res, asJSON, executor.UseColor()); err != nil {
		return err
	}
	if sendErr != nil {
		return sendErr
	}
	if res.Status != action.StatusDone {
		return fmt.Errorf("%w: setup of %s answered %q", helpers.ErrAuth, module, res.Status)
	}
	return nil
}

func printResult(w io.Writer, res Result, asJSON, color bool) error {
	if asJSON {
		return json.NewEncoder(w).Encode(res)
	}
	level := res.Level
	if level == "" {
		level = "info"
	}
	tag := "[" + level + "]"
	if color {
		tag = components.LevelStyle(level).Render(tag)
	}
	_, err := fmt.Fprintf(w, "%s %s\n", tag, res.Text)
	return err
}
