package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/watchdeck/watchdeck/cli/cmd"
	"github.com/watchdeck/watchdeck/cli/cmd/setup"
	"github.com/watchdeck/watchdeck/engine/action"
	"github.com/watchdeck/watchdeck/engine/core"
	"github.com/watchdeck/watchdeck/engine/job"
	"github.com/watchdeck/watchdeck/engine/tabctx"
	"github.com/watchdeck/watchdeck/engine/uisync"
	"github.com/watchdeck/watchdeck/pkg/config"
	"github.com/watchdeck/watchdeck/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// NewDashboardCommand creates the dashboard command
func NewDashboardCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Interactive dashboard for the parser and the exporter",
		Long: `Open the interactive dashboard. Each pill drives one job:
enter starts or stops it, tab switches pills while no job runs,
left and right pick the watch list, p toggles the progress panel and
s authorizes the module of the active pill.`,
		Args: cobra.NoArgs,
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(cobraCmd, cmd.ExecutorOptions{RequireClient: true}, cmd.ModeHandlers{
				JSON: func(_ context.Context, _ *cobra.Command, _ *cmd.CommandExecutor, _ []string) error {
					return errors.New("the dashboard needs an interactive terminal, use the job command instead")
				},
				TUI: runDashboard,
			}, args)
		},
	}
}

func runDashboard(ctx context.Context, cobraCmd *cobra.Command, executor *cmd.CommandExecutor, _ []string) error {
	cfg := config.FromContext(ctx)
	replay := &logger.Replay{}
	outer := logger.FromContext(ctx)
	defer func() {
		if err := replay.Flush(cobraCmd.ErrOrStderr()); err != nil {
			outer.Warn("failed to replay dashboard logs", "error", err)
		}
	}()
	// the program owns the terminal until it exits
	log := logger.New(logger.Options{Level: logger.ParseLevel(cfg.Runtime.LogLevel), Output: replay})
	ctx = logger.ContextWithLogger(ctx, log)
	client := executor.Client()

	descs := make([]core.Descriptor, 0, len(core.Jobs()))
	for _, name := range core.Jobs() {
		desc, err := core.NewDescriptor(name, cfg.PollInterval(name.String()))
		if err != nil {
			return err
		}
		descs = append(descs, desc)
	}
	state := tabctx.NewState(tabctx.PillParser)
	resolver := tabctx.NewResolver(state, descs...)
	users := NewUsers(cfg)
	view := &relay{}

	controllers := make([]*job.Controller, 0, len(descs))
	clickers := make(map[core.JobName]Clicker, len(descs))
	for _, desc := range descs {
		ctrl := job.NewController(desc, client, resolver)
		controllers = append(controllers, ctrl)
		clickers[desc.Name] = uisync.New(ctrl, view, users.Username)
	}
	defer shutdown(ctx, controllers)

	authorize := func(ctx context.Context, module core.ModuleName) (setup.Result, error) {
		req := setup.Request(cfg, module, "", "")
		res, err := setup.Authorize(ctx, client, req)
		if err == nil && res.Status == action.StatusDone {
			name := cfg.Username(module.String())
			if name == "" {
				name = req.SelectedModule + "_user"
			}
			users.Authorize(module, name)
			log.Info("module authorized", "module", module, "user", name)
		}
		return res, err
	}

	m := NewModel(ctx, state, descs, clickers, authorize)
	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithOutput(cobraCmd.OutOrStdout()),
	)
	view.bind(p)
	_, runErr := p.Run()
	view.bind(nil)

	bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.Timeout)
	defer cancel()
	if err := client.Beacon(bctx, resolver.Selection()); err != nil {
		log.Warn("failed to flush selection", "error", err)
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("dashboard failed: %w", runErr)
	}
	return nil
}

// shutdown stops every running job before the process exits.
func shutdown(ctx context.Context, controllers []*job.Controller) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	for _, ctrl := range controllers {
		if err := ctrl.Shutdown(sctx); err != nil {
			logger.FromContext(ctx).Warn("job shutdown failed", "job", ctrl.Descriptor().Name, "error", err)
		}
	}
}
