package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/watchdeck/watchdeck/cli/cmd"
	"github.com/watchdeck/watchdeck/cli/helpers"
	"github.com/watchdeck/watchdeck/engine/action"
	"github.com/watchdeck/watchdeck/engine/core"
	"github.com/watchdeck/watchdeck/engine/job"
	"github.com/watchdeck/watchdeck/engine/notify"
	"github.com/watchdeck/watchdeck/engine/tabctx"
	"github.com/watchdeck/watchdeck/engine/uisync"
	"github.com/watchdeck/watchdeck/pkg/config"
	"github.com/watchdeck/watchdeck/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// NewJobCommand creates the job command
func NewJobCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "job",
		Short: "Run or stop a parse or export job",
	}
	c.AddCommand(newRunCommand(), newStopCommand())
	return c
}

func newRunCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "run <parse|export>",
		Short: "Start a job and follow it until it finishes",
		Long: `Start a job and print every update until it finishes.
An interrupt stops the job. The command fails when the job does not complete.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: jobNames(),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(cobraCmd, cmd.ExecutorOptions{RequireClient: true}, cmd.ModeHandlers{
				JSON: func(ctx context.Context, c *cobra.Command, e *cmd.CommandExecutor, args []string) error {
					return executeRun(ctx, c, e, args, true)
				},
				TUI: func(ctx context.Context, c *cobra.Command, e *cmd.CommandExecutor, args []string) error {
					return executeRun(ctx, c, e, args, false)
				},
			}, args)
		},
	}
	c.Flags().String("list", "", "Watch list sent as the selected sub-tab")
	c.Flags().Bool("expanded", false, "Ask for the expanded progress panel")
	return c
}

func newStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "stop <parse|export>",
		Short:     "Send a single stop request for a job",
		Args:      cobra.ExactArgs(1),
		ValidArgs: jobNames(),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(cobraCmd, cmd.ExecutorOptions{RequireClient: true}, cmd.ModeHandlers{
				JSON: func(ctx context.Context, c *cobra.Command, e *cmd.CommandExecutor, args []string) error {
					return executeStop(ctx, c, e, args, true)
				},
				TUI: func(ctx context.Context, c *cobra.Command, e *cmd.CommandExecutor, args []string) error {
					return executeStop(ctx, c, e, args, false)
				},
			}, args)
		},
	}
}

func jobNames() []string {
	names := make([]string, 0, len(core.Jobs()))
	for _, j := range core.Jobs() {
		names = append(names, j.String())
	}
	return names
}

func executeRun(ctx context.Context, cobraCmd *cobra.Command, executor *cmd.CommandExecutor, args []string, asJSON bool) error {
	desc, err := descriptorFor(ctx, args[0])
	if err != nil {
		return err
	}
	state, err := hintState(cobraCmd, desc)
	if err != nil {
		return err
	}
	cfg := config.FromContext(ctx)
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupts)

	return runJob(ctx, runOptions{
		desc:   desc,
		sender: executor.Client(),
		state:  state,
		username: func(m core.ModuleName) string {
			return cfg.Username(m.String())
		},
		out:        cobraCmd.OutOrStdout(),
		asJSON:     asJSON,
		color:      executor.UseColor(),
		interrupts: interrupts,
	})
}

func descriptorFor(ctx context.Context, arg string) (core.Descriptor, error) {
	name, err := core.ParseJobName(arg)
	if err != nil {
		return core.Descriptor{}, err
	}
	return core.NewDescriptor(name, config.FromContext(ctx).PollInterval(name.String()))
}

// hintState builds the view hints a job run reports from the command flags.
func hintState(cobraCmd *cobra.Command, desc core.Descriptor) (*tabctx.State, error) {
	list, err := cobraCmd.Flags().GetString("list")
	if err != nil {
		return nil, fmt.Errorf("failed to get list flag: %w", err)
	}
	expanded, err := cobraCmd.Flags().GetBool("expanded")
	if err != nil {
		return nil, fmt.Errorf("failed to get expanded flag: %w", err)
	}
	state := tabctx.NewState(desc.PillID)
	if list != "" {
		if !core.IsWatchList(list) {
			return nil, fmt.Errorf("unknown watch list %q", list)
		}
		state.SelectDropdownItem(desc.MenuID, list)
	}
	state.SetPanelExpanded(desc.ProgressPanelID, expanded)
	return state, nil
}

type runOptions struct {
	desc       core.Descriptor
	sender     action.Sender
	state      *tabctx.State
	username   uisync.UsernameFunc
	out        io.Writer
	asJSON     bool
	color      bool
	interrupts <-chan os.Signal
}

// runJob clicks the action button once, then follows the run until its
// terminal outcome. Each interrupt clicks again, which stops the job.
func runJob(ctx context.Context, opts runOptions) error {
	log := logger.FromContext(ctx).With("job", opts.desc.Name)
	ctrl := job.NewController(opts.desc, opts.sender, tabctx.NewResolver(opts.state, opts.desc))
	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := ctrl.Shutdown(sctx); err != nil {
			log.Warn("job shutdown failed", "error", err)
		}
	}()
	view := newStreamView(opts.out, opts.desc.Name, opts.asJSON, opts.color)
	button := uisync.New(ctrl, view, opts.username)

	if err := button.Click(ctx); err != nil {
		if n := ctrl.Notifier(); n != nil {
			if o, ok := n.Result(); ok {
				view.Outcome(o)
				return fmt.Errorf("%w: %w", helpers.ErrRejected, err)
			}
		}
		return err
	}

	n := ctrl.Notifier()
	for {
		select {
		case <-n.Done():
			o, _ := n.Result()
			view.Outcome(o)
			if o.Kind() == notify.KindRejected {
				return fmt.Errorf("%w: %s", helpers.ErrRejected, opts.desc.Name)
			}
			return nil
		case <-opts.interrupts:
			log.Info("interrupt received, stopping job")
			if err := button.Click(ctx); err != nil && !errors.Is(err, job.ErrBusy) {
				log.Warn("stop request failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func executeStop(ctx context.Context, cobraCmd *cobra.Command, executor *cmd.CommandExecutor, args []string, asJSON bool) error {
	desc, err := descriptorFor(ctx, args[0])
	if err != nil {
		return err
	}
	resp, err := executor.Client().Send(ctx, desc.Name, action.VerbStop, action.Args{})
	if err != nil {
		logger.FromContext(ctx).Debug("stop request failed", "job", desc.Name, "error", err)
	}
	r := action.Normalize(resp, err)
	view := newStreamView(cobraCmd.OutOrStdout(), desc.Name, asJSON, executor.UseColor())
	switch {
	case r.Msg != "":
		view.ShowAlert(uisync.FragmentAlert(r.Msg))
	case action.Failed(r):
		view.ShowAlert(uisync.NoticeAlert(uisync.LevelFail, "Fail."))
	default:
		view.ShowAlert(uisync.NoticeAlert(uisync.LevelInfo, "Stopped."))
	}
	view.FillStatusbar(desc.Name, r.StatusbarTmpl)
	if err != nil {
		return err
	}
	if action.Failed(r) {
		return fmt.Errorf("%w: %s stop answered %q", helpers.ErrRejected, desc.Name, r.Status)
	}
	return nil
}
