package serve

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/watchdeck/watchdeck/engine/core"
	"github.com/watchdeck/watchdeck/engine/jobserver"
	"github.com/watchdeck/watchdeck/pkg/config"
	"github.com/watchdeck/watchdeck/pkg/logger"
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	defaults := config.Default()
	c := &cobra.Command{
		Use:   "serve",
		Short: "Run the reference job service",
		Long: `Run a local job service that answers /action, /settingup and /data_rcv
with simulated parse and export tasks.`,
		Args: cobra.NoArgs,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cobraCmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return Run(ctx, config.FromContext(ctx))
		},
	}
	c.Flags().String("addr", defaults.Dev.Addr, "Listen address")
	c.Flags().String("store", defaults.Dev.Store, "Session store (memory, redis)")
	c.Flags().String("redis-addr", defaults.Dev.RedisAddr, "Redis address of the redis store")
	c.Flags().Duration("task-duration", defaults.Dev.TaskDuration, "Duration of a simulated task")
	c.Flags().Int("task-steps", defaults.Dev.TaskSteps, "Steps of a simulated task")
	return c
}

// Run serves until ctx is canceled.
func Run(ctx context.Context, cfg *config.Config) error {
	log := logger.FromContext(ctx)
	store, err := jobserver.NewStore(ctx, jobserver.StoreConfig{
		Type:      jobserver.StoreType(cfg.Dev.Store),
		RedisAddr: cfg.Dev.RedisAddr,
		Prefix:    cfg.Dev.RedisPrefix,
	})
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("failed to close session store", "error", err)
		}
	}()

	srv, err := jobserver.New(ctx, jobserver.Config{
		Addr:         cfg.Dev.Addr,
		TaskDuration: cfg.Dev.TaskDuration,
		TaskSteps:    cfg.Dev.TaskSteps,
		Modules: map[core.ModuleName]string{
			core.ModuleParser:   cfg.Setup.ParserModule,
			core.ModuleExporter: cfg.Setup.ExporterModule,
		},
	}, store)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down job service", "store", cfg.Dev.Store)
		return nil
	})
	return g.Wait()
}
