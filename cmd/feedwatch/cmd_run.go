package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HerbHall/feedwatch/internal/event"
	"github.com/HerbHall/feedwatch/internal/monitor"
	"github.com/HerbHall/feedwatch/internal/notify"
	"github.com/HerbHall/feedwatch/internal/server"
	"github.com/HerbHall/feedwatch/internal/source"
	"github.com/HerbHall/feedwatch/internal/spike"
	"github.com/HerbHall/feedwatch/internal/version"
)

func runCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Poll the listings and notify on listener spikes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMonitor(cmd.Context(), *configPath)
		},
	}
}

func runMonitor(ctx context.Context, configPath string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := setup(configPath)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("feedwatch starting", zap.String("version", version.Short()))

	bus := event.NewBus(logger.Named("event"))

	notifiers := notify.BuildNotifiers(cfg.Notify, logger.Named("notify"))
	if len(notifiers) == 0 {
		logger.Warn("no notifiers enabled; spikes will only be counted")
	}
	dispatcher := notify.NewDispatcher(cfg.Notify, notifiers, logger.Named("notify"))
	unsubscribe := dispatcher.Subscribe(bus)
	defer unsubscribe()

	client := source.NewClient(cfg.Source, logger.Named("source"))
	engine := spike.NewEngine(cfg, nil)
	driver := monitor.NewDriver(cfg, client, engine, bus, logger.Named("monitor"))

	var srv *server.Server
	if cfg.Server.Enabled {
		// A cycle may take up to the source timeout on top of the interval.
		maxAge := 3*cfg.UpdateInterval() + cfg.Source.Timeout
		ready := func(context.Context) error { return driver.Ready(maxAge) }

		srv = server.New(cfg.Server.Addr(), engine.Tracker(), logger.Named("server"), ready)
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error("status server error", zap.Error(err))
			}
		}()
	}

	runErr := driver.Run(ctx)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("status server shutdown error", zap.Error(err))
		}
	}

	logger.Info("feedwatch stopped", zap.Int("tracked", engine.Tracker().Len()))
	return runErr
}
