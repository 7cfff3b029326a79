package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yairfalse/nimbus/internal/daemon"
	"github.com/yairfalse/nimbus/internal/emitter"
	"github.com/yairfalse/nimbus/internal/server"
	"github.com/yairfalse/nimbus/internal/storage"
	"github.com/yairfalse/nimbus/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the inventory API with periodic sync",
	Long: `Run the HTTP API in front of a continuously refreshed inventory.

The inventory is fetched at startup and then every sync interval. Every
published snapshot is exported as Prometheus metrics on /metrics and, when a
storage path is set, appended to the snapshot journal.`,
	Example: `  nimbus serve                               # Fixture data on :8080
  nimbus serve --source aws --region eu-west-1
  nimbus serve --interval 5m --storage ./nimbus.db
  nimbus serve -c nimbus.toml --policies ./policies`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	addSourceFlags(serveCmd)
	serveCmd.Flags().String("addr", "", "HTTP listen address")
	serveCmd.Flags().Duration("interval", 0, "Sync interval")
	serveCmd.Flags().String("storage", "", "Snapshot journal path (empty disables)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	tel, err := telemetry.NewProvider(ctx, cfg.OTEL, telemetry.WithPrometheus())
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("telemetry shutdown")
		}
	}()

	promEmitter, err := emitter.NewPrometheusEmitter(tel.MeterProvider())
	if err != nil {
		return fmt.Errorf("create prometheus emitter: %w", err)
	}
	emitters := []emitter.Emitter{promEmitter}

	deps := server.Dependencies{Metrics: tel.Handler()}
	if cfg.Storage.Path != "" {
		journal, err := storage.Open(cfg.Storage.Path, cfg.Storage.Keep)
		if err != nil {
			return err
		}
		emitters = append(emitters, journal)
		deps.History = journal
	}
	emit := emitter.NewMultiEmitter(emitters...)
	defer func() { _ = emit.Close() }()

	svc, err := newService(ctx, cfg, emit)
	if err != nil {
		return err
	}
	deps.Inventory = svc
	deps.Advisor = newAdvisor(cfg)

	interval := cfg.Sync.Interval
	d, err := daemon.NewDaemon(svc, daemon.Config{
		Interval:    interval,
		Account:     cfg.Source.Account,
		Provider:    cfg.Source.Provider,
		SyncOnStart: true,
	}, daemon.WithMeterProvider(tel.MeterProvider()))
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	deps.Syncer = d

	api := server.New(log.Logger, server.Config{
		Addr:            cfg.Server.Addr,
		DefaultUser:     cfg.Server.DefaultUser,
		ShutdownTimeout: shutdownTimeout,
		Dependencies:    deps,
	})

	log.Info().
		Str("source", svc.Source()).
		Str("provider", cfg.Source.Provider).
		Str("addr", cfg.Server.Addr).
		Dur("interval", interval).
		Bool("auto_sync", cfg.Sync.Enabled).
		Str("storage", cfg.Storage.Path).
		Msg("nimbus starting")

	var g run.Group
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))
	g.Add(api.ListenAndServe, func(error) {
		_ = api.Shutdown(context.Background(), shutdownTimeout)
	})

	if cfg.Sync.Enabled {
		syncCtx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return d.Run(syncCtx)
		}, func(error) {
			cancel()
		})
	} else {
		// Without auto-sync the inventory is still loaded once.
		if _, err := d.Sync(ctx, daemon.TriggerStart); err != nil {
			log.Error().Err(err).Msg("initial sync failed")
		}
	}

	err = g.Run()
	var sig run.SignalError
	if errors.As(err, &sig) {
		log.Info().Str("signal", sig.Signal.String()).Msg("shutting down")
		return nil
	}
	return err
}
