package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sweeney/complex-monitor/internal/broker"
	"github.com/sweeney/complex-monitor/internal/config"
	"github.com/sweeney/complex-monitor/internal/coordinator"
	"github.com/sweeney/complex-monitor/internal/dashboard"
	"github.com/sweeney/complex-monitor/internal/indicator"
	"github.com/sweeney/complex-monitor/internal/logging"
	"github.com/sweeney/complex-monitor/internal/metrics"
	"github.com/sweeney/complex-monitor/internal/mqtt"
	"github.com/sweeney/complex-monitor/internal/status"
)

func newRunCmd() *cobra.Command {
	var logOpts logging.Options

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the monitoring node until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			sim, _ := cmd.Flags().GetBool("sim")

			logger, err := logging.New(logOpts)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runNode(ctx, path, sim, logger)
		},
	}
	cmd.Flags().StringVar(&logOpts.Level, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&logOpts.File, "log-file", "", "also append log entries to this file")
	return cmd
}

// loadConfig opens the store and returns the effective configuration.
// The --sim flag overrides the hardware mode without persisting it.
func loadConfig(path string, sim bool, logger *zap.Logger) (*config.FileStore, config.Config, error) {
	store, err := config.Open(path)
	if err != nil {
		if errors.Is(err, config.ErrCorrupt) {
			logger.Error("critical: config file corrupt", zap.String("path", path), zap.Error(err))
		}
		return nil, config.Config{}, err
	}
	cfg := store.Get()
	if sim {
		cfg.Hardware.Mode = config.HardwareSim
	}
	return store, cfg, nil
}

func mqttOptions(cfg config.Config) mqtt.Options {
	return mqtt.Options{
		Endpoint:       cfg.Broker.Endpoint,
		Port:           cfg.Broker.Port,
		ClientID:       cfg.Broker.ClientID,
		Topic:          cfg.Broker.Topic,
		CAFile:         cfg.Broker.Credentials.CA,
		CertFile:       cfg.Broker.Credentials.Cert,
		KeyFile:        cfg.Broker.Credentials.Key,
		ConnectTimeout: cfg.Broker.ConnectTimeout.Duration(),
		PublishTimeout: cfg.Broker.PublishTimeout.Duration(),
	}
}

func statusConfig(cfg config.Config) status.Config {
	return status.Config{
		Identity:   cfg.Identity,
		Broker:     mqtt.BrokerURL(cfg.Broker.Endpoint, cfg.Broker.Port, cfg.Broker.Credentials.Enabled()),
		Topic:      cfg.Broker.Topic,
		WebAddr:    cfg.Web.Addr(),
		IntervalMs: cfg.Dashboard.Interval.Duration().Milliseconds(),
	}
}

func runNode(ctx context.Context, path string, sim bool, logger *zap.Logger) error {
	store, cfg, err := loadConfig(path, sim, logger)
	if err != nil {
		return err
	}

	hw, err := openHardware(cfg.Hardware, logger)
	if err != nil {
		return fmt.Errorf("init hardware: %w", err)
	}
	defer hw.Close()

	m := metrics.New()

	client, err := mqtt.NewRealClient(mqttOptions(cfg), logger.Named("mqtt"))
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	retry, err := broker.RetryPolicy(cfg.Broker.Retry.Policy, cfg.Broker.Retry.Initial.Duration(), cfg.Broker.Retry.Max.Duration())
	if err != nil {
		return err
	}
	sup := broker.New(client, broker.Options{
		ConnectTimeout: cfg.Broker.ConnectTimeout.Duration(),
		PublishTimeout: cfg.Broker.PublishTimeout.Duration(),
		Retry:          retry,
	}, logger.Named("broker"), m)

	bootID := uuid.NewString()
	tracker := status.NewTracker(time.Now(), bootID, statusConfig(cfg))

	dash := dashboard.New(dashboard.Options{
		Addr:    cfg.Web.Addr(),
		Tracker: tracker,
		Store:   store,
		Secret:  cfg.Secret,
		BootID:  bootID,
		Metrics: m,
		Logger:  logger.Named("dashboard"),
	})

	app := coordinator.New(coordinator.Options{
		Identity:          cfg.Identity,
		DashboardInterval: cfg.Dashboard.Interval.Duration(),
	}, coordinator.Deps{
		Sensor:    hw.sensor,
		Button:    hw.button,
		Indicator: indicator.New(hw.leds, logger.Named("led")),
		Broker:    sup,
		Dashboard: dash,
		Tracker:   tracker,
		Metrics:   m,
		Logger:    logger,
	})

	if hw.simButton != nil {
		stopPresses := pressOnSignal(hw.simButton, logger)
		defer stopPresses()
	}

	logger.Info("node configured",
		zap.String("boot_id", bootID),
		zap.String("config", store.Path()),
		zap.String("hardware", cfg.Hardware.Mode),
		zap.String("broker", statusConfig(cfg).Broker),
		zap.String("web", cfg.Web.Addr()))

	return app.Run(ctx)
}

// pressOnSignal presses b on every SIGUSR1.
func pressOnSignal(b interface{ Press() }, logger *zap.Logger) func() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGUSR1)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-sigCh:
				logger.Info("simulated button press")
				b.Press()
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}
