package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"homenet-monitor/internal/config"
	"homenet-monitor/internal/database"
	"homenet-monitor/internal/logging"
	"homenet-monitor/internal/metrics"
	"homenet-monitor/internal/models"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "homenet-monitor",
	Short: "Home network latency and throughput monitor",
	Long: `homenet-monitor samples round trips to a set of destinations and the
throughput of the outbound interface, keeps a few hours of history and serves
a live dashboard with charts, packet loss and an on-demand speed test.`,
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "YAML configuration file")
	pf.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	config.RegisterFlags(pf)

	rootCmd.AddCommand(serveCmd(), pingCmd(), trafficCmd(), pruneCmd(), scheduleCmd(), reportCmd(), wifiCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries what every subcommand needs.
type app struct {
	cfg   config.Config
	log   zerolog.Logger
	clock clockwork.Clock
}

func setup(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := config.ApplyFlags(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	metrics.Init()
	return &app{
		cfg:   cfg,
		log:   logging.New(cfg.LogLevel),
		clock: clockwork.NewRealClock(),
	}, nil
}

func (a *app) openStore(ctx context.Context) (models.Store, error) {
	store, err := database.Open(ctx, a.cfg.Database, a.clock)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", a.cfg.Database.Driver, err)
	}
	return store, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
