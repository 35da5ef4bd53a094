package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"homenet-monitor/internal/aggregate"
	"homenet-monitor/internal/logging"
	"homenet-monitor/internal/models"
	"homenet-monitor/internal/monitor"
	"homenet-monitor/internal/ping"
	"homenet-monitor/internal/report"
	"homenet-monitor/internal/speedtest"
	"homenet-monitor/internal/traffic"
	"homenet-monitor/internal/web"
	"homenet-monitor/internal/wifi"
)

func serveCmd() *cobra.Command {
	var withScheduler bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			srv, err := web.New(a.cfg, web.Deps{
				Store:   store,
				Agg:     aggregate.NewEngine(store, a.clock, a.cfg.Loss.Window, a.cfg.Loss.Expected),
				Speed:   speedtest.NewCLI(a.cfg.Commands.Speedtest),
				Traffic: traffic.NewSource(a.cfg, a.clock),
				Clock:   a.clock,
			}, logging.Component(a.log, "web"))
			if err != nil {
				return err
			}

			if withScheduler {
				mon := a.newMonitor(store)
				if err := mon.Start(ctx); err != nil {
					return err
				}
				defer func() {
					mon.Stop()
					mon.Wait()
				}()
			}

			a.log.Info().Str("addr", a.cfg.Server.Addr).Msg("dashboard available")
			return srv.Start(ctx)
		},
	}
	cmd.Flags().BoolVar(&withScheduler, "schedule", false, "Also run the sampling scheduler in this process")
	return cmd
}

func pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping [destination...]",
		Short: "Run one ping burst per destination and store the samples",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			destinations := args
			if len(destinations) == 0 {
				destinations = a.cfg.Destinations
			}
			sampler := ping.NewSampler(store, a.cfg.Commands.Ping, a.cfg.Sampling.PingCount, logging.Component(a.log, "ping"))
			return pingAll(ctx, sampler, destinations, a.log)
		},
	}
}

// pingAll runs one burst per destination. A failing destination does not stop
// the others; the failures are joined.
func pingAll(ctx context.Context, runner monitor.PingRunner, destinations []string, log zerolog.Logger) error {
	var errs []error
	for _, dest := range destinations {
		if _, err := runner.Run(ctx, dest); err != nil {
			log.Error().Err(err).Str("destination", dest).Msg("ping run failed")
			errs = append(errs, fmt.Errorf("%s: %w", dest, err))
		}
	}
	return errors.Join(errs...)
}

func trafficCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "traffic",
		Short: "Sample outbound interface throughput for one run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			sampler := traffic.NewSampler(store, traffic.NewSource(a.cfg, a.clock), a.cfg.Sampling.TrafficDuration, logging.Component(a.log, "traffic"))
			_, err = sampler.Run(ctx)
			return err
		},
	}
}

func pruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete samples older than the retention horizon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			_, err = monitor.Prune(ctx, store, a.clock, a.cfg.Retention, logging.Component(a.log, "retention"))
			return err
		},
	}
}

func scheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run samplers and pruning on their cron schedules until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			mon := a.newMonitor(store)
			if err := mon.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			a.log.Info().Msg("shutting down")
			mon.Stop()
			mon.Wait()
			return nil
		},
	}
}

func (a *app) newMonitor(store models.Store) *monitor.Monitor {
	pinger := ping.NewSampler(store, a.cfg.Commands.Ping, a.cfg.Sampling.PingCount, logging.Component(a.log, "ping"))
	tr := traffic.NewSampler(store, traffic.NewSource(a.cfg, a.clock), a.cfg.Sampling.TrafficDuration, logging.Component(a.log, "traffic"))
	return monitor.New(a.cfg, pinger, tr, store, a.clock, logging.Component(a.log, "scheduler"))
}

func reportCmd() *cobra.Command {
	var outputDir string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write chart images and a text summary of the trailing window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			gen := report.NewGenerator(store,
				aggregate.NewEngine(store, a.clock, a.cfg.Loss.Window, a.cfg.Loss.Expected),
				a.clock,
				report.Options{
					Destinations:  a.cfg.Destinations,
					Window:        a.cfg.Server.GraphWindow,
					BucketWidth:   a.cfg.Server.BucketWidth,
					TrafficWindow: a.cfg.Server.TrafficWindow,
					MaxDownload:   a.cfg.MaxDownload,
					MaxUpload:     a.cfg.MaxUpload,
				},
				logging.Component(a.log, "report"))

			dir, err := gen.GenerateReport(ctx, outputDir)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), dir)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputDir, "output", "o", "reports", "Directory the report is written below")
	return cmd
}

func wifiCmd() *cobra.Command {
	var privileged bool
	cmd := &cobra.Command{
		Use:   "wifi",
		Short: "Switch the inbound interface to the most preferred reachable network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			log := logging.Component(a.log, "wifi")
			sel := wifi.NewSelector(
				wifi.NewNMCLI(a.cfg.Commands.Nmcli, a.cfg.Interfaces.Inbound),
				wifi.NewICMPProber(a.cfg.ProbeHosts, a.cfg.Interfaces.Inbound, privileged, log),
				a.cfg.PreferredSSIDs,
				log)
			_, err = sel.Run(ctx)
			return err
		},
	}
	cmd.Flags().BoolVar(&privileged, "privileged", true, "Use raw ICMP sockets for the reachability probe")
	return cmd
}
