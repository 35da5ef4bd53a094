package report

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"homenet-monitor/internal/models"
)

// Reader is the part of the sample store the report needs
type Reader interface {
	SelectTraffic(ctx context.Context, since time.Time) ([]models.TrafficSample, error)
	Summaries(ctx context.Context, since time.Time) ([]models.DestinationSummary, error)
}

// Aggregator produces latency buckets and packet loss
type Aggregator interface {
	Latency(ctx context.Context, destination string, window, width time.Duration) ([]models.Bucket, error)
	PacketLoss(ctx context.Context, destination string) (models.PacketLoss, error)
}

// Options controls what a report covers.
type Options struct {
	Destinations  []string
	Window        time.Duration
	BucketWidth   time.Duration
	TrafficWindow time.Duration
	MaxDownload   float64
	MaxUpload     float64
}

// Generator creates static images and a text summary for the trailing window
type Generator struct {
	store Reader
	agg   Aggregator
	clock clockwork.Clock
	opts  Options
	log   zerolog.Logger
}

// NewGenerator creates a new report generator
func NewGenerator(store Reader, agg Aggregator, clock clockwork.Clock, opts Options, log zerolog.Logger) *Generator {
	return &Generator{store: store, agg: agg, clock: clock, opts: opts, log: log}
}

// TrafficCeiling is the smallest Y axis top for traffic charts.
func (o Options) TrafficCeiling() float64 {
	return math.Max(o.MaxDownload, o.MaxUpload)
}

// GenerateReport writes the report into a timestamped directory below
// outputDir and returns its path. A failing part is logged and skipped.
func (g *Generator) GenerateReport(ctx context.Context, outputDir string) (string, error) {
	now := g.clock.Now()
	reportDir := filepath.Join(outputDir, fmt.Sprintf("network_report_%s", now.Format("2006-01-02_15-04-05")))
	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	for _, dest := range g.opts.Destinations {
		if err := g.writeLatencyChart(ctx, reportDir, dest); err != nil {
			g.log.Error().Err(err).Str("destination", dest).Msg("failed to generate latency chart")
		}
	}

	if err := g.writeTrafficChart(ctx, reportDir, now); err != nil {
		g.log.Error().Err(err).Msg("failed to generate traffic chart")
	}

	if err := g.writeSummary(ctx, reportDir, now); err != nil {
		g.log.Error().Err(err).Msg("failed to generate text report")
	}

	g.log.Info().Str("dir", reportDir).Msg("report generated")
	return reportDir, nil
}

func (g *Generator) writeLatencyChart(ctx context.Context, dir, destination string) error {
	buckets, err := g.agg.Latency(ctx, destination, g.opts.Window, g.opts.BucketWidth)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := RenderLatency(&buf, destination, buckets); err != nil {
		return err
	}
	name := fmt.Sprintf("latency_%s.png", sanitizeFilename(destination))
	return os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o644)
}

func (g *Generator) writeTrafficChart(ctx context.Context, dir string, now time.Time) error {
	start := now.Add(-g.opts.TrafficWindow)
	samples, err := g.store.SelectTraffic(ctx, start)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := RenderTraffic(&buf, samples, start, now, g.opts.TrafficCeiling()); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "traffic.png"), buf.Bytes(), 0o644)
}

var filenameReplacer = strings.NewReplacer(".", "_", ":", "_", "/", "_", "\\", "_", " ", "_", "%", "_")

func sanitizeFilename(s string) string {
	return filenameReplacer.Replace(s)
}
