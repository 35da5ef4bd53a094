package traffic

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"homenet-monitor/internal/metrics"
)

// Recorder persists traffic ticks
type Recorder interface {
	InsertTraffic(ctx context.Context, upload, download float64) error
}

// RunStats summarizes one sampler run.
type RunStats struct {
	Inserted int
	Skipped  int
	Dropped  int
}

// Sampler records one row per parsed throughput line for a fixed duration.
type Sampler struct {
	store    Recorder
	source   Source
	duration time.Duration
	log      zerolog.Logger
}

func NewSampler(store Recorder, source Source, duration time.Duration, log zerolog.Logger) *Sampler {
	return &Sampler{store: store, source: source, duration: duration, log: log}
}

// Run samples for the configured duration at one tick per second.
func (s *Sampler) Run(ctx context.Context) (RunStats, error) {
	var stats RunStats
	samples := int(s.duration / time.Second)

	err := s.source.Stream(ctx, samples, func(line string) {
		tick, ok := ParseLine(line)
		if !ok {
			stats.Skipped++
			metrics.LinesSkipped.WithLabelValues("traffic").Inc()
			return
		}
		if err := s.store.InsertTraffic(ctx, tick.Upload, tick.Download); err != nil {
			stats.Dropped++
			metrics.SampleWriteErrors.WithLabelValues("traffic").Inc()
			s.log.Warn().Err(err).Msg("failed to save traffic sample")
			return
		}
		stats.Inserted++
		metrics.SamplesInserted.WithLabelValues("traffic", "ok").Inc()
	})
	if err != nil {
		return stats, fmt.Errorf("traffic sampling: %w", err)
	}

	s.log.Info().
		Int("inserted", stats.Inserted).
		Int("skipped", stats.Skipped).
		Int("dropped", stats.Dropped).
		Msg("traffic run finished")
	return stats, nil
}

// Tail streams formatted live lines until ctx is cancelled or the source
// ends. The channel is closed when the tail stops; nothing is stored.
func Tail(ctx context.Context, source Source, log zerolog.Logger) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		err := source.Stream(ctx, 0, func(line string) {
			tick, ok := ParseLine(line)
			select {
			case out <- FormatLive(tick, ok):
			case <-ctx.Done():
			}
		})
		if err != nil {
			log.Warn().Err(err).Msg("live traffic tail stopped")
		}
	}()
	return out
}
