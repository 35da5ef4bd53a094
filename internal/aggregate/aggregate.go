// Package aggregate turns raw ping samples into fixed-width latency buckets
// and windowed packet-loss ratios.
package aggregate

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jonboulle/clockwork"

	"homenet-monitor/internal/models"
)

// BucketCount returns the number of buckets of width covering [start, end).
func BucketCount(start, end time.Time, width time.Duration) int {
	span := end.Sub(start)
	if span <= 0 || width <= 0 {
		return 0
	}
	return int(math.Ceil(float64(span) / float64(width)))
}

// WindowedLatency groups samples into the grid [start, start+width),
// [start+width, start+2*width), ... covering [start, end). Every grid cell
// yields a bucket whether or not it holds samples. Count includes failed
// attempts; Min, Avg and Max cover successful ones only and stay nil when
// there are none.
func WindowedLatency(destination string, samples []models.PingSample, start, end time.Time, width time.Duration) []models.Bucket {
	n := BucketCount(start, end, width)
	buckets := make([]models.Bucket, n)
	sums := make([]float64, n)
	for i := range buckets {
		begin := start.Add(time.Duration(i) * width)
		buckets[i] = models.Bucket{
			BeginTime:   begin,
			EndTime:     begin.Add(width),
			Destination: destination,
		}
	}

	for _, s := range samples {
		if s.RecordedAt.Before(start) || !s.RecordedAt.Before(end) {
			continue
		}
		i := int(s.RecordedAt.Sub(start) / width)
		if i >= n {
			continue
		}
		b := &buckets[i]
		b.Count++
		if !s.Success() {
			continue
		}
		v := *s.PingTime
		b.Successful++
		sums[i] += v
		if b.Min == nil || v < *b.Min {
			b.Min = ptr(v)
		}
		if b.Max == nil || v > *b.Max {
			b.Max = ptr(v)
		}
	}

	for i := range buckets {
		if buckets[i].Successful > 0 {
			buckets[i].Avg = ptr(sums[i] / float64(buckets[i].Successful))
		}
	}
	return buckets
}

// LossRatio computes loss against a fixed number of expected attempts.
// Missing rows count as lost, so an empty window is total loss.
func LossRatio(destination string, samples []models.PingSample, expected int) models.PacketLoss {
	successful := 0
	for _, s := range samples {
		if s.Success() {
			successful++
		}
	}

	lost := expected - successful
	if lost < 0 {
		lost = 0
	}
	if lost > expected {
		lost = expected
	}

	loss := models.PacketLoss{Destination: destination, Lost: lost, Expected: expected}
	if expected > 0 {
		loss.Ratio = float64(lost) / float64(expected)
	}
	return loss
}

func ptr(v float64) *float64 {
	return &v
}

// PingReader is the read side of the sample store used for aggregation
type PingReader interface {
	SelectPings(ctx context.Context, destination string, since time.Time) ([]models.PingSample, error)
}

// Engine evaluates windows relative to the current time.
type Engine struct {
	store      PingReader
	clock      clockwork.Clock
	lossWindow time.Duration
	expected   int
}

// NewEngine creates an Engine whose packet loss covers lossWindow with a
// fixed denominator of expected attempts.
func NewEngine(store PingReader, clock clockwork.Clock, lossWindow time.Duration, expected int) *Engine {
	return &Engine{store: store, clock: clock, lossWindow: lossWindow, expected: expected}
}

// Latency buckets the trailing window for destination.
func (e *Engine) Latency(ctx context.Context, destination string, window, width time.Duration) ([]models.Bucket, error) {
	end := e.clock.Now()
	start := end.Add(-window)

	samples, err := e.store.SelectPings(ctx, destination, start)
	if err != nil {
		return nil, fmt.Errorf("select pings for %s: %w", destination, err)
	}
	return WindowedLatency(destination, samples, start, end, width), nil
}

// PacketLoss returns the loss ratio over the trailing loss window.
func (e *Engine) PacketLoss(ctx context.Context, destination string) (models.PacketLoss, error) {
	since := e.clock.Now().Add(-e.lossWindow)

	samples, err := e.store.SelectPings(ctx, destination, since)
	if err != nil {
		return models.PacketLoss{}, fmt.Errorf("select pings for %s: %w", destination, err)
	}
	return LossRatio(destination, samples, e.expected), nil
}
