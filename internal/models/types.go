package models

import (
	"context"
	"errors"
	"time"
)

// ErrNoData is returned by the latest-row queries when a table is empty.
var ErrNoData = errors.New("no samples recorded")

// Store defines the sample persistence operations.
type Store interface {
	InsertPing(ctx context.Context, destination string, pingTime *float64, ttl, bytesReceived *int) error
	InsertTraffic(ctx context.Context, upload, download float64) error
	LatestPing(ctx context.Context) (PingSample, error)
	LatestTraffic(ctx context.Context) (TrafficSample, error)
	SelectPings(ctx context.Context, destination string, since time.Time) ([]PingSample, error)
	SelectTraffic(ctx context.Context, since time.Time) ([]TrafficSample, error)
	Summaries(ctx context.Context, since time.Time) ([]DestinationSummary, error)
	Prune(ctx context.Context, olderThan time.Time) (PruneResult, error)
	Close() error
}

// SpeedTester runs a throughput test and returns its textual output
type SpeedTester interface {
	Run(ctx context.Context) (string, error)
}
