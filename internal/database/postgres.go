package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"homenet-monitor/internal/models"
)

// Postgres is the PostgreSQL sample store. Timestamps are assigned by the
// server (DEFAULT now()). Every method acquires a pooled connection for a
// single statement and returns it before the method returns.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects a bounded pool to the given DSN
func NewPostgres(ctx context.Context, dsn string, maxConns int) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}

	poolConfig.MaxConns = int32(maxConns)
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// InitSchema creates the sample tables
func (p *Postgres) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS pings (
			id BIGSERIAL PRIMARY KEY,
			destination TEXT NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			pingtime DOUBLE PRECISION,
			ttl INTEGER,
			bytes_received INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pings_destination_recorded_at ON pings (destination, recorded_at)`,
		`CREATE INDEX IF NOT EXISTS idx_pings_recorded_at ON pings (recorded_at)`,
		`CREATE TABLE IF NOT EXISTS traffic (
			id BIGSERIAL PRIMARY KEY,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			upload DOUBLE PRECISION NOT NULL,
			download DOUBLE PRECISION NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_traffic_recorded_at ON traffic (recorded_at)`,
	}
	for _, stmt := range statements {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema creation failed: %w", err)
		}
	}
	return nil
}

func (p *Postgres) InsertPing(ctx context.Context, destination string, pingTime *float64, ttl, bytesReceived *int) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO pings (destination, pingtime, ttl, bytes_received) VALUES ($1, $2, $3, $4)`,
		destination, pingTime, ttl, bytesReceived)
	return err
}

func (p *Postgres) InsertTraffic(ctx context.Context, upload, download float64) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO traffic (upload, download) VALUES ($1, $2)`, upload, download)
	return err
}

func (p *Postgres) LatestPing(ctx context.Context) (models.PingSample, error) {
	var s models.PingSample
	err := p.pool.QueryRow(ctx, `
		SELECT destination, recorded_at, pingtime, ttl, bytes_received
		FROM pings
		ORDER BY recorded_at DESC, id DESC
		LIMIT 1`).Scan(&s.Destination, &s.RecordedAt, &s.PingTime, &s.TTL, &s.BytesReceived)
	if errors.Is(err, pgx.ErrNoRows) {
		return s, models.ErrNoData
	}
	return s, err
}

func (p *Postgres) LatestTraffic(ctx context.Context) (models.TrafficSample, error) {
	var t models.TrafficSample
	err := p.pool.QueryRow(ctx, `
		SELECT recorded_at, upload, download
		FROM traffic
		ORDER BY recorded_at DESC, id DESC
		LIMIT 1`).Scan(&t.RecordedAt, &t.Upload, &t.Download)
	if errors.Is(err, pgx.ErrNoRows) {
		return t, models.ErrNoData
	}
	return t, err
}

func (p *Postgres) SelectPings(ctx context.Context, destination string, since time.Time) ([]models.PingSample, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT destination, recorded_at, pingtime, ttl, bytes_received
		FROM pings
		WHERE destination = $1 AND recorded_at >= $2
		ORDER BY recorded_at, id`, destination, since)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.PingSample, error) {
		var s models.PingSample
		err := row.Scan(&s.Destination, &s.RecordedAt, &s.PingTime, &s.TTL, &s.BytesReceived)
		return s, err
	})
}

func (p *Postgres) SelectTraffic(ctx context.Context, since time.Time) ([]models.TrafficSample, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT recorded_at, upload, download
		FROM traffic
		WHERE recorded_at >= $1
		ORDER BY recorded_at, id`, since)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.TrafficSample, error) {
		var t models.TrafficSample
		err := row.Scan(&t.RecordedAt, &t.Upload, &t.Download)
		return t, err
	})
}

func (p *Postgres) Summaries(ctx context.Context, since time.Time) ([]models.DestinationSummary, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT
			destination,
			count(*)::int,
			count(pingtime)::int,
			min(pingtime),
			round(avg(pingtime)::numeric, 2)::double precision,
			max(pingtime)
		FROM pings
		WHERE recorded_at > $1
		GROUP BY destination
		ORDER BY destination`, since)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.DestinationSummary, error) {
		var s models.DestinationSummary
		err := row.Scan(&s.Destination, &s.Count, &s.Successful, &s.Min, &s.Avg, &s.Max)
		return s, err
	})
}

func (p *Postgres) Prune(ctx context.Context, olderThan time.Time) (models.PruneResult, error) {
	var result models.PruneResult

	tag, err := p.pool.Exec(ctx, `DELETE FROM pings WHERE recorded_at < $1`, olderThan)
	if err != nil {
		return result, fmt.Errorf("prune pings: %w", err)
	}
	result.Pings = tag.RowsAffected()

	tag, err = p.pool.Exec(ctx, `DELETE FROM traffic WHERE recorded_at < $1`, olderThan)
	if err != nil {
		return result, fmt.Errorf("prune traffic: %w", err)
	}
	result.Traffic = tag.RowsAffected()

	return result, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
