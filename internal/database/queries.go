package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"homenet-monitor/internal/models"
)

// InsertPing records one ping attempt. Nil metrics store NULLs.
func (db *DB) InsertPing(ctx context.Context, destination string, pingTime *float64, ttl, bytesReceived *int) error {
	query := `
        INSERT INTO pings (destination, recorded_at, pingtime, ttl, bytes_received)
        VALUES (?, ?, ?, ?, ?)
    `
	_, err := db.ExecContext(ctx, query,
		destination,
		toMillis(db.clock.Now()),
		sqlFloat(pingTime),
		sqlInt(ttl),
		sqlInt(bytesReceived),
	)
	return err
}

// InsertTraffic records one throughput tick
func (db *DB) InsertTraffic(ctx context.Context, upload, download float64) error {
	query := `INSERT INTO traffic (recorded_at, upload, download) VALUES (?, ?, ?)`
	_, err := db.ExecContext(ctx, query, toMillis(db.clock.Now()), upload, download)
	return err
}

// LatestPing returns the most recently inserted ping row of any destination
func (db *DB) LatestPing(ctx context.Context) (models.PingSample, error) {
	query := `
        SELECT destination, recorded_at, pingtime, ttl, bytes_received
        FROM pings
        ORDER BY recorded_at DESC, id DESC
        LIMIT 1
    `
	p, err := scanPing(db.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return p, models.ErrNoData
	}
	return p, err
}

// LatestTraffic returns the most recently inserted traffic row
func (db *DB) LatestTraffic(ctx context.Context) (models.TrafficSample, error) {
	query := `
        SELECT recorded_at, upload, download
        FROM traffic
        ORDER BY recorded_at DESC, id DESC
        LIMIT 1
    `
	var t models.TrafficSample
	var recordedAt int64
	err := db.QueryRowContext(ctx, query).Scan(&recordedAt, &t.Upload, &t.Download)
	if errors.Is(err, sql.ErrNoRows) {
		return t, models.ErrNoData
	}
	if err != nil {
		return t, err
	}
	t.RecordedAt = fromMillis(recordedAt)
	return t, nil
}

// SelectPings returns the pings of a destination recorded at or after since, oldest first
func (db *DB) SelectPings(ctx context.Context, destination string, since time.Time) ([]models.PingSample, error) {
	query := `
        SELECT destination, recorded_at, pingtime, ttl, bytes_received
        FROM pings
        WHERE destination = ? AND recorded_at >= ?
        ORDER BY recorded_at, id
    `

	rows, err := db.QueryContext(ctx, query, destination, toMillis(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.PingSample
	for rows.Next() {
		p, err := scanPing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ping: %w", err)
		}
		results = append(results, p)
	}

	return results, rows.Err()
}

// SelectTraffic returns traffic rows recorded at or after since, oldest first
func (db *DB) SelectTraffic(ctx context.Context, since time.Time) ([]models.TrafficSample, error) {
	query := `
        SELECT recorded_at, upload, download
        FROM traffic
        WHERE recorded_at >= ?
        ORDER BY recorded_at, id
    `

	rows, err := db.QueryContext(ctx, query, toMillis(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.TrafficSample
	for rows.Next() {
		var t models.TrafficSample
		var recordedAt int64
		if err := rows.Scan(&recordedAt, &t.Upload, &t.Download); err != nil {
			return nil, fmt.Errorf("scan traffic: %w", err)
		}
		t.RecordedAt = fromMillis(recordedAt)
		results = append(results, t)
	}

	return results, rows.Err()
}

// Summaries retrieves per-destination latency statistics since the given time
func (db *DB) Summaries(ctx context.Context, since time.Time) ([]models.DestinationSummary, error) {
	query := `
        SELECT
            destination,
            COUNT(*) as total,
            COUNT(pingtime) as successful,
            MIN(pingtime) as min_rtt,
            ROUND(AVG(pingtime), 2) as avg_rtt,
            MAX(pingtime) as max_rtt
        FROM pings
        WHERE recorded_at > ?
        GROUP BY destination
        ORDER BY destination
    `

	rows, err := db.QueryContext(ctx, query, toMillis(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []models.DestinationSummary
	for rows.Next() {
		var s models.DestinationSummary
		var minRTT, avgRTT, maxRTT sql.NullFloat64
		if err := rows.Scan(&s.Destination, &s.Count, &s.Successful, &minRTT, &avgRTT, &maxRTT); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		s.Min, s.Avg, s.Max = nullFloat(minRTT), nullFloat(avgRTT), nullFloat(maxRTT)
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPing(row rowScanner) (models.PingSample, error) {
	var p models.PingSample
	var recordedAt int64
	var pingTime sql.NullFloat64
	var ttl, bytesReceived sql.NullInt64
	if err := row.Scan(&p.Destination, &recordedAt, &pingTime, &ttl, &bytesReceived); err != nil {
		return p, err
	}
	p.RecordedAt = fromMillis(recordedAt)
	p.PingTime = nullFloat(pingTime)
	p.TTL = nullInt(ttl)
	p.BytesReceived = nullInt(bytesReceived)
	return p, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func sqlFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func sqlInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
