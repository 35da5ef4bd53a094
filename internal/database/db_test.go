package database

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homenet-monitor/internal/models"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) (*DB, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(epoch)
	db, err := New(filepath.Join(t.TempDir(), "test.db"), 4, clock)
	require.NoError(t, err)
	require.NoError(t, db.InitSchema())
	t.Cleanup(func() { db.Close() })
	return db, clock
}

func ptrF(v float64) *float64 { return &v }
func ptrI(v int) *int         { return &v }

func TestInsertAndSelectPings(t *testing.T) {
	db, clock := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.InsertPing(ctx, "a.example", ptrF(23.4), ptrI(55), ptrI(64)))
	clock.Advance(time.Second)
	require.NoError(t, db.InsertPing(ctx, "a.example", nil, nil, nil))
	clock.Advance(time.Second)
	require.NoError(t, db.InsertPing(ctx, "b.example", ptrF(10), ptrI(60), ptrI(64)))

	pings, err := db.SelectPings(ctx, "a.example", epoch)
	require.NoError(t, err)
	require.Len(t, pings, 2)

	assert.Equal(t, epoch, pings[0].RecordedAt)
	require.NotNil(t, pings[0].PingTime)
	assert.Equal(t, 23.4, *pings[0].PingTime)
	assert.Equal(t, 55, *pings[0].TTL)
	assert.Equal(t, 64, *pings[0].BytesReceived)

	assert.Nil(t, pings[1].PingTime)
	assert.Nil(t, pings[1].TTL)
	assert.Nil(t, pings[1].BytesReceived)
	assert.False(t, pings[1].Success())

	later, err := db.SelectPings(ctx, "a.example", epoch.Add(time.Second))
	require.NoError(t, err)
	assert.Len(t, later, 1, "since is inclusive")
}

func TestLatestRows(t *testing.T) {
	db, clock := newTestDB(t)
	ctx := context.Background()

	_, err := db.LatestPing(ctx)
	assert.ErrorIs(t, err, models.ErrNoData)
	_, err = db.LatestTraffic(ctx)
	assert.ErrorIs(t, err, models.ErrNoData)

	require.NoError(t, db.InsertPing(ctx, "a.example", ptrF(1), nil, nil))
	require.NoError(t, db.InsertPing(ctx, "b.example", ptrF(2), nil, nil))
	require.NoError(t, db.InsertTraffic(ctx, 0.5, 1.5))
	clock.Advance(time.Second)
	require.NoError(t, db.InsertTraffic(ctx, 0.7, 2.5))

	p, err := db.LatestPing(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b.example", p.Destination, "ties on recorded_at resolve to the last insert")
	assert.Equal(t, 2.0, *p.PingTime)

	tr, err := db.LatestTraffic(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.7, tr.Upload)
	assert.Equal(t, 2.5, tr.Download)
	assert.Equal(t, epoch.Add(time.Second), tr.RecordedAt)
}

func TestSelectTraffic(t *testing.T) {
	db, clock := newTestDB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, db.InsertTraffic(ctx, float64(i), float64(i*2)))
		clock.Advance(time.Minute)
	}

	rows, err := db.SelectTraffic(ctx, epoch.Add(2*time.Minute))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, 2.0, rows[0].Upload)
	assert.Equal(t, 8.0, rows[2].Download)
}

func TestSummaries(t *testing.T) {
	db, clock := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.InsertPing(ctx, "a.example", ptrF(10), ptrI(55), ptrI(64)))
	require.NoError(t, db.InsertPing(ctx, "a.example", ptrF(20.5), ptrI(55), ptrI(64)))
	require.NoError(t, db.InsertPing(ctx, "a.example", nil, nil, nil))
	require.NoError(t, db.InsertPing(ctx, "dead.example", nil, nil, nil))
	clock.Advance(time.Minute)

	stats, err := db.Summaries(ctx, epoch.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, stats, 2)

	a := stats[0]
	assert.Equal(t, "a.example", a.Destination)
	assert.Equal(t, 3, a.Count)
	assert.Equal(t, 2, a.Successful)
	assert.Equal(t, 10.0, *a.Min)
	assert.Equal(t, 20.5, *a.Max)
	assert.InDelta(t, 15.25, *a.Avg, 0.001)

	dead := stats[1]
	assert.Equal(t, 1, dead.Count)
	assert.Equal(t, 0, dead.Successful)
	assert.Nil(t, dead.Min)
	assert.Nil(t, dead.Avg)
	assert.Nil(t, dead.Max)
}

func TestPruneDeletesOnlyOlderRows(t *testing.T) {
	db, clock := newTestDB(t)
	ctx := context.Background()

	// t0: old rows, t0+2h: boundary rows, t0+4h: fresh rows
	require.NoError(t, db.InsertPing(ctx, "a.example", ptrF(1), nil, nil))
	require.NoError(t, db.InsertTraffic(ctx, 1, 1))
	clock.Advance(2 * time.Hour)
	require.NoError(t, db.InsertPing(ctx, "a.example", ptrF(2), nil, nil))
	require.NoError(t, db.InsertTraffic(ctx, 2, 2))
	clock.Advance(2 * time.Hour)
	require.NoError(t, db.InsertPing(ctx, "a.example", nil, nil, nil))
	require.NoError(t, db.InsertTraffic(ctx, 3, 3))

	horizon := 2 * time.Hour
	res, err := db.Prune(ctx, clock.Now().Add(-horizon))
	require.NoError(t, err)
	assert.Equal(t, models.PruneResult{Pings: 1, Traffic: 1}, res)

	pings, err := db.SelectPings(ctx, "a.example", time.Time{})
	require.NoError(t, err)
	require.Len(t, pings, 2)
	assert.Equal(t, epoch.Add(2*time.Hour), pings[0].RecordedAt, "row exactly at the cutoff is kept")

	traffic, err := db.SelectTraffic(ctx, time.Time{})
	require.NoError(t, err)
	assert.Len(t, traffic, 2)
}

func TestConcurrentWritersAndReaders(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				assert.NoError(t, db.InsertPing(ctx, "a.example", ptrF(float64(i)), nil, nil))
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				_, err := db.SelectPings(ctx, "a.example", time.Time{})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	pings, err := db.SelectPings(ctx, "a.example", time.Time{})
	require.NoError(t, err)
	assert.Len(t, pings, 100)
}
