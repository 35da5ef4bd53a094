package report

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homenet-monitor/internal/aggregate"
	"homenet-monitor/internal/models"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func f(v float64) *float64 { return &v }

func TestRenderLatency(t *testing.T) {
	withGaps := aggregate.WindowedLatency("x", []models.PingSample{
		{RecordedAt: epoch.Add(10 * time.Second), PingTime: f(12)},
		{RecordedAt: epoch.Add(30 * time.Second), PingTime: f(18)},
		{RecordedAt: epoch.Add(5 * time.Minute), PingTime: nil},
		{RecordedAt: epoch.Add(20 * time.Minute), PingTime: f(40)},
	}, epoch, epoch.Add(time.Hour), time.Minute)

	tests := []struct {
		name    string
		buckets []models.Bucket
	}{
		{"empty window", aggregate.WindowedLatency("x", nil, epoch, epoch.Add(time.Hour), time.Minute)},
		{"single bucket", aggregate.WindowedLatency("x", nil, epoch, epoch.Add(time.Minute), time.Minute)},
		{"all timeouts", aggregate.WindowedLatency("x", []models.PingSample{
			{RecordedAt: epoch.Add(10 * time.Second)},
			{RecordedAt: epoch.Add(11 * time.Second)},
			{RecordedAt: epoch.Add(40 * time.Minute)},
		}, epoch, epoch.Add(time.Hour), time.Minute)},
		{"data with gaps", withGaps},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, RenderLatency(&buf, "www.amazon.de", tt.buckets))
			assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
		})
	}
}

func TestRenderLatencyDeterministic(t *testing.T) {
	buckets := aggregate.WindowedLatency("x", []models.PingSample{
		{RecordedAt: epoch.Add(10 * time.Second), PingTime: f(12)},
	}, epoch, epoch.Add(10*time.Minute), time.Minute)

	var a, b bytes.Buffer
	require.NoError(t, RenderLatency(&a, "x", buckets))
	require.NoError(t, RenderLatency(&b, "x", buckets))
	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestBaselineIsDrawn(t *testing.T) {
	b := baseline(epoch, epoch.Add(time.Hour))
	assert.False(t, b.Style.Hidden)
	assert.True(t, b.Style.ShouldDrawStroke())
	assert.False(t, b.Style.ShouldDrawDot())
}

func TestRenderLatencyNoBuckets(t *testing.T) {
	require.Error(t, RenderLatency(&bytes.Buffer{}, "x", nil))
}

func TestRenderTraffic(t *testing.T) {
	tests := []struct {
		name    string
		samples []models.TrafficSample
	}{
		{"no samples", nil},
		{"one sample", []models.TrafficSample{{RecordedAt: epoch.Add(time.Minute), Upload: 1.5, Download: 20}}},
		{"above ceiling", []models.TrafficSample{
			{RecordedAt: epoch.Add(time.Minute), Upload: 50, Download: 250},
			{RecordedAt: epoch.Add(2 * time.Minute), Upload: 45, Download: 240},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, RenderTraffic(&buf, tt.samples, epoch, epoch.Add(10*time.Minute), 100))
			assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
		})
	}
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	WriteSummary(&buf, epoch, time.Hour,
		[]models.DestinationSummary{
			{Destination: "www.amazon.de", Count: 3600, Successful: 3591, Min: f(9.1), Avg: f(12.34), Max: f(80)},
			{Destination: "192.168.1.1", Count: 60, Successful: 0},
		},
		map[string]models.PacketLoss{
			"www.amazon.de": {Destination: "www.amazon.de", Lost: 9, Expected: 3600, Ratio: 0.0025},
			"unreachable":   {Destination: "unreachable", Lost: 3600, Expected: 3600, Ratio: 1},
		})

	out := buf.String()
	assert.Contains(t, out, "Period: Last 1h0m0s")
	assert.Contains(t, out, "Destination: www.amazon.de")
	assert.Contains(t, out, "Packet Loss: 0.250% (9/3600)")
	assert.Contains(t, out, "Average RTT: 12.34 ms")
	assert.Contains(t, out, "RTT: no data")
	assert.Contains(t, out, "Destination: unreachable")
	assert.Contains(t, out, "Packet Loss: 100.000% (3600/3600)")
}

type fakeStore struct {
	traffic   []models.TrafficSample
	summaries []models.DestinationSummary
}

func (s *fakeStore) SelectTraffic(context.Context, time.Time) ([]models.TrafficSample, error) {
	return s.traffic, nil
}

func (s *fakeStore) Summaries(context.Context, time.Time) ([]models.DestinationSummary, error) {
	return s.summaries, nil
}

type fakePings struct{}

func (fakePings) SelectPings(context.Context, string, time.Time) ([]models.PingSample, error) {
	return []models.PingSample{{RecordedAt: epoch.Add(-time.Minute), PingTime: f(10)}}, nil
}

func TestGenerateReport(t *testing.T) {
	fc := clockwork.NewFakeClockAt(epoch)
	store := &fakeStore{
		traffic:   []models.TrafficSample{{RecordedAt: epoch.Add(-time.Minute), Upload: 1, Download: 2}},
		summaries: []models.DestinationSummary{{Destination: "www.amazon.de", Count: 1, Successful: 1, Min: f(10), Avg: f(10), Max: f(10)}},
	}
	gen := NewGenerator(store, aggregate.NewEngine(fakePings{}, fc, time.Hour, 3600), fc, Options{
		Destinations:  []string{"www.amazon.de"},
		Window:        time.Hour,
		BucketWidth:   time.Minute,
		TrafficWindow: 10 * time.Minute,
		MaxDownload:   100,
		MaxUpload:     40,
	}, zerolog.Nop())

	dir, err := gen.GenerateReport(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(dir, "network_report_2024-05-01_12-00-00"))

	for _, name := range []string{"latency_www_amazon_de.png", "traffic.png"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.True(t, bytes.HasPrefix(data, pngMagic), name)
	}

	summary, err := os.ReadFile(filepath.Join(dir, "summary.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(summary), "Packet Loss: 99.972% (3599/3600)")
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "www_amazon_de", sanitizeFilename("www.amazon.de"))
	assert.Equal(t, "fe80__1_eth0", sanitizeFilename("fe80::1%eth0"))
}
