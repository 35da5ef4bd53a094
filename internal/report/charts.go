package report

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"homenet-monitor/internal/models"
)

const (
	chartWidth  = 1200
	chartHeight = 400
)

var gridStyle = chart.Style{
	StrokeColor: drawing.Color{R: 200, G: 200, B: 200, A: 255},
	StrokeWidth: 1.0,
}

func baseChart(title, yName string, xRange, yRange *chart.ContinuousRange) chart.Chart {
	return chart.Chart{
		Title: title,
		TitleStyle: chart.Style{
			FontSize: 16,
		},
		Background: chart.Style{
			Padding: chart.Box{
				Top:    20,
				Left:   20,
				Right:  20,
				Bottom: 20,
			},
		},
		Width:  chartWidth,
		Height: chartHeight,
		XAxis: chart.XAxis{
			Name: "Time",
			NameStyle: chart.Style{
				FontSize: 12,
			},
			Style: chart.Style{
				StrokeColor: drawing.ColorBlack,
				FontSize:    10,
			},
			ValueFormatter: chart.TimeValueFormatterWithFormat("15:04"),
			Range:          xRange,
			GridMajorStyle: gridStyle,
		},
		YAxis: chart.YAxis{
			Name: yName,
			NameStyle: chart.Style{
				FontSize: 12,
			},
			Style: chart.Style{
				StrokeColor: drawing.ColorBlack,
				FontSize:    10,
			},
			Range:          yRange,
			GridMajorStyle: gridStyle,
		},
	}
}

func timeRange(start, end time.Time) *chart.ContinuousRange {
	if !end.After(start) {
		end = start.Add(time.Minute)
	}
	return &chart.ContinuousRange{Min: chart.TimeToFloat64(start), Max: chart.TimeToFloat64(end)}
}

// zeroFloor returns a Y range starting at zero with headroom above peak.
func zeroFloor(peak float64) *chart.ContinuousRange {
	top := math.Max(peak*1.1, 1)
	return &chart.ContinuousRange{Min: 0, Max: top}
}

// baseline is an invisible zero line spanning the window. go-chart refuses to
// render without a visible series, so it must not be Hidden.
func baseline(start, end time.Time) chart.TimeSeries {
	return chart.TimeSeries{
		Style: chart.Style{
			StrokeColor: drawing.ColorTransparent,
			StrokeWidth: 1,
		},
		XValues: []time.Time{start, end},
		YValues: []float64{0, 0},
	}
}

func lineStyle(color int) chart.Style {
	return chart.Style{
		StrokeColor: chart.GetDefaultColor(color),
		StrokeWidth: 2,
		DotColor:    chart.GetDefaultColor(color),
		DotWidth:    2,
	}
}

type latencyLine struct {
	name  string
	value func(models.Bucket) *float64
}

var latencyLines = []latencyLine{
	{"max", func(b models.Bucket) *float64 { return b.Max }},
	{"avg", func(b models.Bucket) *float64 { return b.Avg }},
	{"min", func(b models.Bucket) *float64 { return b.Min }},
}

// segments splits one aggregate line at buckets without data, so gaps stay
// visible instead of dropping to zero.
func segments(buckets []models.Bucket, value func(models.Bucket) *float64) []chart.TimeSeries {
	var out []chart.TimeSeries
	var cur chart.TimeSeries
	flush := func() {
		if len(cur.XValues) > 0 {
			out = append(out, cur)
		}
		cur = chart.TimeSeries{}
	}
	for _, b := range buckets {
		v := value(b)
		if v == nil {
			flush()
			continue
		}
		cur.XValues = append(cur.XValues, b.BeginTime)
		cur.YValues = append(cur.YValues, *v)
	}
	flush()
	return out
}

// RenderLatency draws the min, avg and max lines of a bucket sequence as PNG.
// The output depends only on the buckets.
func RenderLatency(w io.Writer, destination string, buckets []models.Bucket) error {
	if len(buckets) == 0 {
		return fmt.Errorf("no buckets to render for %s", destination)
	}
	start := buckets[0].BeginTime
	end := buckets[len(buckets)-1].EndTime

	peak := 0.0
	for _, b := range buckets {
		if b.Max != nil {
			peak = math.Max(peak, *b.Max)
		}
	}

	graph := baseChart(fmt.Sprintf("Round Trip - %s", destination), "Round Trip (ms)", timeRange(start, end), zeroFloor(peak))
	graph.Series = []chart.Series{baseline(start, end)}

	var legend chart.Chart
	for i, line := range latencyLines {
		style := lineStyle(i)
		legend.Series = append(legend.Series, chart.TimeSeries{Name: line.name, Style: style})
		for _, seg := range segments(buckets, line.value) {
			seg.Name = line.name
			seg.Style = style
			graph.Series = append(graph.Series, seg)
		}
	}
	graph.Elements = []chart.Renderable{chart.Legend(&legend)}

	return graph.Render(chart.PNG, w)
}

// RenderTraffic draws raw upload and download samples of [start, end] as PNG.
// ceiling is the minimum height of the Y axis in Mbps.
func RenderTraffic(w io.Writer, samples []models.TrafficSample, start, end time.Time, ceiling float64) error {
	peak := ceiling / 1.1
	upload := chart.TimeSeries{Name: "upload", Style: lineStyle(0)}
	download := chart.TimeSeries{Name: "download", Style: lineStyle(1)}
	for _, s := range samples {
		upload.XValues = append(upload.XValues, s.RecordedAt)
		upload.YValues = append(upload.YValues, s.Upload)
		download.XValues = append(download.XValues, s.RecordedAt)
		download.YValues = append(download.YValues, s.Download)
		peak = math.Max(peak, math.Max(s.Upload, s.Download))
	}

	graph := baseChart("Traffic", "Bandwidth (Mbps)", timeRange(start, end), zeroFloor(peak))
	graph.Series = []chart.Series{baseline(start, end)}
	legend := chart.Chart{Series: []chart.Series{upload, download}}
	if len(samples) > 0 {
		graph.Series = append(graph.Series, upload, download)
	}
	graph.Elements = []chart.Renderable{chart.Legend(&legend)}

	return graph.Render(chart.PNG, w)
}
