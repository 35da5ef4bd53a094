package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"homenet-monitor/internal/models"
	"homenet-monitor/internal/report"
)

type statsPage struct {
	Generated    string
	Window       string
	Destinations []models.DestinationSummary
}

// handleStats renders the per-destination overview of the trailing window
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	now := s.deps.Clock.Now()
	summaries, err := s.deps.Store.Summaries(r.Context(), now.Add(-s.cfg.Server.GraphWindow))
	if err != nil {
		s.log.Error().Err(err).Msg("stats query failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	page := statsPage{
		Generated:    now.Format("2006-01-02 15:04:05"),
		Window:       s.cfg.Server.GraphWindow.String(),
		Destinations: summaries,
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "stats.html", page); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

// handleLatencyGraph renders min/avg/max round trips of one destination
func (s *Server) handleLatencyGraph(w http.ResponseWriter, r *http.Request) {
	destination := mux.Vars(r)["destination"]

	buckets, err := s.deps.Agg.Latency(r.Context(), destination, s.cfg.Server.GraphWindow, s.cfg.Server.BucketWidth)
	if err != nil {
		s.log.Error().Err(err).Str("destination", destination).Msg("latency query failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := report.RenderLatency(&buf, destination, buckets); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writePNG(w, buf.Bytes())
}

// handleTrafficGraph renders the raw upload/download samples of the traffic window
func (s *Server) handleTrafficGraph(w http.ResponseWriter, r *http.Request) {
	end := s.deps.Clock.Now()
	start := end.Add(-s.cfg.Server.TrafficWindow)

	samples, err := s.deps.Store.SelectTraffic(r.Context(), start)
	if err != nil {
		s.log.Error().Err(err).Msg("traffic query failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	ceiling := report.Options{MaxDownload: s.cfg.MaxDownload, MaxUpload: s.cfg.MaxUpload}.TrafficCeiling()
	if err := report.RenderTraffic(&buf, samples, start, end, ceiling); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writePNG(w, buf.Bytes())
}

// handlePacketLoss returns "D.DDD% (lost/expected)" for the loss window
func (s *Server) handlePacketLoss(w http.ResponseWriter, r *http.Request) {
	destination := mux.Vars(r)["destination"]

	loss, err := s.deps.Agg.PacketLoss(r.Context(), destination)
	if err != nil {
		s.log.Error().Err(err).Str("destination", destination).Msg("packet loss query failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, loss.String())
}

func writePNG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}

// snapshot reads the latest ping and traffic rows. Empty tables yield nil
// values rather than an error.
func (s *Server) snapshot(r *http.Request) (models.Snapshot, error) {
	var snap models.Snapshot
	at := s.deps.Clock.Now()

	ping, err := s.deps.Store.LatestPing(r.Context())
	switch {
	case err == nil:
		snap.Ping = ping.PingTime
		at = ping.RecordedAt
	case !errors.Is(err, models.ErrNoData):
		return snap, err
	}

	tr, err := s.deps.Store.LatestTraffic(r.Context())
	switch {
	case err == nil:
		snap.Download = &tr.Download
		snap.Upload = &tr.Upload
	case !errors.Is(err, models.ErrNoData):
		return snap, err
	}

	snap.Time = at.Local().Format("15:04:05")
	return snap, nil
}

// handleChartData streams one snapshot per interval until the client goes away.
func (s *Server) handleChartData(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	gauge := pushClients("chart-data")
	defer gauge.Dec()

	ticker := s.deps.Clock.NewTicker(s.cfg.Server.StreamInterval)
	defer ticker.Stop()

	for {
		snap, err := s.snapshot(r)
		if err != nil {
			// a store outage skips this tick; the stream stays open
			s.log.Warn().Err(err).Msg("chart-data: snapshot failed")
		} else {
			data, _ := json.Marshal(snap)
			if _, err := fmt.Fprintf(w, "data:%s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.Chan():
		}
	}
}
