package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"homenet-monitor/internal/config"
	"homenet-monitor/internal/models"
	"homenet-monitor/internal/report"
	"homenet-monitor/internal/traffic"
)

//go:embed templates/*.html
var templateFS embed.FS

// Store is the read side of the sample store used by the dashboard
type Store interface {
	LatestPing(ctx context.Context) (models.PingSample, error)
	LatestTraffic(ctx context.Context) (models.TrafficSample, error)
	SelectTraffic(ctx context.Context, since time.Time) ([]models.TrafficSample, error)
	Summaries(ctx context.Context, since time.Time) ([]models.DestinationSummary, error)
}

// Deps are the collaborators of the dashboard.
type Deps struct {
	Store   Store
	Agg     report.Aggregator
	Speed   models.SpeedTester
	Traffic traffic.Source
	Clock   clockwork.Clock
}

// Server handles web requests
type Server struct {
	deps      Deps
	cfg       config.Config
	log       zerolog.Logger
	templates *template.Template
	upgrader  websocket.Upgrader
}

// New creates a new web server
func New(cfg config.Config, deps Deps, log zerolog.Logger) (*Server, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"ms":         formatMillis,
		"pathEscape": url.PathEscape,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		deps:      deps,
		cfg:       cfg,
		log:       log,
		templates: tmpl,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s, nil
}

// Handler returns the routed dashboard.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/stats", http.StatusFound)
	}).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	// the literal route must win over the destination pattern
	r.HandleFunc("/graphs/traffic", s.handleTrafficGraph).Methods(http.MethodGet)
	r.HandleFunc("/graphs/{destination}", s.handleLatencyGraph).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/packetloss/{destination}", s.handlePacketLoss).Methods(http.MethodGet)
	r.HandleFunc("/chart-data", s.handleChartData).Methods(http.MethodGet)
	r.HandleFunc("/speedtest", s.handleSpeedtest)
	r.HandleFunc("/traffic", s.handleTrafficTail)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully. Streaming
// handlers observe the same cancellation through their request context.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", srv.Addr).Msg("web server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("web server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web server shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

// checkOrigin accepts same-host pages and clients that send no Origin.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Host == r.Host {
		return true
	}
	s.log.Warn().Str("origin", origin).Msg("websocket: rejected origin")
	return false
}

func formatMillis(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f ms", *v)
}
