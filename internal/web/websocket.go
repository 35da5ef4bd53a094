package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"homenet-monitor/internal/metrics"
	"homenet-monitor/internal/traffic"
)

const writeWait = 10 * time.Second

// Message is the envelope of both push channels.
type Message struct {
	Event string `json:"event"`
	Data  string `json:"data"`
}

func pushClients(channel string) prometheus.Gauge {
	g := metrics.PushClients.WithLabelValues(channel)
	g.Inc()
	return g
}

// session owns one upgraded connection. All writes go through out so only
// one goroutine ever writes to the socket.
type session struct {
	conn *websocket.Conn
	out  chan Message
	log  zerolog.Logger
}

func newSession(conn *websocket.Conn, log zerolog.Logger) *session {
	return &session{conn: conn, out: make(chan Message), log: log}
}

// send queues msg for the writer. It reports false once the session is over.
func (s *session) send(ctx context.Context, msg Message) bool {
	select {
	case s.out <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *session) writeLoop(ctx context.Context) error {
	// unblock the reader if writing fails first
	defer s.conn.SetReadDeadline(time.Now())
	for {
		select {
		case <-ctx.Done():
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil
		case msg := <-s.out:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(msg); err != nil {
				return fmt.Errorf("write %s: %w", msg.Event, err)
			}
		}
	}
}

// readLoop hands each client message to handle and returns when the peer
// disconnects.
func (s *session) readLoop(handle func(Message)) error {
	for {
		var msg Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Err(err).Msg("websocket closed")
			}
			return errDisconnected
		}
		if handle != nil {
			handle(msg)
		}
	}
}

var errDisconnected = errors.New("client disconnected")

func (s *Server) upgrade(w http.ResponseWriter, r *http.Request, channel string) (*session, bool) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("channel", channel).Msg("websocket upgrade failed")
		return nil, false
	}
	return newSession(conn, s.log.With().Str("channel", channel).Logger()), true
}

// handleSpeedtest runs one speed test per start_test event and answers each
// with a single testing event. Tests run concurrently and are killed when
// the client disconnects.
func (s *Server) handleSpeedtest(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.upgrade(w, r, "speedtest")
	if !ok {
		return
	}
	defer sess.conn.Close()
	defer pushClients("speedtest").Dec()

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error { return sess.writeLoop(ctx) })
	g.Go(func() error {
		return sess.readLoop(func(msg Message) {
			if msg.Event != "start_test" {
				return
			}
			g.Go(func() error {
				sess.send(ctx, Message{Event: "testing", Data: s.runSpeedtest(ctx)})
				return nil
			})
		})
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errDisconnected) {
		sess.log.Debug().Err(err).Msg("speedtest session ended")
	}
}

func (s *Server) runSpeedtest(ctx context.Context) string {
	s.log.Info().Msg("speedtest started")
	out, err := s.deps.Speed.Run(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("speedtest failed")
		if out == "" {
			return err.Error()
		}
		return out + "\n" + err.Error()
	}
	return out
}

// handleTrafficTail pushes one traffic event per live interface-stat line
// until the client disconnects. Nothing is recorded in the store.
func (s *Server) handleTrafficTail(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.upgrade(w, r, "traffic")
	if !ok {
		return
	}
	defer sess.conn.Close()
	defer pushClients("traffic").Dec()

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error { return sess.writeLoop(ctx) })
	g.Go(func() error { return sess.readLoop(nil) })
	g.Go(func() error {
		for line := range traffic.Tail(ctx, s.deps.Traffic, sess.log) {
			if !sess.send(ctx, Message{Event: "traffic", Data: line}) {
				break
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errDisconnected) {
		sess.log.Debug().Err(err).Msg("traffic session ended")
	}
}
