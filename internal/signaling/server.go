package signaling

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/phoenix-visual-support/signal-relay/internal/metrics"
	"github.com/phoenix-visual-support/signal-relay/internal/relay"
)

const (
	DefaultMaxMessageBytes   = int64(8 << 20)
	DefaultMessagesPerSecond = 200
	DefaultSendQueue         = 256
	DefaultIdleTimeout       = 60 * time.Second
	DefaultPingInterval      = 20 * time.Second
)

const wsWriteWait = 5 * time.Second

// Config wires the signaling endpoint to the relay.
type Config struct {
	Hub     *relay.Hub
	Metrics *metrics.Metrics
	Logger  *slog.Logger

	// CheckOrigin decides whether a browser Origin may upgrade. Nil accepts
	// every origin; production wiring passes the httpserver origin policy.
	CheckOrigin func(r *http.Request) bool

	// MaxMessageBytes caps a single inbound frame. Screenshots travel as data
	// URLs, so this is generous.
	MaxMessageBytes int64
	// MessagesPerSecond limits inbound frames per connection; <= 0 disables
	// the limit.
	MessagesPerSecond int
	// SendQueue is the per-connection outbound buffer in frames.
	SendQueue int

	IdleTimeout  time.Duration
	PingInterval time.Duration
}

type Server struct {
	cfg      Config
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if cfg.SendQueue <= 0 {
		cfg.SendQueue = DefaultSendQueue
	}
	s := &Server{cfg: cfg, log: cfg.Logger}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", s.handleWebSocket)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if s.cfg.CheckOrigin == nil {
		return true
	}
	if s.cfg.CheckOrigin(r) {
		return true
	}
	s.cfg.Metrics.Inc(metrics.WSOriginDenied)
	s.log.Warn("websocket origin rejected", "origin", r.Header.Get("Origin"), "remote_addr", r.RemoteAddr)
	return false
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Hub == nil {
		http.Error(w, "relay not configured", http.StatusInternalServerError)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response.
		return
	}

	peer := newWSPeer(uuid.NewString(), conn, s.cfg.SendQueue, s.cfg.PingInterval)
	go peer.writePump()

	ch := s.cfg.Hub.NewChannel(peer)
	log := s.log.With("conn_id", peer.id)
	log.Debug("websocket connected", "remote_addr", r.RemoteAddr)

	s.readLoop(peer, ch, log)

	ch.Disconnect()
	peer.Close("connection finished")
	<-peer.pumpDone
	log.Debug("websocket closed", "reason", peer.reason())
}

func (s *Server) readLoop(peer *wsPeer, ch *relay.Channel, log *slog.Logger) {
	conn := peer.conn
	conn.SetReadLimit(s.cfg.MaxMessageBytes)

	idle := s.cfg.IdleTimeout
	extend := func() {
		if idle > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(idle))
		}
	}
	extend()
	conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	limit := rate.Inf
	burst := 0
	if s.cfg.MessagesPerSecond > 0 {
		limit = rate.Limit(s.cfg.MessagesPerSecond)
		burst = s.cfg.MessagesPerSecond
	}
	limiter := rate.NewLimiter(limit, burst)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			switch {
			case errors.Is(err, websocket.ErrReadLimit):
				s.cfg.Metrics.Inc(metrics.WSMessageTooBig)
				log.Warn("signaling message too large", "limit_bytes", s.cfg.MaxMessageBytes)
				peer.closeWith(websocket.CloseMessageTooBig, "message too large")
			case isTimeout(err):
				peer.closeWith(websocket.CloseNormalClosure, "idle timeout")
			}
			return
		}
		extend()

		// Rate limiting applies after the read so a close frame is not lost to
		// an abortive reset over unread bytes.
		if !limiter.Allow() {
			s.cfg.Metrics.Inc(metrics.WSRateLimited)
			peer.fail("rate_limited", "rate limit exceeded", websocket.ClosePolicyViolation, "rate limit exceeded")
			return
		}
		if msgType != websocket.TextMessage {
			peer.fail(relay.CodeBadMessage, "expected text message", websocket.CloseUnsupportedData, "expected text message")
			return
		}

		if err := ch.Handle(data); err != nil {
			var protoErr *relay.ProtocolError
			if !errors.As(err, &protoErr) {
				log.Error("relay dispatch failed", "err", err)
				peer.fail("internal_error", "internal error", websocket.CloseInternalServerErr, "internal error")
				return
			}
			log.Debug("protocol error", "code", protoErr.Code, "message", protoErr.Message)
			peer.Send(relay.EncodeError(protoErr.Code, protoErr.Message))
		}
		if ch.State() == relay.StateClosed {
			// Superseded by another connection; the write pump is closing.
			return
		}
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
