package signaling

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/peerline/signaling-relay/internal/auditlog"
	"github.com/peerline/signaling-relay/internal/config"
	"github.com/peerline/signaling-relay/internal/metrics"
	"github.com/peerline/signaling-relay/internal/origin"
	"github.com/peerline/signaling-relay/internal/ratelimit"
	"github.com/peerline/signaling-relay/internal/relay"
)

// BroadcastHook is invoked for connections whose handshake carries
// enableBroadcast=true. relayLimit is the configured viewer cap per
// broadcaster. The hook must not retain the lock-free channel beyond the
// connection's lifetime.
type BroadcastHook func(ch relay.Channel, relayLimit int)

// Options configures a Server beyond the service-wide Config.
type Options struct {
	// Clock drives the per-connection rate limiter; nil means wall clock.
	Clock ratelimit.Clock
	// BroadcastHook is optional.
	BroadcastHook BroadcastHook
}

// Server upgrades signaling connections and pumps their events into the
// relay engine.
type Server struct {
	log     *slog.Logger
	cfg     config.Config
	engine  *relay.Engine
	metrics *metrics.Metrics
	audit   *auditlog.Logger

	clock         ratelimit.Clock
	broadcastHook BroadcastHook

	upgrader websocket.Upgrader
}

func NewServer(log *slog.Logger, cfg config.Config, engine *relay.Engine, m *metrics.Metrics, audit *auditlog.Logger, opts Options) *Server {
	if audit == nil {
		audit = auditlog.Nop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = ratelimit.RealClock{}
	}
	s := &Server{
		log:           log,
		cfg:           cfg,
		engine:        engine,
		metrics:       m,
		audit:         audit,
		clock:         clock,
		broadcastHook: opts.BroadcastHook,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return origin.Allowed(r.Header.Get("Origin"), r.Host, cfg.AllowedOrigins)
		},
	}
	return s
}

// handshake is the per-connection parameter set parsed from the upgrade
// request's query string.
type handshake struct {
	relay.Handshake
	enableBroadcast bool
}

func parseHandshake(q url.Values, cfg config.Config) handshake {
	hs := handshake{}

	hs.UserID = q.Get("userid")
	if hs.UserID == "" {
		hs.UserID = uuid.NewString()
	}

	hs.MessageEvent = q.Get("msgEvent")
	if hs.MessageEvent == "" {
		hs.MessageEvent = cfg.DefaultMessageEvent
	}
	if hs.MessageEvent == "" {
		hs.MessageEvent = relay.DefaultMessageEvent
	}

	hs.SessionID = q.Get("sessionid")
	hs.AutoClose = q.Get("autoCloseEntireSession") != "false"
	hs.OneToMany = q.Get("oneToMany") == "true"
	hs.enableBroadcast = q.Get("enableBroadcast") == "true"

	if raw := q.Get("extra"); raw != "" {
		if json.Valid([]byte(raw)) {
			hs.Extra = json.RawMessage(raw)
		} else if enc, err := json.Marshal(raw); err == nil {
			// Non-JSON extras travel as a JSON string, matching what clients
			// get back from presence and directory queries.
			hs.Extra = enc
		}
	}

	if raw := q.Get("maxParticipantsAllowed"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			hs.MaxParticipants = n
		}
	}

	return hs
}

// relayLimit resolves the broadcast viewer cap for one connection, preferring
// the handshake's own value over the configured default.
func relayLimit(q url.Values, cfg config.Config) int {
	if raw := q.Get("maxRelayLimitPerUser"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return cfg.BroadcastRelayLimit
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.log.Debug("websocket upgrade rejected", "remote", r.RemoteAddr, "err", err)
		return
	}

	q := r.URL.Query()
	hs := parseHandshake(q, s.cfg)

	c := newConn(ws, s.log.With("userid", hs.UserID), s.metrics,
		s.cfg.SendQueueSize, s.cfg.WSPingInterval, s.cfg.WSIdleTimeout/3)
	go c.writePump()

	client := s.engine.Connect(c, hs.Handshake)
	s.metrics.Inc(metrics.WSConnections)
	s.log.Info("connection open", "userid", hs.UserID, "remote", r.RemoteAddr)

	if hs.enableBroadcast && s.broadcastHook != nil {
		s.broadcastHook(c, relayLimit(q, s.cfg))
	}

	s.readLoop(ws, c, client, hs.MessageEvent)

	client.Disconnect()
	c.close()
	s.metrics.Inc(metrics.WSDisconnects)
	s.log.Info("connection closed", "userid", client.UserID())
}

func (s *Server) readLoop(ws *websocket.Conn, c *conn, client *relay.Client, msgEvent string) {
	ws.SetReadLimit(s.cfg.MaxSignalingMessageBytes)
	ws.SetReadDeadline(time.Now().Add(s.cfg.WSIdleTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(s.cfg.WSIdleTimeout))
	})

	limiter := ratelimit.NewTokenBucket(s.clock,
		int64(s.cfg.MaxSignalingMessagesPerSecond),
		int64(s.cfg.MaxSignalingMessagesPerSecond))

	// Custom event names this connection registered for rebroadcast.
	custom := make(map[string]struct{})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if errors.Is(err, websocket.ErrReadLimit) {
				s.metrics.Inc(metrics.DropOversized)
			}
			return
		}
		ws.SetReadDeadline(time.Now().Add(s.cfg.WSIdleTimeout))

		if !limiter.Allow(1) {
			s.metrics.Inc(metrics.DropRateLimited)
			s.log.Warn("message rate exceeded, closing", "userid", client.UserID())
			ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "message rate exceeded"),
				time.Now().Add(time.Second))
			return
		}

		env, err := parseEnvelope(data)
		if err != nil {
			s.metrics.Inc(metrics.DropBadEnvelope)
			s.log.Debug("drop bad envelope", "userid", client.UserID(), "err", err)
			continue
		}

		s.dispatch(client, c, env, msgEvent, custom)
	}
}
