package signaling

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/peerline/signaling-relay/internal/metrics"
)

// conn wraps one WebSocket and implements relay.Channel. All writes go
// through a bounded queue drained by a single write pump, so Emit never
// blocks the caller: when the queue is full the frame is dropped and
// counted instead. A client that cannot keep up loses messages, not the
// whole server.
type conn struct {
	ws      *websocket.Conn
	log     *slog.Logger
	metrics *metrics.Metrics

	pingInterval time.Duration
	writeTimeout time.Duration

	sendq chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

func newConn(ws *websocket.Conn, log *slog.Logger, m *metrics.Metrics, queueSize int, pingInterval, writeTimeout time.Duration) *conn {
	return &conn{
		ws:           ws,
		log:          log,
		metrics:      m,
		pingInterval: pingInterval,
		writeTimeout: writeTimeout,
		sendq:        make(chan []byte, queueSize),
		closed:       make(chan struct{}),
	}
}

// Emit satisfies relay.Channel.
func (c *conn) Emit(event string, args ...any) {
	frame, err := marshalEnvelope(event, nil, args)
	if err != nil {
		c.log.Warn("drop unmarshalable frame", "event", event, "err", err)
		return
	}
	c.enqueue(frame)
}

// ack replies to an envelope that carried an ackId.
func (c *conn) ack(ackID int64, args ...any) {
	frame, err := marshalEnvelope(eventAck, &ackID, args)
	if err != nil {
		c.log.Warn("drop unmarshalable ack", "ackId", ackID, "err", err)
		return
	}
	c.enqueue(frame)
}

func (c *conn) enqueue(frame []byte) {
	select {
	case c.sendq <- frame:
	case <-c.closed:
	default:
		c.metrics.Inc(metrics.DropSlowClient)
	}
}

// writePump is the only goroutine allowed to write to the socket.
func (c *conn) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()
	for {
		select {
		case frame := <-c.sendq:
			c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *conn) close() {
	c.closeOnce.Do(func() { close(c.closed) })
}
