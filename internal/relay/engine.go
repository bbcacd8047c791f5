package relay

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/peerline/signaling-relay/internal/auditlog"
	"github.com/peerline/signaling-relay/internal/metrics"
)

// Channel is the engine's view of one connected client. Implementations queue
// or drop; Emit must never block, because the engine emits while holding its
// registry lock.
type Channel interface {
	Emit(event string, args ...any)
}

type Config struct {
	// DefaultMaxParticipants is the room capacity applied to connections that
	// do not negotiate their own.
	DefaultMaxParticipants int
	// PasswordMaxTries is the number of failed password attempts allowed per
	// connection before joins are rejected permanently.
	PasswordMaxTries int
	// PresencePollInterval and PresencePollAttempts bound the absent-peer
	// wait: a join targeting an unregistered initiator is retried once per
	// interval, up to the attempt budget.
	PresencePollInterval time.Duration
	PresencePollAttempts int
}

const (
	DefaultMaxParticipants      = 1000
	DefaultPasswordMaxTries     = 3
	DefaultPresencePollInterval = time.Second
	DefaultPresencePollAttempts = 600
)

func (c Config) WithDefaults() Config {
	if c.DefaultMaxParticipants <= 0 {
		c.DefaultMaxParticipants = DefaultMaxParticipants
	}
	if c.PasswordMaxTries <= 0 {
		c.PasswordMaxTries = DefaultPasswordMaxTries
	}
	if c.PresencePollInterval <= 0 {
		c.PresencePollInterval = DefaultPresencePollInterval
	}
	if c.PresencePollAttempts <= 0 {
		c.PresencePollAttempts = DefaultPresencePollAttempts
	}
	return c
}

// Engine owns the user registry, the connection graph embedded in it, and the
// deferred moderation message store.
type Engine struct {
	cfg     Config
	log     *slog.Logger
	metrics *metrics.Metrics
	audit   *auditlog.Logger

	mu    sync.Mutex
	users map[string]*record
	// order is the registry's insertion order; the public moderator directory
	// scans it instead of the map to keep results deterministic.
	order    []string
	deferred map[string]Message
}

func New(cfg Config, logger *slog.Logger, m *metrics.Metrics, audit *auditlog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if m == nil {
		m = metrics.New()
	}
	if audit == nil {
		audit = auditlog.Nop()
	}
	return &Engine{
		cfg:      cfg.WithDefaults(),
		log:      logger,
		metrics:  m,
		audit:    audit,
		users:    make(map[string]*record),
		deferred: make(map[string]Message),
	}
}

// Handshake carries the per-connection parameters supplied by the transport
// at connection time.
type Handshake struct {
	UserID       string
	MessageEvent string
	SessionID    string
	// AutoClose is false when the handshake carried
	// autoCloseEntireSession=false, i.e. the session should outlive its
	// opener.
	AutoClose       bool
	Extra           json.RawMessage
	MaxParticipants int
	OneToMany       bool
}

// Connect registers the connection's identifier and returns its engine
// handle. A pre-existing record for the identifier (live or placeholder) is
// replaced; its extra data is retained when the handshake carries none.
func (e *Engine) Connect(ch Channel, hs Handshake) *Client {
	if hs.MessageEvent == "" {
		hs.MessageEvent = DefaultMessageEvent
	}

	c := &Client{
		e:                 e,
		ch:                ch,
		userID:            hs.UserID,
		msgEvent:          hs.MessageEvent,
		sessionID:         hs.SessionID,
		oneToMany:         hs.OneToMany,
		hsExtra:           hs.Extra,
		hsMaxParticipants: hs.MaxParticipants,
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rec := e.registerLocked(hs.UserID, ch, hs.Extra, hs.MaxParticipants)
	if !hs.AutoClose && len(e.users) == 1 {
		// Sole occupant of a session expected to persist past their
		// departure: hand moderation to whoever is linked at disconnect time.
		rec.shiftModerationOnLeave = true
	}
	e.metrics.Inc(metrics.UsersRegistered)
	return c
}

// registerLocked creates or replaces the record for id. Replacement resets
// the connection graph and password but keeps prior extra data (unless new
// extra is supplied) and the moderation handoff flag.
func (e *Engine) registerLocked(id string, ch Channel, extra json.RawMessage, maxParticipants int) *record {
	prev := e.users[id]

	rec := &record{
		id:              id,
		ch:              ch,
		edges:           newEdgeList(),
		maxParticipants: maxParticipants,
	}
	if rec.maxParticipants <= 0 {
		rec.maxParticipants = e.cfg.DefaultMaxParticipants
	}
	if prev != nil {
		rec.extra = prev.extra
		rec.shiftModerationOnLeave = prev.shiftModerationOnLeave
	}
	if len(extra) > 0 {
		rec.extra = extra
	}

	e.users[id] = rec
	if prev == nil {
		e.order = append(e.order, id)
	}
	return rec
}

// placeholderLocked creates a pending record for an identifier referenced
// before its owner connected.
func (e *Engine) placeholderLocked(id string) *record {
	rec := &record{
		id:              id,
		edges:           newEdgeList(),
		maxParticipants: e.cfg.DefaultMaxParticipants,
	}
	e.users[id] = rec
	e.order = append(e.order, id)
	return rec
}

func (e *Engine) removeLocked(id string) {
	if _, ok := e.users[id]; !ok {
		return
	}
	delete(e.users, id)
	for i, v := range e.order {
		if v == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

// Lookup returns a snapshot of the record for id.
func (e *Engine) Lookup(id string) (Info, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, ok := e.users[id]
	if !ok {
		return Info{}, false
	}
	return rec.snapshot(), true
}

// BroadcastCustom relays a custom event to every registered live channel
// except origin. Channels shared by multiple identifiers receive the event
// once.
func (e *Engine) BroadcastCustom(origin Channel, event string, payload json.RawMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()

	seen := make(map[Channel]struct{})
	for _, id := range e.order {
		rec := e.users[id]
		if rec == nil || rec.ch == nil || rec.ch == origin {
			continue
		}
		if _, dup := seen[rec.ch]; dup {
			continue
		}
		seen[rec.ch] = struct{}{}
		rec.ch.Emit(event, payload)
	}
}

// guard runs fn and swallows panics so one participant's malformed input
// cannot take down the relay. Faults are counted and pushed to the audit log.
func (e *Engine) guard(op string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			e.metrics.Inc(metrics.HandlerFaults)
			e.audit.Push(op, rec)
			e.log.Error("recovered handler fault", "op", op, "recover", rec)
		}
	}()
	fn()
}
