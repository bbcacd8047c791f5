package metrics

import "sync"

// Counter names. Kept as plain strings so new counters do not require schema
// changes anywhere else.
const (
	WSConnections = "ws_connections"
	WSDisconnects = "ws_disconnects"

	UsersRegistered = "users_registered"
	UsersRemoved    = "users_removed"

	JoinRequests       = "join_requests"
	JoinsFannedOut     = "joins_fanned_out"
	JoinsRejectedFull  = "joins_rejected_room_full"
	PasswordRejections = "password_rejections"
	UserNotFound       = "user_not_found"

	MessagesRelayed = "messages_relayed"
	MessagesDropped = "messages_dropped_no_edge"

	ModeratorHandoffs = "moderator_handoffs"
	HandlerFaults     = "handler_faults"

	DropSlowClient  = "dropped_slow_client"
	DropRateLimited = "dropped_rate_limited"
	DropOversized   = "dropped_oversized_message"
	DropBadEnvelope = "dropped_bad_envelope"
)

// Metrics is a minimal, concurrency-safe counter registry. The zero value is
// ready to use.
type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

func New() *Metrics {
	return &Metrics{m: make(map[string]uint64)}
}

func (m *Metrics) Inc(name string) {
	m.Add(name, 1)
}

func (m *Metrics) Add(name string, delta uint64) {
	m.mu.Lock()
	if m.m == nil {
		m.m = make(map[string]uint64)
	}
	m.m[name] += delta
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

// Snapshot returns a copy of all counters.
func (m *Metrics) Snapshot() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]uint64, len(m.m))
	for k, v := range m.m {
		out[k] = v
	}
	return out
}
