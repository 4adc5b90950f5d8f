package metrics

import "sync"

// Event counter names.
const (
	SessionsCreated      = "sessions_created"
	SessionsRejected     = "sessions_rejected_too_many"
	SessionsExpired      = "sessions_expired"
	SessionsDeletedEmpty = "sessions_deleted_empty"

	Joins          = "joins"
	JoinNotFound   = "join_not_found"
	JoinSuperseded = "join_superseded"

	RelayForwarded      = "relay_forwarded"
	RelayDroppedQueue   = "relay_dropped_queue_full"
	RelayRejected       = "relay_rejected"
	DisconnectsJoined   = "disconnects_joined"
	DisconnectsUnjoined = "disconnects_unjoined"

	WSConnections   = "ws_connections"
	WSRateLimited   = "ws_rate_limited"
	WSOriginDenied  = "ws_origin_denied"
	WSMessageTooBig = "ws_message_too_big"
)

// Metrics is a concurrency-safe counter registry. A nil *Metrics is valid
// and discards every update.
type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

func New() *Metrics {
	return &Metrics{m: make(map[string]uint64)}
}

func (m *Metrics) Inc(name string) { m.Add(name, 1) }

func (m *Metrics) Add(name string, n uint64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.m[name] += n
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

// Snapshot returns a copy of all counters.
func (m *Metrics) Snapshot() map[string]uint64 {
	out := make(map[string]uint64)
	if m == nil {
		return out
	}
	m.mu.Lock()
	for k, v := range m.m {
		out[k] = v
	}
	m.mu.Unlock()
	return out
}
