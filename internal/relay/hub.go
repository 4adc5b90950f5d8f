package relay

import (
	"log/slog"
	"sync"

	"github.com/phoenix-visual-support/signal-relay/internal/metrics"
	"github.com/phoenix-visual-support/signal-relay/internal/session"
)

// Peer is the transport side of one connection.
type Peer interface {
	// ID returns the connection id recorded in the registry.
	ID() string
	// Send enqueues a frame without blocking. It returns false when the frame
	// was dropped.
	Send(frame []byte) bool
	// Close terminates the transport connection.
	Close(reason string)
}

// Hub tracks which channels are in which session room. It never mutates
// session state directly; presence changes go through the Registry.
type Hub struct {
	registry *session.Registry
	metrics  *metrics.Metrics
	log      *slog.Logger

	mu    sync.Mutex
	rooms map[string]map[*Channel]struct{}
	// conns holds every channel that has not disconnected, joined or not.
	conns map[*Channel]struct{}
}

func NewHub(registry *session.Registry, m *metrics.Metrics, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		registry: registry,
		metrics:  m,
		log:      logger,
		rooms:    make(map[string]map[*Channel]struct{}),
		conns:    make(map[*Channel]struct{}),
	}
}

// NewChannel returns an Unjoined channel bound to peer.
func (h *Hub) NewChannel(peer Peer) *Channel {
	c := &Channel{hub: h, peer: peer}
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
	h.metrics.Inc(metrics.WSConnections)
	return c
}

// forget stops tracking c for shutdown.
func (h *Hub) forget(c *Channel) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

// join records c as the holder of role in the registry and adds it to the
// room in one critical section, so two racing joins for the same role can
// never both stay attached. The previous holder, if any, is removed from the
// room and returned for eviction along with the other remaining members.
func (h *Hub) join(c *Channel, sessionID string, role session.Role) (res session.JoinResult, evicted *Channel, others []*Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()

	res = h.registry.MarkJoined(sessionID, role, c.peer.ID())
	if res.Status == session.JoinNotFound {
		return res, nil, nil
	}

	room := h.rooms[sessionID]
	if room == nil {
		room = make(map[*Channel]struct{})
		h.rooms[sessionID] = room
	}
	if res.SupersededConnID != "" {
		for member := range room {
			if member != c && member.peer.ID() == res.SupersededConnID {
				delete(room, member)
				evicted = member
				break
			}
		}
	}
	for member := range room {
		others = append(others, member)
	}
	room[c] = struct{}{}
	return res, evicted, others
}

// detach removes c from its room and returns the members left behind.
// member is false when c was no longer in the room, for example after a
// newer connection took over its role.
func (h *Hub) detach(c *Channel, sessionID string) (others []*Channel, member bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := h.rooms[sessionID]
	if _, ok := room[c]; !ok {
		return nil, false
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, sessionID)
		return nil, true
	}
	others = make([]*Channel, 0, len(room))
	for m := range room {
		others = append(others, m)
	}
	return others, true
}

func (h *Hub) others(sessionID string, except *Channel) []*Channel {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := h.rooms[sessionID]
	out := make([]*Channel, 0, len(room))
	for member := range room {
		if member != except {
			out = append(out, member)
		}
	}
	return out
}

// broadcast sends frame to every target and reports how many accepted it.
func (h *Hub) broadcast(targets []*Channel, frame []byte) int {
	sent := 0
	for _, t := range targets {
		if t.peer.Send(frame) {
			sent++
			continue
		}
		h.metrics.Inc(metrics.RelayDroppedQueue)
	}
	return sent
}

// RoomSize returns the number of connections in the room for sessionID.
func (h *Hub) RoomSize(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[sessionID])
}

// NotifyExpired tells every connection still attached to a swept session
// that the registry no longer tracks it. Connections are left open.
func (h *Hub) NotifyExpired(ids []string) {
	for _, id := range ids {
		members := h.others(id, nil)
		if len(members) == 0 {
			continue
		}
		h.broadcast(members, mustMarshal(sessionExpiredNotice{Type: KindSessionExpired, SessionID: id}))
		h.log.Info("session expired with live connections", "session_id", id, "connections", len(members))
	}
}

// Close disconnects every live connection, including ones that never
// joined a session. It is used during shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	all := make([]*Channel, 0, len(h.conns))
	for c := range h.conns {
		all = append(all, c)
	}
	h.mu.Unlock()

	for _, c := range all {
		c.peer.Close("server shutting down")
	}
}
