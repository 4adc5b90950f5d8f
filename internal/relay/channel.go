package relay

import (
	"sync"

	"github.com/phoenix-visual-support/signal-relay/internal/metrics"
	"github.com/phoenix-visual-support/signal-relay/internal/session"
)

type State int

const (
	StateUnjoined State = iota
	StateJoined
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnjoined:
		return "unjoined"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Channel is the per-connection dispatcher. Handle and Disconnect must be
// called from the connection's read goroutine; eviction may happen from any
// goroutine.
//
// Lock order is Channel.mu, then Hub.mu, then the registry. No goroutine
// holds two Channel locks at once.
type Channel struct {
	hub  *Hub
	peer Peer

	mu        sync.Mutex
	state     State
	sessionID string
	role      session.Role
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the joined session, or "" while Unjoined.
func (c *Channel) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Channel) Role() session.Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

// Handle decodes and dispatches one inbound frame. A *ProtocolError result
// means the frame was rejected and nothing was forwarded.
func (c *Channel) Handle(data []byte) error {
	env, err := parseEnvelope(data)
	if err != nil {
		return protocolErrorf(CodeBadMessage, "%v", err)
	}

	if env.Type == KindJoinSession {
		return c.join(env)
	}
	fields, ok := ForwardedFields(env.Type)
	if !ok {
		return protocolErrorf(CodeUnknownKind, "unsupported message type %q", env.Type)
	}
	return c.relay(env, fields)
}

func (c *Channel) join(env envelope) error {
	role, err := session.ParseRole(env.Role)
	if err != nil {
		return protocolErrorf(CodeInvalidRole, "%v", err)
	}
	if env.SessionID == "" {
		return protocolErrorf(CodeMissingSessionID, "join-session requires sessionId")
	}

	c.mu.Lock()
	switch c.state {
	case StateJoined:
		joined := c.sessionID
		c.mu.Unlock()
		return protocolErrorf(CodeAlreadyJoined, "already joined session %s", joined)
	case StateClosed:
		c.mu.Unlock()
		return protocolErrorf(CodeClosed, "connection closed")
	}

	h := c.hub
	res, evicted, others := h.join(c, env.SessionID, role)
	if res.Status == session.JoinNotFound {
		c.mu.Unlock()
		h.metrics.Inc(metrics.JoinNotFound)
		h.log.Info("join rejected: session not found", "session_id", env.SessionID, "role", role, "conn_id", c.peer.ID())
		c.peer.Send(mustMarshal(joinResultNotice{
			Type:      KindJoinResult,
			Status:    string(session.JoinNotFound),
			SessionID: env.SessionID,
		}))
		return nil
	}
	c.state = StateJoined
	c.sessionID = env.SessionID
	c.role = role
	c.mu.Unlock()

	if evicted != nil {
		evicted.evict()
		h.metrics.Inc(metrics.JoinSuperseded)
		h.log.Info("connection superseded", "session_id", env.SessionID, "role", role, "old_conn_id", evicted.peer.ID(), "conn_id", c.peer.ID())
	}

	h.broadcast(others, mustMarshal(roleNotice{Type: KindPeerJoined, Role: string(role)}))
	c.peer.Send(mustMarshal(joinResultNotice{
		Type:      KindJoinResult,
		Status:    string(res.Status),
		SessionID: env.SessionID,
		Role:      string(role),
	}))

	h.metrics.Inc(metrics.Joins)
	h.log.Info("joined session", "session_id", env.SessionID, "role", role, "conn_id", c.peer.ID(), "room_size", len(others)+1)
	return nil
}

func (c *Channel) relay(env envelope, fields []string) error {
	h := c.hub

	c.mu.Lock()
	state, joined := c.state, c.sessionID
	c.mu.Unlock()

	if state != StateJoined {
		h.metrics.Inc(metrics.RelayRejected)
		return protocolErrorf(CodeNotJoined, "%s sent before join-session", env.Type)
	}
	if env.SessionID == "" {
		h.metrics.Inc(metrics.RelayRejected)
		return protocolErrorf(CodeMissingSessionID, "%s requires sessionId", env.Type)
	}
	if env.SessionID != joined {
		h.metrics.Inc(metrics.RelayRejected)
		return protocolErrorf(CodeSessionMismatch, "connection is joined to a different session")
	}

	frame, err := encodeRelay(env.Type, env, fields)
	if err != nil {
		return protocolErrorf(CodeBadMessage, "%v", err)
	}

	sent := h.broadcast(h.others(joined, c), frame)
	h.metrics.Add(metrics.RelayForwarded, uint64(sent))
	h.registry.Touch(joined)
	h.log.Debug("relayed event", "session_id", joined, "kind", env.Type, "conn_id", c.peer.ID(), "recipients", sent)
	return nil
}

// Disconnect runs the leave protocol once. A connection that never joined
// leaves the registry untouched.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	prev := c.state
	c.state = StateClosed
	sessionID, role := c.sessionID, c.role
	c.mu.Unlock()

	h := c.hub
	h.forget(c)
	switch prev {
	case StateClosed:
		return
	case StateUnjoined:
		h.metrics.Inc(metrics.DisconnectsUnjoined)
		return
	}

	others, member := h.detach(c, sessionID)
	if member {
		h.broadcast(others, mustMarshal(roleNotice{Type: KindPeerDisconnected, Role: string(role)}))
	}
	deleted := h.registry.MarkLeft(sessionID, role, c.peer.ID())

	h.metrics.Inc(metrics.DisconnectsJoined)
	if deleted {
		h.metrics.Inc(metrics.SessionsDeletedEmpty)
	}
	h.log.Info("left session", "session_id", sessionID, "role", role, "conn_id", c.peer.ID(), "session_deleted", deleted)
}

// evict closes a connection whose role was taken over by a newer join. It
// has already been removed from the room, so no peer-disconnected notice is
// sent and its registry slot belongs to the successor.
func (c *Channel) evict() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	c.mu.Unlock()

	c.peer.Send(EncodeError(CodeSuperseded, "another connection joined with the same role"))
	c.peer.Close("superseded")
}
