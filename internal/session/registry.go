package session

import (
	"sync"
	"time"
)

// Clock abstracts time for expiry tests.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// ExpiryBasis selects which timestamp SweepExpired measures age from.
type ExpiryBasis string

const (
	// ExpireByCreated enforces a hard ceiling on session lifetime: a session
	// is swept once it is older than the retention window even while both
	// parties are still connected.
	ExpireByCreated ExpiryBasis = "created"
	// ExpireByLastActive measures age from the most recent join or relay.
	ExpireByLastActive ExpiryBasis = "last_active"
)

// Session is a point-in-time copy of a registry entry.
type Session struct {
	ID         string
	CreatedAt  time.Time
	LastActive time.Time

	TechnicianPresent bool
	CustomerPresent   bool
	TechnicianConnID  string
	CustomerConnID    string
}

// Present reports whether role is currently attached.
func (s Session) Present(role Role) bool {
	if role == RoleTechnician {
		return s.TechnicianPresent
	}
	return s.CustomerPresent
}

// ConnID returns the connection currently recorded for role.
func (s Session) ConnID(role Role) string {
	if role == RoleTechnician {
		return s.TechnicianConnID
	}
	return s.CustomerConnID
}

type JoinStatus string

const (
	JoinOK         JoinStatus = "ok"
	JoinNotFound   JoinStatus = "not_found"
	JoinSuperseded JoinStatus = "superseded"
)

// JoinResult describes the outcome of MarkJoined. SupersededConnID is set
// only for JoinSuperseded and names the connection that previously held the
// role.
type JoinResult struct {
	Status           JoinStatus
	SupersededConnID string
}

type Options struct {
	Clock Clock
	// NewID overrides the crypto-random id source (tests).
	NewID IDGenerator
	// MaxSessions caps live sessions; <= 0 means unlimited.
	MaxSessions int
	Basis       ExpiryBasis
}

// Registry maps session ids to session state. All methods are safe for
// concurrent use; a single mutex serializes create, join, leave and sweep.
type Registry struct {
	clock       Clock
	newID       IDGenerator
	maxSessions int
	basis       ExpiryBasis

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(opts Options) *Registry {
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.NewID == nil {
		opts.NewID = newSessionID
	}
	if opts.Basis == "" {
		opts.Basis = ExpireByCreated
	}
	return &Registry{
		clock:       opts.Clock,
		newID:       opts.NewID,
		maxSessions: opts.MaxSessions,
		basis:       opts.Basis,
		sessions:    make(map[string]*Session),
	}
}

// CreateSession allocates a fresh id and registers an empty session under
// it.
func (r *Registry) CreateSession() (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		id, err := r.newID()
		if err != nil {
			return "", err
		}

		r.mu.Lock()
		if r.maxSessions > 0 && len(r.sessions) >= r.maxSessions {
			r.mu.Unlock()
			return "", ErrTooManySessions
		}
		if _, taken := r.sessions[id]; taken {
			r.mu.Unlock()
			continue
		}
		now := r.clock.Now()
		r.sessions[id] = &Session{ID: id, CreatedAt: now, LastActive: now}
		r.mu.Unlock()
		return id, nil
	}
	return "", ErrIDExhausted
}

func (r *Registry) Exists(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	return ok
}

func (r *Registry) Get(id string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// MarkJoined records connID as the live connection for role. A join for an
// unknown id is dropped and reported as JoinNotFound. A join for a role that
// another connection already holds replaces it (last write wins) and reports
// the previous holder so the caller can evict it.
func (r *Registry) MarkJoined(id string, role Role, connID string) JoinResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		return JoinResult{Status: JoinNotFound}
	}

	res := JoinResult{Status: JoinOK}
	if prev := sess.ConnID(role); sess.Present(role) && prev != "" && prev != connID {
		res = JoinResult{Status: JoinSuperseded, SupersededConnID: prev}
	}

	switch role {
	case RoleTechnician:
		sess.TechnicianPresent = true
		sess.TechnicianConnID = connID
	default:
		sess.CustomerPresent = true
		sess.CustomerConnID = connID
	}
	sess.LastActive = r.clock.Now()
	return res
}

// MarkLeft clears role's presence flag. If connID is non-empty the flag is
// only cleared when connID still owns the role. The session is deleted as
// soon as neither role is present; the return value reports that deletion.
func (r *Registry) MarkLeft(id string, role Role, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		return false
	}
	if connID != "" && sess.ConnID(role) != connID {
		return false
	}

	switch role {
	case RoleTechnician:
		sess.TechnicianPresent = false
		sess.TechnicianConnID = ""
	default:
		sess.CustomerPresent = false
		sess.CustomerConnID = ""
	}

	if !sess.TechnicianPresent && !sess.CustomerPresent {
		delete(r.sessions, id)
		return true
	}
	return false
}

// Touch refreshes the session's last-activity timestamp.
func (r *Registry) Touch(id string) {
	r.mu.Lock()
	if sess, ok := r.sessions[id]; ok {
		sess.LastActive = r.clock.Now()
	}
	r.mu.Unlock()
}

// SweepExpired deletes every session whose age exceeds maxAge, regardless
// of presence. Connections still attached to a swept session are not
// closed; they simply lose their registry entry. Deleted ids are returned.
func (r *Registry) SweepExpired(maxAge time.Duration) []string {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []string
	for id, sess := range r.sessions {
		since := sess.CreatedAt
		if r.basis == ExpireByLastActive {
			since = sess.LastActive
		}
		if now.Sub(since) > maxAge {
			delete(r.sessions, id)
			expired = append(expired, id)
		}
	}
	return expired
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Clear drops every session. It is called once at shutdown.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
}
