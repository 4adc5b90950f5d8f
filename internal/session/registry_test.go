package session

import (
	"sort"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func fixedIDs(ids ...string) IDGenerator {
	var mu sync.Mutex
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		id := ids[0]
		if len(ids) > 1 {
			ids = ids[1:]
		}
		return id, nil
	}
}

func TestRegistry_CreateSessionExists(t *testing.T) {
	r := NewRegistry(Options{})

	id, err := r.CreateSession()
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if !ValidID(id) {
		t.Fatalf("id=%q is not a valid session id", id)
	}
	if !r.Exists(id) {
		t.Fatalf("Exists(%q)=false right after CreateSession", id)
	}

	sess, ok := r.Get(id)
	if !ok {
		t.Fatalf("Get(%q) missing", id)
	}
	if sess.TechnicianPresent || sess.CustomerPresent {
		t.Fatalf("new session has presence flags set: %+v", sess)
	}
}

func TestRegistry_ExistsFalseForUnknownID(t *testing.T) {
	r := NewRegistry(Options{})
	if _, err := r.CreateSession(); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if r.Exists("unknown-id") {
		t.Fatalf("Exists(unknown-id)=true")
	}
}

func TestRegistry_CreateSessionRetriesOnCollision(t *testing.T) {
	r := NewRegistry(Options{NewID: fixedIDs("ab12cd34", "ab12cd34", "zz99yy88")})

	first, err := r.CreateSession()
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	second, err := r.CreateSession()
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if first != "ab12cd34" || second != "zz99yy88" {
		t.Fatalf("ids=(%q,%q), want (ab12cd34,zz99yy88)", first, second)
	}
}

func TestRegistry_CreateSessionGivesUpAfterRepeatedCollisions(t *testing.T) {
	r := NewRegistry(Options{NewID: fixedIDs("ab12cd34")})
	if _, err := r.CreateSession(); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := r.CreateSession(); err != ErrIDExhausted {
		t.Fatalf("err=%v, want %v", err, ErrIDExhausted)
	}
}

func TestRegistry_EnforcesMaxSessions(t *testing.T) {
	r := NewRegistry(Options{MaxSessions: 1})
	if _, err := r.CreateSession(); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := r.CreateSession(); err != ErrTooManySessions {
		t.Fatalf("err=%v, want %v", err, ErrTooManySessions)
	}
}

func TestRegistry_LoneTechnicianLeavingDeletesSession(t *testing.T) {
	r := NewRegistry(Options{})
	id, _ := r.CreateSession()

	if res := r.MarkJoined(id, RoleTechnician, "c1"); res.Status != JoinOK {
		t.Fatalf("MarkJoined status=%q, want %q", res.Status, JoinOK)
	}
	if !r.MarkLeft(id, RoleTechnician, "c1") {
		t.Fatalf("MarkLeft did not report deletion")
	}
	if r.Exists(id) {
		t.Fatalf("session still exists after last party left")
	}
}

func TestRegistry_SessionSurvivesWhileOneRoleRemains(t *testing.T) {
	r := NewRegistry(Options{})
	id, _ := r.CreateSession()

	r.MarkJoined(id, RoleTechnician, "t")
	r.MarkJoined(id, RoleCustomer, "c")

	if r.MarkLeft(id, RoleTechnician, "t") {
		t.Fatalf("session deleted while customer still present")
	}
	sess, ok := r.Get(id)
	if !ok {
		t.Fatalf("session missing")
	}
	if sess.TechnicianPresent || !sess.CustomerPresent {
		t.Fatalf("presence=%+v, want only customer", sess)
	}

	r.MarkLeft(id, RoleCustomer, "c")
	if r.Exists(id) {
		t.Fatalf("session still exists after both left")
	}
}

func TestRegistry_MarkJoinedUnknownIsNoop(t *testing.T) {
	r := NewRegistry(Options{})
	if res := r.MarkJoined("missing1", RoleCustomer, "c"); res.Status != JoinNotFound {
		t.Fatalf("status=%q, want %q", res.Status, JoinNotFound)
	}
	if r.Exists("missing1") {
		t.Fatalf("MarkJoined created a session")
	}
	if r.MarkLeft("missing1", RoleCustomer, "c") {
		t.Fatalf("MarkLeft reported deletion for unknown id")
	}
}

func TestRegistry_SupersededJoinIsReported(t *testing.T) {
	r := NewRegistry(Options{})
	id, _ := r.CreateSession()

	r.MarkJoined(id, RoleCustomer, "old")
	res := r.MarkJoined(id, RoleCustomer, "new")
	if res.Status != JoinSuperseded || res.SupersededConnID != "old" {
		t.Fatalf("result=%+v, want superseded old", res)
	}

	// The superseded connection's late disconnect must not clear the new
	// holder's presence.
	if r.MarkLeft(id, RoleCustomer, "old") {
		t.Fatalf("stale MarkLeft deleted the session")
	}
	sess, _ := r.Get(id)
	if !sess.CustomerPresent || sess.CustomerConnID != "new" {
		t.Fatalf("customer presence=%+v, want held by new", sess)
	}

	if !r.MarkLeft(id, RoleCustomer, "new") {
		t.Fatalf("MarkLeft(new) did not delete the session")
	}
}

func TestRegistry_RejoinSameConnIsOK(t *testing.T) {
	r := NewRegistry(Options{})
	id, _ := r.CreateSession()
	r.MarkJoined(id, RoleTechnician, "t")
	if res := r.MarkJoined(id, RoleTechnician, "t"); res.Status != JoinOK {
		t.Fatalf("status=%q, want %q", res.Status, JoinOK)
	}
}

func TestRegistry_SweepExpiredIgnoresPresence(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	r := NewRegistry(Options{Clock: clk, NewID: fixedIDs("oldold01", "newnew02")})

	old, _ := r.CreateSession()
	r.MarkJoined(old, RoleTechnician, "t")
	r.MarkJoined(old, RoleCustomer, "c")

	clk.Advance(50 * time.Minute)
	fresh, _ := r.CreateSession()

	clk.Advance(11 * time.Minute)
	expired := r.SweepExpired(time.Hour)

	if len(expired) != 1 || expired[0] != old {
		t.Fatalf("expired=%v, want [%s]", expired, old)
	}
	if r.Exists(old) {
		t.Fatalf("old session survived sweep")
	}
	if !r.Exists(fresh) {
		t.Fatalf("fresh session was swept")
	}
}

func TestRegistry_SweepByLastActive(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	r := NewRegistry(Options{Clock: clk, Basis: ExpireByLastActive, NewID: fixedIDs("busy0001", "idle0002")})

	busy, _ := r.CreateSession()
	idle, _ := r.CreateSession()

	clk.Advance(45 * time.Minute)
	r.Touch(busy)
	clk.Advance(30 * time.Minute)

	expired := r.SweepExpired(time.Hour)
	sort.Strings(expired)
	if len(expired) != 1 || expired[0] != idle {
		t.Fatalf("expired=%v, want [%s]", expired, idle)
	}
	if !r.Exists(busy) {
		t.Fatalf("recently active session was swept")
	}
}

func TestRegistry_Clear(t *testing.T) {
	r := NewRegistry(Options{})
	r.CreateSession()
	r.CreateSession()
	r.Clear()
	if got := r.Len(); got != 0 {
		t.Fatalf("Len=%d, want 0", got)
	}
}

func TestParseRole(t *testing.T) {
	for raw, want := range map[string]Role{
		"technician": RoleTechnician,
		" Customer ": RoleCustomer,
	} {
		got, err := ParseRole(raw)
		if err != nil {
			t.Fatalf("ParseRole(%q): %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseRole(%q)=%q, want %q", raw, got, want)
		}
	}
	if _, err := ParseRole("admin"); err == nil {
		t.Fatalf("expected error for unknown role")
	}
	if RoleTechnician.Other() != RoleCustomer || RoleCustomer.Other() != RoleTechnician {
		t.Fatalf("Other() mismatch")
	}
}
