// Package turnrest mints coturn-compatible TURN REST credentials
// (use-auth-secret mode):
//
//	username   = <unix_expiry>:<prefix>:<label>
//	credential = base64(hmac_sha1(shared_secret, username))
//
// The expiry is the server's UTC clock plus the configured TTL.
package turnrest

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

var (
	ErrMissingSecret = errors.New("turnrest: shared secret is required")
	ErrInvalidTTL    = errors.New("turnrest: ttl must be > 0")
	ErrInvalidLabel  = errors.New("turnrest: username parts must be non-empty and must not contain ':'")
)

type Config struct {
	SharedSecret   string
	TTL            time.Duration
	UsernamePrefix string

	Now func() time.Time
	// NewLabel supplies the trailing username component when the caller has
	// no session id to bind.
	NewLabel func() string
}

type Generator struct {
	secret []byte
	ttl    time.Duration
	prefix string

	now      func() time.Time
	newLabel func() string
}

type Credentials struct {
	Username   string
	Credential string
	Expires    time.Time
}

func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.SharedSecret == "" {
		return nil, ErrMissingSecret
	}
	if cfg.TTL < time.Second {
		return nil, ErrInvalidTTL
	}
	if !validPart(cfg.UsernamePrefix) {
		return nil, ErrInvalidLabel
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewLabel == nil {
		cfg.NewLabel = func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") }
	}
	return &Generator{
		secret:   []byte(cfg.SharedSecret),
		ttl:      cfg.TTL,
		prefix:   cfg.UsernamePrefix,
		now:      cfg.Now,
		newLabel: cfg.NewLabel,
	}, nil
}

// Generate signs a username bound to label. An empty label gets a random one.
func (g *Generator) Generate(label string) (Credentials, error) {
	if label == "" {
		label = g.newLabel()
	}
	if !validPart(label) {
		return Credentials{}, ErrInvalidLabel
	}
	expires := g.now().UTC().Add(g.ttl).Truncate(time.Second)
	username := strconv.FormatInt(expires.Unix(), 10) + ":" + g.prefix + ":" + label
	return Credentials{
		Username:   username,
		Credential: sign(g.secret, username),
		Expires:    expires,
	}, nil
}

// Apply returns a copy of servers where every server carrying a turn: or
// turns: URL uses creds. The input slice is not modified.
func Apply(servers []webrtc.ICEServer, creds Credentials) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, len(servers))
	for i, server := range servers {
		out[i] = server
		if HasTURNURL(server) {
			out[i].Username = creds.Username
			out[i].Credential = creds.Credential
		}
	}
	return out
}

func HasTURNURL(server webrtc.ICEServer) bool {
	for _, raw := range server.URLs {
		url := strings.ToLower(strings.TrimSpace(raw))
		if strings.HasPrefix(url, "turn:") || strings.HasPrefix(url, "turns:") {
			return true
		}
	}
	return false
}

func sign(secret []byte, username string) string {
	mac := hmac.New(sha1.New, secret)
	_, _ = mac.Write([]byte(username))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func validPart(s string) bool {
	return s != "" && !strings.Contains(s, ":")
}
