// Package origin implements the browser Origin policy shared by the HTTP API
// and the WebSocket upgrade.
package origin

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Normalize validates a browser Origin header value and returns the
// canonical origin (lower-case scheme and host, default port removed) and its
// host[:port] part. The opaque origin "null" is returned unchanged with an
// empty host.
func Normalize(raw string) (normalized, host string, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", false
	}
	if raw == "null" {
		return "null", "", true
	}

	u, err := url.Parse(raw)
	if err != nil || u.Opaque != "" || u.User != nil || u.RawQuery != "" || u.Fragment != "" || u.ForceQuery {
		return "", "", false
	}
	if u.Path != "" && u.Path != "/" {
		return "", "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", "", false
	}

	host, ok = canonicalHost(u.Host, scheme)
	if !ok {
		return "", "", false
	}
	return scheme + "://" + host, host, true
}

// canonicalHost lower-cases authority and drops the scheme's default port.
func canonicalHost(authority, scheme string) (string, bool) {
	authority = strings.ToLower(strings.TrimSpace(authority))
	if authority == "" || strings.ContainsAny(authority, "/@ ,") {
		return "", false
	}
	u := &url.URL{Host: authority}
	hostname, port := u.Hostname(), u.Port()
	if hostname == "" {
		return "", false
	}
	if strings.Contains(hostname, ":") {
		if !strings.HasPrefix(authority, "[") {
			return "", false
		}
		hostname = "[" + hostname + "]"
	}
	if strings.HasSuffix(authority, ":") {
		return "", false
	}
	if port != "" {
		n, err := strconv.ParseUint(port, 10, 16)
		if err != nil || n == 0 {
			return "", false
		}
		if (scheme == "http" && n == 80) || (scheme == "https" && n == 443) {
			port = ""
		} else {
			port = strconv.FormatUint(n, 10)
		}
	}
	if port == "" {
		return hostname, true
	}
	return hostname + ":" + port, true
}

// Policy decides which browser origins may call the relay.
//
// With no configured entries only same-host requests are allowed. The scheme
// is not compared so a TLS-terminating proxy in front of the relay still
// matches https browser origins.
type Policy struct {
	any     bool
	allowed map[string]struct{}
}

// NewPolicy validates entries, each of which is "*", "null" or a full origin
// such as https://support.example.com.
func NewPolicy(entries []string) (*Policy, error) {
	p := &Policy{allowed: make(map[string]struct{})}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		switch entry {
		case "":
			continue
		case "*":
			p.any = true
			continue
		}
		normalized, _, ok := Normalize(entry)
		if !ok {
			return nil, fmt.Errorf("invalid origin %q (expected full origin like https://example.com)", entry)
		}
		p.allowed[normalized] = struct{}{}
	}
	return p, nil
}

// AllowsAny reports whether the policy contains a wildcard.
func (p *Policy) AllowsAny() bool { return p != nil && p.any }

// Allow checks originHeader against the policy for a request addressed to
// requestHost. It returns the normalized origin on success.
func (p *Policy) Allow(originHeader, requestHost string) (string, bool) {
	normalized, host, ok := Normalize(originHeader)
	if !ok {
		return "", false
	}
	if p == nil {
		p = &Policy{}
	}
	if p.any {
		return normalized, true
	}
	if len(p.allowed) > 0 {
		_, ok := p.allowed[normalized]
		return normalized, ok
	}
	if normalized == "null" {
		return "", false
	}
	scheme := normalized[:strings.Index(normalized, "://")]
	reqHost, ok := canonicalHost(requestHost, scheme)
	if !ok || reqHost != host {
		// Browsers behind a TLS proxy send https origins for requests the relay
		// sees as plain http on port 80.
		alt := "http"
		if scheme == "http" {
			alt = "https"
		}
		altHost, altOK := canonicalHost(requestHost, alt)
		return normalized, altOK && altHost == host
	}
	return normalized, true
}

// AllowRequest applies the policy to r. Requests without an Origin header
// come from non-browser clients and are allowed.
func (p *Policy) AllowRequest(r *http.Request) bool {
	values := r.Header.Values("Origin")
	switch len(values) {
	case 0:
		return true
	case 1:
		if strings.TrimSpace(values[0]) == "" {
			return true
		}
		_, ok := p.Allow(values[0], r.Host)
		return ok
	default:
		return false
	}
}
