package gateway

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/soyeahso/meetbot/internal/config"
)

// AuthResult is the outcome of checking a monitor or admin credential.
type AuthResult struct {
	OK     bool   `json:"ok"`
	Method string `json:"method,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// ResolvedAuth is the admin credential the server accepts. An empty Token
// rejects every monitor.
type ResolvedAuth struct {
	Token string
}

// ResolveAuth reads the admin token; MEETBOT_AUTH_TOKEN is already folded
// in by the config loader.
func ResolveAuth(cfg config.ServerConfig) ResolvedAuth {
	return ResolvedAuth{Token: strings.TrimSpace(cfg.AuthToken)}
}

// Authorize checks presented credentials against the server token.
func Authorize(server ResolvedAuth, presented *ConnectAuth) AuthResult {
	var reason string
	switch {
	case presented == nil:
		reason = "no credentials provided"
	case server.Token == "":
		reason = "server token not configured"
	case presented.Token == "":
		reason = "token required"
	case !safeEqual(presented.Token, server.Token):
		reason = "token_mismatch"
	default:
		return AuthResult{OK: true, Method: "token"}
	}
	return AuthResult{Reason: reason}
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// safeEqual compares in constant time, including when lengths differ.
func safeEqual(a, b string) bool {
	sameLen := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	return subtle.ConstantTimeSelect(sameLen, subtle.ConstantTimeCompare([]byte(a), []byte(b)), 0) == 1
}

const (
	authRateWindow   = 5 * time.Minute
	authRateMaxFails = 10
	authRateMaxIPs   = 10000
)

// authRateLimiter blocks a host after authRateMaxFails failed logins inside
// authRateWindow. At most authRateMaxIPs hosts are tracked.
type authRateLimiter struct {
	mu       sync.Mutex
	failures map[string][]time.Time
	now      func() time.Time
}

func newAuthRateLimiter() *authRateLimiter {
	return &authRateLimiter{failures: make(map[string][]time.Time), now: time.Now}
}

// prune drops failures older than the window and reports how many remain.
// Callers hold l.mu.
func (l *authRateLimiter) prune(host string) int {
	cutoff := l.now().Add(-authRateWindow)
	kept := l.failures[host][:0]
	for _, t := range l.failures[host] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(l.failures, host)
		return 0
	}
	l.failures[host] = kept
	return len(kept)
}

// cleanup prunes every host. The server runs it once a minute.
func (l *authRateLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for host := range l.failures {
		l.prune(host)
	}
}

func (l *authRateLimiter) allow(remoteAddr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.prune(hostOf(remoteAddr)) < authRateMaxFails
}

func (l *authRateLimiter) recordFailure(remoteAddr string) {
	host := hostOf(remoteAddr)
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, seen := l.failures[host]; !seen && len(l.failures) >= authRateMaxIPs {
		l.evictOldest()
	}
	l.failures[host] = append(l.failures[host], l.now())
}

// evictOldest forgets the host whose first recorded failure is earliest.
func (l *authRateLimiter) evictOldest() {
	var (
		victim string
		first  time.Time
	)
	for host, times := range l.failures {
		if len(times) > 0 && (victim == "" || times[0].Before(first)) {
			victim, first = host, times[0]
		}
	}
	delete(l.failures, victim)
}

func hostOf(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil && host != "" {
		return host
	}
	return remoteAddr
}
