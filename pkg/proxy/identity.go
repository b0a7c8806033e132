package proxy

import (
	"net"
	"net/http"
	"strings"
)

// AuthUserHeader carries the authenticated user id, set by the
// authentication layer before the pipeline runs.
const AuthUserHeader = "X-User-ID"

// AnonymousIdentity is the bucket for requests with no user and no
// resolvable client IP.
const AnonymousIdentity = "anonymous"

// Identity resolves the cache-partitioning identity for a request: the
// authenticated user id when present, else the client IP, else the
// anonymous bucket. Identity partitioning keeps one caller's cached
// responses invisible to every other caller.
func Identity(r *http.Request) string {
	if user := r.Header.Get(AuthUserHeader); user != "" {
		return "user:" + user
	}

	if ip := clientIP(r); ip != "" {
		return "ip:" + ip
	}

	return AnonymousIdentity
}

// clientIP extracts the client IP from X-Forwarded-For (first hop) or
// RemoteAddr.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := fwd
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			first = fwd[:i]
		}
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr without a port, e.g. in tests.
		host = r.RemoteAddr
	}
	return host
}
