package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// Key derives the cache key for (target, method, identity). The target URL
// is normalized (lowercased scheme and host, default ports stripped) so that
// trivially different spellings of the same target share an entry. Identity
// is part of the key: different identities never collide.
func Key(target, method, identity string) string {
	h := sha256.New()
	h.Write([]byte(normalizeTarget(target)))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToUpper(method)))
	h.Write([]byte{0})
	h.Write([]byte(identity))
	return hex.EncodeToString(h.Sum(nil))
}

// normalizeTarget canonicalizes a target URL for keying. Unparseable targets
// are keyed by their literal string.
func normalizeTarget(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	switch {
	case u.Scheme == "http" && strings.HasSuffix(u.Host, ":80"):
		u.Host = strings.TrimSuffix(u.Host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(u.Host, ":443"):
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	return u.String()
}
