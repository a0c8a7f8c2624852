package middleware

import (
	"net/http"
	"net/netip"
	"strings"

	"allocation-dashboard/internal/config"
)

var forwardingHeaders = []string{"X-Forwarded-For", "X-Real-IP", "X-Forwarded-Proto"}

// TrustedProxy strips forwarding headers unless the peer is a trusted proxy. Entries in
// cfg.TrustedProxies may be single addresses or CIDR prefixes.
func TrustedProxy(cfg config.SecurityConfig) Middleware {
	trusted := parsePrefixes(cfg.TrustedProxies)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isTrusted(r.RemoteAddr, trusted) {
				for _, h := range forwardingHeaders {
					r.Header.Del(h)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// parsePrefixes skips entries that are neither an address nor a prefix.
func parsePrefixes(entries []string) []netip.Prefix {
	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if p, err := netip.ParsePrefix(entry); err == nil {
			prefixes = append(prefixes, p.Masked())
			continue
		}
		if addr, err := netip.ParseAddr(entry); err == nil {
			addr = addr.Unmap()
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
		}
	}
	return prefixes
}

func isTrusted(remoteAddr string, trusted []netip.Prefix) bool {
	addr, ok := peerAddr(remoteAddr)
	if !ok {
		return false
	}
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func peerAddr(remoteAddr string) (netip.Addr, bool) {
	if ap, err := netip.ParseAddrPort(remoteAddr); err == nil {
		return ap.Addr().Unmap(), true
	}
	if addr, err := netip.ParseAddr(remoteAddr); err == nil {
		return addr.Unmap(), true
	}
	return netip.Addr{}, false
}

// clientIP prefers forwarding headers, which TrustedProxy has already removed for
// untrusted peers.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if addr, ok := peerAddr(r.RemoteAddr); ok {
		return addr.String()
	}
	return r.RemoteAddr
}
