package middleware

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/kirito3009/ad-time-cash/internal/config"
	"github.com/kirito3009/ad-time-cash/internal/httputil"
)

// IPAllowlist restricts admin routes to known addresses. Entries are single
// IPs or CIDR ranges. Loopback is always allowed. An empty list allows
// everyone, leaving the admin role as the only gate.
type IPAllowlist struct {
	prefixes []netip.Prefix
}

// NewIPAllowlist parses entries into an allowlist.
func NewIPAllowlist(entries []string) (*IPAllowlist, error) {
	al := &IPAllowlist{}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("invalid allowlist range %q: %w", e, err)
			}
			al.prefixes = append(al.prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("invalid allowlist address %q: %w", e, err)
		}
		al.prefixes = append(al.prefixes, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
	}

	slog.Info("admin IP allowlist initialized", "entries", len(al.prefixes))
	return al, nil
}

// Middleware checks the client IP. Expects chi's RealIP middleware to have
// already resolved X-Forwarded-For into RemoteAddr.
func (al *IPAllowlist) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := extractIP(r.RemoteAddr)

		if al.IsAllowed(clientIP) {
			next.ServeHTTP(w, r)
			return
		}

		slog.Warn("IP not allowed",
			"ip", clientIP,
			"method", r.Method,
			"path", r.URL.Path,
		)
		httputil.Error(w, http.StatusForbidden, config.ErrorIPNotAllowed, "Forbidden")
	})
}

// IsAllowed checks whether ip may reach admin routes.
func (al *IPAllowlist) IsAllowed(ip string) bool {
	if len(al.prefixes) == 0 {
		return true
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	if addr.IsLoopback() {
		return true
	}

	for _, p := range al.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// extractIP extracts the IP address from a host:port string.
// If there's no port, returns the string as-is.
func extractIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
