package rpc

import (
	"net"
	"net/http"
	"slices"
)

// access holds the IP allow list and CORS origins. The zero value allows
// every IP and sends no CORS headers.
type access struct {
	nets    []*net.IPNet
	origins []string // "*" allows any origin.
}

func newAccess(allowed, origins []string) access {
	return access{nets: parseAllowedIPs(allowed), origins: origins}
}

// parseAllowedIPs converts IP and CIDR entries to networks, skipping
// entries that are neither.
func parseAllowedIPs(entries []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, entry := range entries {
		if _, ipNet, err := net.ParseCIDR(entry); err == nil {
			nets = append(nets, ipNet)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			continue
		}
		bits := 32
		if ip.To4() == nil {
			bits = 128
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return nets
}

// allows reports whether remoteAddr ("host:port") may call the server.
func (a access) allows(remoteAddr string) bool {
	if len(a.nets) == 0 {
		return true
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return false
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return slices.ContainsFunc(a.nets, func(n *net.IPNet) bool { return n.Contains(ip) })
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin,
// or "" when it is not allowed.
func (a access) allowOrigin(origin string) string {
	if origin == "" {
		return ""
	}
	for _, o := range a.origins {
		if o == "*" || o == origin {
			return o
		}
	}
	return ""
}

// wrap enforces the allow list, sets CORS headers and answers preflights.
func (a access) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.allows(r.RemoteAddr) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if allow := a.allowOrigin(r.Header.Get("Origin")); allow != "" {
			w.Header().Set("Access-Control-Allow-Origin", allow)
			w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
