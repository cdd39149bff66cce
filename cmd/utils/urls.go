package utils

import (
	"net"
	"net/url"
	"strings"
)

// IsLocalhost reports whether serverURL points at this machine. A missing
// scheme ("localhost:23333") is accepted.
func IsLocalhost(serverURL string) bool {
	s := strings.TrimSpace(serverURL)
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && (ip.IsLoopback() || ip.IsUnspecified())
}
