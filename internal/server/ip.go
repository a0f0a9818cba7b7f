package server

import (
	"net"
	"net/http"
	"strings"
)

// ------------------------------------------------------------
// The log listener is bound to loopback, so RemoteAddr is always
// a local agent process. Proxy headers are never trusted here;
// the peer address is only used to tag log lines.
// ------------------------------------------------------------

// senderAddr returns the peer host of r, or "" when RemoteAddr is not
// host:port.
func senderAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return ""
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String()
	}
	return host
}
