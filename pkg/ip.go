package pkg

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ClientIP reads the caller address, preferring the proxy headers set by nginx.
func ClientIP(r *http.Request) (string, error) {
	ipAddr := r.Header.Get("X-Real-Ip")
	if ipAddr == "" {
		// first hop is the original client
		ipAddr, _, _ = strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
		ipAddr = strings.TrimSpace(ipAddr)
	}
	if ipAddr == "" {
		ipAddr = r.RemoteAddr
	}

	if host, _, err := net.SplitHostPort(ipAddr); err == nil {
		ipAddr = host
	}

	if net.ParseIP(ipAddr) == nil {
		return "", fmt.Errorf("ip addr %s is invalid", ipAddr)
	}

	return ipAddr, nil
}

func IPIsLoopback(ipAddr string) bool {
	ip := net.ParseIP(ipAddr)
	return ip != nil && ip.IsLoopback()
}
