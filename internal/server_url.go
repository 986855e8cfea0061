package internal

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"
)

// ServerURL is the location of the sliding sync proxy, either an http(s) base URL or the path to a
// unix socket when the proxy runs on the same host.
type ServerURL struct {
	HttpOrUnixStr string
}

func (u ServerURL) IsUnixSocket() bool {
	return strings.HasPrefix(u.HttpOrUnixStr, "/")
}

func (u ServerURL) UnixSocket() string {
	if u.IsUnixSocket() {
		return u.HttpOrUnixStr
	}
	return ""
}

func (u ServerURL) BaseURL() string {
	if u.IsUnixSocket() {
		return "http://unix"
	}
	return strings.TrimSuffix(u.HttpOrUnixStr, "/")
}

// RoundTripper returns a transport which dials the unix socket if there is one, else a clone of
// http.DefaultTransport.
func (u ServerURL) RoundTripper() http.RoundTripper {
	t := http.DefaultTransport.(*http.Transport).Clone()
	if u.IsUnixSocket() {
		socket := u.UnixSocket()
		dialer := &net.Dialer{Timeout: 30 * time.Second}
		t.DialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
			return dialer.DialContext(ctx, "unix", socket)
		}
	}
	return t
}
