package httputil

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
)

// ErrPayloadTooLarge is returned by ReadBody when the body exceeds the limit.
var ErrPayloadTooLarge = errors.New("payload too large")

// ReadBody reads at most limit bytes of the request body. Bodies over the
// limit yield ErrPayloadTooLarge. An empty body is not an error.
func ReadBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, fmt.Errorf("%w (max %d bytes)", ErrPayloadTooLarge, limit)
		}
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// ForwardedFor returns the first (client) entry of the X-Forwarded-For header,
// or "" when the header is absent.
//
// Example X-Forwarded-For: "203.0.113.195, 70.41.3.18, 150.172.238.178"
// Returns: "203.0.113.195"
func ForwardedFor(h http.Header) string {
	xff := h.Get("X-Forwarded-For")
	if xff == "" {
		return ""
	}
	first, _, _ := strings.Cut(xff, ",")
	return strings.TrimSpace(first)
}

// RemoteIP strips the port from an "ip:port" RemoteAddr. Values without a
// port are returned unchanged.
func RemoteIP(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
