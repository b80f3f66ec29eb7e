package httputil

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadBody(t *testing.T) {
	t.Run("within limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"event":"USER_LOGIN"}`))
		body, err := ReadBody(httptest.NewRecorder(), req, 1024)
		require.NoError(t, err)
		assert.Equal(t, `{"event":"USER_LOGIN"}`, string(body))
	})

	t.Run("empty body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
		body, err := ReadBody(httptest.NewRecorder(), req, 1024)
		require.NoError(t, err)
		assert.Empty(t, body)
	})

	t.Run("over limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(strings.Repeat("x", 64)))
		_, err := ReadBody(httptest.NewRecorder(), req, 16)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrPayloadTooLarge))
	})
}

func TestForwardedFor(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"absent", "", ""},
		{"single", "203.0.113.195", "203.0.113.195"},
		{"chain", "203.0.113.195, 70.41.3.18, 150.172.238.178", "203.0.113.195"},
		{"padded", "  198.51.100.7 ,10.0.0.1", "198.51.100.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.header != "" {
				h.Set("X-Forwarded-For", tt.header)
			}
			assert.Equal(t, tt.want, ForwardedFor(h))
		})
	}
}

func TestRemoteIP(t *testing.T) {
	assert.Equal(t, "192.0.2.1", RemoteIP("192.0.2.1:52311"))
	assert.Equal(t, "2001:db8::1", RemoteIP("[2001:db8::1]:443"))
	assert.Equal(t, "192.0.2.1", RemoteIP("192.0.2.1"))
	assert.Equal(t, "", RemoteIP(""))
}
