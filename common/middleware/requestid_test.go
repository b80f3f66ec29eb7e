package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name              string
		existingRequestID string
		expectNewID       bool
	}{
		{
			name:              "generates new request ID when not present",
			existingRequestID: "",
			expectNewID:       true,
		},
		{
			name:              "propagates existing request ID",
			existingRequestID: "existing-req-123",
			expectNewID:       false,
		},
		{
			name:              "replaces request ID containing whitespace",
			existingRequestID: "bad id",
			expectNewID:       true,
		},
		{
			name:              "replaces oversized request ID",
			existingRequestID: strings.Repeat("a", maxRequestIDLength+1),
			expectNewID:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured string
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				captured = GetRequestID(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodPost, "http://example.com/webhook", nil)
			if tt.existingRequestID != "" {
				req.Header.Set(RequestIDHeader, tt.existingRequestID)
			}
			w := httptest.NewRecorder()

			RequestID(handler).ServeHTTP(w, req)

			responseID := w.Header().Get(RequestIDHeader)
			if responseID == "" {
				t.Fatal("expected X-Request-ID header in response")
			}
			if responseID != captured {
				t.Errorf("response header %q doesn't match context %q", responseID, captured)
			}

			if tt.expectNewID {
				if _, err := uuid.Parse(captured); err != nil {
					t.Errorf("expected valid UUID, got %q: %v", captured, err)
				}
			} else if captured != tt.existingRequestID {
				t.Errorf("expected request ID %q, got %q", tt.existingRequestID, captured)
			}
		})
	}
}

func TestGetRequestID(t *testing.T) {
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}

	ctx := context.WithValue(context.Background(), RequestIDKey, "test-req-456")
	if got := GetRequestID(ctx); got != "test-req-456" {
		t.Errorf("expected %q, got %q", "test-req-456", got)
	}

	ctx = context.WithValue(context.Background(), RequestIDKey, 42)
	if got := GetRequestID(ctx); got != "" {
		t.Errorf("expected empty string for non-string value, got %q", got)
	}
}

func TestRequestID_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i := 0; i < 100; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		id := w.Header().Get(RequestIDHeader)
		if seen[id] {
			t.Fatalf("duplicate request ID generated: %s", id)
		}
		seen[id] = true
	}
}
