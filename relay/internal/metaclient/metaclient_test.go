package metaclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/capi-relay/common/logging"
	"github.com/telhawk-systems/capi-relay/relay/internal/routing"
	"github.com/telhawk-systems/capi-relay/relay/internal/userdata"
)

var fixedNow = time.Unix(1700000500, 0)

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:     baseURL,
		APIVersion:  "v19.0",
		PixelID:     "123456",
		AccessToken: "test-token",
		Timeout:     5 * time.Second,
	}
}

func newTestClient(cfg Config) *Client {
	return NewClient(cfg, logging.Discard(), WithClock(func() time.Time { return fixedNow }))
}

type captured struct {
	path  string
	batch map[string]any
}

func graphServer(t *testing.T, status int, body string) (*httptest.Server, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		c.path = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &c.batch)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func TestSend_Success(t *testing.T) {
	srv, got := graphServer(t, http.StatusOK, `{"events_received":1,"messages":[],"fbtrace_id":"abc"}`)
	client := newTestClient(testConfig(srv.URL))

	res := client.Send(context.Background(), Event{
		Name:       routing.Purchase,
		ID:         "evt-1",
		Time:       json.Number("1700000000000"),
		SourceURL:  "https://example.com/deposit",
		UserData:   userdata.Record{userdata.Email: "digest", userdata.ClientIPAddress: "1.2.3.4"},
		CustomData: &routing.CustomData{Currency: "BRL", Value: 50, ContentName: "Deposit Paid"},
	})

	require.True(t, res.OK(), "unexpected error: %v", res.Err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, routing.Purchase, res.EventName)
	assert.Equal(t, "evt-1", res.EventID)
	assert.Contains(t, res.Body, "events_received")
	assert.Equal(t, 1, res.EventsReceived)
	assert.Equal(t, "abc", res.TraceID)

	assert.Equal(t, "/v19.0/123456/events", got.path)
	assert.Equal(t, "test-token", got.batch["access_token"])
	assert.NotContains(t, got.batch, "test_event_code")

	data := got.batch["data"].([]any)
	require.Len(t, data, 1)
	env := data[0].(map[string]any)
	assert.Equal(t, "Purchase", env["event_name"])
	assert.Equal(t, float64(1700000000), env["event_time"])
	assert.Equal(t, "evt-1", env["event_id"])
	assert.Equal(t, "https://example.com/deposit", env["event_source_url"])
	assert.Equal(t, "website", env["action_source"])
	assert.Equal(t, map[string]any{"em": "digest", "client_ip_address": "1.2.3.4"}, env["user_data"])
	assert.Equal(t, map[string]any{"currency": "BRL", "value": float64(50), "content_name": "Deposit Paid"}, env["custom_data"])
}

func TestSend_TestEventCodeAndOverrides(t *testing.T) {
	srv, got := graphServer(t, http.StatusOK, `{"events_received":1}`)
	cfg := testConfig(srv.URL + "/")
	cfg.TestEventCode = "TEST123"
	client := newTestClient(cfg)

	res := client.Send(context.Background(), Event{Name: "Lead", ID: "e", ActionSource: "app"})
	require.True(t, res.OK())

	assert.Equal(t, "/v19.0/123456/events", got.path)
	assert.Equal(t, "TEST123", got.batch["test_event_code"])

	env := got.batch["data"].([]any)[0].(map[string]any)
	assert.Equal(t, "app", env["action_source"])
	assert.Equal(t, float64(fixedNow.Unix()), env["event_time"])
	assert.Equal(t, map[string]any{}, env["user_data"])
	assert.NotContains(t, env, "custom_data")
	assert.NotContains(t, env, "event_source_url")
}

func TestSend_APIError(t *testing.T) {
	srv, _ := graphServer(t, http.StatusBadRequest,
		`{"error":{"message":"Invalid parameter","type":"OAuthException","code":100,"error_subcode":2804003,"fbtrace_id":"xyz"}}`)
	client := newTestClient(testConfig(srv.URL))

	res := client.Send(context.Background(), Event{Name: "Lead", ID: "e1"})
	require.False(t, res.OK())
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	var statusErr *StatusError
	require.ErrorAs(t, res.Err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)

	var apiErr *APIError
	require.ErrorAs(t, res.Err, &apiErr)
	assert.Equal(t, 100, apiErr.Code)
	assert.Equal(t, "OAuthException", apiErr.Type)
	assert.Equal(t, "xyz", apiErr.FBTraceID)
	assert.Contains(t, res.Err.Error(), "Invalid parameter")
}

func TestSend_NonGraphErrorBody(t *testing.T) {
	srv, _ := graphServer(t, http.StatusBadGateway, `upstream down`)
	client := newTestClient(testConfig(srv.URL))

	res := client.Send(context.Background(), Event{Name: "Lead", ID: "e1"})
	require.False(t, res.OK())

	var statusErr *StatusError
	require.ErrorAs(t, res.Err, &statusErr)
	assert.Nil(t, statusErr.API)
	assert.Equal(t, "upstream down", res.Body)
}

func TestSend_NotConfigured(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	for _, cfg := range []Config{
		{BaseURL: srv.URL, APIVersion: "v19.0", AccessToken: "t"},
		{BaseURL: srv.URL, APIVersion: "v19.0", PixelID: "p"},
	} {
		client := newTestClient(cfg)
		assert.False(t, client.Configured())

		res := client.Send(context.Background(), Event{Name: "Lead", ID: "e"})
		assert.ErrorIs(t, res.Err, ErrNotConfigured)
	}
	assert.Zero(t, calls.Load())
}

func TestSend_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	res := newTestClient(testConfig(url)).Send(context.Background(), Event{Name: "Lead", ID: "e"})
	assert.False(t, res.OK())
	assert.Zero(t, res.StatusCode)
}

func TestSend_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Timeout = 20 * time.Millisecond
	res := newTestClient(cfg).Send(context.Background(), Event{Name: "Lead", ID: "e"})
	assert.False(t, res.OK())
}

func TestSend_CanceledContext(t *testing.T) {
	srv, _ := graphServer(t, http.StatusOK, `{}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newTestClient(testConfig(srv.URL)).Send(ctx, Event{Name: "Lead", ID: "e"})
	assert.True(t, errors.Is(res.Err, context.Canceled))
}

func TestEventTime(t *testing.T) {
	now := time.Unix(1700000999, 0)

	tests := []struct {
		name string
		raw  any
		want int64
	}{
		{"nil uses now", nil, 1700000999},
		{"seconds", json.Number("1700000000"), 1700000000},
		{"milliseconds", json.Number("1700000000000"), 1700000000},
		{"fractional seconds truncated", 1700000000.75, 1700000000},
		{"fractional milliseconds", json.Number("1700000000123.9"), 1700000000},
		{"numeric string", "1700000000", 1700000000},
		{"millisecond string", "1700000000000", 1700000000},
		{"rfc3339", "2023-11-14T22:13:20Z", 1700000000},
		{"garbage uses now", "yesterday", 1700000999},
		{"object uses now", map[string]any{"a": 1}, 1700000999},
		{"nan uses now", "NaN", 1700000999},
		{"beyond int64 uses now", 1e30, 1700000999},
		{"huge numeric string uses now", json.Number("9.3e21"), 1700000999},
		{"largest representable milliseconds", 9.2e21, 9200000000000000000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EventTime(tt.raw, now))
		})
	}
}

func TestEventTime_MillisecondsRoundTrip(t *testing.T) {
	now := time.Now()
	assert.Equal(t, EventTime(json.Number("1700000000"), now), EventTime(json.Number("1700000000000"), now))
}

func TestEventsURL(t *testing.T) {
	c := NewClient(Config{BaseURL: "https://graph.facebook.com/", APIVersion: "v19.0", PixelID: "42"}, nil)
	assert.Equal(t, "https://graph.facebook.com/v19.0/42/events", c.EventsURL())
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Config{}, nil)
	assert.Equal(t, 30*time.Second, c.httpClient.Timeout)
	assert.Equal(t, "website", c.cfg.ActionSource)
}
