package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxResponseBytes = 64 << 10

// WebhookResponse is the relay's reply to a webhook POST.
type WebhookResponse struct {
	StatusCode int    `json:"-"`
	Status     string `json:"status,omitempty"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
}

// OK reports a 2xx reply.
func (r *WebhookResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Summary returns the most useful line of the reply for display.
func (r *WebhookResponse) Summary() string {
	switch {
	case r.Error != "":
		return r.Error
	case r.Message != "":
		return r.Message
	default:
		return http.StatusText(r.StatusCode)
	}
}

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type RelayClient struct {
	baseURL   string
	client    *http.Client
	userAgent string
}

func NewRelayClient(baseURL string) *RelayClient {
	return &RelayClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: 10 * time.Second},
		userAgent: "capictl",
	}
}

// WithUserAgent overrides the User-Agent header sent with each request.
func (c *RelayClient) WithUserAgent(ua string) *RelayClient {
	c.userAgent = ua
	return c
}

// SendWebhook posts one payload to /webhook. Non-2xx replies are returned
// with a nil error; only transport and decoding failures are errors.
func (c *RelayClient) SendWebhook(ctx context.Context, payload interface{}) (*WebhookResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/webhook", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out := &WebhookResponse{StatusCode: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	return out, nil
}

// Health calls GET /health.
func (c *RelayClient) Health(ctx context.Context) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("health check failed with status %d", resp.StatusCode)
	}

	var out HealthResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode health response: %w", err)
	}
	return &out, nil
}
