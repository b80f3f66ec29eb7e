// Package metaclient delivers conversion events to the Meta Graph API
// Conversions API endpoint.
package metaclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/telhawk-systems/capi-relay/common/logging"
	"github.com/telhawk-systems/capi-relay/relay/internal/payload"
	"github.com/telhawk-systems/capi-relay/relay/internal/routing"
	"github.com/telhawk-systems/capi-relay/relay/internal/userdata"
)

// ErrNotConfigured is reported when the pixel id or access token is missing.
var ErrNotConfigured = errors.New("meta credentials not configured")

// maxResponseBody bounds how much of a Graph API response is kept.
const maxResponseBody = 64 << 10

// Config holds Graph API delivery settings.
type Config struct {
	BaseURL       string
	APIVersion    string
	PixelID       string
	AccessToken   string
	TestEventCode string
	ActionSource  string
	Timeout       time.Duration
}

// Event is one conversion to deliver.
type Event struct {
	Name         string
	ID           string
	Time         any // raw payload value, see EventTime
	SourceURL    string
	ActionSource string // overrides Config.ActionSource when set
	UserData     userdata.Record
	CustomData   *routing.CustomData
}

// Envelope is the wire form of a single server event.
type Envelope struct {
	EventName      string              `json:"event_name"`
	EventTime      int64               `json:"event_time"`
	EventID        string              `json:"event_id"`
	EventSourceURL string              `json:"event_source_url,omitempty"`
	ActionSource   string              `json:"action_source"`
	UserData       userdata.Record     `json:"user_data"`
	CustomData     *routing.CustomData `json:"custom_data,omitempty"`
}

// Batch is the request body of POST /{pixel_id}/events.
type Batch struct {
	Data          []Envelope `json:"data"`
	AccessToken   string     `json:"access_token"`
	TestEventCode string     `json:"test_event_code,omitempty"`
}

// Response is the Graph API success body.
type Response struct {
	EventsReceived int      `json:"events_received"`
	Messages       []string `json:"messages"`
	FBTraceID      string   `json:"fbtrace_id"`
}

// APIError is the Graph API error object.
type APIError struct {
	Message      string `json:"message"`
	Type         string `json:"type"`
	Code         int    `json:"code"`
	ErrorSubcode int    `json:"error_subcode,omitempty"`
	FBTraceID    string `json:"fbtrace_id"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("graph api error %d (%s): %s", e.Code, e.Type, e.Message)
}

// StatusError is reported for non-2xx responses.
type StatusError struct {
	StatusCode int
	API        *APIError // nil when the body was not a Graph error
}

func (e *StatusError) Error() string {
	if e.API != nil {
		return fmt.Sprintf("meta capi returned status %d: %s", e.StatusCode, e.API.Error())
	}
	return fmt.Sprintf("meta capi returned status %d", e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	if e.API == nil {
		return nil
	}
	return e.API
}

// Result describes one delivery attempt.
type Result struct {
	EventName  string
	EventID    string
	StatusCode int
	Body       string
	Duration   time.Duration
	Err        error

	// Decoded from a successful response; zero when absent.
	EventsReceived int
	TraceID        string
}

// OK reports whether the Graph API accepted the event.
func (r Result) OK() bool {
	return r.Err == nil
}

// Client sends events. It is safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *logging.Logger
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithClock replaces time.Now, used for events without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient returns a Client for cfg.
func NewClient(cfg Config, logger *logging.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ActionSource == "" {
		cfg.ActionSource = "website"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether credentials are present.
func (c *Client) Configured() bool {
	return c.cfg.PixelID != "" && c.cfg.AccessToken != ""
}

// EventsURL is the endpoint events are posted to.
func (c *Client) EventsURL() string {
	return fmt.Sprintf("%s/%s/%s/events", c.cfg.BaseURL, c.cfg.APIVersion, c.cfg.PixelID)
}

// Envelope builds the wire envelope for ev.
func (c *Client) Envelope(ev Event) Envelope {
	actionSource := ev.ActionSource
	if actionSource == "" {
		actionSource = c.cfg.ActionSource
	}
	userData := ev.UserData
	if userData == nil {
		userData = userdata.Record{}
	}

	return Envelope{
		EventName:      ev.Name,
		EventTime:      EventTime(ev.Time, c.now()),
		EventID:        ev.ID,
		EventSourceURL: ev.SourceURL,
		ActionSource:   actionSource,
		UserData:       userData,
		CustomData:     ev.CustomData,
	}
}

// Send delivers ev as a single-event batch. Failures are logged and
// reported through Result; Send never panics on bad input.
func (c *Client) Send(ctx context.Context, ev Event) Result {
	res := Result{EventName: ev.Name, EventID: ev.ID}
	log := c.logger.WithContext(ctx).With(logging.EventName(ev.Name), logging.EventID(ev.ID))

	if !c.Configured() {
		res.Err = ErrNotConfigured
		log.Error("meta credentials not configured, event dropped")
		return res
	}

	batch := Batch{
		Data:          []Envelope{c.Envelope(ev)},
		AccessToken:   c.cfg.AccessToken,
		TestEventCode: c.cfg.TestEventCode,
	}
	body, err := json.Marshal(batch)
	if err != nil {
		res.Err = fmt.Errorf("marshal event: %w", err)
		log.Error("failed to encode event", logging.Error(err))
		return res
	}

	log.Info("sending event to meta capi")
	log.Debug("event envelope", "user_data_keys", batch.Data[0].UserData.Keys())

	start := time.Now()
	res.StatusCode, res.Body, res.Err = c.post(ctx, body)
	res.Duration = time.Since(start)

	if res.Err != nil {
		log.Error("meta capi delivery failed",
			logging.StatusCode(res.StatusCode),
			logging.Duration(res.Duration.Milliseconds()),
			logging.Error(res.Err),
		)
		return res
	}

	if r, ok := decodeResponse([]byte(res.Body)); ok {
		res.EventsReceived = r.EventsReceived
		res.TraceID = r.FBTraceID
	}
	log.Info("meta capi response",
		logging.StatusCode(res.StatusCode),
		logging.Duration(res.Duration.Milliseconds()),
		"events_received", res.EventsReceived,
		"fbtrace_id", res.TraceID,
	)
	return res
}

func (c *Client) post(ctx context.Context, body []byte) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.EventsURL(), bytes.NewReader(body))
	if err != nil {
		return 0, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("post event: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("read response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, string(raw), &StatusError{StatusCode: resp.StatusCode, API: decodeAPIError(raw)}
	}
	return resp.StatusCode, string(raw), nil
}

func decodeResponse(raw []byte) (Response, bool) {
	var r Response
	if err := json.Unmarshal(raw, &r); err != nil {
		return Response{}, false
	}
	return r, true
}

func decodeAPIError(raw []byte) *APIError {
	var envelope struct {
		Error *APIError `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil
	}
	return envelope.Error
}

// EventTime converts a raw payload timestamp to unix seconds. Numbers and
// numeric strings above 1e10 are taken as milliseconds. RFC 3339 strings are
// parsed. Anything else, including nil and values outside the int64 range,
// yields now.
func EventTime(raw any, now time.Time) int64 {
	if raw == nil {
		return now.Unix()
	}

	if s, ok := raw.(string); ok {
		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(s)); err == nil {
			return t.Unix()
		}
	}

	f, err := payload.ToFloat(raw)
	if err != nil || f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return now.Unix()
	}
	if f > 1e10 {
		f /= 1000
	}
	if f >= math.MaxInt64 {
		return now.Unix()
	}
	return int64(f)
}
