// Package service turns webhook payloads into Conversions API deliveries.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/telhawk-systems/capi-relay/common/logging"
	"github.com/telhawk-systems/capi-relay/common/messaging"
	"github.com/telhawk-systems/capi-relay/common/middleware"
	"github.com/telhawk-systems/capi-relay/relay/internal/metaclient"
	"github.com/telhawk-systems/capi-relay/relay/internal/metrics"
	"github.com/telhawk-systems/capi-relay/relay/internal/payload"
	"github.com/telhawk-systems/capi-relay/relay/internal/routing"
	"github.com/telhawk-systems/capi-relay/relay/internal/userdata"
)

// ErrMissingEvent is returned when a payload has no event type.
var ErrMissingEvent = errors.New("missing 'event' field")

// Processing statuses reported to the webhook caller.
const (
	StatusSuccess = "success"
	StatusIgnored = "ignored"
)

// Sender delivers one conversion event.
type Sender interface {
	Send(ctx context.Context, ev metaclient.Event) metaclient.Result
}

// StatsRecorder accumulates delivery statistics.
type StatsRecorder interface {
	Record(eventName string, delivered bool, statusCode int)
}

// Outcome summarizes the handling of one webhook.
type Outcome struct {
	Status    string
	EventType string
	EventID   string
	Results   []metaclient.Result
}

// Delivered counts the conversions the Graph API accepted.
func (o *Outcome) Delivered() int {
	n := 0
	for _, r := range o.Results {
		if r.OK() {
			n++
		}
	}
	return n
}

// OutcomeMessage is published per delivery attempt. It carries no user data.
type OutcomeMessage struct {
	EventType  string    `json:"event_type"`
	EventName  string    `json:"event_name"`
	EventID    string    `json:"event_id"`
	RequestID  string    `json:"request_id,omitempty"`
	Delivered  bool      `json:"delivered"`
	StatusCode int       `json:"status_code,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	SentAt     time.Time `json:"sent_at"`
}

// RelayService orchestrates user-data building, routing and delivery.
type RelayService struct {
	builder   *userdata.Builder
	router    *routing.Router
	sender    Sender
	metrics   *metrics.Metrics
	stats     StatsRecorder
	publisher messaging.Publisher
	logger    *logging.Logger
}

// Option configures optional collaborators.
type Option func(*RelayService)

// WithMetrics records per-delivery Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *RelayService) { s.metrics = m }
}

// WithStats records delivery statistics.
func WithStats(r StatsRecorder) Option {
	return func(s *RelayService) { s.stats = r }
}

// WithPublisher publishes an outcome message per delivery.
func WithPublisher(p messaging.Publisher) Option {
	return func(s *RelayService) { s.publisher = p }
}

// NewRelayService wires the required collaborators.
func NewRelayService(builder *userdata.Builder, router *routing.Router, sender Sender, logger *logging.Logger, opts ...Option) *RelayService {
	if logger == nil {
		logger = logging.Default()
	}
	s := &RelayService{
		builder:   builder,
		router:    router,
		sender:    sender,
		publisher: messaging.NoopPublisher{},
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.publisher == nil {
		s.publisher = messaging.NoopPublisher{}
	}
	return s
}

// EventType returns the payload's event type or ErrMissingEvent.
func EventType(p payload.Payload) (string, error) {
	v, ok := p.Lookup("event")
	if !ok {
		return "", ErrMissingEvent
	}
	if s, ok := payload.Stringify(v); ok {
		return s, nil
	}
	// Objects and arrays are present but never match a mapped type.
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v), nil
	}
	return string(data), nil
}

// Process handles one webhook payload. Delivery failures are reported in
// the Outcome, never as an error; errors mean the payload could not be
// processed at all. Once the event type is known, the returned Outcome
// carries it even alongside an error.
func (s *RelayService) Process(ctx context.Context, p payload.Payload, t userdata.Transport) (*Outcome, error) {
	log := s.logger.WithContext(ctx)

	eventType, err := EventType(p)
	if err != nil {
		return nil, err
	}
	log.Info("webhook received", logging.EventType(eventType))
	log.Debug("webhook payload", "keys", p.Keys())

	eventID, ok := p.String("event_id")
	if !ok {
		eventID = s.router.NewEventID()
	}

	conversions, mapped, err := s.router.Route(eventType, p, eventID)
	if err != nil {
		return &Outcome{EventType: eventType, EventID: eventID}, fmt.Errorf("route %s: %w", eventType, err)
	}
	if !mapped {
		log.Info("event type not mapped, ignoring", logging.EventType(eventType))
		return &Outcome{Status: StatusIgnored, EventType: eventType}, nil
	}

	user := s.builder.Build(p, t)
	sourceURL := sourceURL(p, t)
	eventTime, _ := p.First(payload.P("created_at"), payload.P("logged_at"), payload.P("event_time"))

	outcome := &Outcome{Status: StatusSuccess, EventType: eventType, EventID: eventID}
	for _, conv := range conversions {
		res := s.sender.Send(ctx, metaclient.Event{
			Name:       conv.EventName,
			ID:         conv.EventID,
			Time:       eventTime,
			SourceURL:  sourceURL,
			UserData:   user,
			CustomData: conv.CustomData,
		})
		s.record(ctx, eventType, res)
		outcome.Results = append(outcome.Results, res)
	}

	log.Info("webhook processed",
		logging.EventType(eventType),
		logging.EventID(eventID),
		"conversions", len(outcome.Results),
		"delivered", outcome.Delivered(),
	)
	return outcome, nil
}

func (s *RelayService) record(ctx context.Context, eventType string, res metaclient.Result) {
	if s.metrics != nil {
		s.metrics.ConversionSent(res.EventName, res.OK(), res.Duration)
	}
	if s.stats != nil {
		s.stats.Record(res.EventName, res.OK(), res.StatusCode)
	}
	s.publish(ctx, eventType, res)
}

func (s *RelayService) publish(ctx context.Context, eventType string, res metaclient.Result) {
	if !s.publisher.IsConnected() {
		return
	}

	msg := OutcomeMessage{
		EventType:  eventType,
		EventName:  res.EventName,
		EventID:    res.EventID,
		RequestID:  middleware.GetRequestID(ctx),
		Delivered:  res.OK(),
		StatusCode: res.StatusCode,
		DurationMS: res.Duration.Milliseconds(),
		SentAt:     time.Now().UTC(),
	}
	if res.Err != nil {
		msg.Error = res.Err.Error()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.WithContext(ctx).Warn("failed to encode outcome message", logging.Error(err))
		return
	}

	out := messaging.NewMessage(messaging.ConversionSubject(msg.Delivered), data,
		messaging.WithHeader(messaging.HeaderEventName, msg.EventName),
		messaging.WithHeader(messaging.HeaderEventID, msg.EventID),
	)
	if msg.RequestID != "" {
		out.Metadata[messaging.HeaderRequestID] = msg.RequestID
	}

	if err := s.publisher.PublishMsg(ctx, out); err != nil {
		s.logger.WithContext(ctx).Warn("failed to publish outcome message",
			logging.EventName(msg.EventName),
			logging.Error(err),
		)
	}
}

func sourceURL(p payload.Payload, t userdata.Transport) string {
	if u, ok := p.FirstString(payload.P("page_url"), payload.P("url")); ok {
		return u
	}
	if t.Header != nil {
		return t.Header.Get("Referer")
	}
	return ""
}
