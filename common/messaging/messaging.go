// Package messaging defines the broker abstraction the relay publishes
// conversion outcomes through, without coupling callers to a broker.
package messaging

import "context"

// Message is a message published to a broker.
type Message struct {
	// Subject is the topic the message is published to.
	Subject string

	// Data is the raw payload.
	Data []byte

	// Metadata is sent as message headers.
	Metadata map[string]string
}

// Publisher publishes messages to subjects.
type Publisher interface {
	// Publish sends data to subject, fire-and-forget.
	Publish(ctx context.Context, subject string, data []byte) error

	// PublishMsg sends a Message including its headers.
	PublishMsg(ctx context.Context, msg *Message) error

	// IsConnected reports whether the broker connection is usable.
	IsConnected() bool

	// Close releases any resources held by the publisher.
	Close() error
}

// PublishOption configures a single publish call.
type PublishOption func(*publishOptions)

type publishOptions struct {
	headers map[string]string
}

// WithHeader adds a header to the published message.
func WithHeader(key, value string) PublishOption {
	return func(o *publishOptions) {
		if o.headers == nil {
			o.headers = make(map[string]string)
		}
		o.headers[key] = value
	}
}

// NewMessage builds a Message for subject with the given options applied.
func NewMessage(subject string, data []byte, opts ...PublishOption) *Message {
	var o publishOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &Message{
		Subject:  subject,
		Data:     data,
		Metadata: o.headers,
	}
}

// NoopPublisher discards everything. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, []byte) error { return nil }
func (NoopPublisher) PublishMsg(context.Context, *Message) error    { return nil }
func (NoopPublisher) IsConnected() bool                             { return false }
func (NoopPublisher) Close() error                                  { return nil }
