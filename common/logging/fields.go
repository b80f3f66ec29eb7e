package logging

import "log/slog"

// Field names shared by the relay and the CLI.
const (
	FieldService    = "service"
	FieldRequestID  = "request_id"
	FieldIP         = "ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatus     = "status"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldEventID    = "event_id"
	FieldEventName  = "event_name"
	FieldEventType  = "event_type"
	FieldPixelID    = "pixel_id"
	FieldStatusCode = "status_code"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// RequestID returns a slog attribute for the inbound request ID.
func RequestID(id string) slog.Attr {
	return slog.String(FieldRequestID, id)
}

// IP returns a slog attribute for an IP address.
func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}

// Method returns a slog attribute for the HTTP method.
func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

// Path returns a slog attribute for the HTTP path.
func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

// Status returns a slog attribute for a processing status ("success", "ignored", ...).
func Status(status string) slog.Attr {
	return slog.String(FieldStatus, status)
}

// Duration returns a slog attribute for a duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}

// Error returns a slog attribute for an error. A nil error yields an empty value.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}

// EventID returns a slog attribute for a conversion event ID.
func EventID(id string) slog.Attr {
	return slog.String(FieldEventID, id)
}

// EventName returns a slog attribute for an outbound conversion event name.
func EventName(name string) slog.Attr {
	return slog.String(FieldEventName, name)
}

// EventType returns a slog attribute for an inbound webhook event type.
func EventType(eventType string) slog.Attr {
	return slog.String(FieldEventType, eventType)
}

// PixelID returns a slog attribute for the Meta pixel (dataset) ID.
func PixelID(id string) slog.Attr {
	return slog.String(FieldPixelID, id)
}

// StatusCode returns a slog attribute for an HTTP status code.
func StatusCode(code int) slog.Attr {
	return slog.Int(FieldStatusCode, code)
}
