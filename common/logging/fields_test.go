package logging

import (
	"errors"
	"log/slog"
	"testing"
)

func TestStringFieldHelpers(t *testing.T) {
	tests := []struct {
		name  string
		attr  slog.Attr
		key   string
		value string
	}{
		{"Service", Service("capi-relay"), FieldService, "capi-relay"},
		{"RequestID", RequestID("req-1"), FieldRequestID, "req-1"},
		{"IP", IP("203.0.113.9"), FieldIP, "203.0.113.9"},
		{"Method", Method("POST"), FieldMethod, "POST"},
		{"Path", Path("/webhook"), FieldPath, "/webhook"},
		{"Status", Status("ignored"), FieldStatus, "ignored"},
		{"EventID", EventID("evt-1"), FieldEventID, "evt-1"},
		{"EventName", EventName("Purchase"), FieldEventName, "Purchase"},
		{"EventType", EventType("DEPOSIT_PAID"), FieldEventType, "DEPOSIT_PAID"},
		{"PixelID", PixelID("123456"), FieldPixelID, "123456"},
		{"Error", Error(errors.New("boom")), FieldError, "boom"},
		{"nil Error", Error(nil), FieldError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.attr.Key != tt.key {
				t.Errorf("expected key %q, got %q", tt.key, tt.attr.Key)
			}
			if tt.attr.Value.String() != tt.value {
				t.Errorf("expected value %q, got %q", tt.value, tt.attr.Value.String())
			}
		})
	}
}

func TestIntFieldHelpers(t *testing.T) {
	if attr := StatusCode(502); attr.Key != FieldStatusCode || attr.Value.Int64() != 502 {
		t.Errorf("StatusCode attr = %v", attr)
	}
	if attr := Duration(1234); attr.Key != FieldDuration || attr.Value.Int64() != 1234 {
		t.Errorf("Duration attr = %v", attr)
	}
}
