package messaging

// Subjects follow the pattern {domain}.{resource}.{action}.
const (
	// SubjectConversionsForwarded carries outcomes of conversions accepted by the Graph API.
	SubjectConversionsForwarded = "capi.conversions.forwarded"

	// SubjectConversionsFailed carries outcomes of conversions that were not delivered.
	SubjectConversionsFailed = "capi.conversions.failed"
)

// Header keys attached to conversion outcome messages.
const (
	HeaderEventName = "Capi-Event-Name"
	HeaderEventID   = "Capi-Event-Id"
	HeaderRequestID = "Capi-Request-Id"
)

// ConversionSubject returns the outcome subject for a delivery result.
func ConversionSubject(delivered bool) string {
	if delivered {
		return SubjectConversionsForwarded
	}
	return SubjectConversionsFailed
}
