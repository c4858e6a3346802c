package telemetry

// Span names used for instrumentation.
const (
	// Session token
	SpanTokenAcquire = "session.token.acquire"
	SpanTokenRevoke  = "session.token.revoke"
	SpanTokenResume  = "session.token.resume"

	// Location
	SpanLocate         = "session.location.fix"
	SpanReverseGeocode = "session.location.reverse_geocode"

	// Pins
	SpanPinsQuery  = "pins.query"
	SpanPinsCreate = "pins.create"
)
