package logging

import "log/slog"

// Common field names for consistent logging across services.
const (
	FieldService   = "service"
	FieldProvider  = "provider"
	FieldEventID   = "event_id"
	FieldEventType = "event_type"
	FieldStatus    = "status"
	FieldError     = "error"
	FieldAttempt   = "attempt"
	FieldDuration  = "duration_ms"
	FieldIP        = "ip"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// Provider returns a slog attribute for the payment provider identifier.
func Provider(id string) slog.Attr {
	return slog.String(FieldProvider, id)
}

// EventID returns a slog attribute for the webhook event ID.
func EventID(id string) slog.Attr {
	return slog.String(FieldEventID, id)
}

// EventType returns a slog attribute for the normalized event type.
func EventType(t string) slog.Attr {
	return slog.String(FieldEventType, t)
}

// Status returns a slog attribute for the event processing status.
func Status(s string) slog.Attr {
	return slog.String(FieldStatus, s)
}

// Error returns a slog attribute for an error value.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}

// Attempt returns a slog attribute for a processing attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int(FieldAttempt, n)
}

// Duration returns a slog attribute for duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}

// IP returns a slog attribute for a client IP address.
func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}
