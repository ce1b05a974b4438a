package domain

import "context"

type requestIDKey struct{}

// WithRequestID stores the correlation identifier carried by inbound
// requests so downstream layers can tag logs and audit records with it.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the stored correlation identifier, or the
// empty string when none was set.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	requestID, _ := ctx.Value(requestIDKey{}).(string)
	return requestID
}
