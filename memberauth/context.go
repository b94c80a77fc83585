package memberauth

import (
	"context"
)

// CredentialsMode controls whether the Gateway forwards jar cookies.
type CredentialsMode int

const (
	// CredentialsInclude sends cookies from the shared jar. It is the default.
	CredentialsInclude CredentialsMode = iota
	// CredentialsOmit sends the request without any cookies.
	CredentialsOmit
)

type credentialsKeyType struct{}
type requestIDKeyType struct{}

var (
	credentialsKey = credentialsKeyType{}
	requestIDKey   = requestIDKeyType{}
)

// WithCredentials returns a context that overrides cookie forwarding for
// requests sent through the Gateway.
func WithCredentials(ctx context.Context, mode CredentialsMode) context.Context {
	return context.WithValue(ctx, credentialsKey, mode)
}

// CredentialsFromContext returns the cookie forwarding mode, defaulting to
// CredentialsInclude.
func CredentialsFromContext(ctx context.Context) CredentialsMode {
	mode, ok := ctx.Value(credentialsKey).(CredentialsMode)
	if !ok {
		return CredentialsInclude
	}
	return mode
}

// WithRequestID pins the request ID the Gateway attaches to outbound calls.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts a request ID set with WithRequestID.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok && id != ""
}
