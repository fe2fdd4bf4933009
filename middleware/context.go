package middleware

import "context"

// Context key type to avoid collisions
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"

	// OwnerKey is the context key for the authenticated owner subject
	OwnerKey contextKey = "owner"
)

// GetRequestIDFromContext retrieves the request ID from context
func GetRequestIDFromContext(ctx context.Context) string {
	if val := ctx.Value(RequestIDKey); val != nil {
		if requestID, ok := val.(string); ok {
			return requestID
		}
	}
	return ""
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetOwnerFromContext retrieves the authenticated owner subject from context
func GetOwnerFromContext(ctx context.Context) string {
	if val := ctx.Value(OwnerKey); val != nil {
		if owner, ok := val.(string); ok {
			return owner
		}
	}
	return ""
}

// WithOwner marks the context as authenticated for the given owner subject
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, OwnerKey, owner)
}
