package log

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// contextKey is a private key type for storing RequestContext.
type contextKey string

const requestContextKey contextKey = "farmlokal_request_context"

// RequestContext carries request tracing information across layers.
type RequestContext struct {
	RequestID string
	ClientID  string
	StartTime time.Time
}

// GenerateRequestID returns a short unique request identifier.
func GenerateRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// WithRequestContext injects a RequestContext into the context.
// Typically called by middleware at the start of a request.
func WithRequestContext(ctx context.Context, requestID, clientID string) context.Context {
	return context.WithValue(ctx, requestContextKey, &RequestContext{
		RequestID: requestID,
		ClientID:  clientID,
		StartTime: time.Now(),
	})
}

// GetRequestContext extracts the RequestContext, returning an empty default
// when none is present so callers never need a nil check.
func GetRequestContext(ctx context.Context) *RequestContext {
	if ctx != nil {
		if reqCtx, ok := ctx.Value(requestContextKey).(*RequestContext); ok {
			return reqCtx
		}
	}
	return &RequestContext{RequestID: "unknown"}
}

// GetRequestID extracts the request ID from the context.
func GetRequestID(ctx context.Context) string {
	return GetRequestContext(ctx).RequestID
}
