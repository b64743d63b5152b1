// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets these values; services read them. Keeping the package
// free of net/http lets services log request ids and caller identity
// without pulling in transport code.
//
// Usage in services (read values):
//
//	callerID := requestcontext.CallerID(ctx)
//	requestID := requestcontext.RequestID(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithCallerID(ctx, "user-1")
package requestcontext

import "context"

type (
	requestIDKey struct{}
	callerIDKey  struct{}
	decisionKey  struct{}
)

// Access is the pre-computed authorization decision supplied by the
// gateway in front of this service. The core trusts it and never derives
// permissions on its own.
type Access struct {
	CallerID string
	ChartID  string
	CanRead  bool
	CanWrite bool
	IsOwner  bool
}

// WithRequestID injects the correlation id for a request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID retrieves the correlation id, or "" when unset.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithCallerID injects the authenticated caller's id.
func WithCallerID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, callerIDKey{}, id)
}

// CallerID retrieves the caller id, or "" when unset.
func CallerID(ctx context.Context) string {
	if id, ok := ctx.Value(callerIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithAccess injects the gateway's access decision.
func WithAccess(ctx context.Context, a Access) context.Context {
	return context.WithValue(ctx, decisionKey{}, a)
}

// AccessFrom retrieves the access decision. The second return is false
// when no decision was attached, which handlers must treat as deny.
func AccessFrom(ctx context.Context) (Access, bool) {
	a, ok := ctx.Value(decisionKey{}).(Access)
	return a, ok
}
