// Package requestcontext provides transport-independent context accessors for
// request-scoped values.
//
// Middleware and session adapters set the caller's isolation scope and
// privilege; repositories and services read them to run access decisions.
// Keeping this package free of net/http lets domain code depend on it
// without pulling in transport code.
//
// Usage in services (read values):
//
//	caller, ok := requestcontext.Isolation(ctx)
//	privilege := requestcontext.Privilege(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in adapters (set values):
//
//	ctx = requestcontext.WithIsolation(ctx, sess.Context)
//	ctx = requestcontext.WithPrivilege(ctx, sess.Privilege)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	"tenantcore/pkg/isolation"
)

// Context key types (unexported for encapsulation).
type (
	isolationKey   struct{}
	privilegeKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
	clientIPKey    struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyIsolation   = isolationKey{}
	ContextKeyPrivilege   = privilegeKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
	ContextKeyClientIP    = clientIPKey{}
)

// -----------------------------------------------------------------------------
// Caller scope
// -----------------------------------------------------------------------------

// Isolation retrieves the caller's isolation context. The boolean is false when
// no scope was attached; callers must not treat that as platform scope.
func Isolation(ctx context.Context) (isolation.Context, bool) {
	scope, ok := ctx.Value(ContextKeyIsolation).(isolation.Context)
	return scope, ok
}

// WithIsolation injects the caller's isolation context.
func WithIsolation(ctx context.Context, scope isolation.Context) context.Context {
	return context.WithValue(ctx, ContextKeyIsolation, scope)
}

// Privilege retrieves the caller's privilege. Returns PrivilegeNone if not set.
func Privilege(ctx context.Context) isolation.Privilege {
	if p, ok := ctx.Value(ContextKeyPrivilege).(isolation.Privilege); ok {
		return p
	}
	return isolation.PrivilegeNone
}

// WithPrivilege injects the caller's privilege.
func WithPrivilege(ctx context.Context, p isolation.Privilege) context.Context {
	return context.WithValue(ctx, ContextKeyPrivilege, p)
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

// WithClientIP injects the client IP address into the context.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ContextKeyClientIP, ip)
}

// -----------------------------------------------------------------------------
// Request time
// -----------------------------------------------------------------------------

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context so a whole unit of work
// stamps events consistently.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
