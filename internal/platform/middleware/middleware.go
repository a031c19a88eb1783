// Package middleware attaches request-scoped values to the context: request
// metadata for every request and, behind RequireSession, the caller's
// verified isolation scope and privilege.
package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"tenantcore/internal/session"
	"tenantcore/pkg/requestcontext"
)

const HeaderRequestID = "X-Request-ID"

// SessionParser verifies a bearer token.
type SessionParser interface {
	Parse(token string) (session.Session, error)
}

// RequestContext stamps the request ID, client IP and request time. An
// incoming X-Request-ID is kept so traces join across services.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, requestID)

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		ctx = requestcontext.WithClientIP(ctx, ClientIPFromRequest(r))
		ctx = requestcontext.WithTime(ctx, time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireSession rejects requests without a valid bearer token and attaches
// the verified session otherwise.
func RequireSession(parser SessionParser, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, logger, r, "Missing or invalid Authorization header")
				return
			}

			sess, err := parser.Parse(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, logger, r, "Invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(sess.Attach(ctx)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, logger *slog.Logger, r *http.Request, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, err := w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to write unauthorized response",
			"error", err,
			"request_id", requestcontext.RequestID(r.Context()),
		)
	}
}

// ClientIPFromRequest extracts the client IP, preferring proxy headers.
func ClientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
