package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenantcore/internal/session"
	"tenantcore/pkg/domain"
	"tenantcore/pkg/isolation"
	"tenantcore/pkg/requestcontext"
)

func TestRequestContext(t *testing.T) {
	var gotID, gotIP string
	h := RequestContext(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = requestcontext.RequestID(r.Context())
		gotIP = requestcontext.ClientIP(r.Context())
	}))

	t.Run("keeps an incoming request id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, "abc")
		req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, "abc", gotID)
		assert.Equal(t, "abc", rec.Header().Get(HeaderRequestID))
		assert.Equal(t, "203.0.113.9", gotIP)
	})

	t.Run("generates one otherwise", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "[::1]:5555"
		h.ServeHTTP(httptest.NewRecorder(), req)

		assert.NotEmpty(t, gotID)
		assert.Equal(t, "::1", gotIP)
	})
}

func TestRequireSession(t *testing.T) {
	in := domain.NewInterner()
	svc := session.NewService("middleware-test-signing-key", "tenantcore", in)
	scope := isolation.MustNew(isolation.WithTenant(in.Generate(domain.KindTenant)))
	token, err := svc.Issue(session.Session{Context: scope, Privilege: isolation.PrivilegeRead}, time.Minute)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var reached bool
	h := RequireSession(svc, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		got, ok := requestcontext.Isolation(r.Context())
		assert.True(t, ok)
		assert.True(t, got.Matches(scope))
		assert.Equal(t, isolation.PrivilegeRead, requestcontext.Privilege(r.Context()))
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid token", "Bearer " + token, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"tampered token", "Bearer " + token + "x", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached = false
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.status == http.StatusOK, reached)
		})
	}
}
