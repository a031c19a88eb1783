package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenantcore/internal/platform/metrics"
	"tenantcore/internal/session"
	"tenantcore/pkg/domain"
	"tenantcore/pkg/isolation"
)

func serve(t *testing.T, h http.Handler, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.IncrementVersionConflict("tenant")

	in := domain.NewInterner()
	sessions := session.NewService("router-test-signing-key", "tenantcore", in)

	healthy := true
	h := NewRouter(RouterConfig{
		Gatherer: reg,
		Sessions: sessions,
		Checks: map[string]HealthCheck{
			"postgres": func(context.Context) error {
				if healthy {
					return nil
				}
				return errors.New("connection refused")
			},
		},
	})

	t.Run("healthz", func(t *testing.T) {
		rec := serve(t, h, "/healthz", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})

	t.Run("readyz reports failing checks", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, serve(t, h, "/readyz", "").Code)

		healthy = false
		rec := serve(t, h, "/readyz", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "connection refused", body["postgres"])
		healthy = true
	})

	t.Run("metrics", func(t *testing.T) {
		rec := serve(t, h, "/metrics", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "tenantcore_version_conflicts_total")
	})

	t.Run("session introspection", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, serve(t, h, "/session", "").Code)

		tenant := in.Generate(domain.KindTenant)
		scope := isolation.MustNew(isolation.WithTenant(tenant), isolation.WithSharing(isolation.SharingTenant))
		token, err := sessions.Issue(session.Session{Context: scope, Privilege: isolation.PrivilegeAdmin}, time.Minute)
		require.NoError(t, err)

		rec := serve(t, h, "/session", token)
		require.Equal(t, http.StatusOK, rec.Code)
		var body sessionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "tenant:"+tenant.String(), body.Scope)
		assert.Equal(t, "tenant", body.Level)
		assert.Equal(t, "tenant", body.Sharing)
		assert.Equal(t, "admin", body.Privilege)
	})
}
