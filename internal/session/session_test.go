package session

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"tenantcore/pkg/domain"
	dErrors "tenantcore/pkg/domain-errors"
	"tenantcore/pkg/isolation"
	"tenantcore/pkg/requestcontext"
)

const (
	signingKey = "test-signing-key-0123456789"
	tenantID   = "11111111-1111-4111-8111-111111111111"
	orgID      = "22222222-2222-4222-8222-222222222222"
)

type SessionSuite struct {
	suite.Suite
	in  *domain.Interner
	svc *Service
	now time.Time
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionSuite))
}

func (s *SessionSuite) SetupTest() {
	s.in = domain.NewInterner()
	s.svc = NewService(signingKey, "tenantcore", s.in)
	s.now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	s.svc.now = func() time.Time { return s.now }
}

// sign builds a token directly so tests can forge arbitrary claims.
func (s *SessionSuite) sign(claims Claims, key string) string {
	if claims.Issuer == "" {
		claims.Issuer = "tenantcore"
	}
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(s.now.Add(time.Hour))
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	s.Require().NoError(err)
	return token
}

func ptr(v string) *string { return &v }

func (s *SessionSuite) TestIssueAndParseRoundTrip() {
	scope := isolation.MustNew(
		isolation.WithTenant(s.in.MustCreate(domain.KindTenant, tenantID)),
		isolation.WithOrganization(s.in.MustCreate(domain.KindOrganization, orgID)),
		isolation.WithSharing(isolation.SharingTenant),
	)
	token, err := s.svc.Issue(Session{Context: scope, Privilege: isolation.PrivilegeAdmin}, time.Hour)
	s.Require().NoError(err)

	sess, err := s.svc.Parse(token)
	s.Require().NoError(err)
	s.True(sess.Context.Matches(scope))
	s.Equal(isolation.SharingTenant, sess.Context.Sharing())
	s.Equal(isolation.PrivilegeAdmin, sess.Privilege)
	s.True(sess.ExpiresAt.Equal(s.now.Add(time.Hour)))
	s.Same(scope.TenantID(), sess.Context.TenantID(), "identities are interned")
}

func (s *SessionSuite) TestPlatformSessionWithoutScopeClaims() {
	token := s.sign(Claims{Privilege: "super"}, signingKey)
	sess, err := s.svc.Parse(token)
	s.Require().NoError(err)
	s.True(sess.Context.IsPlatform())
	s.Equal(isolation.PrivilegeSuper, sess.Privilege)
}

func (s *SessionSuite) TestRejections() {
	tests := []struct {
		name  string
		token func() string
		code  dErrors.Code
	}{
		{"wrong signing key", func() string {
			return s.sign(Claims{Claims: isolation.Claims{TenantID: ptr(tenantID)}}, "another-key-0123456789")
		}, dErrors.CodeUnauthorized},
		{"expired", func() string {
			c := Claims{}
			c.ExpiresAt = jwt.NewNumericDate(s.now.Add(-time.Minute))
			return s.sign(c, signingKey)
		}, dErrors.CodeUnauthorized},
		{"wrong issuer", func() string {
			c := Claims{}
			c.Issuer = "someone-else"
			return s.sign(c, signingKey)
		}, dErrors.CodeUnauthorized},
		{"unknown privilege", func() string {
			return s.sign(Claims{Privilege: "root"}, signingKey)
		}, dErrors.CodeUnauthorized},
		{"present but empty tenant", func() string {
			return s.sign(Claims{Claims: isolation.Claims{TenantID: ptr("")}}, signingKey)
		}, dErrors.CodeInvalidIsolationContext},
		{"malformed organization", func() string {
			return s.sign(Claims{Claims: isolation.Claims{TenantID: ptr(tenantID), OrganizationID: ptr("not-a-uuid")}}, signingKey)
		}, dErrors.CodeInvalidIsolationContext},
		{"organization without tenant", func() string {
			return s.sign(Claims{Claims: isolation.Claims{OrganizationID: ptr(orgID)}}, signingKey)
		}, dErrors.CodeInvalidIsolationContext},
		{"garbage", func() string { return "not.a.token" }, dErrors.CodeUnauthorized},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.svc.Parse(tt.token())
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestSessionAttach(t *testing.T) {
	in := domain.NewInterner()
	scope := isolation.MustNew(isolation.WithTenant(in.Generate(domain.KindTenant)))
	ctx := Session{Context: scope, Privilege: isolation.PrivilegeWrite}.Attach(context.Background())

	got, ok := requestcontext.Isolation(ctx)
	require.True(t, ok)
	assert.True(t, got.Matches(scope))
	assert.Equal(t, isolation.PrivilegeWrite, requestcontext.Privilege(ctx))
}
