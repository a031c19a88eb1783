// Package session turns verified bearer tokens into the caller's isolation
// scope and privilege. Unverified input never reaches the isolation layer.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"tenantcore/pkg/domain"
	dErrors "tenantcore/pkg/domain-errors"
	"tenantcore/pkg/isolation"
	"tenantcore/pkg/requestcontext"
)

// Claims is the token body: the isolation claims flattened next to the
// privilege and the registered claims.
type Claims struct {
	isolation.Claims
	Privilege string `json:"privilege"`
	jwt.RegisteredClaims
}

// Session is the verified caller.
type Session struct {
	Context   isolation.Context
	Privilege isolation.Privilege
	ExpiresAt time.Time
}

// Attach stores the session's scope and privilege on ctx for repositories
// and services to read.
func (s Session) Attach(ctx context.Context) context.Context {
	ctx = requestcontext.WithIsolation(ctx, s.Context)
	return requestcontext.WithPrivilege(ctx, s.Privilege)
}

// Service signs and verifies HS256 session tokens.
type Service struct {
	signingKey []byte
	issuer     string
	ids        *domain.Interner
	now        func() time.Time
}

func NewService(signingKey, issuer string, ids *domain.Interner) *Service {
	if ids == nil {
		ids = domain.Default()
	}
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		ids:        ids,
		now:        time.Now,
	}
}

// Issue signs a token for sess valid for ttl.
func (s *Service) Issue(sess Session, ttl time.Duration) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Claims:    sess.Context.Claims(),
		Privilege: sess.Privilege.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "sign session token")
	}
	return signed, nil
}

// Parse verifies tokenString and builds the caller's Session.
//
// Errors: CodeUnauthorized for bad signatures, expiry, wrong issuer or an
// unknown privilege; CodeInvalidIsolationContext when the scope claims are
// malformed or inconsistent.
func (s *Service) Parse(tokenString string) (Session, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Session{}, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return Session{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Session{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	privilege := isolation.PrivilegeNone
	if claims.Privilege != "" {
		if privilege, err = isolation.ParsePrivilege(claims.Privilege); err != nil {
			return Session{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid privilege claim")
		}
	}

	scope, err := isolation.FromClaims(s.ids, claims.Claims)
	if err != nil {
		return Session{}, err
	}

	sess := Session{Context: scope, Privilege: privilege}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	return sess, nil
}
