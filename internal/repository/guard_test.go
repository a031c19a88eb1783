package repository

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"tenantcore/internal/audit"
	"tenantcore/internal/platform/metrics"
	"tenantcore/internal/repository/mocks"
	"tenantcore/pkg/domain"
	dErrors "tenantcore/pkg/domain-errors"
	"tenantcore/pkg/isolation"
	"tenantcore/pkg/requestcontext"
)

type GuardSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	audit   *mocks.MockAuditPublisher
	metrics *metrics.Metrics
	guard   *Guard

	in      *domain.Interner
	tenantA *domain.Identity
	tenantB *domain.Identity
	org     *domain.Identity
}

func TestGuardSuite(t *testing.T) {
	suite.Run(t, new(GuardSuite))
}

func (s *GuardSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.audit = mocks.NewMockAuditPublisher(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.guard = NewGuard(
		WithAuditPublisher(s.audit),
		WithMetrics(s.metrics),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.in = domain.NewInterner()
	s.tenantA = s.in.Generate(domain.KindTenant)
	s.tenantB = s.in.Generate(domain.KindTenant)
	s.org = s.in.Generate(domain.KindOrganization)
}

func (s *GuardSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *GuardSuite) caller(scope isolation.Context, p isolation.Privilege) context.Context {
	ctx := requestcontext.WithIsolation(context.Background(), scope)
	ctx = requestcontext.WithPrivilege(ctx, p)
	return requestcontext.WithRequestID(ctx, "req-7")
}

func (s *GuardSuite) TestMissingCallerScope() {
	target := isolation.MustNew(isolation.WithTenant(s.tenantA))
	err := s.guard.Authorize(context.Background(), target, isolation.ScopeTenant)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *GuardSuite) TestAllowed() {
	scope := isolation.MustNew(isolation.WithTenant(s.tenantA))
	s.NoError(s.guard.Authorize(s.caller(scope, isolation.PrivilegeRead), scope, isolation.ScopeTenant))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.AccessDecisions.WithLabelValues("exact_scope", "allowed")))
}

func (s *GuardSuite) TestTenantAdminCrossesOrganizations() {
	caller := isolation.MustNew(isolation.WithTenant(s.tenantA))
	target := isolation.MustNew(isolation.WithTenant(s.tenantA), isolation.WithOrganization(s.org))

	s.NoError(s.guard.Authorize(s.caller(caller, isolation.PrivilegeAdmin), target, isolation.ScopeTenant))

	s.Run("exact scope disables the escalation", func() {
		s.audit.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)
		err := s.guard.Authorize(s.caller(caller, isolation.PrivilegeAdmin), target, isolation.ScopeExact)
		s.True(dErrors.HasCode(err, dErrors.CodeAccessDenied))
	})
}

func (s *GuardSuite) TestDeniedEmitsAudit() {
	caller := isolation.MustNew(isolation.WithTenant(s.tenantA))
	target := isolation.MustNew(isolation.WithTenant(s.tenantB))

	s.audit.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e audit.Event) error {
			s.Equal(string(audit.EventDataAccessDenied), e.Action)
			s.Equal(caller.Identifier(), e.CallerScope)
			s.Equal(target.Identifier(), e.TargetScope)
			s.Equal("admin", e.Privilege)
			s.Equal(string(isolation.RuleTenantAdmin), e.Rule)
			s.Equal("tenant_mismatch", e.Reason)
			s.Equal("req-7", e.RequestID)
			return nil
		})

	err := s.guard.Authorize(s.caller(caller, isolation.PrivilegeAdmin), target, isolation.ScopeTenant)
	s.True(dErrors.HasCode(err, dErrors.CodeAccessDenied))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.AccessDecisions.WithLabelValues("tenant_admin", "denied")))
}

func (s *GuardSuite) TestSuperBypassesScope() {
	target := isolation.MustNew(isolation.WithTenant(s.tenantB))
	s.NoError(s.guard.Authorize(s.caller(isolation.Platform(), isolation.PrivilegeSuper), target, isolation.ScopeExact))
}

func (s *GuardSuite) TestAuditFailureStillDenies() {
	caller := isolation.MustNew(isolation.WithTenant(s.tenantA))
	target := isolation.MustNew(isolation.WithTenant(s.tenantB))
	s.audit.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(audit.ErrBufferFull)

	err := s.guard.Authorize(s.caller(caller, isolation.PrivilegeRead), target, isolation.ScopeTenant)
	s.True(dErrors.HasCode(err, dErrors.CodeAccessDenied))
}
