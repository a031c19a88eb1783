package repository

import (
	"context"
	"log/slog"

	"tenantcore/internal/audit"
	"tenantcore/internal/platform/metrics"
	dErrors "tenantcore/pkg/domain-errors"
	"tenantcore/pkg/isolation"
	"tenantcore/pkg/requestcontext"
)

// Guard runs access decisions for the caller attached to a request context.
type Guard struct {
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

// NewGuard accepts the same options as New; only the audit publisher,
// metrics and logger apply.
func NewGuard(opts ...Option) *Guard {
	o := buildOptions(opts)
	return &Guard{
		auditPublisher: o.auditPublisher,
		metrics:        o.metrics,
		logger:         o.logger,
	}
}

// Authorize decides whether the caller may touch data owned by target.
//
// Errors: CodeUnauthorized when the context carries no caller scope;
// CodeAccessDenied when the decision refuses. Every refusal emits a
// data_access_denied audit event.
func (g *Guard) Authorize(ctx context.Context, target isolation.Context, scope isolation.OperationScope) error {
	caller, ok := requestcontext.Isolation(ctx)
	if !ok {
		return dErrors.New(dErrors.CodeUnauthorized, "request carries no isolation context")
	}
	privilege := requestcontext.Privilege(ctx)

	decision := isolation.Decide(isolation.Request{
		Caller:    caller,
		Privilege: privilege,
		Target:    target,
		Scope:     scope,
	})
	if g.metrics != nil {
		g.metrics.RecordAccessDecision(decision)
	}
	if decision.Allowed {
		return nil
	}

	g.logger.WarnContext(ctx, "data access denied",
		"caller_scope", caller.Identifier(),
		"target_scope", target.Identifier(),
		"privilege", privilege.String(),
		"rule", string(decision.Rule),
	)
	g.emitDenied(ctx, caller, target, privilege, decision)
	return dErrors.New(dErrors.CodeAccessDenied, "access to "+target.Identifier()+" denied")
}

func (g *Guard) emitDenied(ctx context.Context, caller, target isolation.Context, privilege isolation.Privilege, d isolation.Decision) {
	if g.auditPublisher == nil {
		return
	}
	userID := ""
	if caller.UserID() != nil {
		userID = caller.UserID().String()
	}
	err := g.auditPublisher.Emit(ctx, audit.Event{
		Action:      string(audit.EventDataAccessDenied),
		CallerScope: caller.Identifier(),
		TargetScope: target.Identifier(),
		UserID:      userID,
		Privilege:   privilege.String(),
		Rule:        string(d.Rule),
		Decision:    "denied",
		Reason:      denialReason(d.Rule),
		RequestID:   requestcontext.RequestID(ctx),
	})
	if err != nil {
		g.logger.ErrorContext(ctx, "failed to emit audit event", "error", err)
	}
}

func denialReason(rule isolation.Rule) string {
	if rule == isolation.RuleTenantAdmin {
		return "tenant_mismatch"
	}
	return "scope_mismatch"
}
