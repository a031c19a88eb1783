package service

import (
	"context"

	"tenantcore/internal/tenant/models"
	"tenantcore/pkg/isolation"
	"tenantcore/pkg/requestcontext"
)

// SeedBootstrapTenant creates a first tenant as the platform itself, so a
// fresh deployment has a tenant to issue admin sessions for.
func SeedBootstrapTenant(ctx context.Context, svc *Service, name string) (models.TenantView, error) {
	ctx = requestcontext.WithIsolation(ctx, isolation.Platform())
	ctx = requestcontext.WithPrivilege(ctx, isolation.PrivilegeSuper)
	return svc.CreateTenant(ctx, name)
}
