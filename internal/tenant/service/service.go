// Package service orchestrates the tenant hierarchy: tenants, their
// organizations and departments. Every command checks the caller's access to
// the target scope, runs against a freshly loaded aggregate, and is re-run
// when another writer committed first.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"tenantcore/internal/audit"
	"tenantcore/internal/cache"
	tenantmetrics "tenantcore/internal/tenant/metrics"
	"tenantcore/internal/tenant/models"
	"tenantcore/pkg/aggregate"
	"tenantcore/pkg/domain"
	dErrors "tenantcore/pkg/domain-errors"
	"tenantcore/pkg/isolation"
	"tenantcore/pkg/requestcontext"
)

// maxAttempts bounds how often a command is re-run after a version conflict.
const maxAttempts = 3

const (
	cacheKeyTenant       = "tenant"
	cacheKeyOrganization = "organization"
)

type Repository[A aggregate.Aggregate] interface {
	Load(ctx context.Context, id *domain.Identity) (A, error)
	Save(ctx context.Context, agg A) error
}

type Authorizer interface {
	Authorize(ctx context.Context, target isolation.Context, scope isolation.OperationScope) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates tenant hierarchy management.
type Service struct {
	tenants       Repository[*models.Tenant]
	organizations Repository[*models.Organization]
	departments   Repository[*models.Department]
	guard         Authorizer
	ids           *domain.Interner

	cache          *cache.Scoped
	auditPublisher AuditPublisher
	metrics        *tenantmetrics.Metrics
	logger         *slog.Logger
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *tenantmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithCache enables read-through caching of tenant and organization views.
func WithCache(c *cache.Scoped) Option {
	return func(s *Service) {
		s.cache = c
	}
}

func WithInterner(in *domain.Interner) Option {
	return func(s *Service) {
		if in != nil {
			s.ids = in
		}
	}
}

// New constructs a Service.
func New(
	tenants Repository[*models.Tenant],
	organizations Repository[*models.Organization],
	departments Repository[*models.Department],
	guard Authorizer,
	opts ...Option,
) (*Service, error) {
	if tenants == nil {
		return nil, errors.New("tenant repository is required")
	}
	if organizations == nil {
		return nil, errors.New("organization repository is required")
	}
	if departments == nil {
		return nil, errors.New("department repository is required")
	}
	if guard == nil {
		return nil, errors.New("authorizer is required")
	}
	s := &Service{
		tenants:       tenants,
		organizations: organizations,
		departments:   departments,
		guard:         guard,
		ids:           domain.Default(),
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// -----------------------------------------------------------------------------
// Tenants
// -----------------------------------------------------------------------------

// CreateTenant starts a new tenant. Only super callers may create tenants.
func (s *Service) CreateTenant(ctx context.Context, name string) (models.TenantView, error) {
	if err := requirePrivilege(ctx, isolation.PrivilegeSuper); err != nil {
		return models.TenantView{}, err
	}

	t := models.NewTenant(s.ids.Generate(domain.KindTenant), s.aggregateOptions(ctx)...)
	if err := t.Create(name); err != nil {
		return models.TenantView{}, asValidation(err)
	}
	if err := s.tenants.Save(ctx, t); err != nil {
		return models.TenantView{}, err
	}

	s.emit(ctx, audit.EventTenantCreated, t.Scope(), t.ID())
	if s.metrics != nil {
		s.metrics.IncrementTenantCreated()
	}
	return t.View(), nil
}

// GetTenant returns the tenant view, served from cache when enabled.
func (s *Service) GetTenant(ctx context.Context, tenantID *domain.Identity) (models.TenantView, error) {
	start := time.Now()
	if s.metrics != nil {
		defer s.metrics.ObserveGetTenant(start)
	}

	scope, err := tenantScope(tenantID)
	if err != nil {
		return models.TenantView{}, err
	}
	if err := s.guard.Authorize(ctx, scope, isolation.ScopeTenant); err != nil {
		return models.TenantView{}, err
	}

	load := func(ctx context.Context) (models.TenantView, error) {
		t, err := s.tenants.Load(ctx, tenantID)
		if err != nil {
			return models.TenantView{}, err
		}
		return t.View(), nil
	}
	if s.cache == nil {
		return load(ctx)
	}
	return cache.GetOrLoad(ctx, s.cache, scope, cacheKeyTenant, load)
}

func (s *Service) RenameTenant(ctx context.Context, tenantID *domain.Identity, name string) (models.TenantView, error) {
	t, err := s.mutateTenant(ctx, tenantID, isolation.PrivilegeWrite, func(t *models.Tenant) error {
		return asValidation(t.Rename(name))
	})
	if err != nil {
		return models.TenantView{}, err
	}
	s.emit(ctx, audit.EventTenantRenamed, t.Scope(), t.ID())
	return t.View(), nil
}

// DeactivateTenant transitions a tenant to inactive status. Nothing beneath
// the tenant is touched; commands on its organizations and departments are
// refused while it stays inactive.
func (s *Service) DeactivateTenant(ctx context.Context, tenantID *domain.Identity) (models.TenantView, error) {
	t, err := s.mutateTenant(ctx, tenantID, isolation.PrivilegeAdmin, func(t *models.Tenant) error {
		if err := t.Deactivate(); err != nil {
			return asConflict(err)
		}
		return nil
	})
	if err != nil {
		return models.TenantView{}, err
	}
	s.emit(ctx, audit.EventTenantDeactivated, t.Scope(), t.ID())
	s.countTransition("deactivate")
	return t.View(), nil
}

func (s *Service) ReactivateTenant(ctx context.Context, tenantID *domain.Identity) (models.TenantView, error) {
	t, err := s.mutateTenant(ctx, tenantID, isolation.PrivilegeAdmin, func(t *models.Tenant) error {
		if err := t.Reactivate(); err != nil {
			return asConflict(err)
		}
		return nil
	})
	if err != nil {
		return models.TenantView{}, err
	}
	s.emit(ctx, audit.EventTenantReactivated, t.Scope(), t.ID())
	s.countTransition("reactivate")
	return t.View(), nil
}

func (s *Service) mutateTenant(ctx context.Context, tenantID *domain.Identity, min isolation.Privilege, fn func(*models.Tenant) error) (*models.Tenant, error) {
	scope, err := tenantScope(tenantID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeWrite(ctx, scope, min); err != nil {
		return nil, err
	}

	var t *models.Tenant
	err = s.retry(ctx, func() error {
		loaded, err := s.tenants.Load(ctx, tenantID)
		if err != nil {
			return err
		}
		if err := fn(loaded); err != nil {
			return err
		}
		if err := s.tenants.Save(ctx, loaded); err != nil {
			return err
		}
		t = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, scope)
	return t, nil
}

// -----------------------------------------------------------------------------
// Organizations
// -----------------------------------------------------------------------------

// CreateOrganization adds an organization under an active tenant.
func (s *Service) CreateOrganization(ctx context.Context, tenantID *domain.Identity, name string) (models.OrganizationView, error) {
	scope, err := tenantScope(tenantID)
	if err != nil {
		return models.OrganizationView{}, err
	}
	if err := s.authorizeWrite(ctx, scope, isolation.PrivilegeWrite); err != nil {
		return models.OrganizationView{}, err
	}
	if err := s.requireActiveTenant(ctx, tenantID); err != nil {
		return models.OrganizationView{}, err
	}

	o := models.NewOrganization(s.ids.Generate(domain.KindOrganization), s.aggregateOptions(ctx)...)
	if err := o.Create(tenantID, name); err != nil {
		return models.OrganizationView{}, asValidation(err)
	}
	if err := s.organizations.Save(ctx, o); err != nil {
		return models.OrganizationView{}, err
	}

	s.emit(ctx, audit.EventOrganizationCreated, o.Scope(), o.ID())
	if s.metrics != nil {
		s.metrics.IncrementOrganizationCreated()
	}
	return o.View(), nil
}

// GetOrganization returns the organization view, served from cache when
// enabled. An organization outside tenantID is reported as not found.
func (s *Service) GetOrganization(ctx context.Context, tenantID, organizationID *domain.Identity) (models.OrganizationView, error) {
	if organizationID == nil {
		return models.OrganizationView{}, dErrors.New(dErrors.CodeBadRequest, "organization id is required")
	}
	scope, err := isolation.New(isolation.WithTenant(tenantID), isolation.WithOrganization(organizationID))
	if err != nil {
		return models.OrganizationView{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid organization scope")
	}
	if err := s.guard.Authorize(ctx, scope, isolation.ScopeTenant); err != nil {
		return models.OrganizationView{}, err
	}

	load := func(ctx context.Context) (models.OrganizationView, error) {
		o, err := s.organizations.Load(ctx, organizationID)
		if err != nil {
			return models.OrganizationView{}, err
		}
		if o.TenantID().String() != tenantID.String() {
			return models.OrganizationView{}, dErrors.New(dErrors.CodeNotFound, "organization not found")
		}
		return o.View(), nil
	}
	if s.cache == nil {
		return load(ctx)
	}
	return cache.GetOrLoad(ctx, s.cache, scope, cacheKeyOrganization, load)
}

// RenameOrganization changes an organization's display name. Archived
// organizations cannot be renamed.
func (s *Service) RenameOrganization(ctx context.Context, organizationID *domain.Identity, name string) (models.OrganizationView, error) {
	var o *models.Organization
	err := s.retry(ctx, func() error {
		loaded, err := s.organizations.Load(ctx, organizationID)
		if err != nil {
			return err
		}
		if err := s.authorizeWrite(ctx, loaded.Scope(), isolation.PrivilegeWrite); err != nil {
			return err
		}
		if loaded.IsArchived() {
			return dErrors.New(dErrors.CodeConflict, "organization is archived")
		}
		if err := loaded.Rename(name); err != nil {
			return asValidation(err)
		}
		if err := s.organizations.Save(ctx, loaded); err != nil {
			return err
		}
		o = loaded
		return nil
	})
	if err != nil {
		return models.OrganizationView{}, err
	}
	s.invalidate(ctx, o.Scope())
	s.emit(ctx, audit.EventOrganizationRenamed, o.Scope(), o.ID())
	return o.View(), nil
}

// ArchiveOrganization retires an organization. Its history and departments
// are kept.
func (s *Service) ArchiveOrganization(ctx context.Context, organizationID *domain.Identity) (models.OrganizationView, error) {
	var o *models.Organization
	err := s.retry(ctx, func() error {
		loaded, err := s.organizations.Load(ctx, organizationID)
		if err != nil {
			return err
		}
		if err := s.authorizeWrite(ctx, loaded.Scope(), isolation.PrivilegeAdmin); err != nil {
			return err
		}
		if err := loaded.Archive(); err != nil {
			return asConflict(err)
		}
		if err := s.organizations.Save(ctx, loaded); err != nil {
			return err
		}
		o = loaded
		return nil
	})
	if err != nil {
		return models.OrganizationView{}, err
	}
	s.invalidate(ctx, o.Scope())
	s.emit(ctx, audit.EventOrganizationArchived, o.Scope(), o.ID())
	s.countTransition("archive")
	return o.View(), nil
}

// -----------------------------------------------------------------------------
// Departments
// -----------------------------------------------------------------------------

// CreateDepartment adds a department to an organization of tenantID,
// optionally nested under parentID, which must belong to the same
// organization. The caller is authorized before anything is loaded.
func (s *Service) CreateDepartment(ctx context.Context, tenantID, organizationID, parentID *domain.Identity, name string) (models.DepartmentView, error) {
	if organizationID == nil {
		return models.DepartmentView{}, dErrors.New(dErrors.CodeBadRequest, "organization id is required")
	}
	scope, err := isolation.New(isolation.WithTenant(tenantID), isolation.WithOrganization(organizationID))
	if err != nil {
		return models.DepartmentView{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid organization scope")
	}
	if err := s.authorizeWrite(ctx, scope, isolation.PrivilegeWrite); err != nil {
		return models.DepartmentView{}, err
	}
	o, err := s.organizations.Load(ctx, organizationID)
	if err != nil {
		return models.DepartmentView{}, err
	}
	if o.TenantID().String() != tenantID.String() {
		return models.DepartmentView{}, dErrors.New(dErrors.CodeNotFound, "organization not found")
	}
	if o.IsArchived() {
		return models.DepartmentView{}, dErrors.New(dErrors.CodeConflict, "organization is archived")
	}
	if err := s.requireActiveTenant(ctx, o.TenantID()); err != nil {
		return models.DepartmentView{}, err
	}
	if parentID != nil {
		if err := s.checkParent(ctx, organizationID, nil, parentID); err != nil {
			return models.DepartmentView{}, err
		}
	}

	d := models.NewDepartment(s.ids.Generate(domain.KindDepartment), s.aggregateOptions(ctx)...)
	if err := d.Create(o.TenantID(), organizationID, parentID, name); err != nil {
		return models.DepartmentView{}, asValidation(err)
	}
	if err := s.departments.Save(ctx, d); err != nil {
		return models.DepartmentView{}, err
	}

	s.emit(ctx, audit.EventDepartmentCreated, d.Scope(), d.ID())
	if s.metrics != nil {
		s.metrics.IncrementDepartmentCreated()
	}
	return d.View(), nil
}

// RenameDepartment changes a department's display name.
func (s *Service) RenameDepartment(ctx context.Context, departmentID *domain.Identity, name string) (models.DepartmentView, error) {
	var d *models.Department
	err := s.retry(ctx, func() error {
		loaded, err := s.departments.Load(ctx, departmentID)
		if err != nil {
			return err
		}
		if err := s.authorizeWrite(ctx, loaded.Scope(), isolation.PrivilegeWrite); err != nil {
			return err
		}
		if err := loaded.Rename(name); err != nil {
			return asValidation(err)
		}
		if err := s.departments.Save(ctx, loaded); err != nil {
			return err
		}
		d = loaded
		return nil
	})
	if err != nil {
		return models.DepartmentView{}, err
	}
	s.invalidate(ctx, d.Scope())
	s.emit(ctx, audit.EventDepartmentRenamed, d.Scope(), d.ID())
	return d.View(), nil
}

// MoveDepartment re-parents a department within its organization. A nil
// parent moves it to the top level. Moves that would create a cycle are
// rejected.
func (s *Service) MoveDepartment(ctx context.Context, departmentID, parentID *domain.Identity) (models.DepartmentView, error) {
	var d *models.Department
	err := s.retry(ctx, func() error {
		loaded, err := s.departments.Load(ctx, departmentID)
		if err != nil {
			return err
		}
		if err := s.authorizeWrite(ctx, loaded.Scope(), isolation.PrivilegeWrite); err != nil {
			return err
		}
		if parentID != nil {
			if err := s.checkParent(ctx, loaded.OrganizationID(), departmentID, parentID); err != nil {
				return err
			}
		}
		if err := loaded.MoveTo(parentID); err != nil {
			return asValidation(err)
		}
		if err := s.departments.Save(ctx, loaded); err != nil {
			return err
		}
		d = loaded
		return nil
	})
	if err != nil {
		return models.DepartmentView{}, err
	}
	s.invalidate(ctx, d.Scope())
	s.emit(ctx, audit.EventDepartmentMoved, d.Scope(), d.ID())
	s.countTransition("move")
	return d.View(), nil
}

// checkParent walks up from parentID. The chain must stay inside
// organizationID and must not pass through self.
func (s *Service) checkParent(ctx context.Context, organizationID, self, parentID *domain.Identity) error {
	seen := make(map[string]struct{})
	for current := parentID; current != nil; {
		if self != nil && current.String() == self.String() {
			return dErrors.New(dErrors.CodeValidation, "move would create a department cycle")
		}
		if _, ok := seen[current.String()]; ok {
			return dErrors.New(dErrors.CodeInvariantViolation, "department hierarchy already contains a cycle")
		}
		seen[current.String()] = struct{}{}

		parent, err := s.departments.Load(ctx, current)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) {
				return dErrors.New(dErrors.CodeValidation, "parent department not found")
			}
			return err
		}
		if parent.OrganizationID().String() != organizationID.String() {
			return dErrors.New(dErrors.CodeValidation, "parent department belongs to another organization")
		}
		current = parent.ParentID()
	}
	return nil
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func (s *Service) requireActiveTenant(ctx context.Context, tenantID *domain.Identity) error {
	t, err := s.tenants.Load(ctx, tenantID)
	if err != nil {
		return err
	}
	if !t.IsActive() {
		return dErrors.New(dErrors.CodeForbidden, "tenant is inactive")
	}
	return nil
}

func (s *Service) authorizeWrite(ctx context.Context, target isolation.Context, min isolation.Privilege) error {
	if err := requirePrivilege(ctx, min); err != nil {
		return err
	}
	return s.guard.Authorize(ctx, target, isolation.ScopeTenant)
}

// retry runs fn again while it fails with a retryable version conflict.
func (s *Service) retry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = fn(); err == nil || !dErrors.IsRetryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if s.metrics != nil {
			s.metrics.IncrementConflictRetry()
		}
		s.logger.InfoContext(ctx, "retrying after version conflict", "attempt", attempt, "error", err)
	}
	return err
}

func (s *Service) invalidate(ctx context.Context, scope isolation.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateScope(ctx, scope); err != nil {
		s.logger.WarnContext(ctx, "cache invalidation failed", "scope", scope.Identifier(), "error", err)
	}
}

func (s *Service) aggregateOptions(ctx context.Context) []aggregate.Option {
	now := requestcontext.Now(ctx)
	return []aggregate.Option{
		aggregate.WithInterner(s.ids),
		aggregate.WithClock(func() time.Time { return now }),
	}
}

func (s *Service) emit(ctx context.Context, action audit.Action, target isolation.Context, aggregateID *domain.Identity) {
	caller, _ := requestcontext.Isolation(ctx)
	attributes := []any{
		"event", string(action),
		"log_type", "audit",
		"aggregate_id", aggregateID.String(),
		"target_scope", target.Identifier(),
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	s.logger.InfoContext(ctx, string(action), attributes...)
	if s.auditPublisher == nil {
		return
	}

	userID := ""
	if caller.UserID() != nil {
		userID = caller.UserID().String()
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Action:      string(action),
		CallerScope: caller.Identifier(),
		TargetScope: target.Identifier(),
		UserID:      userID,
		AggregateID: aggregateID.String(),
		Privilege:   requestcontext.Privilege(ctx).String(),
		Decision:    "allowed",
		RequestID:   requestcontext.RequestID(ctx),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event", "action", string(action), "error", err)
	}
}

func (s *Service) countTransition(transition string) {
	if s.metrics != nil {
		s.metrics.IncrementTransition(transition)
	}
}

func requirePrivilege(ctx context.Context, min isolation.Privilege) error {
	if !requestcontext.Privilege(ctx).AtLeast(min) {
		return dErrors.New(dErrors.CodeForbidden, "operation requires "+min.String()+" privilege")
	}
	return nil
}

func tenantScope(tenantID *domain.Identity) (isolation.Context, error) {
	if tenantID == nil {
		return isolation.Context{}, dErrors.New(dErrors.CodeBadRequest, "tenant id is required")
	}
	scope, err := isolation.New(isolation.WithTenant(tenantID))
	if err != nil {
		return isolation.Context{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid tenant id")
	}
	return scope, nil
}

// asValidation converts model invariant violations into validation errors
// for callers.
func asValidation(err error) error {
	if err != nil && dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return dErrors.New(dErrors.CodeValidation, dErrorsMessage(err))
	}
	return err
}

// asConflict converts refused lifecycle transitions into conflicts.
func asConflict(err error) error {
	if err != nil && dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return dErrors.New(dErrors.CodeConflict, dErrorsMessage(err))
	}
	return err
}

func dErrorsMessage(err error) string {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}
