package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the tenant module.
// Tracks hierarchy creation counts, lifecycle transitions and read latency.
type Metrics struct {
	TenantCreated       prometheus.Counter
	OrganizationCreated prometheus.Counter
	DepartmentCreated   prometheus.Counter
	Transitions         *prometheus.CounterVec
	ConflictRetries     prometheus.Counter
	GetTenantDuration   prometheus.Histogram
}

// New creates a new Metrics instance with all tenant module metrics
// registered on reg. A nil reg registers on the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		TenantCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "tenantcore_tenants_created_total",
			Help: "Total number of tenants created",
		}),
		OrganizationCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "tenantcore_organizations_created_total",
			Help: "Total number of organizations created",
		}),
		DepartmentCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "tenantcore_departments_created_total",
			Help: "Total number of departments created",
		}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tenantcore_lifecycle_transitions_total",
			Help: "Lifecycle transitions by kind (deactivate, reactivate, archive, move)",
		}, []string{"transition"}),
		ConflictRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "tenantcore_tenant_conflict_retries_total",
			Help: "Commands re-run after a version conflict",
		}),
		GetTenantDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tenantcore_get_tenant_duration_seconds",
			Help:    "Duration of GetTenant operations, cache hits included",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementTenantCreated records a successful tenant creation.
func (m *Metrics) IncrementTenantCreated() {
	m.TenantCreated.Inc()
}

func (m *Metrics) IncrementOrganizationCreated() {
	m.OrganizationCreated.Inc()
}

func (m *Metrics) IncrementDepartmentCreated() {
	m.DepartmentCreated.Inc()
}

func (m *Metrics) IncrementTransition(transition string) {
	m.Transitions.WithLabelValues(transition).Inc()
}

func (m *Metrics) IncrementConflictRetry() {
	m.ConflictRetries.Inc()
}

// ObserveGetTenant records the duration of a GetTenant operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveGetTenant(start time.Time) {
	m.GetTenantDuration.Observe(time.Since(start).Seconds())
}
