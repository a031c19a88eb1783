package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"tenantcore/pkg/isolation"
)

var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// Metrics holds the Prometheus metrics shared by the persistence and access
// layers.
type Metrics struct {
	LoadDuration     *prometheus.HistogramVec
	SaveDuration     *prometheus.HistogramVec
	VersionConflicts *prometheus.CounterVec
	EventsAppended   *prometheus.CounterVec
	EventsPublished  *prometheus.CounterVec
	PublishFailures  *prometheus.CounterVec
	SnapshotsTaken   *prometheus.CounterVec
	AccessDecisions  *prometheus.CounterVec
	CacheLookups     *prometheus.CounterVec
}

// New creates and registers all platform metrics on reg. Pass
// prometheus.DefaultRegisterer in main and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LoadDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tenantcore_repository_load_duration_seconds",
			Help:    "Duration of aggregate loads (snapshot restore plus replay)",
			Buckets: latencyBuckets,
		}, []string{"aggregate_type"}),
		SaveDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tenantcore_repository_save_duration_seconds",
			Help:    "Duration of aggregate saves (append, publish, snapshot)",
			Buckets: latencyBuckets,
		}, []string{"aggregate_type"}),
		VersionConflicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tenantcore_version_conflicts_total",
			Help: "Appends rejected by the optimistic version check",
		}, []string{"aggregate_type"}),
		EventsAppended: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tenantcore_events_appended_total",
			Help: "Domain events durably appended",
		}, []string{"aggregate_type"}),
		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tenantcore_events_published_total",
			Help: "Domain events handed to the event bus",
		}, []string{"aggregate_type"}),
		PublishFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tenantcore_event_publish_failures_total",
			Help: "Batches the event bus failed to accept after a successful append",
		}, []string{"aggregate_type"}),
		SnapshotsTaken: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tenantcore_snapshots_taken_total",
			Help: "Aggregate snapshots written",
		}, []string{"aggregate_type"}),
		AccessDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tenantcore_access_decisions_total",
			Help: "Access decisions by deciding rule and outcome",
		}, []string{"rule", "outcome"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tenantcore_cache_lookups_total",
			Help: "Scoped cache lookups by result",
		}, []string{"result"}),
	}
}

// ObserveLoad records a repository load. Call with time.Now() at the start.
func (m *Metrics) ObserveLoad(aggregateType string, start time.Time) {
	m.LoadDuration.WithLabelValues(aggregateType).Observe(time.Since(start).Seconds())
}

// ObserveSave records a repository save. Call with time.Now() at the start.
func (m *Metrics) ObserveSave(aggregateType string, start time.Time) {
	m.SaveDuration.WithLabelValues(aggregateType).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementVersionConflict(aggregateType string) {
	m.VersionConflicts.WithLabelValues(aggregateType).Inc()
}

func (m *Metrics) AddEventsAppended(aggregateType string, n int) {
	m.EventsAppended.WithLabelValues(aggregateType).Add(float64(n))
}

func (m *Metrics) AddEventsPublished(aggregateType string, n int) {
	m.EventsPublished.WithLabelValues(aggregateType).Add(float64(n))
}

func (m *Metrics) IncrementPublishFailure(aggregateType string) {
	m.PublishFailures.WithLabelValues(aggregateType).Inc()
}

func (m *Metrics) IncrementSnapshot(aggregateType string) {
	m.SnapshotsTaken.WithLabelValues(aggregateType).Inc()
}

// RecordAccessDecision counts a decision under its deciding rule.
func (m *Metrics) RecordAccessDecision(d isolation.Decision) {
	outcome := "denied"
	if d.Allowed {
		outcome = "allowed"
	}
	m.AccessDecisions.WithLabelValues(string(d.Rule), outcome).Inc()
}

func (m *Metrics) IncrementCacheHit()  { m.CacheLookups.WithLabelValues("hit").Inc() }
func (m *Metrics) IncrementCacheMiss() { m.CacheLookups.WithLabelValues("miss").Inc() }
