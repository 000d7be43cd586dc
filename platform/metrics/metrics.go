// Package metrics defines the Prometheus instruments for the distribution
// engine. All instruments are registered on a dedicated registry so tests can
// create isolated instances.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"net/http"
)

// Metrics holds the engine's Prometheus instruments.
type Metrics struct {
	registry *prometheus.Registry

	AssignmentsTotal   *prometheus.CounterVec
	DistributionSkips  *prometheus.CounterVec
	CallOutcomesTotal  *prometheus.CounterVec
	LeadsDroppedTotal  prometheus.Counter
	LeadsReclaimed     prometheus.Counter
	LeadsRebucketed    prometheus.Counter
	CampaignHitsTotal  *prometheus.CounterVec
	SweepDuration      prometheus.Histogram
	UnassignedPoolSize prometheus.Gauge
}

// New creates and registers all engine instruments on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		AssignmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadflow_assignments_total",
			Help: "Lead assignments by type (auto, manual, system).",
		}, []string{"type"}),
		DistributionSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadflow_distribution_skips_total",
			Help: "Leads left unassigned per distribution pass, by reason.",
		}, []string{"reason"}),
		CallOutcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadflow_call_outcomes_total",
			Help: "Recorded call outcomes by response.",
		}, []string{"response"}),
		LeadsDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leadflow_leads_dropped_total",
			Help: "Leads transitioned to the Dropped terminal state.",
		}),
		LeadsReclaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leadflow_leads_reclaimed_total",
			Help: "Leads whose ownership was stripped by the reclamation sweeper.",
		}),
		LeadsRebucketed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leadflow_leads_rebucketed_total",
			Help: "NotConnected leads re-bucketed as contact-due by the sweeper.",
		}),
		CampaignHitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadflow_campaign_hits_total",
			Help: "Leads attributed to campaigns.",
		}, []string{"campaign_id"}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "leadflow_sweep_duration_seconds",
			Help:    "Duration of one tenant reclamation sweep.",
			Buckets: prometheus.DefBuckets,
		}),
		UnassignedPoolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "leadflow_unassigned_pool_size",
			Help: "Leads pending assignment after the last distribution pass.",
		}),
	}

	reg.MustRegister(
		m.AssignmentsTotal,
		m.DistributionSkips,
		m.CallOutcomesTotal,
		m.LeadsDroppedTotal,
		m.LeadsReclaimed,
		m.LeadsRebucketed,
		m.CampaignHitsTotal,
		m.SweepDuration,
		m.UnassignedPoolSize,
	)

	return m
}

// Handler returns the HTTP handler serving this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
