package sync_run

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tuckerworks/calsync/internal/event_bus"
)

// Metrics exposes run outcomes to Prometheus. It is fed from RunCompleted events.
type Metrics struct {
	runs          *prometheus.CounterVec
	actions       *prometheus.CounterVec
	warnings      prometheus.Counter
	duration      prometheus.Summary
	lastSuccessTS prometheus.Gauge
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "calsync",
			Name:      "runs_total",
			Help:      "Number of sync runs by status",
		}, []string{"status"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "calsync",
			Name:      "actions_total",
			Help:      "Number of reconciliation actions by kind and result",
		}, []string{"kind", "result"}),
		warnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "calsync",
			Name:      "warnings_total",
			Help:      "Number of events that could not be keyed or classified cleanly",
		}),
		duration: prometheus.NewSummary(prometheus.SummaryOpts{
			Namespace: "calsync",
			Name:      "run_duration_seconds",
			Help:      "Time spent in a sync run",
		}),
		lastSuccessTS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "calsync",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix timestamp of the last successful sync run",
		}),
	}
	registerer.MustRegister(m.runs, m.actions, m.warnings, m.duration, m.lastSuccessTS)
	return m
}

// Subscribe starts counting the runs published on eventBus.
func (m *Metrics) Subscribe(eventBus *event_bus.EventBus) (unsubscribe func()) {
	return event_bus.SubscribeTyped(eventBus, event_bus.RunCompletedType, func(e event_bus.EventT[event_bus.RunCompleted]) error {
		m.observe(e.Data)
		return nil
	})
}

func (m *Metrics) observe(run event_bus.RunCompleted) {
	report := run.Report
	m.runs.WithLabelValues(report.Status()).Inc()
	m.duration.Observe(run.Duration().Seconds())
	if report.Fatal != "" {
		return
	}
	m.lastSuccessTS.Set(float64(run.FinishedAt.Unix()))
	m.warnings.Add(float64(report.Warnings))

	counts := []struct {
		kind   string
		ok     int
		failed int
	}{
		{kind: "create", ok: report.Created, failed: report.FailedCreates},
		{kind: "update", ok: report.Updated, failed: report.FailedUpdates},
		{kind: "delete", ok: report.Deleted, failed: report.FailedDeletes},
		{kind: "skip", ok: report.Skipped},
		{kind: "preserve", ok: report.Preserved},
	}
	for _, c := range counts {
		m.actions.WithLabelValues(c.kind, "success").Add(float64(c.ok))
		if c.failed > 0 {
			m.actions.WithLabelValues(c.kind, "failed").Add(float64(c.failed))
		}
	}
}
