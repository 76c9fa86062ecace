package threat

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wilson323/zk-agent-sub004/internal/model"
)

type metrics struct {
	eventsTotal      *prometheus.CounterVec
	unresolvedEvents prometheus.Gauge
	averageRisk      prometheus.Gauge
	blockedSources   prometheus.Gauge
}

func newMetrics() *metrics {
	m := &metrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codesentinel",
			Subsystem: "threat",
			Name:      "events_total",
			Help:      "Security events recorded, by type.",
		}, []string{"type", "severity"}),
		unresolvedEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "codesentinel",
			Subsystem: "threat",
			Name:      "unresolved_events",
			Help:      "Events not yet marked resolved.",
		}),
		averageRisk: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "codesentinel",
			Subsystem: "threat",
			Name:      "average_risk_score",
			Help:      "Mean risk score over the retained event log.",
		}),
		blockedSources: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "codesentinel",
			Subsystem: "threat",
			Name:      "blocked_sources",
			Help:      "Source identifiers currently in the deny set.",
		}),
	}
	return m
}

// Register exposes the collectors on a registry. Kept separate from
// construction so tests can run without a registry.
func (m *metrics) Register(reg prometheus.Registerer) {
	reg.MustRegister(m.eventsTotal, m.unresolvedEvents, m.averageRisk, m.blockedSources)
}

// RegisterMetrics wires the engine's collectors into reg.
func (e *Engine) RegisterMetrics(reg prometheus.Registerer) {
	e.metrics.Register(reg)
}

func (m *metrics) observeEvent(ev model.SecurityEvent) {
	m.eventsTotal.WithLabelValues(string(ev.Type), ev.Severity).Inc()
}

func (m *metrics) recompute(events []model.SecurityEvent, blocked int) {
	unresolved := 0
	var riskSum float64
	for _, ev := range events {
		if !ev.Resolved {
			unresolved++
		}
		riskSum += ev.RiskScore
	}
	m.unresolvedEvents.Set(float64(unresolved))
	if len(events) > 0 {
		m.averageRisk.Set(riskSum / float64(len(events)))
	} else {
		m.averageRisk.Set(0)
	}
	m.blockedSources.Set(float64(blocked))
}

// Summary is the cached hourly rollup.
type Summary struct {
	ComputedAt     time.Time      `json:"computed_at"`
	TotalEvents    int            `json:"total_events"`
	Unresolved     int            `json:"unresolved"`
	AverageRisk    float64        `json:"average_risk"`
	BlockedSources int            `json:"blocked_sources"`
	ByType         map[string]int `json:"by_type"`
	BySeverity     map[string]int `json:"by_severity"`
}

func (m *metrics) summary(events []model.SecurityEvent, blocked int) Summary {
	s := Summary{
		ComputedAt:     time.Now().UTC(),
		TotalEvents:    len(events),
		BlockedSources: blocked,
		ByType:         map[string]int{},
		BySeverity:     map[string]int{},
	}
	var riskSum float64
	for _, ev := range events {
		if !ev.Resolved {
			s.Unresolved++
		}
		riskSum += ev.RiskScore
		s.ByType[string(ev.Type)]++
		s.BySeverity[ev.Severity]++
	}
	if len(events) > 0 {
		s.AverageRisk = riskSum / float64(len(events))
	}
	return s
}
