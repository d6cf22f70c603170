package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	BallotsOpened     *prometheus.CounterVec
	BallotsResolved   *prometheus.CounterVec
	VotesCast         *prometheus.CounterVec
	ReversalsApplied  *prometheus.CounterVec
	AttributionMisses *prometheus.CounterVec
	SnapshotsCached   prometheus.Counter
	ReentriesRestored prometheus.Counter
	EventsProcessed   *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		BallotsOpened: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "conclave_ballots_opened_total",
			Help: "Ballots opened, by kind",
		}, []string{"kind"}),
		BallotsResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "conclave_ballots_resolved_total",
			Help: "Ballots resolved, by kind and outcome",
		}, []string{"kind", "outcome"}),
		VotesCast: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "conclave_votes_cast_total",
			Help: "Votes cast, by kind (re-votes included)",
		}, []string{"kind"}),
		ReversalsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "conclave_reversals_applied_total",
			Help: "Protection reversals applied, by event kind",
		}, []string{"event"}),
		AttributionMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "conclave_attribution_misses_total",
			Help: "Attribution attempts yielding no actor, by action kind",
		}, []string{"action"}),
		SnapshotsCached: promauto.NewCounter(prometheus.CounterOpts{
			Name: "conclave_snapshots_cached_total",
			Help: "Message snapshots written to the cache",
		}),
		ReentriesRestored: promauto.NewCounter(prometheus.CounterOpts{
			Name: "conclave_reentries_restored_total",
			Help: "Members restored via a re-entry entry",
		}),
		EventsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "conclave_events_processed_total",
			Help: "Gateway events dispatched, by type",
		}, []string{"type"}),
	}
}

func (m *Metrics) IncBallotOpened(kind string) {
	m.BallotsOpened.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncBallotResolved(kind, outcome string) {
	m.BallotsResolved.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) IncVoteCast(kind string) {
	m.VotesCast.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncReversalApplied(event string) {
	m.ReversalsApplied.WithLabelValues(event).Inc()
}

func (m *Metrics) IncAttributionMiss(action string) {
	m.AttributionMisses.WithLabelValues(action).Inc()
}

func (m *Metrics) IncSnapshotCached() {
	m.SnapshotsCached.Inc()
}

func (m *Metrics) IncReentryRestored() {
	m.ReentriesRestored.Inc()
}

func (m *Metrics) IncEventProcessed(eventType string) {
	m.EventsProcessed.WithLabelValues(eventType).Inc()
}
