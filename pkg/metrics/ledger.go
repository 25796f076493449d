package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics tracks ledger writes and optimistic-concurrency pressure.
type LedgerMetrics struct {
	commits   *prometheus.CounterVec
	conflicts *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	drift     prometheus.Counter
}

// NewLedgerMetrics registers the ledger collectors. A nil registerer yields a no-op recorder.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	m := &LedgerMetrics{
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_commits_total",
			Help:      "Committed ledger mutations.",
		}, []string{"operation"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_version_conflicts_total",
			Help:      "Ledger writes rejected by the account version check.",
		}, []string{"operation"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ledger_commit_duration_seconds",
			Help:      "Wall time of a ledger mutation including retries.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"operation"}),
		drift: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_reconcile_drift_total",
			Help:      "Stored balances found to disagree with the replayed ledger.",
		}),
	}
	reg.MustRegister(m.commits, m.conflicts, m.latency, m.drift)
	return m
}

func (m *LedgerMetrics) IncCommit(operation string) {
	if m == nil || m.commits == nil {
		return
	}
	m.commits.WithLabelValues(normalizeLabel(operation)).Inc()
}

func (m *LedgerMetrics) IncConflict(operation string) {
	if m == nil || m.conflicts == nil {
		return
	}
	m.conflicts.WithLabelValues(normalizeLabel(operation)).Inc()
}

func (m *LedgerMetrics) ObserveCommit(operation string, d time.Duration) {
	if m == nil || m.latency == nil {
		return
	}
	m.latency.WithLabelValues(normalizeLabel(operation)).Observe(d.Seconds())
}

// AddDrift counts rows (and account balances) corrected or reported by reconciliation.
func (m *LedgerMetrics) AddDrift(n int) {
	if m == nil || m.drift == nil || n <= 0 {
		return
	}
	m.drift.Add(float64(n))
}
