// Package metrics exposes profile synchronization counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dtroode/vpnbot/internal/model"
)

// Sync results.
const (
	ResultSynced  = "synced"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
)

// Sync holds the collectors of the profile sync service.
type Sync struct {
	syncs    *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewSync creates the collectors and registers them with reg.
func NewSync(reg prometheus.Registerer) *Sync {
	s := &Sync{
		syncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vpnbot",
			Name:      "profile_sync_total",
			Help:      "Profile ensure calls by result.",
		}, []string{"result"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vpnbot",
			Name:      "provision_failures_total",
			Help:      "Failed provisioning attempts by failure kind.",
		}, []string{"kind"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vpnbot",
			Name:      "provision_duration_seconds",
			Help:      "Duration of calls to the provisioning authority.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(s.syncs, s.failures, s.duration)

	return s
}

// ObserveResult counts one ensure call.
func (s *Sync) ObserveResult(result string) {
	if s == nil {
		return
	}
	s.syncs.WithLabelValues(result).Inc()
}

// ObserveProvision records one call to the authority.
func (s *Sync) ObserveProvision(outcome model.Outcome, elapsed time.Duration) {
	if s == nil {
		return
	}
	s.duration.Observe(elapsed.Seconds())
	if outcome.Failed() {
		kind := string(outcome.Kind)
		if kind == "" {
			kind = "unknown"
		}
		s.failures.WithLabelValues(kind).Inc()
	}
}
