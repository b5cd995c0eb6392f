package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LagBuckets covers fingerprint transit times (1ms to 5s).
var LagBuckets = []float64{
	.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5,
}

// Drop reasons for RemoteDropped.
const (
	DropEvicted  = "evicted"
	DropAhead    = "ahead"
	DropConflict = "conflict"
	DropOverflow = "overflow"
)

// Session groups the instruments a sync session updates. A nil
// *Session is valid and records nothing.
type Session struct {
	reg *ComponentRegistry

	ticks            prometheus.Counter
	remoteReceived   prometheus.Counter
	remoteDropped    *prometheus.CounterVec
	comparisons      prometheus.Counter
	mismatches       *prometheus.CounterVec
	determinismFault prometheus.Counter
	desynchronized   prometheus.Gauge
	lastVerifiedTick prometheus.Gauge
	remoteLag        prometheus.Histogram
}

// NewSession creates the session instruments in a fresh registry.
func NewSession() *Session {
	reg := NewComponentRegistry(Namespace, "session")
	return &Session{
		reg: reg,
		ticks: reg.NewCounter(prometheus.CounterOpts{
			Name: "ticks_recorded_total",
			Help: "Local fingerprints recorded",
		}),
		remoteReceived: reg.NewCounter(prometheus.CounterOpts{
			Name: "remote_received_total",
			Help: "Remote fingerprints applied to the ledger",
		}),
		remoteDropped: reg.NewCounterVec(prometheus.CounterOpts{
			Name: "remote_dropped_total",
			Help: "Remote fingerprints dropped, by reason",
		}, []string{"reason"}),
		comparisons: reg.NewCounter(prometheus.CounterOpts{
			Name: "comparisons_total",
			Help: "Ticks compared between local and remote",
		}),
		mismatches: reg.NewCounterVec(prometheus.CounterOpts{
			Name: "mismatches_total",
			Help: "Compared ticks whose fingerprints differed, by component",
		}, []string{"component"}),
		determinismFault: reg.NewCounter(prometheus.CounterOpts{
			Name: "determinism_faults_total",
			Help: "Ticks recorded twice locally with different fingerprints",
		}),
		desynchronized: reg.NewGauge(prometheus.GaugeOpts{
			Name: "desynchronized",
			Help: "1 once the session has diverged",
		}),
		lastVerifiedTick: reg.NewGauge(prometheus.GaugeOpts{
			Name: "last_verified_tick",
			Help: "Newest tick compared against the remote peer",
		}),
		remoteLag: reg.NewHistogram(prometheus.HistogramOpts{
			Name:    "remote_lag_seconds",
			Help:    "Transit time of remote fingerprints",
			Buckets: LagBuckets,
		}),
	}
}

// Registry returns the registry backing the instruments.
func (s *Session) Registry() *prometheus.Registry {
	if s == nil {
		return nil
	}
	return s.reg.Registry()
}

func (s *Session) TickRecorded() {
	if s == nil {
		return
	}
	s.ticks.Inc()
}

func (s *Session) RemoteReceived(lag time.Duration) {
	if s == nil {
		return
	}
	s.remoteReceived.Inc()
	if lag > 0 {
		s.remoteLag.Observe(lag.Seconds())
	}
}

func (s *Session) RemoteDropped(reason string) {
	if s == nil {
		return
	}
	s.remoteDropped.WithLabelValues(reason).Inc()
}

func (s *Session) Compared(tick uint64, seedMismatch, hashMismatch bool) {
	if s == nil {
		return
	}
	s.comparisons.Inc()
	s.lastVerifiedTick.Set(float64(tick))
	if seedMismatch {
		s.mismatches.WithLabelValues("seed").Inc()
	}
	if hashMismatch {
		s.mismatches.WithLabelValues("hash").Inc()
	}
}

func (s *Session) Desynchronized() {
	if s == nil {
		return
	}
	s.desynchronized.Set(1)
}

func (s *Session) DeterminismFault() {
	if s == nil {
		return
	}
	s.determinismFault.Inc()
}
