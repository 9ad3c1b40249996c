// Package observability hosts the process-wide Prometheus collectors.
package observability

import (
	"math/big"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	rewarddMetricsOnce sync.Once
	rewarddRegistry    *RewarddMetrics
)

// RewarddMetrics wraps collectors tracking distribution engine health.
type RewarddMetrics struct {
	distributionLatency *prometheus.HistogramVec
	distributions       *prometheus.CounterVec
	errors              *prometheus.CounterVec
	sponsorships        *prometheus.CounterVec
	treasuryRemaining   prometheus.Gauge
	treasuryDegraded    prometheus.Gauge
	pauseEngaged        prometheus.Gauge
}

// Rewardd exposes the lazily-initialised metrics registry for the reward
// distribution daemon.
func Rewardd() *RewarddMetrics {
	rewarddMetricsOnce.Do(func() {
		rewarddRegistry = &RewarddMetrics{
			distributionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "greenmile",
				Subsystem: "rewardd",
				Name:      "distribution_latency_seconds",
				Help:      "Latency distribution for completed reward distributions.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"status"}),
			distributions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "greenmile",
				Subsystem: "rewardd",
				Name:      "distributions_total",
				Help:      "Completed distributions segmented by terminal status.",
			}, []string{"status"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "greenmile",
				Subsystem: "rewardd",
				Name:      "errors_total",
				Help:      "Distribution failures segmented by stage.",
			}, []string{"stage"}),
			sponsorships: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "greenmile",
				Subsystem: "rewardd",
				Name:      "sponsorships_total",
				Help:      "Sponsoring decisions segmented by reason code.",
			}, []string{"reason"}),
			treasuryRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "greenmile",
				Subsystem: "rewardd",
				Name:      "treasury_remaining_tokens",
				Help:      "Last observed unreserved treasury allocation in whole tokens.",
			}),
			treasuryDegraded: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "greenmile",
				Subsystem: "rewardd",
				Name:      "treasury_degraded",
				Help:      "Set to 1 while solvency checks run on a stale treasury figure.",
			}),
			pauseEngaged: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "greenmile",
				Subsystem: "rewardd",
				Name:      "pause_engaged",
				Help:      "Set to 1 while the distribution processor is paused.",
			}),
		}
		prometheus.MustRegister(
			rewarddRegistry.distributionLatency,
			rewarddRegistry.distributions,
			rewarddRegistry.errors,
			rewarddRegistry.sponsorships,
			rewarddRegistry.treasuryRemaining,
			rewarddRegistry.treasuryDegraded,
			rewarddRegistry.pauseEngaged,
		)
	})
	return rewarddRegistry
}

// ObserveDistribution records a finished distribution and its latency.
func (m *RewarddMetrics) ObserveDistribution(status string, duration time.Duration) {
	if m == nil {
		return
	}
	if status == "" {
		status = "unknown"
	}
	m.distributions.WithLabelValues(status).Inc()
	m.distributionLatency.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordError counts a failure at a named pipeline stage.
func (m *RewarddMetrics) RecordError(stage string) {
	if m == nil {
		return
	}
	if stage == "" {
		stage = "unknown"
	}
	m.errors.WithLabelValues(stage).Inc()
}

// RecordSponsorship counts a sponsoring decision by reason code.
func (m *RewarddMetrics) RecordSponsorship(reason string) {
	if m == nil {
		return
	}
	m.sponsorships.WithLabelValues(reason).Inc()
}

// RecordTreasury publishes the unreserved treasury allocation and degraded
// flag. The amount is in the token's smallest unit.
func (m *RewarddMetrics) RecordTreasury(remaining *big.Int, degraded bool) {
	if m == nil {
		return
	}
	if remaining != nil {
		tokens := new(big.Int).Div(remaining, big.NewInt(1e18))
		m.treasuryRemaining.Set(float64(tokens.Int64()))
	}
	if degraded {
		m.treasuryDegraded.Set(1)
	} else {
		m.treasuryDegraded.Set(0)
	}
}

// SetPaused publishes the processor pause state.
func (m *RewarddMetrics) SetPaused(paused bool) {
	if m == nil {
		return
	}
	if paused {
		m.pauseEngaged.Set(1)
	} else {
		m.pauseEngaged.Set(0)
	}
}
