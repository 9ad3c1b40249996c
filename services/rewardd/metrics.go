package rewardd

import "greenmile/observability"

// Metrics exposes Prometheus collectors for rewardd instrumentation.
type Metrics = observability.RewarddMetrics

// NewMetrics returns the lazily initialised metrics registry.
func NewMetrics() *Metrics { return observability.Rewardd() }
