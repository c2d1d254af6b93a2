// SPDX-License-Identifier: MIT

package telemetry

import (
	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
)

// Counter names used across the reassemblers and joiner. Keeping them as
// constants avoids typos scattering across packages; the set mirrors the
// recoverable-error categories in spec.md §7.
const (
	CounterMalformedHeader   = "malformed_header"
	CounterUnsupportedFec    = "unsupported_fec"
	CounterObjectIncomplete  = "object_incomplete"
	CounterCapacityExhausted = "capacity_exhausted"
	CounterSignallingMissing = "signalling_missing"
	CounterJoinIncomplete    = "join_incomplete"
	CounterMoofReused        = "moof_reused"
	CounterBucketReaped      = "bucket_reaped"
	CounterDuplicateSymbol   = "duplicate_symbol"
	CounterSinkBackpressured = "sink_backpressured"
)

// Counters wraps a prometheus CounterVec keyed by the constants above.
type Counters struct {
	vec *prometheus.CounterVec
}

func newCounters(reg prometheus.Registerer) *Counters {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "a3recv",
		Name:      "events_total",
		Help:      "Count of recoverable receiver events by category.",
	}, []string{"event"})

	if reg != nil {
		// A session may be constructed more than once against the same
		// default registerer in tests; AlreadyRegisteredError carries the
		// already-registered collector, which we reuse instead of failing.
		if err := reg.Register(vec); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
					vec = existing
				}
			}
		}
	}

	return &Counters{vec: vec}
}

// Inc increments the named counter.
func (c *Counters) Inc(event string) {
	c.vec.WithLabelValues(event).Inc()
}

// Value returns the current count for the named event, for tests.
func (c *Counters) Value(event string) float64 {
	m := &dto.Metric{}
	if err := c.vec.WithLabelValues(event).Write(m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}
