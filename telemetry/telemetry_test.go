// SPDX-License-Identifier: MIT

package telemetry

import (
	"context"
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestWarnfIncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	tel := New(Config{Writer: io.Discard, Registerer: reg})

	tel.Warnf(context.Background(), CounterMoofReused, "reused previous moof")
	tel.Warnf(context.Background(), CounterMoofReused, "reused previous moof again")

	assert.Equal(t, float64(2), tel.Counters().Value(CounterMoofReused))
	assert.Equal(t, float64(0), tel.Counters().Value(CounterBucketReaped))
}

func TestDebugfDoesNotCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	tel := New(Config{Writer: io.Discard, Registerer: reg})

	tel.Debugf(context.Background(), "trace detail %d", 7)

	assert.Equal(t, float64(0), tel.Counters().Value(CounterMalformedHeader))
}
