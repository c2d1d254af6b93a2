// SPDX-License-Identifier: MIT

package mmtp

import (
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/atsc3go/a3recv/telemetry"
)

// Registry maps packet_id to the SubFlow accumulating its fragments. One
// Registry is owned per receive session.
type Registry struct {
	flows *xsync.Map[uint16, *SubFlow]
	tel   *telemetry.Telemetry
}

// NewRegistry returns an empty registry. tel may be nil in tests that do
// not care about reap telemetry.
func NewRegistry(tel *telemetry.Telemetry) *Registry {
	return &Registry{flows: xsync.NewMap[uint16, *SubFlow](), tel: tel}
}

// FlowFor returns the sub-flow for packetID, creating it on first use.
func (r *Registry) FlowFor(packetID uint16) *SubFlow {
	onReap := func() {}
	if r.tel != nil {
		onReap = func() { r.tel.Counters().Inc(telemetry.CounterBucketReaped) }
	}
	flow, _ := r.flows.LoadOrStore(packetID, NewSubFlow(packetID, onReap))
	return flow
}

// Flow returns the sub-flow for packetID without creating one.
func (r *Registry) Flow(packetID uint16) (*SubFlow, bool) {
	return r.flows.Load(packetID)
}
