// SPDX-License-Identifier: MIT

package mmtp

import (
	"context"
	"fmt"

	"github.com/atsc3go/a3recv"
	"github.com/atsc3go/a3recv/telemetry"
)

// vectorKind selects one of a SubFlow's timed vectors. It is FragmentType
// for MPU packets, or SignallingVector for signalling packets, which carry
// no mpu_sequence_number of their own.
type vectorKind = FragmentType

// SignallingVector is the pseudo fragment-type used to address a
// SubFlow's signalling_message_fragments_vector.
const SignallingVector FragmentType = 0xFF

// CompletionEvent reports a bucket that reached completeness.
type CompletionEvent struct {
	PacketID uint16
	Kind     vectorKind
	Seq      uint32
	Payload  []byte
}

// Reassembler ingests decoded MMTP packets, routes each fragment into its
// sub-flow's bucket, and reports completion.
type Reassembler struct {
	registry *Registry
	tel      *telemetry.Telemetry
}

// NewReassembler returns a Reassembler backed by a fresh Registry.
func NewReassembler(tel *telemetry.Telemetry) *Reassembler {
	return &Reassembler{registry: NewRegistry(tel), tel: tel}
}

// Registry returns the underlying packet-id → SubFlow registry, for
// callers (the isobmff joiner) that need to reach a SubFlow directly via
// Registry.Flow.
func (r *Reassembler) Registry() *Registry { return r.registry }

// Ingest routes pkt's payload into the appropriate bucket and reports
// whether that bucket just became complete.
func (r *Reassembler) Ingest(ctx context.Context, pkt Packet) (CompletionEvent, bool, error) {
	flow := r.registry.FlowFor(pkt.Common.PacketID)

	var (
		kind vectorKind
		seq  uint32
		b    *Bucket
	)

	if pkt.Common.PayloadType == PayloadTypeSignalling {
		kind = SignallingVector
		seq = pkt.Common.Sequence
		b = flow.signallingBucketFor(seq)
	} else if pkt.Common.PayloadType == PayloadTypeMPU {
		kind = pkt.MPU.FragmentType
		seq = pkt.MPU.MPUSequenceNumber
		b = flow.bucketFor(kind, seq)
	} else {
		return CompletionEvent{}, false, fmt.Errorf("%w: mmtp payload type %d has no fragment vector",
			a3recv.ErrUnsupportedCodepoint, pkt.Common.PayloadType)
	}

	wasComplete := b.Complete()
	indicator := FragIndicatorStandalone
	counter := uint8(0)
	if pkt.Common.PayloadType == PayloadTypeMPU {
		indicator = pkt.MPU.FragmentationIndicator
		counter = pkt.MPU.FragmentationCounter
	}
	b.Add(indicator, counter, pkt.Payload)

	if wasComplete || !b.Complete() {
		return CompletionEvent{}, false, nil
	}

	if r.tel != nil {
		r.tel.Debugf(ctx, "mmtp bucket complete", "packet_id", pkt.Common.PacketID, "kind", kind, "seq", seq)
	}
	return CompletionEvent{PacketID: pkt.Common.PacketID, Kind: kind, Seq: seq, Payload: b.Assemble()}, true, nil
}

// FindMPUSequence returns the bucket for (packetID, seq, kind), without
// creating one. kind may be SignallingVector to address the signalling
// vector instead of an MPU-indexed one.
func (r *Reassembler) FindMPUSequence(packetID uint16, seq uint32, kind vectorKind) (*Bucket, bool) {
	flow, ok := r.registry.Flow(packetID)
	if !ok {
		return nil, false
	}
	if kind == SignallingVector {
		return flow.FindSignalling(seq)
	}
	return flow.Find(kind, seq)
}

// LatestMPUMetadata returns packetID's newest-wins MPU metadata bucket,
// independent of which mpu sequence number it arrived under.
func (r *Reassembler) LatestMPUMetadata(packetID uint16) (*Bucket, bool) {
	flow, ok := r.registry.Flow(packetID)
	if !ok {
		return nil, false
	}
	return flow.LatestMPUMetadata()
}
