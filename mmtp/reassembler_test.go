// SPDX-License-Identifier: MIT

package mmtp

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atsc3go/a3recv/telemetry"
)

func newTestReassembler() *Reassembler {
	return NewReassembler(telemetry.New(telemetry.Config{Writer: io.Discard}))
}

func mpuPacket(packetID uint16, seq uint32, fragType FragmentType, indicator FragmentationIndicator, counter uint8, payload []byte) Packet {
	return Packet{
		Common: CommonHeader{Version: supportedVers, PayloadType: PayloadTypeMPU, PacketID: packetID},
		MPU: MPUHeader{
			MPUSequenceNumber:      seq,
			FragmentType:           fragType,
			FragmentationIndicator: indicator,
			FragmentationCounter:   counter,
		},
		Payload: payload,
	}
}

func TestReassemblerStandaloneCompletesOnFirstPacket(t *testing.T) {
	r := newTestReassembler()
	ctx := context.Background()

	ev, complete, err := r.Ingest(ctx, mpuPacket(1, 10, FragmentTypeMediaFragmentUnit, FragIndicatorStandalone, 0, []byte{1, 2, 3}))
	require.NoError(t, err)
	require.True(t, complete)
	assert.EqualValues(t, 1, ev.PacketID)
	assert.EqualValues(t, 10, ev.Seq)
	assert.Equal(t, []byte{1, 2, 3}, ev.Payload)
}

func TestReassemblerFragmentedSequenceCompletesOnLast(t *testing.T) {
	r := newTestReassembler()
	ctx := context.Background()

	_, complete, err := r.Ingest(ctx, mpuPacket(2, 5, FragmentTypeMediaFragmentUnit, FragIndicatorFirst, 1, []byte{1}))
	require.NoError(t, err)
	assert.False(t, complete)

	ev, complete, err := r.Ingest(ctx, mpuPacket(2, 5, FragmentTypeMediaFragmentUnit, FragIndicatorLast, 0, []byte{2}))
	require.NoError(t, err)
	require.True(t, complete)
	assert.Equal(t, []byte{1, 2}, ev.Payload)

	b, ok := r.FindMPUSequence(2, 5, FragmentTypeMediaFragmentUnit)
	require.True(t, ok)
	assert.True(t, b.Complete())
}

func TestReassemblerDoesNotReportCompleteTwice(t *testing.T) {
	r := newTestReassembler()
	ctx := context.Background()

	_, complete, err := r.Ingest(ctx, mpuPacket(3, 1, FragmentTypeMediaFragmentUnit, FragIndicatorStandalone, 0, []byte{1}))
	require.NoError(t, err)
	require.True(t, complete)

	// Duplicate delivery of the same standalone fragment must not be
	// reported as a fresh completion.
	_, complete, err = r.Ingest(ctx, mpuPacket(3, 1, FragmentTypeMediaFragmentUnit, FragIndicatorStandalone, 0, []byte{1}))
	require.NoError(t, err)
	assert.False(t, complete)
}

func TestReassemblerSignallingPacketUsesOwnVector(t *testing.T) {
	r := newTestReassembler()
	ctx := context.Background()

	pkt := Packet{
		Common:  CommonHeader{Version: supportedVers, PayloadType: PayloadTypeSignalling, PacketID: 4, Sequence: 77},
		Payload: []byte{0xAA},
	}

	ev, complete, err := r.Ingest(ctx, pkt)
	require.NoError(t, err)
	require.True(t, complete)
	assert.Equal(t, SignallingVector, ev.Kind)

	_, ok := r.FindMPUSequence(4, 77, SignallingVector)
	assert.True(t, ok)
}
