// SPDX-License-Identifier: MIT

package receiver

import (
	"context"
	"encoding/binary"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atsc3go/a3recv"
	"github.com/atsc3go/a3recv/mmtp"
)

func TestSessionAlcRecvAnyAndToTemp(t *testing.T) {
	s := newTestSession()
	payload := []byte("any-object")
	src := &fakeSource{pkts: []a3recv.Packet{buildALCNoCodePacket(7, payload)}}
	s.AddChannel(src, a3recv.ProtocolALC, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	toi, data, err := s.AlcRecvAny(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 7, toi)
	assert.Equal(t, payload, data)

	tmpDir := t.TempDir()
	s2 := newTestSession()
	src2 := &fakeSource{pkts: []a3recv.Packet{buildALCNoCodePacket(8, payload)}}
	s2.AddChannel(src2, a3recv.ProtocolALC, nil)
	go func() { _ = s2.Run(ctx) }()

	path, err := s2.AlcRecvToTemp(ctx, 8, tmpDir)
	require.NoError(t, err)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestSessionFdtRecv(t *testing.T) {
	s := newTestSession()
	src := &fakeSource{pkts: []a3recv.Packet{buildALCNoCodePacket(0, []byte("<FDT/>"))}}
	s.AddChannel(src, a3recv.ProtocolALC, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	inst, err := s.FdtRecv(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("<FDT/>"), inst.Data)
}

func buildMMTPPacket(packetID uint16, seq uint32, fragType mmtp.FragmentType, indicator mmtp.FragmentationIndicator, payload []byte) a3recv.Packet {
	const commonHeaderLen = 12
	const mpuHeaderLen = 6

	buf := make([]byte, commonHeaderLen+mpuHeaderLen+len(payload))
	buf[0] = 1 << 4 // version=1, payload_type=MPU(0)
	binary.BigEndian.PutUint16(buf[2:4], packetID)

	n := commonHeaderLen
	binary.BigEndian.PutUint32(buf[n:n+4], seq)
	buf[n+4] = uint8(fragType)<<6 | uint8(indicator)<<4
	copy(buf[n+mpuHeaderLen:], payload)

	return a3recv.Packet{Payload: buf}
}

func TestSessionMMTPPublishesJoinedFragment(t *testing.T) {
	s := newTestSession()
	sink := &fakeSink{}

	src := &fakeSource{pkts: []a3recv.Packet{
		buildMMTPPacket(1, 9, mmtp.FragmentTypeMPUMetadata, mmtp.FragIndicatorStandalone, []byte("init")),
		buildMMTPPacket(1, 9, mmtp.FragmentTypeMovieFragmentMetadata, mmtp.FragIndicatorStandalone, []byte("moof")),
		buildMMTPPacket(1, 9, mmtp.FragmentTypeMediaFragmentUnit, mmtp.FragIndicatorStandalone, []byte("mdat")),
	}}
	s.AddChannel(src, a3recv.ProtocolMMTP, sink)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() { _ = s.Run(ctx) }()

	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)
}
