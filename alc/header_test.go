// SPDX-License-Identifier: MIT

package alc

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atsc3go/a3recv"
	"github.com/atsc3go/a3recv/fec"
)

func buildPacket(t *testing.T, closeObj, closeSess bool, encodingID fec.EncodingID, transferLen uint64, sbn uint8, esi uint32, startOffset uint32, payload []byte) []byte {
	t.Helper()
	hdrLen := lctFixedLen + fecOTILen + payloadIDLen
	buf := make([]byte, hdrLen+len(payload))

	buf[0] = supportedVers << versionShift
	if closeObj {
		buf[0] |= closeObjBit
	}
	if closeSess {
		buf[0] |= closeSessBit
	}
	binary.BigEndian.PutUint16(buf[2:4], uint16(hdrLen))
	binary.BigEndian.PutUint32(buf[4:8], 0xAABBCCDD)
	binary.BigEndian.PutUint64(buf[8:16], 7)

	n := lctFixedLen
	buf[n] = byte(encodingID)
	binary.BigEndian.PutUint64(buf[n+4:n+12], transferLen)
	n += fecOTILen

	if encodingID == fec.EncodingRaptor {
		buf[n] = sbn
		buf[n+1] = byte(esi >> 16)
		buf[n+2] = byte(esi >> 8)
		buf[n+3] = byte(esi)
	} else {
		binary.BigEndian.PutUint32(buf[n:n+4], startOffset)
	}
	n += payloadIDLen

	copy(buf[n:], payload)
	return buf
}

func TestParsePacketRaptorPayloadID(t *testing.T) {
	buf := buildPacket(t, true, false, fec.EncodingRaptor, 1234, 3, 0x010203, 0, []byte{0xDE, 0xAD})

	pkt, err := ParsePacket(buf)
	require.NoError(t, err)
	assert.True(t, pkt.LCT.CloseObject)
	assert.False(t, pkt.LCT.CloseSession)
	assert.EqualValues(t, 7, pkt.LCT.TOI)
	assert.True(t, pkt.FECPayloadID.UseSBNESI)
	assert.EqualValues(t, 3, pkt.FECPayloadID.SBN)
	assert.EqualValues(t, 0x010203, pkt.FECPayloadID.ESI)
	assert.Equal(t, []byte{0xDE, 0xAD}, pkt.Payload)
	assert.True(t, pkt.OTI.TransferLenKnown)
	assert.EqualValues(t, 1234, pkt.OTI.TransferLen)
}

func TestParsePacketNoCodeStartOffset(t *testing.T) {
	buf := buildPacket(t, false, true, fec.EncodingCompactNoCode, 99, 0, 0, 42, []byte{1, 2, 3})

	pkt, err := ParsePacket(buf)
	require.NoError(t, err)
	assert.True(t, pkt.LCT.CloseSession)
	assert.True(t, pkt.FECPayloadID.UseStartOffset)
	assert.EqualValues(t, 42, pkt.FECPayloadID.StartOffset)
}

func TestParsePacketTruncatedHeaderIsMalformed(t *testing.T) {
	_, err := ParsePacket(make([]byte, 4))
	assert.ErrorIs(t, err, a3recv.ErrMalformedHeader)
}

func TestParsePacketUnsupportedVersion(t *testing.T) {
	buf := buildPacket(t, false, false, fec.EncodingCompactNoCode, 0, 0, 0, 0, nil)
	buf[0] = 2 << versionShift // version 2, unsupported

	_, err := ParsePacket(buf)
	assert.ErrorIs(t, err, a3recv.ErrUnsupportedCodepoint)
}

func TestParsePacketReservedBitsRejected(t *testing.T) {
	buf := buildPacket(t, false, false, fec.EncodingCompactNoCode, 0, 0, 0, 0, nil)
	buf[0] |= 0x1 // reserved bit set

	_, err := ParsePacket(buf)
	assert.ErrorIs(t, err, a3recv.ErrUnsupportedCodepoint)
}

func TestParsePacketDeclaredHdrLenLongerThanBufferIsMalformed(t *testing.T) {
	buf := buildPacket(t, false, false, fec.EncodingCompactNoCode, 0, 0, 0, 0, nil)
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(buf)+100))

	_, err := ParsePacket(buf)
	assert.ErrorIs(t, err, a3recv.ErrMalformedHeader)
}
