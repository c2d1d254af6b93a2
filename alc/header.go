// SPDX-License-Identifier: MIT

// Package alc implements the ALC/LCT header decoder, object/block
// reassembler, and FDT instance store (spec.md §4.2, §4.3).
package alc

import (
	"encoding/binary"
	"fmt"

	"github.com/atsc3go/a3recv"
	"github.com/atsc3go/a3recv/fec"
)

// Wire layout (spec.md leaves exact bit packing to the implementation; this
// mirrors RFC 5651/5775's field set without byte-for-byte RFC compliance):
//
//	 0                   1                   2                   3
//	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|  Ver  |CO|CS|0|0|    reserved   |          HDR_LEN (bytes)     |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|            Transport Session Identifier (TSI, 32 bit)         |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|        Transport Object Identifier (TOI, 64 bit) ...           |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|  FEC Encoding ID |  reserved (3B) | Transfer Length (64 bit)...| (optional, present iff HDR_LEN > lctFixedLen)
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|  FEC Payload ID: SBN(1B)+ESI(3B) if encoding==Raptor, else start_offset (4B) |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
const (
	lctFixedLen   = 16
	fecOTILen     = 12
	payloadIDLen  = 4
	versionShift  = 4
	versionMask   = 0xF
	closeObjBit   = 1 << 3
	closeSessBit  = 1 << 2
	reservedMask  = 0x3 // low 2 bits of byte0 must be zero
	supportedVers = 1
)

// LCTHeader is the protocol-independent Layered Coding Transport header.
type LCTHeader struct {
	Version      uint8
	CloseObject  bool
	CloseSession bool
	HeaderLen    int
	TSI          uint64
	TOI          uint64
}

// FECObjectInfo is the FEC Object Transmission Information, when present.
// TransferLenKnown is false when the carrying packet did not include it
// (spec.md §3: "transfer length ... may be initially unknown").
type FECObjectInfo struct {
	EncodingID       fec.EncodingID
	TransferLen      uint64
	TransferLenKnown bool
}

// FECPayloadID locates one encoding symbol within its transport block,
// per spec.md §4.2: Raptor (encoding ID 128) carries (SBN, ESI); every
// other encoding carries a start_offset instead.
type FECPayloadID struct {
	UseSBNESI      bool
	SBN            uint8
	ESI            uint32
	UseStartOffset bool
	StartOffset    uint32
}

// Packet is a fully decoded ALC/LCT datagram.
type Packet struct {
	LCT          LCTHeader
	OTI          FECObjectInfo
	FECPayloadID FECPayloadID
	Payload      []byte
}

// ParsePacket decodes buf into a Packet. It returns a3recv.ErrMalformedHeader
// if buf is shorter than the header it declares, and
// a3recv.ErrUnsupportedCodepoint if the version field or a reserved bit
// holds a value this decoder does not accept.
func ParsePacket(buf []byte) (Packet, error) {
	var pkt Packet

	if len(buf) < lctFixedLen {
		return pkt, fmt.Errorf("%w: lct header needs %d bytes, got %d",
			a3recv.ErrMalformedHeader, lctFixedLen, len(buf))
	}

	pkt.LCT.Version = buf[0] >> versionShift & versionMask
	if pkt.LCT.Version != supportedVers {
		return pkt, fmt.Errorf("%w: lct version %d", a3recv.ErrUnsupportedCodepoint, pkt.LCT.Version)
	}
	if buf[0]&reservedMask != 0 {
		return pkt, fmt.Errorf("%w: lct reserved bits set", a3recv.ErrUnsupportedCodepoint)
	}
	pkt.LCT.CloseObject = buf[0]&closeObjBit != 0
	pkt.LCT.CloseSession = buf[0]&closeSessBit != 0

	pkt.LCT.HeaderLen = int(binary.BigEndian.Uint16(buf[2:4]))
	if pkt.LCT.HeaderLen < lctFixedLen {
		return pkt, fmt.Errorf("%w: hdr_len %d shorter than fixed header", a3recv.ErrMalformedHeader, pkt.LCT.HeaderLen)
	}
	if len(buf) < pkt.LCT.HeaderLen {
		return pkt, fmt.Errorf("%w: declared hdr_len %d > packet len %d",
			a3recv.ErrMalformedHeader, pkt.LCT.HeaderLen, len(buf))
	}

	pkt.LCT.TSI = uint64(binary.BigEndian.Uint32(buf[4:8]))
	pkt.LCT.TOI = binary.BigEndian.Uint64(buf[8:16])

	n := lctFixedLen
	if pkt.LCT.HeaderLen > lctFixedLen {
		if pkt.LCT.HeaderLen < lctFixedLen+fecOTILen+payloadIDLen {
			return pkt, fmt.Errorf("%w: hdr_len %d too short for fec oti + payload id",
				a3recv.ErrMalformedHeader, pkt.LCT.HeaderLen)
		}
		pkt.OTI.EncodingID = fec.EncodingID(buf[n])
		pkt.OTI.TransferLen = binary.BigEndian.Uint64(buf[n+4 : n+12])
		pkt.OTI.TransferLenKnown = true
		n += fecOTILen

		if pkt.OTI.EncodingID == fec.EncodingRaptor {
			pkt.FECPayloadID.UseSBNESI = true
			pkt.FECPayloadID.SBN = buf[n]
			pkt.FECPayloadID.ESI = uint32(buf[n+1])<<16 | uint32(buf[n+2])<<8 | uint32(buf[n+3])
		} else {
			pkt.FECPayloadID.UseStartOffset = true
			pkt.FECPayloadID.StartOffset = binary.BigEndian.Uint32(buf[n : n+4])
		}
		n += payloadIDLen
	}

	pkt.Payload = buf[pkt.LCT.HeaderLen:]

	return pkt, nil
}
