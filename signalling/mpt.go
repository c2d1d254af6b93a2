// SPDX-License-Identifier: MIT

// Package signalling decodes and stores the MMT Package Table (MPT), the
// signalling structure that maps an MMTP packet_id to the asset it
// carries and, for timed assets, to per-MPU presentation timestamps
// (spec.md §4.5).
package signalling

import (
	"encoding/binary"
	"fmt"

	"github.com/atsc3go/a3recv"
)

// AssetType is the coarse media kind an MPT asset row describes.
type AssetType string

const (
	AssetTypeVideo       AssetType = "video"
	AssetTypeAudio       AssetType = "audio"
	AssetTypeSubtitle    AssetType = "subtitle"
	AssetTypeApplication AssetType = "application"
)

// Asset is one MPT row: the association between an MMTP packet_id and the
// asset it carries, plus an optional MPU timestamp descriptor mapping mpu
// sequence numbers to NTP-64 presentation times.
type Asset struct {
	PacketID     uint16
	AssetType    AssetType
	DefaultAsset bool
	Identifier   string

	// Timestamps holds the asset's mpu_timestamp_descriptor, if present:
	// mpu_sequence_number -> ntp64 presentation time.
	Timestamps map[uint32]uint64
}

// MPT is one immutable, fully-parsed Package Table instance.
type MPT struct {
	assets map[uint16]Asset
}

// NewMPT builds an MPT from its decoded asset rows, indexed by packet_id.
// A later row for a packet_id already present overwrites the earlier one,
// matching the wire table's own last-row-wins ordering.
func NewMPT(assets []Asset) *MPT {
	m := &MPT{assets: make(map[uint16]Asset, len(assets))}
	for _, a := range assets {
		m.assets[a.PacketID] = a
	}
	return m
}

// AssetFor returns the asset row for packetID, if any.
func (m *MPT) AssetFor(packetID uint16) (Asset, bool) {
	a, ok := m.assets[packetID]
	return a, ok
}

// DefaultAssetOfType returns the asset flagged default_asset_flag for the
// given type, if one exists.
func (m *MPT) DefaultAssetOfType(kind AssetType) (Asset, bool) {
	for _, a := range m.assets {
		if a.AssetType == kind && a.DefaultAsset {
			return a, true
		}
	}
	return Asset{}, false
}

// Wire layout for a reassembled signalling-message-fragments payload
// (spec.md §4.2: "If payload type = signalling: a table of signalling
// messages"; §4.5: "Accepts signalling-message fragments, parses MPT
// messages into an MPTable"). A table is a sequence of generic messages;
// this package only interprets the ones carrying an MPT, skipping any
// other message_id so unrelated signalling tables never abort the parse.
//
//	repeated signalling message:
//	  message_id(1B) | message_length(2B) | message_body(message_length bytes)
//
//	MPT message body (message_id == MessageIDMPT):
//	  num_assets(1B)
//	  repeated asset row:
//	    packet_id(2B) | asset_type(1B) | flags(1B) | identifier_len(1B) | identifier(identifier_len bytes)
//	    flags: bit0 = default_asset_flag, bit1 = has mpu_timestamp_descriptor
//	    mpu_timestamp_descriptor, if present:
//	      num_timestamps(2B)
//	      repeated: mpu_sequence_number(4B) | mpu_presentation_time ntp64(8B)
const (
	// MessageIDMPT identifies an MPT message within a signalling table.
	MessageIDMPT = 0x01

	wireAssetTypeVideo       = 0
	wireAssetTypeAudio       = 1
	wireAssetTypeSubtitle    = 2
	wireAssetTypeApplication = 3

	defaultAssetBit     = 1 << 0
	hasTimestampDescBit = 1 << 1
)

// ParseSignallingTable decodes buf, a reassembled signalling-message
// fragments payload, into however many MPT messages it carries. Messages
// with an unrecognized message_id are skipped rather than rejected —
// spec.md §9 leaves MPT selection policy to arrival order, not to
// rejecting tables this core has no use for.
func ParseSignallingTable(buf []byte) ([]*MPT, error) {
	const msgHeaderLen = 3

	var tables []*MPT
	for len(buf) > 0 {
		if len(buf) < msgHeaderLen {
			return tables, fmt.Errorf("%w: signalling message header needs %d bytes, got %d",
				a3recv.ErrMalformedHeader, msgHeaderLen, len(buf))
		}
		msgID := buf[0]
		msgLen := int(binary.BigEndian.Uint16(buf[1:msgHeaderLen]))
		buf = buf[msgHeaderLen:]

		if len(buf) < msgLen {
			return tables, fmt.Errorf("%w: signalling message_length %d exceeds remaining %d bytes",
				a3recv.ErrMalformedHeader, msgLen, len(buf))
		}
		body := buf[:msgLen]
		buf = buf[msgLen:]

		if msgID != MessageIDMPT {
			continue
		}
		mpt, err := parseMPTBody(body)
		if err != nil {
			return tables, err
		}
		tables = append(tables, mpt)
	}
	return tables, nil
}

// ParseMPT decodes buf as a single MPT message body (no outer message
// framing), for callers that already know the payload is exactly one MPT.
func ParseMPT(buf []byte) (*MPT, error) {
	return parseMPTBody(buf)
}

func parseMPTBody(buf []byte) (*MPT, error) {
	if len(buf) < 1 {
		return nil, fmt.Errorf("%w: mpt body needs at least 1 byte, got 0", a3recv.ErrMalformedHeader)
	}
	numAssets := int(buf[0])
	buf = buf[1:]

	assets := make([]Asset, 0, numAssets)
	for i := 0; i < numAssets; i++ {
		const assetRowFixedLen = 5
		if len(buf) < assetRowFixedLen {
			return nil, fmt.Errorf("%w: mpt asset row needs %d bytes, got %d",
				a3recv.ErrMalformedHeader, assetRowFixedLen, len(buf))
		}

		packetID := binary.BigEndian.Uint16(buf[0:2])
		assetType, err := assetTypeFromWire(buf[2])
		if err != nil {
			return nil, err
		}
		flags := buf[3]
		idLen := int(buf[4])
		buf = buf[assetRowFixedLen:]

		if len(buf) < idLen {
			return nil, fmt.Errorf("%w: mpt identifier needs %d bytes, got %d",
				a3recv.ErrMalformedHeader, idLen, len(buf))
		}
		identifier := string(buf[:idLen])
		buf = buf[idLen:]

		asset := Asset{
			PacketID:     packetID,
			AssetType:    assetType,
			DefaultAsset: flags&defaultAssetBit != 0,
			Identifier:   identifier,
		}

		if flags&hasTimestampDescBit != 0 {
			const tsCountLen = 2
			const tsEntryLen = 12
			if len(buf) < tsCountLen {
				return nil, fmt.Errorf("%w: mpu_timestamp_descriptor count needs %d bytes, got %d",
					a3recv.ErrMalformedHeader, tsCountLen, len(buf))
			}
			numTS := int(binary.BigEndian.Uint16(buf[0:tsCountLen]))
			buf = buf[tsCountLen:]

			asset.Timestamps = make(map[uint32]uint64, numTS)
			for t := 0; t < numTS; t++ {
				if len(buf) < tsEntryLen {
					return nil, fmt.Errorf("%w: mpu_timestamp_descriptor entry needs %d bytes, got %d",
						a3recv.ErrMalformedHeader, tsEntryLen, len(buf))
				}
				seq := binary.BigEndian.Uint32(buf[0:4])
				ts := binary.BigEndian.Uint64(buf[4:tsEntryLen])
				asset.Timestamps[seq] = ts
				buf = buf[tsEntryLen:]
			}
		}

		assets = append(assets, asset)
	}

	return NewMPT(assets), nil
}

func assetTypeFromWire(b byte) (AssetType, error) {
	switch b {
	case wireAssetTypeVideo:
		return AssetTypeVideo, nil
	case wireAssetTypeAudio:
		return AssetTypeAudio, nil
	case wireAssetTypeSubtitle:
		return AssetTypeSubtitle, nil
	case wireAssetTypeApplication:
		return AssetTypeApplication, nil
	default:
		return "", fmt.Errorf("%w: mpt asset_type %d", a3recv.ErrUnsupportedCodepoint, b)
	}
}
