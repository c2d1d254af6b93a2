// SPDX-License-Identifier: MIT

package isobmff

// Box describes one top-level ISO-BMFF box found by a BoxBuilder's
// ParseBoxes, identified by its four-character type code and its byte
// range within the buffer it was parsed from.
type Box struct {
	Type   string
	Offset int
	Size   int
}

// BoxBuilder is the external collaborator that understands ISO-BMFF box
// structure (grounded on original_source's Bento4-based
// ISOBMFFTrackJoiner, which parses AP4_Atom trees and rewrites trun/mdat
// sizes). The Joiner never parses or serializes ISO-BMFF itself; it locks
// onto box boundaries returned here and defers size-patching and final
// concatenation to whatever decoder a deployment wires in, mirroring
// fec.Decoder's boundary for FEC recovery.
type BoxBuilder interface {
	// ParseBoxes walks data's top-level boxes (moof, mdat, and whatever
	// else is present) and returns them in file order.
	ParseBoxes(data []byte) ([]Box, error)

	// PatchMdat rewrites mdat's declared box size and any trun
	// sample-size table that depends on it to match mediaDataLen, the
	// actual number of payload bytes following the mdat header.
	PatchMdat(mdat []byte, mediaDataLen uint64) ([]byte, error)

	// Join concatenates already-prepared boxes (init segment, moof,
	// patched mdat) into one fragment buffer in the given order.
	Join(boxes ...[]byte) ([]byte, error)
}
