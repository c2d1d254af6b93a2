// SPDX-License-Identifier: MIT

package alc

import (
	"sync"

	"github.com/atsc3go/a3recv/fec"
)

// ObjectKind distinguishes an FDT Instance (TOI 0, spec.md §3) from a
// normal deliverable object, mirroring original_source/atsc3_alc_rx.h's
// object_exist(toi, session, type) parameter.
type ObjectKind uint8

const (
	// ObjectKindFDT is an FDT Instance, always carried on the reserved TOI.
	ObjectKindFDT ObjectKind = iota
	// ObjectKindNormal is any other deliverable object.
	ObjectKindNormal
)

// FDTReservedTOI is the TOI value reserved for FDT Instances.
const FDTReservedTOI uint64 = 0

// TransportBlock is one source block's received symbols, keyed by ESI for
// Raptor objects or by a derived positional key for no-SBN objects (spec
// §4.3: "derive single block for no-SBN FEC from start_offset").
type TransportBlock struct {
	SBN        uint8
	symbols    map[uint32]fec.Symbol
	symbolLen  int // established from the first symbol received
	totalBytes uint64
}

func newTransportBlock(sbn uint8) *TransportBlock {
	return &TransportBlock{SBN: sbn, symbols: make(map[uint32]fec.Symbol)}
}

// AddSymbol inserts payload at key esi, deduplicating: a symbol already
// present at that key is left untouched (spec invariant 1: every symbol
// represented at most once after reassembly).
func (tb *TransportBlock) AddSymbol(esi uint32, payload []byte) (added bool) {
	if _, exists := tb.symbols[esi]; exists {
		return false
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	tb.symbols[esi] = fec.Symbol{ESI: esi, Payload: cp}
	if tb.symbolLen == 0 {
		tb.symbolLen = len(payload)
	}
	tb.totalBytes += uint64(len(payload))
	return true
}

// Symbols returns the block's received symbols in no particular order.
func (tb *TransportBlock) Symbols() []fec.Symbol {
	out := make([]fec.Symbol, 0, len(tb.symbols))
	for _, s := range tb.symbols {
		out = append(out, s)
	}
	return out
}

// Descriptor builds the fec.BlockDescriptor for this block given the
// source symbol count implied by the object's known transfer length.
func (tb *TransportBlock) Descriptor(sourceSymbolCount int) fec.BlockDescriptor {
	return fec.BlockDescriptor{SBN: tb.SBN, SourceSymbolCount: sourceSymbolCount, SymbolLength: tb.symbolLen}
}

// TransportObject is one ALC deliverable, identified by TOI within a
// session (spec.md §3). Once TransferLen is known, the sum of decoded
// block lengths must never exceed it; the final block may be short.
type TransportObject struct {
	mu sync.Mutex

	TOI              uint64
	Kind             ObjectKind
	EncodingID       fec.EncodingID
	TransferLen      uint64
	TransferLenKnown bool
	CloseObject      bool
	CloseSession     bool

	blocks   map[uint8]*TransportBlock
	decoded  map[uint8][]byte // SBN -> recovered source bytes, once ready
	complete bool
	state    ObjectState
}

// ObjectState is the terminal disposition of a TransportObject (spec §4.3
// "Failure semantics"): Pending objects are still being reassembled;
// Complete objects have every block decoded and the transfer length
// accounted for; Incomplete objects were closed before that happened.
type ObjectState uint8

const (
	ObjectPending ObjectState = iota
	ObjectComplete
	ObjectIncomplete
)

func newTransportObject(toi uint64, kind ObjectKind) *TransportObject {
	return &TransportObject{
		TOI:     toi,
		Kind:    kind,
		blocks:  make(map[uint8]*TransportBlock),
		decoded: make(map[uint8][]byte),
	}
}

// blockFor returns the block for sbn, creating it if absent.
func (to *TransportObject) blockFor(sbn uint8) *TransportBlock {
	b, ok := to.blocks[sbn]
	if !ok {
		b = newTransportBlock(sbn)
		to.blocks[sbn] = b
	}
	return b
}

// setLatches applies the sticky close_object/close_session flags from a
// packet: once set, a latch is never cleared by a later packet.
func (to *TransportObject) setLatches(closeObject, closeSession bool) {
	if closeObject {
		to.CloseObject = true
	}
	if closeSession {
		to.CloseSession = true
	}
}

// Assemble concatenates every block's decoded bytes in ascending SBN
// order. Only valid once State() == ObjectComplete.
func (to *TransportObject) Assemble() []byte {
	to.mu.Lock()
	defer to.mu.Unlock()

	sbns := make([]uint8, 0, len(to.decoded))
	for sbn := range to.decoded {
		sbns = append(sbns, sbn)
	}
	for i := 1; i < len(sbns); i++ {
		for j := i; j > 0 && sbns[j-1] > sbns[j]; j-- {
			sbns[j-1], sbns[j] = sbns[j], sbns[j-1]
		}
	}

	out := make([]byte, 0, to.TransferLen)
	for _, sbn := range sbns {
		out = append(out, to.decoded[sbn]...)
	}
	return out
}

// State reports the object's terminal disposition.
func (to *TransportObject) State() ObjectState {
	to.mu.Lock()
	defer to.mu.Unlock()
	return to.state
}
