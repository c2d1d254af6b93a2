// SPDX-License-Identifier: MIT

package fec

import "sort"

// NoCodeDecoder implements Decoder for FEC Encoding ID 0 (Compact
// No-Code). There is nothing to recover: the block is ready once every
// source symbol in [0, SourceSymbolCount) has arrived, and "decoding" is
// just concatenating them in ESI order.
type NoCodeDecoder struct{}

// Ready reports whether every source symbol 0..SourceSymbolCount-1 is
// present, deduplicating by ESI.
func (NoCodeDecoder) Ready(desc BlockDescriptor, symbols []Symbol) bool {
	if desc.SourceSymbolCount <= 0 {
		return false
	}
	seen := make(map[uint32]bool, len(symbols))
	for _, s := range symbols {
		seen[s.ESI] = true
	}
	for esi := uint32(0); esi < uint32(desc.SourceSymbolCount); esi++ {
		if !seen[esi] {
			return false
		}
	}
	return true
}

// Decode concatenates symbols in ascending ESI order. Duplicate ESIs keep
// their first occurrence (spec.md invariant 1: every symbol represented
// at most once after reassembly).
func (NoCodeDecoder) Decode(desc BlockDescriptor, symbols []Symbol) ([]byte, error) {
	ordered := make([]Symbol, len(symbols))
	copy(ordered, symbols)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ESI < ordered[j].ESI })

	out := make([]byte, 0, desc.SymbolLength*len(ordered))
	seen := make(map[uint32]bool, len(ordered))
	for _, s := range ordered {
		if seen[s.ESI] {
			continue
		}
		seen[s.ESI] = true
		out = append(out, s.Payload...)
	}
	return out, nil
}
