// SPDX-License-Identifier: MIT

// Package fec defines the IFecDecoder collaborator boundary (spec.md §1,
// §4.3, §6): the receiver core never implements Reed-Solomon, XOR, or
// Raptor recovery itself. It only carries the one FEC scheme with no
// recovery computation at all — Compact No-Code, encoding ID 0 — because
// that scheme is an identity decode plus a completeness check, not an
// algorithm to delegate.
package fec

import "errors"

// ErrUnsupportedEncoding is returned by Registry.Decode when no Decoder is
// registered for the requested encoding ID.
var ErrUnsupportedEncoding = errors.New("fec: unsupported encoding id")

// EncodingID identifies a FEC scheme, per the ALC FEC Encoding ID registry.
type EncodingID uint8

const (
	// EncodingCompactNoCode is FEC Encoding ID 0: no redundancy, every
	// source symbol must arrive.
	EncodingCompactNoCode EncodingID = 0
	// EncodingRaptor is FEC Encoding ID 128: object carries (SBN, ESI)
	// FEC Payload IDs and recovers from k-of-n source symbols.
	EncodingRaptor EncodingID = 128
)

// Symbol is one received encoding symbol belonging to a transport block.
type Symbol struct {
	ESI     uint32
	Payload []byte
}

// BlockDescriptor carries what a Decoder needs to know about the block the
// symbols belong to: how many source symbols it should contain and (for
// no-code) whether that count is already known from the header.
type BlockDescriptor struct {
	SBN               uint8
	SourceSymbolCount int // 0 if not yet known
	SymbolLength      int
}

// Decoder recovers the source data for one transport block. Ready reports
// whether enough symbols are present to attempt Decode; this predicate is
// scheme-specific (all source symbols for no-code, k-of-n for Reed-Solomon
// or Raptor) and is therefore part of the Decoder contract, not the
// reassembler (spec.md §4.3 block_ready_to_decode, §9 Open Questions).
type Decoder interface {
	Ready(desc BlockDescriptor, symbols []Symbol) bool
	Decode(desc BlockDescriptor, symbols []Symbol) ([]byte, error)
}

// Registry maps an encoding ID to the Decoder that handles it.
type Registry struct {
	decoders map[EncodingID]Decoder
}

// NewRegistry returns a Registry pre-populated with the no-code decoder.
// Callers register Reed-Solomon/XOR/Raptor decoders on top of it.
func NewRegistry() *Registry {
	r := &Registry{decoders: make(map[EncodingID]Decoder)}
	r.Register(EncodingCompactNoCode, NoCodeDecoder{})
	return r
}

// Register installs decoder for encodingID, replacing any previous one.
func (r *Registry) Register(encodingID EncodingID, decoder Decoder) {
	r.decoders[encodingID] = decoder
}

// Lookup returns the decoder registered for encodingID, if any.
func (r *Registry) Lookup(encodingID EncodingID) (Decoder, bool) {
	d, ok := r.decoders[encodingID]
	return d, ok
}

// Ready reports whether encodingID has a registered decoder whose Ready
// predicate holds for desc/symbols. An unregistered encoding is never
// ready.
func (r *Registry) Ready(encodingID EncodingID, desc BlockDescriptor, symbols []Symbol) bool {
	d, ok := r.decoders[encodingID]
	if !ok {
		return false
	}
	return d.Ready(desc, symbols)
}

// Decode dispatches to the registered decoder for encodingID.
func (r *Registry) Decode(encodingID EncodingID, desc BlockDescriptor, symbols []Symbol) ([]byte, error) {
	d, ok := r.decoders[encodingID]
	if !ok {
		return nil, ErrUnsupportedEncoding
	}
	return d.Decode(desc, symbols)
}
