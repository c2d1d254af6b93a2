// SPDX-License-Identifier: MIT

// Package buffer implements bounded, growable byte blocks with a write
// cursor. No other package of this module imports it at present; the ALC
// and MMTP reassemblers and the ISO-BMFF joiner keep their data in plain
// byte slices and maps.
package buffer

import "github.com/atsc3go/a3recv"

// Block is a bounds-checked, growable byte buffer with its own write
// cursor, independent of total capacity. Every operation fails cleanly
// (returning an error, never partially mutating the buffer) rather than
// panicking on out-of-range access.
type Block struct {
	data []byte
	pos  int // i_pos: write cursor
}

// Alloc returns a new Block with capacity n and an empty write cursor.
func Alloc(n int) *Block {
	return &Block{data: make([]byte, n)}
}

// Rewind resets the write cursor to zero without releasing capacity.
func (b *Block) Rewind() {
	b.pos = 0
}

// Resize grows or shrinks capacity, preserving data up to min(old, new).
// On allocation failure it returns a3recv.ErrCapacityExhausted and leaves
// the block unmodified.
func (b *Block) Resize(n int) error {
	if n < 0 {
		return a3recv.ErrCapacityExhausted
	}
	next := make([]byte, n)
	copy(next, b.data)
	b.data = next
	if b.pos > n {
		b.pos = n
	}
	return nil
}

// Write appends len(p) bytes at the current cursor, growing capacity if
// necessary, and advances the cursor. It never partially writes: either
// all of p is copied or none of it, and growth failures return
// a3recv.ErrCapacityExhausted.
func (b *Block) Write(p []byte) (int, error) {
	need := b.pos + len(p)
	if need > cap(b.data) {
		if err := b.growTo(need); err != nil {
			return 0, err
		}
	}
	if need > len(b.data) {
		b.data = b.data[:need]
	}
	n := copy(b.data[b.pos:need], p)
	b.pos += n
	return n, nil
}

// WriteAt writes p at an absolute offset without moving the write cursor,
// used by the joiner to patch an mdat length after the fact (spec §4.6
// Phase 4). The region [offset, offset+len(p)) must already be within the
// written portion of the block.
func (b *Block) WriteAt(offset int, p []byte) error {
	if offset < 0 || offset+len(p) > b.pos {
		return a3recv.ErrCapacityExhausted
	}
	copy(b.data[offset:offset+len(p)], p)
	return nil
}

func (b *Block) growTo(need int) error {
	newCap := cap(b.data)
	if newCap == 0 {
		newCap = 64
	}
	for newCap < need {
		newCap *= 2
	}
	next := make([]byte, len(b.data), newCap)
	copy(next, b.data)
	b.data = next
	return nil
}

// Len returns the number of bytes written so far (the write cursor).
func (b *Block) Len() int {
	return b.pos
}

// Bytes returns the written portion of the block. The returned slice
// aliases the block's storage; callers must not retain it across a
// subsequent Rewind/Resize/Write unless they copy it first.
func (b *Block) Bytes() []byte {
	return b.data[:b.pos]
}

// Release drops the block's backing storage. Safe to call multiple times.
func (b *Block) Release() {
	b.data = nil
	b.pos = 0
}
