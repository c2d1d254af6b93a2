// SPDX-License-Identifier: MIT

package mmtp

// fragment is one payload fragment with the counter it arrived at, keyed
// for dedup and out-of-order arrival (spec.md §1: "loss, reordering,
// duplication, and truncation").
type fragment struct {
	indicator FragmentationIndicator
	counter   uint8
	payload   []byte
}

// Bucket is a timed collection of payload fragments for one
// (packet-id, mpu-sequence) pair — spec.md §3's MPUFragmentBucket.
// Completeness: fragmentation_indicator == 0 alone, or a sequence that
// begins with indicator 1 (the "opening counter"), proceeds through
// indicator-2 fragments with strictly decreasing counters, and ends with
// indicator 3 at counter 0.
type Bucket struct {
	fragments     map[uint8]fragment
	openingCount  int // -1 until an indicator-1 fragment sets it
	sawStandalone bool
	sawLast       bool
}

// NewBucket returns an empty bucket.
func NewBucket() *Bucket {
	return &Bucket{fragments: make(map[uint8]fragment), openingCount: -1}
}

// Add inserts a fragment, deduplicating by counter within this bucket (the
// same counter arriving twice keeps the first payload). indicator 0 is
// standalone and must be the bucket's only fragment.
func (b *Bucket) Add(indicator FragmentationIndicator, counter uint8, payload []byte) {
	if _, exists := b.fragments[counter]; exists && indicator != FragIndicatorStandalone {
		return
	}

	cp := make([]byte, len(payload))
	copy(cp, payload)

	switch indicator {
	case FragIndicatorStandalone:
		b.fragments = map[uint8]fragment{0: {indicator: indicator, counter: 0, payload: cp}}
		b.sawStandalone = true
		return
	case FragIndicatorFirst:
		b.openingCount = int(counter)
	case FragIndicatorLast:
		b.sawLast = true
	}

	b.fragments[counter] = fragment{indicator: indicator, counter: counter, payload: cp}
}

// Complete reports whether the bucket's fragmentation sequence is fully
// present.
func (b *Bucket) Complete() bool {
	if b.sawStandalone {
		return true
	}
	if b.openingCount < 0 || !b.sawLast {
		return false
	}
	for c := 0; c <= b.openingCount; c++ {
		if _, ok := b.fragments[uint8(c)]; !ok {
			return false
		}
	}
	return true
}

// Assemble concatenates fragments ordered by fragmentation_counter
// descending (spec.md §8 invariant 3: "1→2*→3"). Only meaningful once
// Complete() is true.
func (b *Bucket) Assemble() []byte {
	if b.sawStandalone {
		return append([]byte(nil), b.fragments[0].payload...)
	}

	var out []byte
	for c := b.openingCount; c >= 0; c-- {
		out = append(out, b.fragments[uint8(c)].payload...)
	}
	return out
}
