// SPDX-License-Identifier: MIT

package mmtp

import "sync"

// vectorEntry pairs a fragment bucket with the mpu sequence number (or, for
// the signalling vector, the packet sequence number) it was opened under.
type vectorEntry struct {
	seq    uint32
	bucket *Bucket
}

// reapHorizon is how many strictly-later sequence numbers must arrive
// before an incomplete bucket is abandoned (spec.md §3: "buckets not
// completed before being superseded by two later MPU sequences are
// reaped").
const reapHorizon = 2

// SubFlow holds one packet_id's four timed vectors (spec.md §3): MPU
// metadata is newest-wins since a receiver only ever needs the latest
// init segment; movie fragment metadata, media fragment units, and
// signalling messages are each indexed by their owning sequence number so
// several MPUs can be in flight concurrently.
type SubFlow struct {
	mu sync.Mutex

	packetID uint16
	onReap   func()

	mpuMetadata           *vectorEntry
	movieFragmentMetadata map[uint32]*vectorEntry
	mediaFragmentUnit     map[uint32]*vectorEntry
	signalling            map[uint32]*vectorEntry
}

// NewSubFlow returns an empty sub-flow for packetID. onReap, if non-nil, is
// called once per bucket abandoned by the reap horizon; pass nil to ignore.
func NewSubFlow(packetID uint16, onReap func()) *SubFlow {
	if onReap == nil {
		onReap = func() {}
	}
	return &SubFlow{
		packetID:              packetID,
		onReap:                onReap,
		movieFragmentMetadata: make(map[uint32]*vectorEntry),
		mediaFragmentUnit:     make(map[uint32]*vectorEntry),
		signalling:            make(map[uint32]*vectorEntry),
	}
}

// bucketFor returns the bucket for (kind, seq), creating it if this is the
// first fragment seen for that sequence. kind must be one of the
// FragmentType constants; signalling packets use signallingBucketFor.
func (s *SubFlow) bucketFor(kind FragmentType, seq uint32) *Bucket {
	s.mu.Lock()
	defer s.mu.Unlock()

	if kind == FragmentTypeMPUMetadata {
		switch {
		case s.mpuMetadata == nil || seq > s.mpuMetadata.seq:
			s.mpuMetadata = &vectorEntry{seq: seq, bucket: NewBucket()}
		case seq < s.mpuMetadata.seq:
			// Stale metadata for an mpu sequence older than the one
			// already installed; accumulate into a disposable bucket so
			// it never overwrites the current newest-wins entry.
			return NewBucket()
		}
		return s.mpuMetadata.bucket
	}

	vec := s.vectorFor(kind)
	entry, ok := vec[seq]
	if !ok {
		entry = &vectorEntry{seq: seq, bucket: NewBucket()}
		vec[seq] = entry
		s.reap(vec, seq)
	}
	return entry.bucket
}

// signallingBucketFor returns the bucket for a signalling-payload packet,
// keyed by the packet's own sequence number (signalling packets carry no
// mpu_sequence_number).
func (s *SubFlow) signallingBucketFor(seq uint32) *Bucket {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.signalling[seq]
	if !ok {
		entry = &vectorEntry{seq: seq, bucket: NewBucket()}
		s.signalling[seq] = entry
		s.reap(s.signalling, seq)
	}
	return entry.bucket
}

func (s *SubFlow) vectorFor(kind FragmentType) map[uint32]*vectorEntry {
	switch kind {
	case FragmentTypeMovieFragmentMetadata:
		return s.movieFragmentMetadata
	default:
		return s.mediaFragmentUnit
	}
}

// reap drops incomplete buckets that a horizon of later sequence numbers
// has superseded. Must be called with s.mu held.
func (s *SubFlow) reap(vec map[uint32]*vectorEntry, newSeq uint32) {
	for seq, entry := range vec {
		if seq >= newSeq {
			continue
		}
		if newSeq-seq >= reapHorizon && !entry.bucket.Complete() {
			delete(vec, seq)
			s.onReap()
		}
	}
}

// Find returns the bucket stored for (kind, seq), if any, without creating
// one (spec.md §4.4's find_mpu_sequence operation).
func (s *SubFlow) Find(kind FragmentType, seq uint32) (*Bucket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if kind == FragmentTypeMPUMetadata {
		if s.mpuMetadata == nil || s.mpuMetadata.seq != seq {
			return nil, false
		}
		return s.mpuMetadata.bucket, true
	}

	entry, ok := s.vectorFor(kind)[seq]
	if !ok {
		return nil, false
	}
	return entry.bucket, true
}

// LatestMPUMetadata returns the newest-wins mpu_metadata_fragments_vector
// entry, regardless of which mpu sequence number it was captured under —
// the init segment it carries applies to the whole sub-flow until a
// newer one replaces it.
func (s *SubFlow) LatestMPUMetadata() (*Bucket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mpuMetadata == nil {
		return nil, false
	}
	return s.mpuMetadata.bucket, true
}

// PendingSeqs returns the sequence numbers currently held in kind's vector,
// used by the joiner to discover which MPUs are ready to attempt across an
// entire sub-flow (spec.md §4.6's build_from_flow).
func (s *SubFlow) PendingSeqs(kind FragmentType) []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	vec := s.vectorFor(kind)
	seqs := make([]uint32, 0, len(vec))
	for seq := range vec {
		seqs = append(seqs, seq)
	}
	return seqs
}

// FindSignalling returns the signalling bucket stored for seq, if any.
func (s *SubFlow) FindSignalling(seq uint32) (*Bucket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.signalling[seq]
	if !ok {
		return nil, false
	}
	return entry.bucket, true
}
