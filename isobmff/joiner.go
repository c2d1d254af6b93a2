// SPDX-License-Identifier: MIT

package isobmff

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/atsc3go/a3recv"
	"github.com/atsc3go/a3recv/mmtp"
	"github.com/atsc3go/a3recv/signalling"
	"github.com/atsc3go/a3recv/telemetry"
)

// TrackState is one track's position in the per-MPU fragment assembly
// state machine (spec.md §4.6).
type TrackState int

const (
	TrackEmpty TrackState = iota
	TrackInit
	TrackInitMoof
	TrackReady
	TrackPublished
	TrackAbort
)

func (s TrackState) String() string {
	switch s {
	case TrackEmpty:
		return "empty"
	case TrackInit:
		return "init"
	case TrackInitMoof:
		return "init+moof"
	case TrackReady:
		return "ready"
	case TrackPublished:
		return "published"
	case TrackAbort:
		return "abort"
	default:
		return "unknown"
	}
}

// Result is one MPU's join outcome.
type Result struct {
	PacketID uint16
	MPUSeq   uint32
	State    TrackState
	Fragment []byte // valid only when State == TrackPublished
}

// Joiner assembles completed MPU fragments from a mmtp.Reassembler and the
// current signalling.Store into joined ISO-BMFF fragments, one
// OutputBuffer per track (packet_id).
type Joiner struct {
	mu      sync.Mutex
	boxes   BoxBuilder
	tel     *telemetry.Telemetry
	buffers map[uint16]*OutputBuffer
	states  map[uint16]TrackState
}

// NewJoiner returns a Joiner that delegates ISO-BMFF box manipulation to
// boxes.
func NewJoiner(boxes BoxBuilder, tel *telemetry.Telemetry) *Joiner {
	return &Joiner{
		boxes:   boxes,
		tel:     tel,
		buffers: make(map[uint16]*OutputBuffer),
		states:  make(map[uint16]TrackState),
	}
}

func (j *Joiner) bufferFor(packetID uint16) *OutputBuffer {
	j.mu.Lock()
	defer j.mu.Unlock()
	buf, ok := j.buffers[packetID]
	if !ok {
		buf = NewOutputBuffer()
		j.buffers[packetID] = buf
		j.states[packetID] = TrackEmpty
	}
	return buf
}

func (j *Joiner) setState(packetID uint16, s TrackState) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.states[packetID] = s
}

// State returns the current track state for packetID.
func (j *Joiner) State(packetID uint16) TrackState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.states[packetID]
}

// BuildFromMPUSequenceNumbers runs the six assembly phases for one
// (packetID, mpuSeq) pair: init box, moof (with last-moof-reuse
// fallback), media fragment, mdat patch, presentation timing, and join.
func (j *Joiner) BuildFromMPUSequenceNumbers(
	ctx context.Context,
	reassembler *mmtp.Reassembler,
	store *signalling.Store,
	packetID uint16,
	mpuSeq uint32,
) (Result, error) {
	buf := j.bufferFor(packetID)
	result := Result{PacketID: packetID, MPUSeq: mpuSeq}

	// Clear the previous MPU's moof, fragment and presentation time before
	// building this one; the previous moof is kept as the last-moof fallback.
	buf.ResetMoofAndFragmentPosition()

	// Phase 1: init box. Installed once per track; subsequent MPUs reuse
	// whatever was captured the first time an MPU-metadata bucket arrived.
	if _, ok := buf.InitBox(); !ok {
		if b, ok := reassembler.LatestMPUMetadata(packetID); ok && b.Complete() {
			buf.SetInitBox(b.Assemble())
		}
	}
	initBox, haveInit := buf.InitBox()
	if !haveInit {
		j.setState(packetID, TrackEmpty)
		result.State = TrackEmpty
		return result, nil
	}
	j.setState(packetID, TrackInit)

	// Phase 2: moof, falling back to the last published moof if this MPU
	// did not carry its own (spec.md §4.6's last-moof-reuse fallback).
	var moofBox []byte
	if b, ok := reassembler.FindMPUSequence(packetID, mpuSeq, mmtp.FragmentTypeMovieFragmentMetadata); ok && b.Complete() {
		moofBox = b.Assemble()
		buf.SetMoofBox(moofBox)
	} else if last, ok := buf.LastMoofBox(); ok {
		moofBox = last
		if j.tel != nil {
			j.tel.Counters().Inc(telemetry.CounterMoofReused)
		}
	} else {
		j.setState(packetID, TrackInit)
		result.State = TrackInit
		return result, nil
	}
	j.setState(packetID, TrackInitMoof)

	// Phase 3: media fragment unit.
	fragBucket, ok := reassembler.FindMPUSequence(packetID, mpuSeq, mmtp.FragmentTypeMediaFragmentUnit)
	if !ok || !fragBucket.Complete() {
		if j.tel != nil {
			j.tel.Counters().Inc(telemetry.CounterJoinIncomplete)
		}
		j.setState(packetID, TrackInitMoof)
		result.State = TrackInitMoof
		return result, nil
	}
	mdat := fragBucket.Assemble()
	buf.SetFragmentBox(mdat)

	// Phase 4: mdat patch, deferred to the external box builder.
	patchedMdat, err := j.boxes.PatchMdat(mdat, uint64(len(mdat)))
	if err != nil {
		j.setState(packetID, TrackAbort)
		result.State = TrackAbort
		return result, fmt.Errorf("%w: patch mdat for packet_id=%d mpu_seq=%d: %v", a3recv.ErrIncomplete, packetID, mpuSeq, err)
	}

	// Phase 5: presentation timing.
	if ts, ok := store.PresentationTimeFor(packetID, mpuSeq); ok {
		buf.SetPresentationTime(ts)
	} else if j.tel != nil {
		j.tel.Warnf(ctx, telemetry.CounterSignallingMissing, "no presentation time for mpu",
			"packet_id", packetID, "mpu_seq", mpuSeq)
	}
	j.setState(packetID, TrackReady)

	// Phase 6: join.
	joined, err := j.boxes.Join(initBox, moofBox, patchedMdat)
	if err != nil {
		j.setState(packetID, TrackAbort)
		result.State = TrackAbort
		return result, fmt.Errorf("%w: join boxes for packet_id=%d mpu_seq=%d: %v", a3recv.ErrIncomplete, packetID, mpuSeq, err)
	}

	j.setState(packetID, TrackPublished)
	result.State = TrackPublished
	result.Fragment = joined
	return result, nil
}

// PairResult is the outcome of joining one audio/video MPU pair: spec.md
// §4.6 Phase 6 concatenates (audio-init||audio-moof||audio-mdat) and
// (video-init||video-moof||video-mdat) into a single contiguous output,
// preserving track order (audio first, matching the external box-joiner
// library's contract per spec.md §4.6).
type PairResult struct {
	Audio, Video Result
	State        TrackState // TrackPublished only once both tracks publish
	Fragment     []byte     // valid only when State == TrackPublished
}

// BuildPair runs the per-track pipeline independently for the audio and
// video packet ids at the given sequence numbers (spec.md §4.6's
// "build_from_mpu_sequence_numbers(flow, seq_audio, seq_video)"), then
// concatenates the two published fragments into one output. Either track
// falling short of TrackPublished aborts the pair without error — spec.md
// §7 treats a build-level null as silent by design, not a failure.
func (j *Joiner) BuildPair(
	ctx context.Context,
	reassembler *mmtp.Reassembler,
	store *signalling.Store,
	audioPacketID, videoPacketID uint16,
	seqAudio, seqVideo uint32,
) (PairResult, error) {
	audio, err := j.BuildFromMPUSequenceNumbers(ctx, reassembler, store, audioPacketID, seqAudio)
	if err != nil {
		return PairResult{Audio: audio}, err
	}
	video, err := j.BuildFromMPUSequenceNumbers(ctx, reassembler, store, videoPacketID, seqVideo)
	if err != nil {
		return PairResult{Audio: audio, Video: video}, err
	}

	pair := PairResult{Audio: audio, Video: video}
	if audio.State != TrackPublished || video.State != TrackPublished {
		pair.State = minTrackState(audio.State, video.State)
		return pair, nil
	}

	pair.State = TrackPublished
	pair.Fragment = append(append([]byte(nil), audio.Fragment...), video.Fragment...)
	return pair, nil
}

// BuildPairFromFlows is BuildFromFlow's two-track counterpart: it uses each
// track's newest pending MPU sequence number (spec.md §4.6.A: "uses the
// newest completed MPU sequence observed on the flow") rather than an
// explicit replay pair.
func (j *Joiner) BuildPairFromFlows(
	ctx context.Context,
	reassembler *mmtp.Reassembler,
	store *signalling.Store,
	audioPacketID, videoPacketID uint16,
) (PairResult, error) {
	seqAudio, ok := newestPendingSeq(reassembler, audioPacketID)
	if !ok {
		return PairResult{}, nil
	}
	seqVideo, ok := newestPendingSeq(reassembler, videoPacketID)
	if !ok {
		return PairResult{}, nil
	}
	return j.BuildPair(ctx, reassembler, store, audioPacketID, videoPacketID, seqAudio, seqVideo)
}

func newestPendingSeq(reassembler *mmtp.Reassembler, packetID uint16) (uint32, bool) {
	flow, ok := reassembler.Registry().Flow(packetID)
	if !ok {
		return 0, false
	}
	seqs := flow.PendingSeqs(mmtp.FragmentTypeMediaFragmentUnit)
	if len(seqs) == 0 {
		return 0, false
	}
	newest := seqs[0]
	for _, s := range seqs[1:] {
		if s > newest {
			newest = s
		}
	}
	return newest, true
}

// minTrackState reports the lesser-progressed of two track states, so a
// pair's reported state reflects whichever track is further from
// TrackPublished.
func minTrackState(a, b TrackState) TrackState {
	if a < b {
		return a
	}
	return b
}

// BuildFromFlow attempts BuildFromMPUSequenceNumbers for every mpu sequence
// number currently pending in packetID's media-fragment-unit vector,
// returning only the results that reached TrackPublished, ordered by
// ascending mpu sequence number.
func (j *Joiner) BuildFromFlow(
	ctx context.Context,
	reassembler *mmtp.Reassembler,
	store *signalling.Store,
	packetID uint16,
) ([]Result, error) {
	flow, ok := reassembler.Registry().Flow(packetID)
	if !ok {
		return nil, nil
	}

	seqs := flow.PendingSeqs(mmtp.FragmentTypeMediaFragmentUnit)
	sort.Slice(seqs, func(i, k int) bool { return seqs[i] < seqs[k] })

	var out []Result
	for _, seq := range seqs {
		res, err := j.BuildFromMPUSequenceNumbers(ctx, reassembler, store, packetID, seq)
		if err != nil {
			return out, err
		}
		if res.State == TrackPublished {
			out = append(out, res)
		}
	}
	return out, nil
}
