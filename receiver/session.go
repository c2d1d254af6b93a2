// SPDX-License-Identifier: MIT

// Package receiver wires the alc, mmtp, signalling, and isobmff packages
// into a running receive session: one Session owns a set of Channels,
// each pulling raw packets from an external a3recv.PacketSource and
// feeding them to the matching reassembler (spec.md §4.7, §5).
package receiver

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/atsc3go/a3recv"
	"github.com/atsc3go/a3recv/alc"
	"github.com/atsc3go/a3recv/fec"
	"github.com/atsc3go/a3recv/isobmff"
	"github.com/atsc3go/a3recv/mmtp"
	"github.com/atsc3go/a3recv/signalling"
	"github.com/atsc3go/a3recv/telemetry"
)

// Session is the top-level receive unit: one broadcast service's worth of
// ALC and MMTP channels, sharing a single FEC registry, signalling store,
// and ISO-BMFF joiner. A session exclusively owns its channels (spec.md
// §9's redesign note) — channels hold only a back-reference for logging
// and never outlive the session that created them.
type Session struct {
	ID uuid.UUID

	tel *telemetry.Telemetry

	ALC  *alc.Reassembler
	FDT  *alc.FDTStore
	MMTP *mmtp.Reassembler
	MPT  *signalling.Store
	Join *isobmff.Joiner

	mu       sync.Mutex
	channels []*Channel
	closed   bool

	avConfigured    bool
	avAudioPacketID uint16
	avVideoPacketID uint16
	avSink          a3recv.OutputSink
}

// ConfigurePair names the MMTP packet-ids carrying the audio and video
// sub-flows for one service, so the receive loop can invoke
// isobmff.Joiner.BuildPairFromFlows instead of publishing each track's
// fragments independently (spec.md §4.7: "periodically invokes the joiner
// when the observed MPU sequence number for all configured tracks advances
// by at least one"). Without a configured pair, each packet-id's media
// fragments still publish independently through its channel's sink.
func (s *Session) ConfigurePair(audioPacketID, videoPacketID uint16, sink a3recv.OutputSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.avConfigured = true
	s.avAudioPacketID = audioPacketID
	s.avVideoPacketID = videoPacketID
	s.avSink = sink
}

// avTrackPair reports the configured audio/video packet-id pair and sink,
// if ConfigurePair has been called.
func (s *Session) avTrackPair() (audio, video uint16, sink a3recv.OutputSink, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.avAudioPacketID, s.avVideoPacketID, s.avSink, s.avConfigured
}

// NewSession builds a Session. boxes is the external ISO-BMFF collaborator
// (spec.md §4.6); fecRegistry supplies FEC decoders for the ALC
// reassembler (spec.md §4.3).
func NewSession(tel *telemetry.Telemetry, fecRegistry *fec.Registry, boxes isobmff.BoxBuilder) *Session {
	return &Session{
		ID:   uuid.New(),
		tel:  tel,
		ALC:  alc.NewReassembler(fecRegistry, tel),
		FDT:  alc.NewFDTStore(),
		MMTP: mmtp.NewReassembler(tel),
		MPT:  signalling.NewStore(),
		Join: isobmff.NewJoiner(boxes, tel),
	}
}

// AddChannel creates a Channel reading from src and registers it with the
// session. protocol selects whether packets are decoded as ALC or MMTP.
func (s *Session) AddChannel(src a3recv.PacketSource, protocol a3recv.Protocol, sink a3recv.OutputSink) *Channel {
	ch := &Channel{session: s, src: src, protocol: protocol, sink: sink}

	s.mu.Lock()
	s.channels = append(s.channels, ch)
	s.mu.Unlock()

	return ch
}

// Channels returns the session's registered channels.
func (s *Session) Channels() []*Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Channel(nil), s.channels...)
}

// Close tears the session down: closes every channel's packet source and
// wakes any blocked ALC waiters (see alc.Reassembler.CloseSession: a waiter
// on a pending object gets ObjectIncomplete, a waiter on a TOI that was
// never created or a WaitAny caller gets a3recv.ErrSessionClosed),
// mirroring original_source/atsc3_alc_rx.h's session-level shutdown.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	channels := append([]*Channel(nil), s.channels...)
	s.mu.Unlock()

	s.ALC.CloseSession()

	var firstErr error
	for _, ch := range channels {
		if err := ch.src.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Run starts one receive task per channel under a shared errgroup and
// blocks until ctx is cancelled or any channel's task returns a non-nil
// error, at which point the group cancels the rest (spec.md §4.7's
// "parallel per-channel receive tasks" design).
func (s *Session) Run(ctx context.Context) error {
	group, gctx := errgroup.WithContext(ctx)
	for _, ch := range s.Channels() {
		ch := ch
		group.Go(func() error { return ch.Receive(gctx) })
	}
	return group.Wait()
}

// Closed reports whether Close has already run.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
