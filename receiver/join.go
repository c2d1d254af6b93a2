// SPDX-License-Identifier: MIT

package receiver

import (
	"context"

	"github.com/atsc3go/a3recv"
	"github.com/atsc3go/a3recv/isobmff"
	"github.com/atsc3go/a3recv/telemetry"
)

// publishJoinedFragment runs the isobmff join for (packetID, mpuSeq) and,
// if it produced a fragment, pushes it to the channel's sink. A join that
// stalls short of TrackPublished (waiting on a moof or init segment still
// in flight) is not an error — it just means this MPU isn't ready yet.
func (c *Channel) publishJoinedFragment(ctx context.Context, packetID uint16, mpuSeq uint32) {
	res, err := c.session.Join.BuildFromMPUSequenceNumbers(ctx, c.session.MMTP, c.session.MPT, packetID, mpuSeq)
	if err != nil {
		c.session.tel.Warnf(ctx, telemetry.CounterJoinIncomplete, "isobmff join failed",
			"packet_id", packetID, "mpu_seq", mpuSeq, "err", err)
		return
	}
	if res.State != isobmff.TrackPublished || c.sink == nil {
		return
	}
	if !c.sink.Publish(ctx, res.Fragment) {
		c.session.tel.Warnf(ctx, telemetry.CounterSinkBackpressured, "sink closed, dropping fragment",
			"packet_id", packetID, "mpu_seq", mpuSeq)
	}
}

// publishJoinedPair is publishJoinedFragment's two-track counterpart: it
// runs isobmff.Joiner.BuildPairFromFlows for the session's configured
// audio/video packet-ids and publishes the concatenated fragment to sink
// once both tracks reach TrackPublished (spec.md §4.6 Phase 6).
func (c *Channel) publishJoinedPair(ctx context.Context, audioPacketID, videoPacketID uint16, sink a3recv.OutputSink) {
	pair, err := c.session.Join.BuildPairFromFlows(ctx, c.session.MMTP, c.session.MPT, audioPacketID, videoPacketID)
	if err != nil {
		c.session.tel.Warnf(ctx, telemetry.CounterJoinIncomplete, "isobmff pair join failed",
			"audio_packet_id", audioPacketID, "video_packet_id", videoPacketID, "err", err)
		return
	}
	if pair.State != isobmff.TrackPublished || sink == nil {
		return
	}
	if !sink.Publish(ctx, pair.Fragment) {
		c.session.tel.Warnf(ctx, telemetry.CounterSinkBackpressured, "sink closed, dropping joined pair",
			"audio_packet_id", audioPacketID, "video_packet_id", videoPacketID)
	}
}
