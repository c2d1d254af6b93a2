// SPDX-License-Identifier: MIT

package receiver

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/atsc3go/a3recv"
	"github.com/atsc3go/a3recv/alc"
	"github.com/atsc3go/a3recv/internal/idgen"
	"github.com/atsc3go/a3recv/mmtp"
	"github.com/atsc3go/a3recv/signalling"
	"github.com/atsc3go/a3recv/telemetry"
)

// socketReadTimeout bounds how long a channel's receive loop blocks in
// PacketSource.Next before re-checking ctx, so cancellation is observed
// even against a source that never errors on its own (spec.md §5).
const socketReadTimeout = time.Second

// maxRetryJitterMillis bounds the random backoff applied before retrying a
// timed-out socket read, so that many channels on the same session sharing
// a retry cadence don't all wake and hit the source in lockstep.
const maxRetryJitterMillis = 50

// nextFDTInstanceID hands out ascending FDT instance ids as FDT objects
// complete. The simplified wire header this module decodes carries no
// instance-id field of its own (spec.md's ALC header section names no
// extension block for it), so the receive path assigns one on arrival
// order instead of reading it off the packet.
var nextFDTInstanceID atomic.Int32

// Receive runs ch's packet loop until ctx is cancelled or the source
// reports a non-timeout error. It is the per-channel receive task spec.md
// §4.7/§5 describes running one per channel under a single session-wide
// errgroup.
func (c *Channel) Receive(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		pkt, err := c.src.Next(ctx, socketReadTimeout)
		if err != nil {
			if errors.Is(err, a3recv.ErrSourceTimeout) {
				jitter := time.Duration(idgen.JitterMillis(maxRetryJitterMillis)) * time.Millisecond
				select {
				case <-time.After(jitter):
				case <-ctx.Done():
					return ctx.Err()
				}
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		if err := c.ingest(ctx, pkt); err != nil {
			c.session.tel.Warnf(ctx, telemetry.CounterMalformedHeader, "dropping unparsable packet",
				"protocol", c.protocol, "err", err)
		}
	}
}

func (c *Channel) ingest(ctx context.Context, pkt a3recv.Packet) error {
	switch c.protocol {
	case a3recv.ProtocolALC:
		return c.ingestALC(ctx, pkt)
	case a3recv.ProtocolMMTP:
		return c.ingestMMTP(ctx, pkt)
	default:
		return nil
	}
}

func (c *Channel) ingestALC(ctx context.Context, pkt a3recv.Packet) error {
	alcPkt, err := alc.ParsePacket(pkt.Payload)
	if err != nil {
		return err
	}

	if err := c.session.ALC.Ingest(ctx, alcPkt); err != nil {
		return err
	}

	if alcPkt.LCT.TOI == alc.FDTReservedTOI {
		if obj, ok := c.session.ALC.ObjectExists(alcPkt.LCT.TOI); ok && obj.State() == alc.ObjectComplete {
			if err := c.session.FDT.Install(int(nextFDTInstanceID.Add(1)), alc.ContentEncodingIdentity, obj.Assemble()); err != nil {
				return err
			}
		}
	}

	if alcPkt.LCT.CloseSession {
		c.closeSession(ctx)
	}
	return nil
}

func (c *Channel) ingestMMTP(ctx context.Context, pkt a3recv.Packet) error {
	mmtpPkt, err := mmtp.ParsePacket(pkt.Payload)
	if err != nil {
		return err
	}

	ev, complete, err := c.session.MMTP.Ingest(ctx, mmtpPkt)
	if err != nil {
		return err
	}

	if complete {
		switch ev.Kind {
		case mmtp.SignallingVector:
			c.ingestSignalling(ctx, ev.Payload)
		case mmtp.FragmentTypeMediaFragmentUnit:
			if audio, video, sink, ok := c.session.avTrackPair(); ok && (ev.PacketID == audio || ev.PacketID == video) {
				c.publishJoinedPair(ctx, audio, video, sink)
			} else {
				c.publishJoinedFragment(ctx, ev.PacketID, ev.Seq)
			}
		}
	}

	if mmtpPkt.Common.CloseSession {
		c.closeSession(ctx)
	}
	return nil
}

// ingestSignalling parses a completed signalling-message-fragments bucket
// into its MPT messages and installs each into the session's signalling
// store (spec.md §4.5's "Accepts signalling-message fragments, parses MPT
// messages into an MPTable"). A malformed table is a packet-level error:
// logged and swallowed, per spec.md §7's propagation policy.
func (c *Channel) ingestSignalling(ctx context.Context, payload []byte) {
	tables, err := signalling.ParseSignallingTable(payload)
	if err != nil {
		c.session.tel.Warnf(ctx, telemetry.CounterMalformedHeader, "dropping unparsable signalling table", "err", err)
		return
	}
	for _, mpt := range tables {
		c.session.MPT.Install(mpt)
	}
}

// closeSession tears the whole session down in response to an inbound
// packet's close_session flag (spec.md §3's Channel lifecycle, §8
// invariant 6, scenario S5): every channel's source is closed and every
// blocked ALC waiter wakes, with ObjectIncomplete for a pending object and
// a3recv.ErrSessionClosed otherwise. Session.Close is
// idempotent, so repeated close_session packets across channels are safe.
func (c *Channel) closeSession(ctx context.Context) {
	if err := c.session.Close(ctx); err != nil {
		c.session.tel.Warnf(ctx, telemetry.CounterMalformedHeader, "error tearing down session on close_session packet", "err", err)
	}
}
