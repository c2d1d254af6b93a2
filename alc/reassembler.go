// SPDX-License-Identifier: MIT

package alc

import (
	"context"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/atsc3go/a3recv"
	"github.com/atsc3go/a3recv/fec"
	"github.com/atsc3go/a3recv/telemetry"
)

// CompletionEvent is enqueued when a TransportObject finishes, successfully
// or not (spec §4.3 step 6, §4.3 "Failure semantics"). Err is set only when
// the event represents a session-wide teardown (CloseSession) waking a
// blocked waiter that was never attached to a real completion; callers must
// check it before trusting TOI/State.
type CompletionEvent struct {
	TOI   uint64
	State ObjectState
	Err   error
}

// Reassembler is the per-session ALC object reassembler (spec.md §4.3). It
// owns the TOI→TransportObject map; sessions with many concurrent TOIs
// read and write it from multiple channel receive tasks at once, so it is
// backed by a concurrent map (github.com/puzpuzpuz/xsync/v4) rather than a
// single registry-wide mutex (spec §5 "each sub-flow has a private lock").
type Reassembler struct {
	fecRegistry *fec.Registry
	telemetry   *telemetry.Telemetry

	objects *xsync.Map[uint64, *TransportObject]

	waitersMu sync.Mutex
	waiters   map[uint64][]chan CompletionEvent
	anyWait   []chan CompletionEvent
	closed    bool
}

// NewReassembler builds a Reassembler; fecRegistry and tel must not be nil.
func NewReassembler(fecRegistry *fec.Registry, tel *telemetry.Telemetry) *Reassembler {
	return &Reassembler{
		fecRegistry: fecRegistry,
		telemetry:   tel,
		objects:     xsync.NewMap[uint64, *TransportObject](),
		waiters:     make(map[uint64][]chan CompletionEvent),
	}
}

// ObjectExists returns the TransportObject for toi if one has been
// created, matching original_source/atsc3_alc_rx.h's object_exist.
func (r *Reassembler) ObjectExists(toi uint64) (*TransportObject, bool) {
	return r.objects.Load(toi)
}

func (r *Reassembler) objectFor(toi uint64, kind ObjectKind) *TransportObject {
	obj, _ := r.objects.LoadOrStore(toi, newTransportObject(toi, kind))
	return obj
}

// Ingest runs the six-step protocol of spec.md §4.3 for one decoded ALC
// packet. A malformed packet never reaches here (ParsePacket already
// rejected it); Ingest only sees structurally valid packets.
func (r *Reassembler) Ingest(ctx context.Context, pkt Packet) error {
	kind := ObjectKindNormal
	if pkt.LCT.TOI == FDTReservedTOI {
		kind = ObjectKindFDT
	}
	obj := r.objectFor(pkt.LCT.TOI, kind)

	obj.mu.Lock()
	if obj.state != ObjectPending {
		obj.mu.Unlock()
		// Packet for an already-completed object: idempotent discard.
		return nil
	}

	if pkt.OTI.TransferLenKnown && !obj.TransferLenKnown {
		obj.TransferLen = pkt.OTI.TransferLen
		obj.TransferLenKnown = true
		obj.EncodingID = pkt.OTI.EncodingID
	}
	obj.setLatches(pkt.LCT.CloseObject, pkt.LCT.CloseSession)

	sbn, esi := blockKeyFor(pkt)
	block := obj.blockFor(sbn)
	added := block.AddSymbol(esi, pkt.Payload)
	if !added {
		obj.mu.Unlock()
		r.telemetry.Debugf(ctx, "duplicate alc symbol", "toi", pkt.LCT.TOI, "sbn", sbn, "esi", esi)
		return nil
	}

	r.tryDecodeBlockLocked(ctx, obj, block)
	done := r.objectCompletedLocked(obj)
	closing := obj.CloseSession || obj.CloseObject
	if done {
		obj.state = ObjectComplete
	} else if closing && obj.CloseSession {
		obj.state = ObjectIncomplete
	}
	finalState := obj.state
	obj.mu.Unlock()

	if finalState != ObjectPending {
		r.notify(pkt.LCT.TOI, finalState)
	}
	return nil
}

// blockKeyFor derives the (SBN, symbol-key) pair a packet's payload should
// be stored under. Raptor packets carry an explicit SBN/ESI pair; every
// other encoding derives a single implicit block (SBN 0) and a positional
// key from start_offset (spec §4.3 step 2).
func blockKeyFor(pkt Packet) (sbn uint8, key uint32) {
	if pkt.FECPayloadID.UseSBNESI {
		return pkt.FECPayloadID.SBN, pkt.FECPayloadID.ESI
	}
	return 0, pkt.FECPayloadID.StartOffset
}

// tryDecodeBlockLocked asks the FEC registry whether block is ready and,
// if so, decodes it and stores the result. obj.mu must be held.
func (r *Reassembler) tryDecodeBlockLocked(ctx context.Context, obj *TransportObject, block *TransportBlock) {
	if _, already := obj.decoded[block.SBN]; already {
		return
	}

	desc := block.Descriptor(sourceSymbolCount(obj, block))
	symbols := block.Symbols()

	if !r.fecRegistry.Ready(obj.EncodingID, desc, symbols) {
		return
	}
	data, err := r.fecRegistry.Decode(obj.EncodingID, desc, symbols)
	if err != nil {
		r.telemetry.Warnf(ctx, telemetry.CounterUnsupportedFec, "fec decode failed", "toi", obj.TOI, "sbn", block.SBN, "err", err)
		return
	}
	obj.decoded[block.SBN] = data
}

// sourceSymbolCount derives how many source symbols a block should
// contain from the object's known transfer length and the block's
// observed symbol size; zero means "not yet determinable".
func sourceSymbolCount(obj *TransportObject, block *TransportBlock) int {
	if !obj.TransferLenKnown || block.symbolLen == 0 {
		return 0
	}
	count := int(obj.TransferLen) / block.symbolLen
	if int(obj.TransferLen)%block.symbolLen != 0 {
		count++
	}
	return count
}

// objectCompletedLocked implements object_completed: every block decoded,
// transfer_len known, and the decoded byte total equal to it. An object
// whose transfer_len is still unknown is never complete. obj.mu must be held.
func (r *Reassembler) objectCompletedLocked(obj *TransportObject) bool {
	if len(obj.decoded) == 0 || len(obj.decoded) != len(obj.blocks) {
		return false
	}
	if !obj.TransferLenKnown {
		return false
	}
	var total uint64
	for _, data := range obj.decoded {
		total += uint64(len(data))
	}
	return total == obj.TransferLen
}

// notify wakes any goroutine blocked in Wait/WaitAny for toi.
func (r *Reassembler) notify(toi uint64, state ObjectState) {
	r.waitersMu.Lock()
	defer r.waitersMu.Unlock()

	ev := CompletionEvent{TOI: toi, State: state}
	for _, ch := range r.waiters[toi] {
		ch <- ev
		close(ch)
	}
	delete(r.waiters, toi)
	for _, ch := range r.anyWait {
		ch <- ev
		close(ch)
	}
	r.anyWait = nil
}

// Wait blocks until toi's object completes (successfully or not) or ctx is
// cancelled.
func (r *Reassembler) Wait(ctx context.Context, toi uint64) (CompletionEvent, error) {
	if obj, ok := r.objects.Load(toi); ok {
		if st := obj.State(); st != ObjectPending {
			return CompletionEvent{TOI: toi, State: st}, nil
		}
	}

	ch := make(chan CompletionEvent, 1)
	r.waitersMu.Lock()
	if r.closed {
		r.waitersMu.Unlock()
		return CompletionEvent{}, a3recv.ErrSessionClosed
	}
	r.waiters[toi] = append(r.waiters[toi], ch)
	r.waitersMu.Unlock()

	select {
	case ev := <-ch:
		if ev.Err != nil {
			return CompletionEvent{}, ev.Err
		}
		return ev, nil
	case <-ctx.Done():
		return CompletionEvent{}, ctx.Err()
	}
}

// WaitAny blocks until any object completes or ctx is cancelled.
func (r *Reassembler) WaitAny(ctx context.Context) (CompletionEvent, error) {
	ch := make(chan CompletionEvent, 1)
	r.waitersMu.Lock()
	if r.closed {
		r.waitersMu.Unlock()
		return CompletionEvent{}, a3recv.ErrSessionClosed
	}
	r.anyWait = append(r.anyWait, ch)
	r.waitersMu.Unlock()

	select {
	case ev := <-ch:
		if ev.Err != nil {
			return CompletionEvent{}, ev.Err
		}
		return ev, nil
	case <-ctx.Done():
		return CompletionEvent{}, ctx.Err()
	}
}

// CloseSession marks the reassembler closed: every pending object
// transitions to Incomplete and every blocked waiter wakes (spec §5 "A
// session close cancels all channels ... releases all buffers", §8
// invariant 6). A waiter blocked on a TOI that was actually created and
// pending wakes with the real ObjectIncomplete event (spec.md §4.3
// "Failure semantics": "Missing symbols at close_session time leave the
// object in an Incomplete terminal state; readers waiting on it are woken
// with an Incomplete result") — a waiter blocked on a TOI that never
// existed, or any WaitAny caller with no TOI at all, has no object to
// report Incomplete, so it wakes with a3recv.ErrSessionClosed instead.
func (r *Reassembler) CloseSession() {
	r.objects.Range(func(toi uint64, obj *TransportObject) bool {
		obj.mu.Lock()
		if obj.state == ObjectPending {
			obj.state = ObjectIncomplete
		}
		obj.mu.Unlock()
		return true
	})

	r.waitersMu.Lock()
	defer r.waitersMu.Unlock()
	r.closed = true
	for toi, chans := range r.waiters {
		_, existed := r.objects.Load(toi)
		for _, ch := range chans {
			if existed {
				ch <- CompletionEvent{TOI: toi, State: ObjectIncomplete}
			} else {
				ch <- CompletionEvent{Err: a3recv.ErrSessionClosed}
			}
			close(ch)
		}
	}
	r.waiters = make(map[uint64][]chan CompletionEvent)
	for _, ch := range r.anyWait {
		ch <- CompletionEvent{Err: a3recv.ErrSessionClosed}
		close(ch)
	}
	r.anyWait = nil
}
