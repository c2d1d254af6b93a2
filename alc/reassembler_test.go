// SPDX-License-Identifier: MIT

package alc

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atsc3go/a3recv"
	"github.com/atsc3go/a3recv/fec"
	"github.com/atsc3go/a3recv/telemetry"
)

func newTestReassembler(t *testing.T) *Reassembler {
	t.Helper()
	// The packets below are Raptor-style (SBN, ESI); NewRegistry carries no
	// Raptor decoder, so the identity no-code decoder stands in for one.
	reg := fec.NewRegistry()
	reg.Register(fec.EncodingRaptor, fec.NoCodeDecoder{})
	return NewReassembler(reg, telemetry.New(telemetry.Config{Writer: io.Discard}))
}

func raptorPacket(toi uint64, sbn uint8, esi uint32, transferLen uint64, closeObject, closeSession bool, payload []byte) Packet {
	return Packet{
		LCT: LCTHeader{Version: 1, TOI: toi, CloseObject: closeObject, CloseSession: closeSession},
		OTI: FECObjectInfo{EncodingID: fec.EncodingRaptor, TransferLen: transferLen, TransferLenKnown: true},
		FECPayloadID: FECPayloadID{
			UseSBNESI: true,
			SBN:       sbn,
			ESI:       esi,
		},
		Payload: payload,
	}
}

// S1: 3 packets for TOI=7, SBN=0, ESI in {0,1,2}, close_object=1 on last.
func TestReassemblerS1CompletesAndConcatenates(t *testing.T) {
	r := newTestReassembler(t)
	ctx := context.Background()

	p0 := []byte{1, 2, 3, 4}
	p1 := []byte{5, 6, 7, 8}
	p2 := []byte{9, 10}
	total := uint64(len(p0) + len(p1) + len(p2))

	require.NoError(t, r.Ingest(ctx, raptorPacket(7, 0, 0, total, false, false, p0)))
	require.NoError(t, r.Ingest(ctx, raptorPacket(7, 0, 1, total, false, false, p1)))
	require.NoError(t, r.Ingest(ctx, raptorPacket(7, 0, 2, total, true, false, p2)))

	obj, ok := r.ObjectExists(7)
	require.True(t, ok)
	assert.Equal(t, ObjectComplete, obj.State())

	got := obj.Assemble()
	want := append(append(append([]byte{}, p0...), p1...), p2...)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("assembled object bytes mismatch (-want +got):\n%s", diff)
	}
	assert.EqualValues(t, total, len(got))
}

func TestReassemblerDuplicateSymbolIsIdempotent(t *testing.T) {
	r := newTestReassembler(t)
	ctx := context.Background()

	require.NoError(t, r.Ingest(ctx, raptorPacket(1, 0, 0, 4, false, false, []byte{1, 2})))
	require.NoError(t, r.Ingest(ctx, raptorPacket(1, 0, 0, 4, false, false, []byte{9, 9}))) // dup ESI, ignored

	obj, ok := r.ObjectExists(1)
	require.True(t, ok)
	block := obj.blockFor(0)
	assert.Len(t, block.symbols, 1)
	assert.Equal(t, []byte{1, 2}, block.symbols[0].Payload)
}

func TestReassemblerCloseSessionMarksPendingObjectsIncompleteAndWakesWaiters(t *testing.T) {
	r := newTestReassembler(t)
	ctx := context.Background()

	require.NoError(t, r.Ingest(ctx, raptorPacket(5, 0, 0, 100, false, false, []byte{1, 2}))) // incomplete: needs more bytes

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	done := make(chan CompletionEvent, 1)
	go func() {
		ev, err := r.Wait(waitCtx, 5)
		require.NoError(t, err)
		done <- ev
	}()

	time.Sleep(10 * time.Millisecond)
	r.CloseSession()

	select {
	case ev := <-done:
		assert.Equal(t, ObjectIncomplete, ev.State)
	case <-time.After(time.Second):
		t.Fatal("Wait did not unblock after CloseSession")
	}
}

func TestReassemblerCloseSessionWakesWaitOnUnknownTOIWithSessionClosed(t *testing.T) {
	r := newTestReassembler(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := r.Wait(ctx, 42) // TOI 42 is never created
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	r.CloseSession()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, a3recv.ErrSessionClosed)
	case <-time.After(time.Second):
		t.Fatal("Wait did not unblock after CloseSession")
	}
}

func TestReassemblerCloseSessionWakesWaitAnyWithSessionClosed(t *testing.T) {
	r := newTestReassembler(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := r.WaitAny(ctx)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	r.CloseSession()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, a3recv.ErrSessionClosed)
	case <-time.After(time.Second):
		t.Fatal("WaitAny did not unblock after CloseSession")
	}
}

func TestReassemblerWaitAnyWakesOnFirstCompletion(t *testing.T) {
	r := newTestReassembler(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	result := make(chan CompletionEvent, 1)
	go func() {
		ev, err := r.WaitAny(ctx)
		require.NoError(t, err)
		result <- ev
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, r.Ingest(context.Background(), raptorPacket(3, 0, 0, 2, false, false, []byte{1, 2})))

	select {
	case ev := <-result:
		assert.EqualValues(t, 3, ev.TOI)
		assert.Equal(t, ObjectComplete, ev.State)
	case <-time.After(time.Second):
		t.Fatal("WaitAny did not wake on completion")
	}
}
